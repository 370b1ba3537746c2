// Package publish delivers drained sensor readings to their consumers.
package publish

import (
	"context"
	"time"
)

type Quantity string

const (
	AirTemperature Quantity = "air_temperature"
	AirHumidity    Quantity = "air_humidity"
)

func (q Quantity) Unit() string {
	switch q {
	case AirTemperature:
		return "C"
	case AirHumidity:
		return "%RH"
	default:
		return ""
	}
}

// Measurement is a single new value reported by a sensor.
type Measurement struct {
	Sensor   string
	Quantity Quantity
	Value    float32
	At       time.Time
}

type Publisher interface {
	Publish(ctx context.Context, m Measurement) error
}

// FailureRecorder is implemented by publishers that track failed polls.
type FailureRecorder interface {
	RecordFailure(ctx context.Context, sensor string, err error)
}
