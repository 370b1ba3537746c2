// Package monitor runs the cooperative polling loop for a rate-limited
// sensor and forwards every new value to the configured publishers.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mklimuk/agsensors/environment"
	"github.com/mklimuk/agsensors/publish"
)

// Sensor is the polling surface of a driver such as environment.AM2315.
type Sensor interface {
	Update(ctx context.Context) environment.PollResult
	GetAirTemperature() (float32, bool)
	GetAirHumidity() (float32, bool)
}

type Monitor struct {
	name       string
	sensor     Sensor
	publishers []publish.Publisher
	tick       time.Duration
	now        func() time.Time
}

type Opt func(*Monitor)

// WithTick sets how often Update is called. The driver decides on its own
// whether a call reaches the bus.
func WithTick(tick time.Duration) Opt {
	return func(m *Monitor) {
		m.tick = tick
	}
}

func WithPublishers(publishers ...publish.Publisher) Opt {
	return func(m *Monitor) {
		m.publishers = append(m.publishers, publishers...)
	}
}

func New(name string, sensor Sensor, opts ...Opt) (*Monitor, error) {
	if name == "" {
		return nil, errors.New("monitor: sensor name required")
	}
	if sensor == nil {
		return nil, errors.New("monitor: sensor required")
	}
	m := &Monitor{
		name:   name,
		sensor: sensor,
		tick:   250 * time.Millisecond,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.tick <= 0 {
		return nil, errors.New("monitor: tick must be > 0")
	}
	return m, nil
}

// Step calls Update once and publishes whatever new data the sensor reports.
// Publisher errors are joined and returned; they do not stop the other
// publishers.
func (m *Monitor) Step(ctx context.Context) error {
	res := m.sensor.Update(ctx)
	if res.Polled && res.Err != nil && ctx.Err() == nil {
		for _, p := range m.publishers {
			if rec, ok := p.(publish.FailureRecorder); ok {
				rec.RecordFailure(ctx, m.name, res.Err)
			}
		}
	}
	var errs []error
	at := m.now()
	if v, ok := m.sensor.GetAirTemperature(); ok {
		errs = append(errs, m.publish(ctx, publish.Measurement{Sensor: m.name, Quantity: publish.AirTemperature, Value: v, At: at}))
	}
	if v, ok := m.sensor.GetAirHumidity(); ok {
		errs = append(errs, m.publish(ctx, publish.Measurement{Sensor: m.name, Quantity: publish.AirHumidity, Value: v, At: at}))
	}
	return errors.Join(errs...)
}

func (m *Monitor) publish(ctx context.Context, meas publish.Measurement) error {
	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, meas); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", meas.Quantity, err))
		}
	}
	return errors.Join(errs...)
}

// Run steps the sensor every tick until ctx is done.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()
	slog.InfoContext(ctx, "monitor started", "sensor", m.name, "tick", m.tick)
	for {
		if err := m.Step(ctx); err != nil {
			slog.WarnContext(ctx, "publishing failed", "sensor", m.name, "error", err)
		}
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "monitor stopped", "sensor", m.name)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
