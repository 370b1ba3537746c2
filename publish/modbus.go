package publish

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goburrow/modbus"
)

// RegisterWriter is the part of the modbus client used by the publisher.
type RegisterWriter interface {
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Modbus mirrors readings into holding registers of a Modbus TCP server as
// signed tenths (temperature at base, humidity at base+1), which is how most
// PLCs expect fixed-point process values.
type Modbus struct {
	client RegisterWriter
	base   uint16
}

func NewModbus(client RegisterWriter, base uint16) *Modbus {
	return &Modbus{client: client, base: base}
}

// DialModbus connects to a Modbus TCP server. The returned function closes
// the connection.
func DialModbus(endpoint string, unitID uint8, base uint16, timeout time.Duration) (*Modbus, func() error, error) {
	handler := modbus.NewTCPClientHandler(endpoint)
	handler.Timeout = timeout
	handler.SlaveId = unitID
	if err := handler.Connect(); err != nil {
		return nil, nil, fmt.Errorf("modbus connect %s failed: %w", endpoint, err)
	}
	return NewModbus(modbus.NewClient(handler), base), handler.Close, nil
}

func (p *Modbus) Publish(ctx context.Context, m Measurement) error {
	var addr uint16
	switch m.Quantity {
	case AirTemperature:
		addr = p.base
	case AirHumidity:
		addr = p.base + 1
	default:
		return fmt.Errorf("modbus: unsupported quantity %q", m.Quantity)
	}
	value, err := toDeci(m.Value)
	if err != nil {
		return fmt.Errorf("modbus: %s: %w", m.Quantity, err)
	}
	if _, err := p.client.WriteSingleRegister(addr, uint16(value)); err != nil {
		return fmt.Errorf("modbus write %s to register %d failed: %w", m.Quantity, addr, err)
	}
	return nil
}

func toDeci(v float32) (int16, error) {
	d := math.Round(float64(v) * 10)
	if d > math.MaxInt16 || d < math.MinInt16 {
		return 0, fmt.Errorf("value %.1f out of register range", v)
	}
	return int16(d), nil
}
