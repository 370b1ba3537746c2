package config

import (
	"errors"
	"fmt"
	"strconv"
)

const (
	AdapterMCP2221 = "mcp2221"
	AdapterGeneric = "generic"
	AdapterNanoPi  = "nanopi"
	AdapterSim     = "sim"
)

var ErrInvalid = errors.New("invalid config")

// Validate checks a normalized configuration and reports all problems at once.
func Validate(cfg *Config) error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	s := cfg.Sensor
	switch s.Adapter {
	case AdapterMCP2221, AdapterGeneric, AdapterSim:
	case AdapterNanoPi:
		if s.Device != "" {
			if _, err := strconv.Atoi(s.Device); err != nil {
				fail("sensor.device must be a bus number for the nanopi adapter, got %q", s.Device)
			}
		}
	default:
		fail("sensor.adapter %q is not supported", s.Adapter)
	}
	if s.Address > 0x7F {
		fail("sensor.address %#x is not a 7-bit address", s.Address)
	}
	if s.MinUpdateIntervalMs != nil && *s.MinUpdateIntervalMs < 0 {
		fail("sensor.min_update_interval_ms must be >= 0")
	}
	if cfg.Monitor.TickMs <= 0 {
		fail("monitor.tick_ms must be > 0")
	}
	if m := cfg.Publish.Modbus; m != nil {
		if m.Endpoint == "" {
			fail("publish.modbus.endpoint is required")
		}
		if m.TimeoutMs <= 0 {
			fail("publish.modbus.timeout_ms must be > 0")
		}
		if m.Address == 0xFFFF {
			fail("publish.modbus.address leaves no room for the humidity register")
		}
	}
	return errors.Join(errs...)
}
