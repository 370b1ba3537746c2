package main

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/mklimuk/agsensors"
	"github.com/mklimuk/agsensors/adapter"
	"github.com/mklimuk/agsensors/adapter/sim"
	"github.com/mklimuk/agsensors/config"
	"github.com/mklimuk/agsensors/i2c"
)

func noopClose() error { return nil }

// openBus returns the transport selected by name together with a function
// releasing its resources.
func openBus(name, device string) (agsensors.I2CBus, func() error, error) {
	switch name {
	case config.AdapterMCP2221:
		return adapter.NewMCP2221(), noopClose, nil
	case config.AdapterGeneric:
		if device == "" {
			device = config.DefaultDevice
		}
		bus, err := i2c.NewGenericBus(device)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterNanoPi:
		busNr := -1
		if device != "" {
			n, err := strconv.Atoi(device)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid nanopi bus number %q: %w", device, err)
			}
			busNr = n
		}
		bus, err := i2c.NewNanoPiBus(busNr)
		if err != nil {
			return nil, nil, err
		}
		return bus, bus.Close, nil
	case config.AdapterSim:
		return newDriftingSim(time.Now()), noopClose, nil
	}
	return nil, nil, fmt.Errorf("unsupported adapter %q", name)
}

// newDriftingSim simulates a sensor slowly oscillating around 21°C and 45%RH.
func newDriftingSim(start time.Time) *sim.AM2315 {
	phase := func() float64 {
		return time.Since(start).Minutes() / 10 * 2 * math.Pi
	}
	return sim.NewAM2315(
		func(ctx context.Context) (float32, error) {
			return float32(21 + 3*math.Sin(phase())), nil
		},
		func(ctx context.Context) (float32, error) {
			return float32(45 + 10*math.Cos(phase())), nil
		},
	)
}
