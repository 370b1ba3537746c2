package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/mklimuk/agsensors/cmd/sensors/console"
	"github.com/mklimuk/agsensors/config"
	"github.com/mklimuk/agsensors/environment"
	"github.com/mklimuk/agsensors/monitor"
	"github.com/mklimuk/agsensors/publish"
)

var adapterFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "adapter",
		Aliases: []string{"a"},
		Value:   config.AdapterMCP2221,
		Usage:   "transport: mcp2221, generic, nanopi or sim",
	},
	&cli.StringFlag{
		Name:    "device",
		Aliases: []string{"d"},
		Usage:   "i2c device path (generic) or bus number (nanopi)",
	},
	&cli.UintFlag{
		Name:  "address",
		Value: environment.AM2315Address,
		Usage: "sensor i2c address",
	},
}

var am2315Cmd = cli.Command{
	Name:    "am2315",
	Aliases: []string{"am"},
	Usage:   "AM2315 temperature and humidity sensor",
	Subcommands: cli.Commands{
		&am2315ReadCmd,
		&am2315MonitorCmd,
	},
}

var am2315ReadCmd = cli.Command{
	Name:  "read",
	Usage: "perform a single measurement",
	Flags: append([]cli.Flag{
		&cli.IntFlag{
			Name:    "count",
			Aliases: []string{"n"},
			Value:   1,
			Usage:   "number of measurements",
		},
		&cli.DurationFlag{
			Name:  "interval",
			Value: 2 * time.Second,
			Usage: "pause between measurements",
		},
	}, adapterFlags...),
	Action: func(c *cli.Context) error {
		if c.Uint("address") > 0x7F {
			return console.Exit(1, "invalid address: %s", console.Red(fmt.Sprintf("%#x", c.Uint("address"))))
		}
		bus, closeBus, err := openBus(c.String("adapter"), c.String("device"))
		if err != nil {
			return console.Exit(1, "could not open bus: %s", console.Red(err))
		}
		defer func() { _ = closeBus() }()

		ctx := c.Context
		s := environment.NewAM2315(bus, environment.WithAddress(byte(c.Uint("address"))))
		if err := s.Begin(ctx); err != nil {
			return console.Exit(1, "sensor initialization error: %s", console.Red(err))
		}
		for i := 0; i < c.Int("count"); i++ {
			if i > 0 {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(c.Duration("interval")):
				}
			}
			temp, hum, err := s.GetTempAndHum(ctx)
			if err != nil {
				return console.Exit(1, "error getting measurement: %s", console.Red(err))
			}
			console.Printf("%s  %s °C\n%s %s %%RH\n", console.PictoThermometer, console.White(temp), console.PictoHumidity, console.White(hum))
		}
		return nil
	},
}

var am2315MonitorCmd = cli.Command{
	Name:  "monitor",
	Usage: "poll the sensor continuously and publish new values",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "path to the yaml configuration",
		},
	}, adapterFlags...),
	Action: func(c *cli.Context) error {
		cfg := config.Default()
		if path := c.String("config"); path != "" {
			var err error
			cfg, err = config.Load(path)
			if err != nil {
				return console.Exit(1, "configuration error: %s", console.Red(err))
			}
		}
		// explicit flags override the file
		if c.IsSet("adapter") {
			cfg.Sensor.Adapter = c.String("adapter")
		}
		if c.IsSet("device") {
			cfg.Sensor.Device = c.String("device")
		}
		if c.IsSet("address") {
			cfg.Sensor.Address = uint8(c.Uint("address"))
		}
		if err := config.Validate(cfg); err != nil {
			return console.Exit(1, "configuration error: %s", console.Red(err))
		}

		ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runMonitor(ctx, cfg)
	},
}

func runMonitor(ctx context.Context, cfg *config.Config) error {
	bus, closeBus, err := openBus(cfg.Sensor.Adapter, cfg.Sensor.Device)
	if err != nil {
		return console.Exit(1, "could not open bus: %s", console.Red(err))
	}
	defer func() { _ = closeBus() }()

	opts := []environment.AM2315Opt{
		environment.WithAddress(cfg.Sensor.Address),
		environment.WithMinUpdateInterval(cfg.Sensor.MinUpdateInterval()),
	}
	if cfg.Sensor.StickyError {
		opts = append(opts, environment.WithStickyError())
	}
	s := environment.NewAM2315(bus, opts...)
	if err := s.Begin(ctx); err != nil {
		return console.Exit(1, "sensor initialization error: %s", console.Red(err))
	}

	publishers, shutdown, err := buildPublishers(ctx, cfg.Publish)
	if err != nil {
		return console.Exit(1, "publisher setup error: %s", console.Red(err))
	}
	defer shutdown()

	m, err := monitor.New(cfg.Sensor.Name, s, monitor.WithTick(cfg.Monitor.Tick()), monitor.WithPublishers(publishers...))
	if err != nil {
		return console.Exit(1, "monitor setup error: %s", console.Red(err))
	}
	err = m.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func buildPublishers(ctx context.Context, cfg config.PublishConfig) ([]publish.Publisher, func(), error) {
	var publishers []publish.Publisher
	var cleanup []func()
	shutdown := func() {
		for i := len(cleanup) - 1; i >= 0; i-- {
			cleanup[i]()
		}
	}
	if cfg.LogEnabled() {
		publishers = append(publishers, publish.NewLog(slog.Default()))
	}
	if cfg.Prometheus != nil {
		reg := prometheus.NewRegistry()
		p, err := publish.NewPrometheus(reg)
		if err != nil {
			return nil, shutdown, err
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", p.Handler())
		srv := &http.Server{Addr: cfg.Prometheus.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.InfoContext(ctx, "serving metrics", "listen", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.ErrorContext(ctx, "metrics server failed", "error", err)
			}
		}()
		cleanup = append(cleanup, func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		})
		publishers = append(publishers, p)
	}
	if m := cfg.Modbus; m != nil {
		p, closeConn, err := publish.DialModbus(m.Endpoint, m.UnitID, m.Address, m.Timeout())
		if err != nil {
			shutdown()
			return nil, func() {}, err
		}
		cleanup = append(cleanup, func() { _ = closeConn() })
		publishers = append(publishers, p)
	}
	if len(publishers) == 0 {
		console.Warnf("no publishers configured, values will be dropped")
	}
	return publishers, shutdown, nil
}
