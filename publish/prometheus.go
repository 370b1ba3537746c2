package publish

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus keeps the latest readings in gauges labelled by sensor name.
type Prometheus struct {
	temperature *prometheus.GaugeVec
	humidity    *prometheus.GaugeVec
	failures    *prometheus.CounterVec
	gatherer    prometheus.Gatherer
}

func newGauge(name string, help string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		[]string{"sensor"},
	)
}

// NewPrometheus registers the collectors with reg.
func NewPrometheus(reg *prometheus.Registry) (*Prometheus, error) {
	p := &Prometheus{
		temperature: newGauge(string(AirTemperature), "Air Temperature (units: degrees Celsius)"),
		humidity:    newGauge(string(AirHumidity), "Humidity (units: % of relative Humidity)"),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "air_sensor_read_failures_total",
				Help: "Number of failed sensor polls",
			},
			[]string{"sensor"},
		),
		gatherer: reg,
	}
	for _, c := range []prometheus.Collector{p.temperature, p.humidity, p.failures} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register collector: %w", err)
		}
	}
	return p, nil
}

func (p *Prometheus) Publish(ctx context.Context, m Measurement) error {
	switch m.Quantity {
	case AirTemperature:
		p.temperature.WithLabelValues(m.Sensor).Set(float64(m.Value))
	case AirHumidity:
		p.humidity.WithLabelValues(m.Sensor).Set(float64(m.Value))
	default:
		return fmt.Errorf("prometheus: unsupported quantity %q", m.Quantity)
	}
	return nil
}

func (p *Prometheus) RecordFailure(ctx context.Context, sensor string, err error) {
	p.failures.WithLabelValues(sensor).Inc()
}

// Handler exposes the registered metrics.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{
		// Opt into OpenMetrics to support exemplars.
		EnableOpenMetrics: true,
	})
}
