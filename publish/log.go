package publish

import (
	"context"
	"log/slog"
)

// Log writes measurements and failures to a slog logger.
type Log struct {
	logger *slog.Logger
}

// NewLog creates a log publisher; a nil logger means slog.Default.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Publish(ctx context.Context, m Measurement) error {
	l.logger.InfoContext(ctx, "new reading",
		"sensor", m.Sensor,
		"quantity", string(m.Quantity),
		"value", m.Value,
		"unit", m.Quantity.Unit(),
	)
	return nil
}

func (l *Log) RecordFailure(ctx context.Context, sensor string, err error) {
	l.logger.WarnContext(ctx, "sensor read failed", "sensor", sensor, "error", err)
}
