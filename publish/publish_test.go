package publish

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRegisterWriter struct {
	mock.Mock
}

func (m *mockRegisterWriter) WriteSingleRegister(address, value uint16) ([]byte, error) {
	args := m.Called(address, value)
	return nil, args.Error(0)
}

func measurement(q Quantity, v float32) Measurement {
	return Measurement{Sensor: "greenhouse-1", Quantity: q, Value: v, At: time.Now()}
}

func TestQuantity_Unit(t *testing.T) {
	assert.Equal(t, "C", AirTemperature.Unit())
	assert.Equal(t, "%RH", AirHumidity.Unit())
	assert.Empty(t, Quantity("soil_moisture").Unit())
}

func TestPrometheus_Publish(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, p.Publish(ctx, measurement(AirTemperature, -25)))
	require.NoError(t, p.Publish(ctx, measurement(AirHumidity, 20)))
	assert.Error(t, p.Publish(ctx, measurement("co2", 400)))
	p.RecordFailure(ctx, "greenhouse-1", errors.New("Read failure"))
	p.RecordFailure(ctx, "greenhouse-1", errors.New("Read failure"))

	assert.Equal(t, -25.0, testutil.ToFloat64(p.temperature.WithLabelValues("greenhouse-1")))
	assert.Equal(t, 20.0, testutil.ToFloat64(p.humidity.WithLabelValues("greenhouse-1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.failures.WithLabelValues("greenhouse-1")))

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	assert.Contains(t, string(body), `air_humidity{sensor="greenhouse-1"} 20`)
}

func TestPrometheus_DoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewPrometheus(reg)
	require.NoError(t, err)
	_, err = NewPrometheus(reg)
	assert.Error(t, err)
}

func TestModbus_Publish(t *testing.T) {
	tests := []struct {
		name     string
		m        Measurement
		register uint16
		value    uint16
	}{
		{"temperature", measurement(AirTemperature, 25.0), 100, 250},
		{"negative temperature", measurement(AirTemperature, -25.0), 100, 0xFF06},
		{"humidity", measurement(AirHumidity, 20.0), 101, 200},
		{"rounding", measurement(AirHumidity, 36.79), 101, 368},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := new(mockRegisterWriter)
			client.On("WriteSingleRegister", tt.register, tt.value).Return(nil).Once()
			p := NewModbus(client, 100)
			require.NoError(t, p.Publish(context.Background(), tt.m))
			client.AssertExpectations(t)
		})
	}
}

func TestModbus_Errors(t *testing.T) {
	client := new(mockRegisterWriter)
	client.On("WriteSingleRegister", uint16(0), uint16(10)).Return(errors.New("connection reset")).Once()
	p := NewModbus(client, 0)
	ctx := context.Background()

	err := p.Publish(ctx, measurement(AirTemperature, 1))
	assert.ErrorContains(t, err, "connection reset")

	err = p.Publish(ctx, measurement(AirTemperature, 4000))
	assert.ErrorContains(t, err, "out of register range")

	err = p.Publish(ctx, measurement("co2", 1))
	assert.ErrorContains(t, err, "unsupported quantity")
	client.AssertExpectations(t)
}

func TestLog_Publish(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))
	ctx := context.Background()

	require.NoError(t, l.Publish(ctx, measurement(AirTemperature, 21.5)))
	l.RecordFailure(ctx, "greenhouse-1", errors.New("Read failure"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "quantity=air_temperature")
	assert.Contains(t, lines[0], "value=21.5")
	assert.Contains(t, lines[0], "unit=C")
	assert.Contains(t, lines[1], "level=WARN")
	assert.Contains(t, lines[1], `error="Read failure"`)
}
