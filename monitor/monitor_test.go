package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mklimuk/agsensors/adapter/sim"
	"github.com/mklimuk/agsensors/clock"
	"github.com/mklimuk/agsensors/environment"
	"github.com/mklimuk/agsensors/publish"
)

type recordingPublisher struct {
	mu       sync.Mutex
	got      []publish.Measurement
	failures []error
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, m publish.Measurement) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, m)
	return p.err
}

func (p *recordingPublisher) RecordFailure(ctx context.Context, sensor string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = append(p.failures, err)
}

func (p *recordingPublisher) measurements() []publish.Measurement {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publish.Measurement(nil), p.got...)
}

// plainPublisher does not record failures.
type plainPublisher struct {
	count int
}

func (p *plainPublisher) Publish(ctx context.Context, m publish.Measurement) error {
	p.count++
	return nil
}

func newSimSensor(t *testing.T, dev *sim.AM2315, clk clock.Clock) *environment.AM2315 {
	t.Helper()
	s := environment.NewAM2315(dev, environment.WithClock(clk))
	require.NoError(t, s.Begin(context.Background()))
	return s
}

func TestNew_Validation(t *testing.T) {
	s := newSimSensor(t, sim.NewStaticAM2315(1, 1), clock.NewManual(0))
	_, err := New("", s)
	assert.Error(t, err)
	_, err = New("gh", nil)
	assert.Error(t, err)
	_, err = New("gh", s, WithTick(0))
	assert.Error(t, err)
}

func TestMonitor_StepPublishesEachValueOnce(t *testing.T) {
	clk := clock.NewManual(0)
	s := newSimSensor(t, sim.NewStaticAM2315(25.0, 20.0), clk)
	pub := &recordingPublisher{}
	plain := &plainPublisher{}
	m, err := New("greenhouse-1", s, WithPublishers(pub, plain))
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, m.Step(ctx))
	got := pub.measurements()
	require.Len(t, got, 2)
	assert.Equal(t, publish.AirTemperature, got[0].Quantity)
	assert.Equal(t, float32(25.0), got[0].Value)
	assert.Equal(t, "greenhouse-1", got[0].Sensor)
	assert.Equal(t, publish.AirHumidity, got[1].Quantity)
	assert.Equal(t, float32(20.0), got[1].Value)
	assert.Equal(t, 2, plain.count)

	// rate limited: nothing new
	clk.Advance(100 * time.Millisecond)
	require.NoError(t, m.Step(ctx))
	assert.Len(t, pub.measurements(), 2)

	clk.Advance(2 * time.Second)
	require.NoError(t, m.Step(ctx))
	assert.Len(t, pub.measurements(), 4)
}

func TestMonitor_StepRecordsFailures(t *testing.T) {
	clk := clock.NewManual(0)
	dev := sim.NewStaticAM2315(25.0, 20.0)
	dev.SetCorruptHeader(true)
	s := newSimSensor(t, dev, clk)
	pub := &recordingPublisher{}
	m, err := New("greenhouse-1", s, WithPublishers(pub, &plainPublisher{}))
	require.NoError(t, err)

	require.NoError(t, m.Step(context.Background()))
	assert.Empty(t, pub.measurements())
	require.Len(t, pub.failures, 1)
	assert.ErrorIs(t, pub.failures[0], environment.ErrReadFailure)
}

func TestMonitor_StepJoinsPublisherErrors(t *testing.T) {
	s := newSimSensor(t, sim.NewStaticAM2315(25.0, 20.0), clock.NewManual(0))
	failing := &recordingPublisher{err: errors.New("downstream unavailable")}
	ok := &recordingPublisher{}
	m, err := New("greenhouse-1", s, WithPublishers(failing, ok))
	require.NoError(t, err)

	err = m.Step(context.Background())
	assert.ErrorContains(t, err, "downstream unavailable")
	assert.Len(t, ok.measurements(), 2, "other publishers still receive data")
}

func TestMonitor_Run(t *testing.T) {
	s := newSimSensor(t, sim.NewStaticAM2315(-5.5, 90.0), clock.NewSystem())
	pub := &recordingPublisher{}
	m, err := New("greenhouse-1", s, WithTick(5*time.Millisecond), WithPublishers(pub))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err = m.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// the default interval allows a single poll within the test window
	got := pub.measurements()
	require.Len(t, got, 2)
	assert.Equal(t, float32(-5.5), got[0].Value)
	assert.Equal(t, float32(90.0), got[1].Value)
}
