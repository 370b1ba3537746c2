package clock

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual_AdvanceWraps(t *testing.T) {
	c := NewManual(math.MaxUint32 - 5)
	last := c.NowMillis()
	c.Advance(10 * time.Millisecond)
	now := c.NowMillis()
	assert.Equal(t, uint32(4), now)
	assert.Equal(t, uint32(10), now-last, "subtraction must survive a wraparound")
}

func TestManual_SleepAdvances(t *testing.T) {
	c := NewManual(100)
	require.NoError(t, c.Sleep(context.Background(), 2*time.Millisecond))
	require.NoError(t, c.Sleep(context.Background(), 10*time.Millisecond))
	assert.Equal(t, uint32(112), c.NowMillis())
	assert.Equal(t, 12*time.Millisecond, c.Slept())
}

func TestManual_SleepCancelled(t *testing.T) {
	c := NewManual(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Sleep(ctx, time.Second)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(0), c.NowMillis())
}

func TestSystem_Sleep(t *testing.T) {
	c := NewSystem()
	start := time.Now()
	require.NoError(t, c.Sleep(context.Background(), 20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.GreaterOrEqual(t, c.NowMillis(), uint32(20))
}

func TestSystem_SleepCancelled(t *testing.T) {
	c := NewSystem()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := c.Sleep(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}
