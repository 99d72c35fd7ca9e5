package clock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilezarach/torrentcli/internal/clock"
)

func TestMock_SleepAdvancesTime(t *testing.T) {
	start := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMock(start)

	require.NoError(t, clk.Sleep(context.Background(), time.Minute))
	require.NoError(t, clk.Sleep(context.Background(), time.Hour))

	assert.Equal(t, start.Add(time.Minute+time.Hour), clk.Now())
	assert.Equal(t, []time.Duration{time.Minute, time.Hour}, clk.Slept())
}

func TestMock_SleepHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	clk := clock.NewMock(time.Now())

	err := clk.Sleep(ctx, time.Minute)

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, clk.Slept())
}

func TestRealClock_SleepReturnsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clock.New().Sleep(ctx, time.Hour)

	require.ErrorIs(t, err, context.Canceled)
}
