package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/zilezarach/torrentcli/internal/retry"
)

func TestExponential(t *testing.T) {
	tests := []struct {
		name    string
		attempt uint
		base    time.Duration
		want    time.Duration
	}{
		{"first wait", 0, time.Second, time.Second},
		{"second wait", 1, time.Second, 2 * time.Second},
		{"third wait", 2, time.Second, 4 * time.Second},
		{"small base", 1, 10 * time.Millisecond, 20 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retry.Exponential(tt.attempt, tt.base))
		})
	}
}

func TestFixed(t *testing.T) {
	assert.Equal(t, 2*time.Second, retry.Fixed(0, 2*time.Second))
	assert.Equal(t, 2*time.Second, retry.Fixed(5, 2*time.Second))
}

func TestPolicyDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0

	var waits []time.Duration

	policy := retry.Policy{
		Attempts: 3,
		Delay:    time.Millisecond,
		Backoff:  retry.Exponential,
		OnRetry: func(attempt uint, wait time.Duration, err error) {
			waits = append(waits, wait)
		},
	}

	err := policy.Do(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}

		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, waits)
}

func TestPolicyDo_NonRetryableStops(t *testing.T) {
	calls := 0
	permanent := errors.New("permanent")

	policy := retry.Policy{
		Attempts:  3,
		Delay:     time.Millisecond,
		Retryable: func(err error) bool { return false },
	}

	err := policy.Do(context.Background(), func() error {
		calls++

		return permanent
	})

	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestPolicyDo_ExhaustedReturnsLastError(t *testing.T) {
	calls := 0

	policy := retry.Policy{
		Attempts: 3,
		Delay:    time.Millisecond,
	}

	err := policy.Do(context.Background(), func() error {
		calls++

		return errors.New("still failing")
	})

	assert.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still failing")
}
