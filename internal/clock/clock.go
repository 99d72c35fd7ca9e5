package clock

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts wall time so that poll loops and backoff waits can be
// driven with virtual time in tests instead of real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

// New returns a Clock backed by the system clock.
func New() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Mock is a deterministic Clock for tests. Sleep returns immediately,
// advances the mock's notion of now and records the requested duration.
type Mock struct {
	mu    sync.Mutex
	now   time.Time
	slept []time.Duration
}

// NewMock returns a Mock whose current time is start.
func NewMock(start time.Time) *Mock {
	return &Mock{now: start}
}

func (m *Mock) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.now
}

func (m *Mock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.now = m.now.Add(d)
	m.slept = append(m.slept, d)
	m.mu.Unlock()

	return nil
}

// Advance moves the mock's current time forward by d.
func (m *Mock) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// Slept returns every duration passed to Sleep, in order.
func (m *Mock) Slept() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]time.Duration, len(m.slept))
	copy(out, m.slept)

	return out
}
