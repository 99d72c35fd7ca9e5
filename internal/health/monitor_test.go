package health_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilezarach/torrentcli/internal/clock"
	"github.com/zilezarach/torrentcli/internal/health"
	"github.com/zilezarach/torrentcli/internal/zil"
)

type fakeAPI struct {
	status *zil.HealthStatus
	err    error
}

func (f *fakeAPI) Health(ctx context.Context) (*zil.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}

	return f.status, nil
}

type fakeDaemon struct {
	err error
}

func (f *fakeDaemon) Login(ctx context.Context) error {
	return f.err
}

type memNotifier struct {
	messages []string
}

func (m *memNotifier) Notify(content string) error {
	m.messages = append(m.messages, content)

	return nil
}

func TestCheck_AllHealthy(t *testing.T) {
	notif := &memNotifier{}
	monitor := health.NewMonitor(
		&fakeAPI{status: &zil.HealthStatus{Status: "healthy"}},
		&fakeDaemon{},
		notif,
		time.Hour,
		clock.NewMock(time.Now()),
		nil,
	)

	monitor.Check(context.Background())

	assert.Empty(t, notif.messages)
}

func TestCheck_AggregatorDown(t *testing.T) {
	notif := &memNotifier{}
	monitor := health.NewMonitor(
		&fakeAPI{err: errors.New("connection refused")},
		&fakeDaemon{},
		notif,
		time.Hour,
		clock.NewMock(time.Now()),
		nil,
	)

	monitor.Check(context.Background())

	require.Len(t, notif.messages, 1)
	assert.Contains(t, notif.messages[0], "search aggregator is unreachable")
}

func TestCheck_AggregatorDegraded(t *testing.T) {
	notif := &memNotifier{}
	monitor := health.NewMonitor(
		&fakeAPI{status: &zil.HealthStatus{Status: "degraded", HealthyCount: 3, TotalIndexers: 9}},
		&fakeDaemon{},
		notif,
		time.Hour,
		clock.NewMock(time.Now()),
		nil,
	)

	monitor.Check(context.Background())

	require.Len(t, notif.messages, 1)
	assert.Contains(t, notif.messages[0], "3/9 indexers healthy")
}

func TestCheck_BothDown(t *testing.T) {
	notif := &memNotifier{}
	monitor := health.NewMonitor(
		&fakeAPI{err: errors.New("refused")},
		&fakeDaemon{err: errors.New("login rejected")},
		notif,
		time.Hour,
		clock.NewMock(time.Now()),
		nil,
	)

	monitor.Check(context.Background())

	require.Len(t, notif.messages, 2)
	assert.Contains(t, notif.messages[1], "torrent daemon is unreachable")
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	monitor := health.NewMonitor(&fakeAPI{}, &fakeDaemon{}, nil, time.Hour, clock.NewMock(time.Now()), nil)

	err := monitor.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
}
