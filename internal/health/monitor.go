// Package health periodically probes the aggregator and the torrent daemon
// and raises a notification when either stops answering.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/zilezarach/torrentcli/internal/clock"
	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/notifier"
	"github.com/zilezarach/torrentcli/internal/telemetry"
	"github.com/zilezarach/torrentcli/internal/zil"
)

// APIProber is the slice of the aggregator client the monitor needs.
type APIProber interface {
	Health(ctx context.Context) (*zil.HealthStatus, error)
}

// DaemonProber checks that the torrent daemon accepts a session.
type DaemonProber interface {
	Login(ctx context.Context) error
}

// Monitor runs the periodic health probe loop.
type Monitor struct {
	api      APIProber
	daemon   DaemonProber
	notifier notifier.Notifier
	interval time.Duration
	clk      clock.Clock
	tel      *telemetry.Telemetry
}

func NewMonitor(api APIProber, daemon DaemonProber, n notifier.Notifier, interval time.Duration, clk clock.Clock, tel *telemetry.Telemetry) *Monitor {
	return &Monitor{
		api:      api,
		daemon:   daemon,
		notifier: n,
		interval: interval,
		clk:      clk,
		tel:      tel,
	}
}

// Run probes both systems on every interval until ctx is canceled. Probe
// failures are notified and logged, never fatal: the loop's job is to keep
// watching.
func (m *Monitor) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)
	logger.Info("health monitor started", "interval", m.interval)

	for {
		if err := m.clk.Sleep(ctx, m.interval); err != nil {
			return err
		}

		m.Check(ctx)
	}
}

// Check runs one probe pass and notifies about every failing system.
func (m *Monitor) Check(ctx context.Context) {
	logger := logctx.LoggerFromContext(ctx)

	status := "healthy"

	if health, err := m.api.Health(ctx); err != nil {
		status = "unhealthy"

		logger.Warn("aggregator health probe failed", "err", err)
		m.notify(ctx, fmt.Sprintf("search aggregator is unreachable: %s", err))
	} else if health.Status != "healthy" && health.Status != "ok" {
		status = "degraded"

		logger.Warn("aggregator reports degraded health",
			"status", health.Status,
			"healthy_indexers", health.HealthyCount,
			"total_indexers", health.TotalIndexers)
		m.notify(ctx, fmt.Sprintf("search aggregator degraded: %d/%d indexers healthy",
			health.HealthyCount, health.TotalIndexers))
	}

	if err := m.daemon.Login(ctx); err != nil {
		status = "unhealthy"

		logger.Warn("daemon health probe failed", "err", err)
		m.notify(ctx, fmt.Sprintf("torrent daemon is unreachable: %s", err))
	}

	m.tel.RecordHealthCheck(status)
}

func (m *Monitor) notify(ctx context.Context, message string) {
	if m.notifier == nil {
		return
	}

	if err := m.notifier.Notify(message); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to send health notification", "err", err)
	}
}
