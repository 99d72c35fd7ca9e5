// Package sched fires scheduled searches: queries saved with a future
// timestamp that run automatically and submit their best result for
// acquisition.
package sched

import (
	"context"
	"time"

	"github.com/zilezarach/torrentcli/internal/clock"
	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/telemetry"
	"github.com/zilezarach/torrentcli/internal/zil"
)

const defaultSearchLimit = 5

// Searcher runs the search a scheduled entry describes.
type Searcher interface {
	Search(ctx context.Context, query string, limit int, category string) ([]zil.SearchResult, error)
}

// Submitter hands a search result to the acquisition pipeline.
type Submitter interface {
	Submit(ctx context.Context, res *zil.SearchResult) error
}

// Runner is the schedule loop.
type Runner struct {
	schedule  storage.ScheduleRepository
	search    Searcher
	submitter Submitter
	interval  time.Duration
	clk       clock.Clock
	tel       *telemetry.Telemetry
}

func NewRunner(schedule storage.ScheduleRepository, search Searcher, submitter Submitter, interval time.Duration, clk clock.Clock, tel *telemetry.Telemetry) *Runner {
	return &Runner{
		schedule:  schedule,
		search:    search,
		submitter: submitter,
		interval:  interval,
		clk:       clk,
		tel:       tel,
	}
}

// Run ticks the schedule on every interval until ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)
	logger.Info("schedule runner started", "interval", r.interval)

	for {
		if err := r.clk.Sleep(ctx, r.interval); err != nil {
			return err
		}

		if err := r.Tick(ctx); err != nil {
			logger.Error("schedule tick failed", "err", err)
		}
	}
}

// Tick fires every due entry once. Entries are marked done as soon as their
// search produced results, so a tick over already-done entries is a no-op
// and writes nothing. An entry whose search came back empty stays pending
// and is retried on the next tick.
func (r *Runner) Tick(ctx context.Context) error {
	logger := logctx.LoggerFromContext(ctx)

	searches, err := r.schedule.GetScheduledSearches()
	if err != nil {
		return err
	}

	now := r.clk.Now()
	fired := 0
	changed := false

	for i := range searches {
		entry := &searches[i]

		if entry.Done || entry.FireAt.After(now) {
			continue
		}

		limit := entry.Limit
		if limit <= 0 {
			limit = defaultSearchLimit
		}

		results, err := r.search.Search(ctx, entry.Query, limit, "")
		if err != nil {
			logger.Warn("scheduled search failed", "query", entry.Query, "err", err)

			continue
		}

		if len(results) == 0 {
			logger.Info("scheduled search found nothing, will retry", "query", entry.Query)

			continue
		}

		logger.Info("scheduled search fired", "query", entry.Query, "results", len(results))

		if err := r.submitter.Submit(ctx, &results[0]); err != nil {
			logger.Error("failed to submit scheduled result", "query", entry.Query, "err", err)
		}

		entry.Done = true
		changed = true
		fired++
	}

	r.tel.RecordScheduleTick(fired)

	if !changed {
		return nil
	}

	return r.schedule.SaveScheduledSearches(searches)
}
