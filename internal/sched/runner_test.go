package sched_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilezarach/torrentcli/internal/clock"
	"github.com/zilezarach/torrentcli/internal/sched"
	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/zil"
)

type memSchedule struct {
	searches []storage.ScheduledSearch
	saves    int
}

func (m *memSchedule) GetScheduledSearches() ([]storage.ScheduledSearch, error) {
	out := make([]storage.ScheduledSearch, len(m.searches))
	copy(out, m.searches)

	return out, nil
}

func (m *memSchedule) SaveScheduledSearches(searches []storage.ScheduledSearch) error {
	m.searches = searches
	m.saves++

	return nil
}

type fakeSearcher struct {
	results map[string][]zil.SearchResult
	err     error
	calls   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, limit int, category string) ([]zil.SearchResult, error) {
	f.calls++

	if f.err != nil {
		return nil, f.err
	}

	return f.results[query], nil
}

type fakeSubmitter struct {
	submitted []string
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, res *zil.SearchResult) error {
	f.submitted = append(f.submitted, res.Title)

	return f.err
}

func TestTick_FiresDueSearch(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMock(now)

	schedule := &memSchedule{searches: []storage.ScheduledSearch{
		{Query: "ubuntu", FireAt: now.Add(-time.Minute)},
		{Query: "not yet", FireAt: now.Add(time.Hour)},
	}}
	searcher := &fakeSearcher{results: map[string][]zil.SearchResult{
		"ubuntu": {{Title: "Ubuntu 24.04", DownloadURL: "magnet:?xt=urn:btih:abc"}},
	}}
	submitter := &fakeSubmitter{}

	runner := sched.NewRunner(schedule, searcher, submitter, time.Minute, clk, nil)

	require.NoError(t, runner.Tick(context.Background()))

	assert.Equal(t, []string{"Ubuntu 24.04"}, submitter.submitted)
	assert.Equal(t, 1, schedule.saves)
	assert.True(t, schedule.searches[0].Done)
	assert.False(t, schedule.searches[1].Done)
}

func TestTick_DoneEntriesAreIdempotent(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMock(now)

	schedule := &memSchedule{searches: []storage.ScheduledSearch{
		{Query: "ubuntu", FireAt: now.Add(-time.Hour), Done: true},
	}}
	searcher := &fakeSearcher{}
	submitter := &fakeSubmitter{}

	runner := sched.NewRunner(schedule, searcher, submitter, time.Minute, clk, nil)

	require.NoError(t, runner.Tick(context.Background()))

	assert.Zero(t, searcher.calls, "done entries must not search again")
	assert.Empty(t, submitter.submitted)
	assert.Zero(t, schedule.saves, "an unchanged schedule must not be rewritten")
}

func TestTick_EmptySearchStaysPending(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMock(now)

	schedule := &memSchedule{searches: []storage.ScheduledSearch{
		{Query: "nothing found", FireAt: now.Add(-time.Minute)},
	}}
	searcher := &fakeSearcher{}
	submitter := &fakeSubmitter{}

	runner := sched.NewRunner(schedule, searcher, submitter, time.Minute, clk, nil)

	require.NoError(t, runner.Tick(context.Background()))

	assert.Equal(t, 1, searcher.calls)
	assert.Empty(t, submitter.submitted)
	assert.False(t, schedule.searches[0].Done, "an empty search stays pending for the next tick")
	assert.Zero(t, schedule.saves)
}

func TestTick_SubmitFailureStillMarksDone(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	clk := clock.NewMock(now)

	schedule := &memSchedule{searches: []storage.ScheduledSearch{
		{Query: "ubuntu", FireAt: now.Add(-time.Minute)},
	}}
	searcher := &fakeSearcher{results: map[string][]zil.SearchResult{
		"ubuntu": {{Title: "Ubuntu 24.04"}},
	}}
	submitter := &fakeSubmitter{err: errors.New("daemon down")}

	runner := sched.NewRunner(schedule, searcher, submitter, time.Minute, clk, nil)

	require.NoError(t, runner.Tick(context.Background()))

	assert.True(t, schedule.searches[0].Done, "the search fired; a failed submission is not retried")
	assert.Equal(t, 1, schedule.saves)
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := sched.NewRunner(&memSchedule{}, &fakeSearcher{}, &fakeSubmitter{}, time.Minute, clock.NewMock(time.Now()), nil)

	err := runner.Run(ctx)

	require.ErrorIs(t, err, context.Canceled)
}
