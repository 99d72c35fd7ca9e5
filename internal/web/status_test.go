package web_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/storage/jsonfile"
	"github.com/zilezarach/torrentcli/internal/web"
	"github.com/zilezarach/torrentcli/internal/zil"
)

type fakeAggregator struct{ err error }

func (f *fakeAggregator) Health(ctx context.Context) (*zil.HealthStatus, error) {
	if f.err != nil {
		return nil, f.err
	}

	return &zil.HealthStatus{Status: "healthy"}, nil
}

type fakeDaemon struct{ err error }

func (f *fakeDaemon) Login(ctx context.Context) error { return f.err }

type memHistory struct{ entries []storage.HistoryEntry }

func (m *memHistory) GetHistory() ([]storage.HistoryEntry, error) { return m.entries, nil }

func (m *memHistory) RecentHistory(limit int) ([]storage.HistoryEntry, error) {
	if limit > len(m.entries) {
		limit = len(m.entries)
	}

	return m.entries[:limit], nil
}

type memSchedule struct{ searches []storage.ScheduledSearch }

func (m *memSchedule) GetScheduledSearches() ([]storage.ScheduledSearch, error) {
	return m.searches, nil
}

func (m *memSchedule) SaveScheduledSearches(searches []storage.ScheduledSearch) error {
	m.searches = searches

	return nil
}

type fakeAcquirer struct {
	mu        sync.Mutex
	submitted []string
	err       error
}

func (f *fakeAcquirer) Submit(ctx context.Context, res *zil.SearchResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.submitted = append(f.submitted, res.Title)

	return f.err
}

type fakeFetcher struct {
	mu      sync.Mutex
	fetched []string
	done    chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, res *zil.SearchResult) (string, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, res.Title)
	f.mu.Unlock()

	if f.done != nil {
		close(f.done)
	}

	return "/books/" + res.Title, nil
}

type handlerDeps struct {
	aggregator *fakeAggregator
	daemon     *fakeDaemon
	history    *memHistory
	schedule   *memSchedule
	results    *jsonfile.ResultStore
	acquirer   *fakeAcquirer
	fetcher    *fakeFetcher
}

func newHandler(t *testing.T) (*handlerDeps, http.Handler) {
	t.Helper()

	deps := &handlerDeps{
		aggregator: &fakeAggregator{},
		daemon:     &fakeDaemon{},
		history:    &memHistory{},
		schedule:   &memSchedule{},
		results:    jsonfile.NewResultStore(filepath.Join(t.TempDir(), "last.json")),
		acquirer:   &fakeAcquirer{},
		fetcher:    &fakeFetcher{},
	}

	h := web.NewStatusHandler(
		deps.aggregator, deps.daemon, deps.history, deps.schedule,
		deps.results, deps.acquirer, deps.fetcher, nil,
	)

	return deps, h.Routes()
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name       string
		apiErr     error
		daemonErr  error
		wantStatus int
		wantBody   string
	}{
		{"all up", nil, nil, http.StatusOK, `"status":"ok"`},
		{"aggregator down", errors.New("refused"), nil, http.StatusServiceUnavailable, `"aggregator":"down"`},
		{"daemon down", nil, errors.New("rejected"), http.StatusServiceUnavailable, `"daemon":"down"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, routes := newHandler(t)
			deps.aggregator.err = tt.apiErr
			deps.daemon.err = tt.daemonErr

			rec := httptest.NewRecorder()
			routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantBody)
		})
	}
}

func TestHandleHistory(t *testing.T) {
	deps, routes := newHandler(t)
	deps.history.entries = []storage.HistoryEntry{
		{Title: "Ubuntu 24.04", Kind: storage.HistoryKindTorrent, Size: 6227702579, DownloadedAt: time.Now()},
	}

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var items []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Ubuntu 24.04", items[0]["title"])
	assert.Contains(t, items[0]["size"], "GB")
}

func TestHandleSchedule_EmptyIsList(t *testing.T) {
	_, routes := newHandler(t)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/schedule", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}

func TestHandleAcquire_Torrent(t *testing.T) {
	deps, routes := newHandler(t)
	require.NoError(t, deps.results.SaveResults([]zil.SearchResult{
		{Title: "Ubuntu 24.04", DownloadURL: "magnet:?xt=urn:btih:abc", Kind: zil.KindMagnet},
	}))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/acquire", strings.NewReader(`{"index":1}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []string{"Ubuntu 24.04"}, deps.acquirer.submitted)
}

func TestHandleAcquire_Direct(t *testing.T) {
	deps, routes := newHandler(t)
	deps.fetcher.done = make(chan struct{})

	require.NoError(t, deps.results.SaveResults([]zil.SearchResult{
		{Title: "Some Book", DownloadURL: "http://mirror/book", Kind: zil.KindDirect, Checksum: "d41d"},
	}))

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/acquire", strings.NewReader(`{"index":1}`)))

	assert.Equal(t, http.StatusAccepted, rec.Code)

	select {
	case <-deps.fetcher.done:
	case <-time.After(time.Second):
		t.Fatal("direct download was never started")
	}

	assert.Empty(t, deps.acquirer.submitted)
}

func TestHandleAcquire_IndexOutOfRange(t *testing.T) {
	_, routes := newHandler(t)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/acquire", strings.NewReader(`{"index":7}`)))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleAcquire_BadBody(t *testing.T) {
	_, routes := newHandler(t)

	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/acquire", strings.NewReader("{")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
