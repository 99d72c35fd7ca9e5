// Package web exposes the daemon's status surface: health, metrics,
// acquisition history, the schedule, and an acquire-by-index endpoint over
// the last saved search results.
package web

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/storage/jsonfile"
	"github.com/zilezarach/torrentcli/internal/telemetry"
	"github.com/zilezarach/torrentcli/internal/zil"
)

// AggregatorProbe is the slice of the aggregator client the handler needs.
type AggregatorProbe interface {
	Health(ctx context.Context) (*zil.HealthStatus, error)
}

// DaemonProbe checks the torrent daemon accepts a session.
type DaemonProbe interface {
	Login(ctx context.Context) error
}

// Acquirer starts an acquisition for a chosen result.
type Acquirer interface {
	Submit(ctx context.Context, res *zil.SearchResult) error
}

// Fetcher starts a direct download for a chosen result.
type Fetcher interface {
	Fetch(ctx context.Context, res *zil.SearchResult) (string, error)
}

// StatusHandler serves the status API.
type StatusHandler struct {
	aggregator AggregatorProbe
	daemon     DaemonProbe
	history    storage.HistoryReadRepository
	schedule   storage.ScheduleRepository
	results    *jsonfile.ResultStore
	acquirer   Acquirer
	fetcher    Fetcher
	tel        *telemetry.Telemetry
}

func NewStatusHandler(
	aggregator AggregatorProbe,
	daemon DaemonProbe,
	history storage.HistoryReadRepository,
	schedule storage.ScheduleRepository,
	results *jsonfile.ResultStore,
	acquirer Acquirer,
	fetcher Fetcher,
	tel *telemetry.Telemetry,
) *StatusHandler {
	return &StatusHandler{
		aggregator: aggregator,
		daemon:     daemon,
		history:    history,
		schedule:   schedule,
		results:    results,
		acquirer:   acquirer,
		fetcher:    fetcher,
		tel:        tel,
	}
}

func (h *StatusHandler) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(telemetry.RequestID)
	r.Use(telemetry.HTTPLogging)
	r.Use(telemetry.NewHTTPMiddleware(h.tel).Middleware)

	r.Get("/healthz", h.HandleHealthz)
	r.Handle("/metrics", h.tel.Handler())
	r.Get("/api/history", h.HandleHistory)
	r.Get("/api/schedule", h.HandleSchedule)
	r.Post("/api/acquire", h.HandleAcquire)

	return r
}

type healthzResponse struct {
	Status     string `json:"status"`
	Aggregator string `json:"aggregator"`
	Daemon     string `json:"daemon"`
}

// HandleHealthz probes both upstream systems and answers 503 when either is
// down.
func (h *StatusHandler) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := healthzResponse{Status: "ok", Aggregator: "up", Daemon: "up"}

	if _, err := h.aggregator.Health(ctx); err != nil {
		resp.Status = "degraded"
		resp.Aggregator = "down"
	}

	if err := h.daemon.Login(ctx); err != nil {
		resp.Status = "degraded"
		resp.Daemon = "down"
	}

	code := http.StatusOK
	if resp.Status != "ok" {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}

type historyEntryResponse struct {
	Title        string `json:"title"`
	DownloadedAt string `json:"downloaded_at"`
	Kind         string `json:"kind"`
	Path         string `json:"path,omitempty"`
	Size         string `json:"size,omitempty"`
	Source       string `json:"source,omitempty"`
}

const historyLimit = 50

func (h *StatusHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.RecentHistory(historyLimit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")

		return
	}

	resp := make([]historyEntryResponse, 0, len(entries))

	for _, e := range entries {
		item := historyEntryResponse{
			Title:        e.Title,
			DownloadedAt: e.DownloadedAt.Format(time.RFC3339),
			Kind:         e.Kind,
			Path:         e.Path,
			Source:       e.Source,
		}
		if e.Size > 0 {
			item.Size = humanize.Bytes(uint64(e.Size))
		}

		resp = append(resp, item)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *StatusHandler) HandleSchedule(w http.ResponseWriter, r *http.Request) {
	searches, err := h.schedule.GetScheduledSearches()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load schedule")

		return
	}

	if searches == nil {
		searches = []storage.ScheduledSearch{}
	}

	writeJSON(w, http.StatusOK, searches)
}

type acquireRequest struct {
	Index int `json:"index"`
}

type acquireResponse struct {
	Title string `json:"title"`
	Kind  string `json:"kind"`
}

// HandleAcquire starts an acquisition for the nth result of the last saved
// search. Torrent results are submitted to the daemon; direct results start
// a background download.
func (h *StatusHandler) HandleAcquire(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logctx.LoggerFromContext(ctx)

	var req acquireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")

		return
	}

	res, err := h.results.ResultAt(req.Index)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())

		return
	}

	if res.IsDirect() {
		// The mirror resolution alone can take minutes, run it detached
		// from the request.
		go func() {
			bg := logctx.WithLogger(context.Background(), logger)

			if _, err := h.fetcher.Fetch(bg, res); err != nil {
				logger.Error("background download failed", "title", res.Title, "err", err)
			}
		}()

		writeJSON(w, http.StatusAccepted, acquireResponse{Title: res.Title, Kind: string(res.Kind)})

		return
	}

	if err := h.acquirer.Submit(ctx, res); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())

		return
	}

	writeJSON(w, http.StatusAccepted, acquireResponse{Title: res.Title, Kind: string(res.Kind)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
