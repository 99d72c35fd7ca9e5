// Package zil talks to the zil search aggregator: a meta-search service
// fronting torrent and direct-download indexers behind one JSON API.
package zil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/zil/transport"
)

// BookSource selects which book indexers a search fans out to.
type BookSource string

const (
	BookSourceBoth   BookSource = "both"
	BookSourceLibgen BookSource = "libgen"
	BookSourceAnnas  BookSource = "annas"
)

// Mirror resolution multiplexes slow upstream mirrors server-side, so it
// gets a far larger budget than ordinary search calls.
const resolveTimeout = 120 * time.Second

// Client is the search facade over the aggregator API.
type Client struct {
	transport *transport.Client
}

func NewClient(t *transport.Client) *Client {
	return &Client{transport: t}
}

// Search runs a general multi-indexer search.
func (c *Client) Search(ctx context.Context, query string, limit int, category string) ([]SearchResult, error) {
	q := url.Values{"query": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	if category != "" {
		q.Set("category", category)
	}

	return c.searchEndpoint(ctx, "/api/v1/search", q)
}

// SearchMovies searches movie-focused indexers.
func (c *Client) SearchMovies(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	q := url.Values{"query": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	return c.searchEndpoint(ctx, "/api/v1/movies/search", q)
}

// SearchBooks searches book indexers. Restricting source routes the call to
// the per-source endpoint; both fans out to every book indexer.
func (c *Client) SearchBooks(ctx context.Context, query string, limit int, source BookSource) ([]SearchResult, error) {
	q := url.Values{"query": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	path := "/api/v1/books/search"
	if source != "" && source != BookSourceBoth {
		path = "/api/v1/books/search/source"
		q.Set("source", string(source))
	}

	return c.searchEndpoint(ctx, path, q)
}

// SearchGames searches game repack indexers.
func (c *Client) SearchGames(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	q := url.Values{"query": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	return c.searchEndpoint(ctx, "/api/v1/games/repacks/search", q)
}

// LatestGames lists the most recently published game repacks.
func (c *Client) LatestGames(ctx context.Context, limit int) ([]SearchResult, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	return c.searchEndpoint(ctx, "/api/v1/games/repacks/latest", q)
}

func (c *Client) searchEndpoint(ctx context.Context, path string, q url.Values) ([]SearchResult, error) {
	raw, err := c.transport.Request(ctx, http.MethodGet, path, q)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Results []json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding %s response: %w", path, err)
	}

	return c.mapResults(ctx, envelope.Results), nil
}

// mapResults decodes each raw record independently. One indexer emitting
// garbage must not void the whole result set, so invalid records are logged
// and skipped.
func (c *Client) mapResults(ctx context.Context, raw []json.RawMessage) []SearchResult {
	logger := logctx.LoggerFromContext(ctx)

	results := make([]SearchResult, 0, len(raw))

	for _, rec := range raw {
		res, err := decodeResult(rec)
		if err != nil {
			logger.Warn("skipping invalid search result", "error", err)

			continue
		}

		results = append(results, *res)
	}

	return results
}

// DownloadURL is a resolved direct-download location for a book.
type DownloadURL struct {
	URL    string
	Source string
	Cached bool
}

// ErrNoDownloadURL is returned when the aggregator answers a mirror
// resolution without any usable URL.
var ErrNoDownloadURL = errors.New("mirror resolution returned no URL")

// ResolveDownloadURL asks the aggregator to resolve a book checksum into a
// fetchable mirror URL. This hits real mirrors behind the scenes and can run
// for a long time.
func (c *Client) ResolveDownloadURL(ctx context.Context, checksum, source, sourceHint string) (*DownloadURL, error) {
	q := url.Values{"md5": {checksum}}
	if source != "" {
		q.Set("source", source)
	}

	if sourceHint != "" {
		q.Set("source_hint", sourceHint)
	}

	raw, err := c.transport.Request(ctx, http.MethodGet, "/api/v1/books/download", q,
		transport.WithRequestTimeout(resolveTimeout))
	if err != nil {
		return nil, err
	}

	var resp struct {
		DownloadURL string `json:"download_url"`
		Mirror      string `json:"mirror"`
		Source      string `json:"source"`
		Cached      bool   `json:"cached"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decoding mirror resolution response: %w", err)
	}

	resolved := firstNonEmpty(resp.DownloadURL, resp.Mirror)
	if resolved == "" {
		return nil, fmt.Errorf("%w for %s", ErrNoDownloadURL, checksum)
	}

	return &DownloadURL{URL: resolved, Source: resp.Source, Cached: resp.Cached}, nil
}

// HealthStatus summarizes the aggregator's view of its indexer pool.
type HealthStatus struct {
	Status        string `json:"status"`
	Uptime        string `json:"uptime"`
	HealthyCount  int    `json:"healthy_count"`
	TotalIndexers int    `json:"total_indexers"`
	CacheEnabled  bool   `json:"cache_enabled"`
}

// Health fetches the aggregator's health summary.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	raw, err := c.transport.Request(ctx, http.MethodGet, "/api/v1/health", nil)
	if err != nil {
		return nil, err
	}

	var status HealthStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return nil, fmt.Errorf("decoding health response: %w", err)
	}

	return &status, nil
}

// Stats reports the aggregator's process-level runtime counters.
type Stats struct {
	Version    string  `json:"version"`
	MemoryMB   float64 `json:"memory_mb"`
	Goroutines int     `json:"goroutines"`
	CacheSize  int     `json:"cache_size"`
}

func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	raw, err := c.transport.Request(ctx, http.MethodGet, "/api/v1/stats", nil)
	if err != nil {
		return nil, err
	}

	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("decoding stats response: %w", err)
	}

	return &stats, nil
}

// Indexer is one configured upstream indexer and its health flag.
type Indexer struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Healthy bool   `json:"healthy"`
}

func (c *Client) Indexers(ctx context.Context) ([]Indexer, error) {
	raw, err := c.transport.Request(ctx, http.MethodGet, "/api/v1/indexers", nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Indexers []Indexer `json:"indexers"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decoding indexers response: %w", err)
	}

	return envelope.Indexers, nil
}

// ServerInfo aggregates health, stats and the indexer list in one call for
// status surfaces.
type ServerInfo struct {
	Health   *HealthStatus `json:"health"`
	Stats    *Stats        `json:"stats"`
	Indexers []Indexer     `json:"indexers"`
}

func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	health, err := c.Health(ctx)
	if err != nil {
		return nil, err
	}

	stats, err := c.Stats(ctx)
	if err != nil {
		return nil, err
	}

	indexers, err := c.Indexers(ctx)
	if err != nil {
		return nil, err
	}

	return &ServerInfo{Health: health, Stats: stats, Indexers: indexers}, nil
}
