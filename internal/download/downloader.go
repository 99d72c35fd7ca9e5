// Package download fetches direct-download results over HTTP: it resolves a
// mirror URL from the content checksum, streams the file to disk, and
// resumes from the partial file when a stream breaks.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/retry"
	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/telemetry"
	"github.com/zilezarach/torrentcli/internal/zil"

	"github.com/zilezarach/torrentcli/internal/download/progress"
)

const (
	chunkSize      = 32 * 1024
	suspiciousSize = 1024

	defaultAttempts   = 3
	defaultRetryDelay = 2 * time.Second

	progressReportInterval = 256 * 1024

	maxFilenameLength = 200
)

// Resolver turns a content checksum into a fetchable mirror URL.
type Resolver interface {
	ResolveDownloadURL(ctx context.Context, checksum, source, sourceHint string) (*zil.DownloadURL, error)
}

// ConfirmFunc decides whether a suspiciously small completed file should be
// kept. Returning false discards it.
type ConfirmFunc func(path string, size int64) bool

// Downloader fetches direct results into a target directory.
type Downloader struct {
	resolver   Resolver
	history    storage.HistoryWriteRepository
	dir        string
	httpClient *http.Client
	attempts   int
	retryDelay time.Duration
	confirm    ConfirmFunc
	tel        *telemetry.Telemetry
}

type Option func(*Downloader)

func WithHTTPClient(client *http.Client) Option {
	return func(d *Downloader) { d.httpClient = client }
}

// WithConfirm installs the prompt for suspiciously small files. Without one,
// small files are always discarded.
func WithConfirm(fn ConfirmFunc) Option {
	return func(d *Downloader) { d.confirm = fn }
}

func WithRetryDelay(delay time.Duration) Option {
	return func(d *Downloader) { d.retryDelay = delay }
}

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(d *Downloader) { d.tel = tel }
}

func NewDownloader(resolver Resolver, history storage.HistoryWriteRepository, dir string, opts ...Option) *Downloader {
	d := &Downloader{
		resolver:   resolver,
		history:    history,
		dir:        dir,
		httpClient: &http.Client{},
		attempts:   defaultAttempts,
		retryDelay: defaultRetryDelay,
		confirm:    func(string, int64) bool { return false },
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Fetch downloads a direct result and returns the path of the completed
// file. A partial file left by a broken stream is resumed, not restarted;
// it is only deleted once every attempt has been exhausted.
func (d *Downloader) Fetch(ctx context.Context, res *zil.SearchResult) (string, error) {
	var path string

	err := d.tel.InstrumentDownload(ctx, func(ctx context.Context) error {
		var err error
		path, err = d.fetch(ctx, res)

		return err
	})

	return path, err
}

func (d *Downloader) fetch(ctx context.Context, res *zil.SearchResult) (string, error) {
	logger := logctx.LoggerFromContext(ctx).With("title", res.Title)

	if !res.IsDirect() {
		return "", &NotDirectError{Title: res.Title, Kind: string(res.Kind)}
	}

	if res.Checksum == "" {
		return "", &MissingChecksumError{Title: res.Title}
	}

	resolved, err := d.resolver.ResolveDownloadURL(ctx, res.Checksum, res.Source, sourceHint(res.Source))
	if err != nil {
		if errors.Is(err, zil.ErrNoDownloadURL) {
			return "", &NoMirrorError{Checksum: res.Checksum}
		}

		return "", fmt.Errorf("resolving mirror for %q: %w", res.Title, err)
	}

	if resolved.URL == "" {
		return "", &NoMirrorError{Checksum: res.Checksum}
	}

	logger.Info("mirror resolved", "source", resolved.Source, "cached", resolved.Cached)

	filename := sanitizeFilename(res.Title) + "." + res.Extension()
	path := filepath.Join(d.dir, filename)

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating download directory: %w", err)
	}

	policy := retry.Policy{
		Attempts: uint(d.attempts),
		Delay:    d.retryDelay,
		Backoff:  retry.Fixed,
		OnRetry: func(attempt uint, wait time.Duration, err error) {
			logger.Warn("download attempt failed, resuming", "attempt", attempt, "err", err)
		},
	}

	err = policy.Do(ctx, func() error {
		return d.fetchOnce(ctx, resolved.URL, path)
	})
	if err != nil {
		// The partial file is only useful while retrying; once every
		// attempt is spent it is an unusable fragment.
		os.Remove(path)

		return "", &DownloadFailedError{URL: resolved.URL, Attempts: d.attempts, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("inspecting completed file: %w", err)
	}

	if info.Size() < suspiciousSize {
		if !d.confirm(path, info.Size()) {
			os.Remove(path)

			return "", &SuspiciousSizeError{Path: path, Size: info.Size()}
		}
	}

	entry := storage.HistoryEntry{
		Title:  res.Title,
		Kind:   storage.HistoryKindDirect,
		Path:   path,
		Size:   info.Size(),
		Source: res.Source,
	}
	if err := d.history.AppendHistory(entry); err != nil {
		logger.Error("failed to record download history", "err", err)
	}

	logger.Info("download completed", "path", path, "size", info.Size())

	return path, nil
}

// fetchOnce streams the remote file into path, resuming from whatever is
// already on disk. A server that ignores the Range header answers 200 and
// the partial file is restarted from scratch.
func (d *Downloader) fetchOnce(ctx context.Context, url, path string) error {
	var offset int64
	if info, err := os.Stat(path); err == nil {
		offset = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", url, err)
	}
	defer resp.Body.Close()

	var (
		total int64
		flags int
	)

	switch resp.StatusCode {
	case http.StatusPartialContent:
		total = offset + resp.ContentLength
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	case http.StatusOK:
		// Server ignored the range request, start over.
		offset = 0
		total = resp.ContentLength
		flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	default:
		return fmt.Errorf("mirror returned status %d for %s", resp.StatusCode, url)
	}

	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	defer file.Close()

	logger := logctx.LoggerFromContext(ctx)

	reader := progress.NewReader(resp.Body, offset, total, progressReportInterval,
		func(written, total int64) {
			logger.Debug("download progress", "written", written, "total", total)
		})

	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(file, reader, buf); err != nil {
		return fmt.Errorf("streaming %s: %w", url, err)
	}

	return nil
}

// sourceHint maps an indexer source name to the hint the aggregator's mirror
// resolver understands.
func sourceHint(source string) string {
	s := strings.ToLower(source)

	switch {
	case strings.HasPrefix(s, "annas"):
		return "annasarchive"
	case s == "libgen":
		return "libgen"
	}

	return ""
}

// sanitizeFilename reduces a result title to a safe on-disk name.
func sanitizeFilename(title string) string {
	var b strings.Builder

	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	name := strings.TrimSpace(b.String())
	if name == "" {
		name = "download"
	}

	if len(name) > maxFilenameLength {
		name = name[:maxFilenameLength]
	}

	return name
}
