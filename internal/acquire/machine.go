// Package acquire drives a torrent from search result to completed download
// through the qBittorrent daemon: submit, locate the daemon's handle for it,
// watch progress, then record the completion.
package acquire

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/zilezarach/torrentcli/internal/clock"
	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/qbt"
	"github.com/zilezarach/torrentcli/internal/storage"
	"github.com/zilezarach/torrentcli/internal/telemetry"
	"github.com/zilezarach/torrentcli/internal/zil"
)

// State is the lifecycle phase of one acquisition.
type State int

const (
	StateSubmitting State = iota
	StateLocating
	StateDownloading
	StateCompleting
	StateCompleted
	StateFailed
	StateAbandoned
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateLocating:
		return "locating"
	case StateDownloading:
		return "downloading"
	case StateCompleting:
		return "completing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateAbandoned:
		return "abandoned"
	}

	return "unknown"
}

// Daemon is the slice of the qBittorrent client the acquirer needs.
type Daemon interface {
	Torrents(ctx context.Context, filter string) ([]qbt.Torrent, error)
	TorrentsByHashes(ctx context.Context, hashes ...string) ([]qbt.Torrent, error)
	Add(ctx context.Context, opts qbt.AddOptions) error
	Delete(ctx context.Context, keepFiles bool, hashes ...string) error
}

// Progress is a snapshot of one acquisition, delivered to OnProgress on
// every watch poll.
type Progress struct {
	State    State
	Handle   string
	Name     string
	Fraction float64
	Dlspeed  int64
}

// Config tunes the acquisition pipeline.
type Config struct {
	SavePath       string
	MaxActive      int
	AutoRemove     bool
	PollInterval   time.Duration
	LocateAttempts int
}

const (
	defaultPollInterval   = time.Second
	defaultLocateAttempts = 15
	defaultMaxActive      = 5
)

// Task is the record of one acquisition run.
type Task struct {
	Title  string
	Handle string
	State  State
}

// Acquirer runs the acquisition pipeline against a torrent daemon.
// Submissions are serialized so the capacity check and the add stay
// consistent with each other.
type Acquirer struct {
	daemon  Daemon
	history storage.HistoryWriteRepository
	cfg     Config
	clk     clock.Clock
	tel     *telemetry.Telemetry

	submitMu sync.Mutex

	// OnProgress, when set, receives a snapshot on every watch poll.
	OnProgress func(Progress)
}

type Option func(*Acquirer)

func WithTelemetry(tel *telemetry.Telemetry) Option {
	return func(a *Acquirer) { a.tel = tel }
}

func WithProgress(fn func(Progress)) Option {
	return func(a *Acquirer) { a.OnProgress = fn }
}

func NewAcquirer(daemon Daemon, history storage.HistoryWriteRepository, cfg Config, clk clock.Clock, opts ...Option) *Acquirer {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.LocateAttempts <= 0 {
		cfg.LocateAttempts = defaultLocateAttempts
	}

	if cfg.MaxActive <= 0 {
		cfg.MaxActive = defaultMaxActive
	}

	a := &Acquirer{
		daemon:  daemon,
		history: history,
		cfg:     cfg,
		clk:     clk,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Submit validates a result and hands it to the daemon. The capacity check
// and the add run under one lock so concurrent submissions cannot both pass
// the check and overshoot the limit.
func (a *Acquirer) Submit(ctx context.Context, res *zil.SearchResult) error {
	if !validLink(res.DownloadURL) {
		return &InvalidLinkError{URL: res.DownloadURL}
	}

	a.submitMu.Lock()
	defer a.submitMu.Unlock()

	active, err := a.daemon.Torrents(ctx, "downloading")
	if err != nil {
		return &DaemonRejectedError{Err: err}
	}

	if len(active) >= a.cfg.MaxActive {
		return &CapacityExceededError{Active: len(active), Limit: a.cfg.MaxActive}
	}

	if err := a.daemon.Add(ctx, qbt.AddOptions{URL: res.DownloadURL, SavePath: a.cfg.SavePath}); err != nil {
		return &DaemonRejectedError{Err: err}
	}

	return nil
}

// Run drives a result through the full pipeline and blocks until the
// acquisition reaches a terminal state or ctx is canceled.
func (a *Acquirer) Run(ctx context.Context, res *zil.SearchResult) (*Task, error) {
	task := &Task{Title: res.Title, State: StateSubmitting}

	err := a.tel.InstrumentAcquisition(ctx, func(ctx context.Context) error {
		return a.run(ctx, res, task)
	})

	a.tel.RecordAcquisition(task.State.String())

	return task, err
}

func (a *Acquirer) run(ctx context.Context, res *zil.SearchResult, task *Task) error {
	logger := logctx.LoggerFromContext(ctx).With("title", res.Title)

	if err := a.Submit(ctx, res); err != nil {
		// A full daemon is a back-off condition, not a failure of this
		// particular result.
		var capacity *CapacityExceededError
		if errors.As(err, &capacity) {
			task.State = StateAbandoned
		} else {
			task.State = StateFailed
		}

		return err
	}

	logger.Info("torrent submitted to daemon")

	task.State = StateLocating

	handle, err := a.locate(ctx, res.Title)
	if err != nil {
		task.State = StateFailed

		return err
	}

	task.Handle = handle
	task.State = StateDownloading

	logger = logger.With("handle", handle)
	logger.Info("torrent located in daemon")

	final, err := a.watch(ctx, task)
	if err != nil {
		return err
	}

	task.State = StateCompleting

	return a.complete(ctx, res, task, final)
}

// locate polls the daemon until a torrent matching the submitted title shows
// up. Magnet submissions can take several polls to surface while the daemon
// resolves metadata.
func (a *Acquirer) locate(ctx context.Context, title string) (string, error) {
	for attempt := 0; attempt < a.cfg.LocateAttempts; attempt++ {
		torrents, err := a.daemon.Torrents(ctx, "")
		if err == nil {
			for _, t := range torrents {
				if MatchesTitle(title, t.Name) {
					return t.Hash, nil
				}
			}
		}

		if err := a.clk.Sleep(ctx, a.cfg.PollInterval); err != nil {
			return "", err
		}
	}

	return "", &HandleNotFoundError{Title: title, Polls: a.cfg.LocateAttempts}
}

// watch polls the located torrent until it finishes downloading. There is no
// poll bound here: a large torrent legitimately takes as long as it takes,
// and cancellation comes from ctx.
func (a *Acquirer) watch(ctx context.Context, task *Task) (*qbt.Torrent, error) {
	for {
		torrents, err := a.daemon.TorrentsByHashes(ctx, task.Handle)
		if err == nil {
			if len(torrents) == 0 {
				task.State = StateFailed

				return nil, &HandleLostError{Handle: task.Handle}
			}

			t := torrents[0]

			if t.Errored() {
				task.State = StateFailed

				return nil, &DaemonError{Handle: task.Handle, State: t.State}
			}

			if a.OnProgress != nil {
				a.OnProgress(Progress{
					State:    StateDownloading,
					Handle:   task.Handle,
					Name:     t.Name,
					Fraction: t.Progress,
					Dlspeed:  t.Dlspeed,
				})
			}

			if t.Progress >= 1.0 && t.IsSeeding() {
				return &t, nil
			}
		}

		if err := a.clk.Sleep(ctx, a.cfg.PollInterval); err != nil {
			return nil, err
		}
	}
}

// complete records the finished acquisition and optionally detaches the
// torrent from the daemon while keeping the files on disk. Removal failures
// are logged, not fatal: the download itself succeeded.
func (a *Acquirer) complete(ctx context.Context, res *zil.SearchResult, task *Task, final *qbt.Torrent) error {
	logger := logctx.LoggerFromContext(ctx).With("title", res.Title, "handle", task.Handle)

	entry := storage.HistoryEntry{
		Title:  res.Title,
		Kind:   storage.HistoryKindTorrent,
		Path:   final.SavePath,
		Size:   final.Size,
		Source: res.Source,
		Handle: task.Handle,
	}
	if err := a.history.AppendHistory(entry); err != nil {
		logger.Error("failed to record acquisition history", "err", err)
	}

	if a.cfg.AutoRemove {
		if err := a.daemon.Delete(ctx, true, task.Handle); err != nil {
			logger.Warn("failed to remove completed torrent from daemon", "err", err)
		}
	}

	task.State = StateCompleted

	logger.Info("acquisition completed", "path", final.SavePath)

	return nil
}

func validLink(url string) bool {
	return strings.HasPrefix(url, "magnet:") || strings.HasPrefix(url, "http")
}
