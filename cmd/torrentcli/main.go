package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/zilezarach/torrentcli/internal/acquire"
	"github.com/zilezarach/torrentcli/internal/clock"
	"github.com/zilezarach/torrentcli/internal/config"
	"github.com/zilezarach/torrentcli/internal/download"
	"github.com/zilezarach/torrentcli/internal/health"
	"github.com/zilezarach/torrentcli/internal/logctx"
	"github.com/zilezarach/torrentcli/internal/notifier"
	"github.com/zilezarach/torrentcli/internal/qbt"
	"github.com/zilezarach/torrentcli/internal/sched"
	"github.com/zilezarach/torrentcli/internal/storage/jsonfile"
	"github.com/zilezarach/torrentcli/internal/storage/sqlite"
	"github.com/zilezarach/torrentcli/internal/telemetry"
	"github.com/zilezarach/torrentcli/internal/web"
	"github.com/zilezarach/torrentcli/internal/zil"
	"github.com/zilezarach/torrentcli/internal/zil/transport"
)

const version = "2.0.0"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}

	logger := slog.New(logctx.NewTraceHandler(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()})))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	slog.Info("torrentcli starting...", "version", version, "log_level", cfg.LogLevel)

	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil && ctx.Err() == nil {
		slog.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer tel.Shutdown(context.Background())

	// =========================================================================
	// Start Database
	database, err := sqlite.InitDB(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("DB error: %w", err)
	}
	defer database.Close()

	history := sqlite.NewInstrumentedHistoryRepository(database, tel)

	scheduleStore := jsonfile.NewScheduleStore(cfg.SchedulePath)
	resultStore := jsonfile.NewResultStore(cfg.LastResultsPath)

	// =========================================================================
	// Start Aggregator Client
	apiTransport := transport.NewClient(cfg.ZilAPIURL,
		transport.WithTimeout(cfg.RequestTimeout),
		transport.WithBaseWait(cfg.RetryBaseWait),
		transport.WithTelemetry(tel),
	)
	zilClient := zil.NewClient(apiTransport)

	// =========================================================================
	// Start Torrent Daemon Client
	daemon := qbt.NewClient(cfg.Daemon.Host, cfg.Daemon.Username, cfg.Daemon.Password)
	if err := daemon.Login(ctx); err != nil {
		return fmt.Errorf("authentication error: %w", err)
	}

	clk := clock.New()

	// =========================================================================
	// Start Acquisition Pipeline
	acquirer := acquire.NewAcquirer(daemon, history, acquire.Config{
		SavePath:   cfg.DownloadPath,
		MaxActive:  cfg.MaxActiveDownloads,
		AutoRemove: cfg.AutoRemoveCompleted,
	}, clk, acquire.WithTelemetry(tel))

	downloader := download.NewDownloader(zilClient, history, cfg.DirectDownloadPath,
		download.WithTelemetry(tel))

	notif := buildNotifier(cfg)

	// =========================================================================
	// Start Background Loops and API Service
	monitor := health.NewMonitor(zilClient, daemon, notif, cfg.HealthCheckInterval, clk, tel)
	runner := sched.NewRunner(scheduleStore, zilClient, acquirer, cfg.ScheduleCheckInterval, clk, tel)

	statusHandler := web.NewStatusHandler(zilClient, daemon, history, scheduleStore, resultStore, acquirer, downloader, tel)

	server := setupServer(ctx, statusHandler, cfg)

	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return monitor.Run(gctx)
	})

	group.Go(func() error {
		return runner.Run(gctx)
	})

	group.Go(func() error {
		logger.Info("initializing API support", "host", cfg.Web.BindAddress)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

		return nil
	})

	group.Go(func() error {
		<-gctx.Done()

		logger.Info("start shutdown")

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to gracefully shutdown the server", "err", err)

			if err = server.Close(); err != nil {
				return fmt.Errorf("could not stop server gracefully: %w", err)
			}
		}

		return nil
	})

	logger.Info("torrentcli running",
		"download_path", cfg.DownloadPath,
		"health_interval", cfg.HealthCheckInterval.String(),
		"schedule_interval", cfg.ScheduleCheckInterval.String(),
	)

	return group.Wait()
}

func buildNotifier(cfg *config.Config) notifier.Notifier {
	multi := &notifier.MultiNotifier{}

	if cfg.NotifyCommand != "" {
		multi.Notifiers = append(multi.Notifiers, &notifier.DesktopNotifier{Command: cfg.NotifyCommand})
	}

	if cfg.DiscordWebhookURL != "" {
		multi.Notifiers = append(multi.Notifiers, &notifier.DiscordNotifier{
			WebhookURL: cfg.DiscordWebhookURL,
			Username:   "torrentcli",
		})
	}

	return multi
}

// setupServer prepares the handlers to create the http status server.
func setupServer(ctx context.Context, handler *web.StatusHandler, cfg *config.Config) *http.Server {
	r := chi.NewRouter()
	r.Mount("/", handler.Routes())

	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      r,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
