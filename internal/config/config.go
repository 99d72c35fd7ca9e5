package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config struct for environment variables.
type Config struct {
	ZilAPIURL string `envconfig:"ZIL_API" default:"http://127.0.0.1:9117"`

	DownloadPath       string `envconfig:"DOWNLOAD_PATH" required:"true"`
	DirectDownloadPath string `envconfig:"DIRECT_DOWNLOAD_PATH"`

	Daemon struct {
		Host     string `split_words:"true" default:"http://127.0.0.1:8080"`
		Username string `split_words:"true"`
		Password string `split_words:"true"`
	}

	HealthCheckInterval   time.Duration `split_words:"true" default:"1h"`
	ScheduleCheckInterval time.Duration `split_words:"true" default:"1m"`
	MaxActiveDownloads    int           `split_words:"true" default:"5"`
	AutoRemoveCompleted   bool          `split_words:"true" default:"false"`

	RequestTimeout time.Duration `split_words:"true" default:"30s"`
	RetryBaseWait  time.Duration `split_words:"true" default:"1s"`

	DBPath          string `envconfig:"DB_PATH" default:"history.db"`
	SchedulePath    string `split_words:"true" default:"schedule.json"`
	LastResultsPath string `split_words:"true" default:"last.json"`

	LogLevel          string `envconfig:"LOG_LEVEL" default:"INFO"`
	NotifyCommand     string `split_words:"true" default:"notify-send"`
	DiscordWebhookURL string `envconfig:"DISCORD_WEBHOOK_URL"`

	Telemetry struct {
		Enabled     bool   `split_words:"true" default:"true"`
		ServiceName string `split_words:"true" default:"torrentcli"`
	}

	Web struct {
		BindAddress     string        `split_words:"true" default:"0.0.0.0:9092"`
		ReadTimeout     time.Duration `split_words:"true" default:"30s"`
		WriteTimeout    time.Duration `split_words:"true" default:"30s"`
		IdleTimeout     time.Duration `split_words:"true" default:"5s"`
		ShutdownTimeout time.Duration `split_words:"true" default:"30s"`
	}
}

// LoadConfig reads environment variables and populates the Config struct.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("error processing env: %w", err)
	}

	// Direct downloads land next to torrent downloads unless told otherwise.
	if cfg.DirectDownloadPath == "" {
		cfg.DirectDownloadPath = cfg.DownloadPath
	}

	return &cfg, nil
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
