// Package cli holds the shared wiring used by the derivekit commands:
// config resolution, logger construction, and manager assembly.
package cli

import (
	"log/slog"

	"github.com/derivekit/derivekit/internal/adapters/file"
	redisadapter "github.com/derivekit/derivekit/internal/adapters/redis"
	"github.com/derivekit/derivekit/internal/adapters/yamlrepo"
	"github.com/derivekit/derivekit/internal/config"
	"github.com/derivekit/derivekit/internal/logging"
	"github.com/derivekit/derivekit/internal/metrics"
	"github.com/derivekit/derivekit/pkg/ports"
	"github.com/derivekit/derivekit/pkg/session"
)

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger. Servers log JSON, interactive
// commands log text.
func NewLogger(cfg config.Config, json bool) *slog.Logger {
	level := ParseLevel(cfg.LogLevel)
	if json {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}

// NewManager assembles the session manager from configuration: a Redis
// store and locker when an address is configured, the file store otherwise,
// and always the YAML result archive.
func NewManager(cfg config.Config, computer ports.Computer, logger *slog.Logger, stats *metrics.Registry) (*session.Manager, func() error, error) {
	if computer == nil {
		computer = session.NopComputer{}
	}
	repo := yamlrepo.New(cfg.ResultsDir())

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithRepository(repo),
		session.WithComputeTimeout(cfg.Timeout()),
	}
	if stats != nil {
		opts = append(opts, session.WithMetrics(stats))
	}

	if cfg.Redis.Address != "" {
		store := redisadapter.New(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		locker := redisadapter.NewLocker(store.Client(), "derivekit:session:")
		opts = append(opts, session.WithLocker(locker))
		mgr := session.NewManager(store, computer, opts...)
		return mgr, store.Close, nil
	}

	store := file.New(cfg.SessionsDir())
	mgr := session.NewManager(store, computer, opts...)
	return mgr, func() error { return nil }, nil
}
