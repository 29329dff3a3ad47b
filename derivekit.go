package derivekit

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/derivekit/derivekit/internal/adapters/file"
	"github.com/derivekit/derivekit/internal/adapters/yamlrepo"
	"github.com/derivekit/derivekit/pkg/ports"
	"github.com/derivekit/derivekit/pkg/session"
)

// Version is the derivekit release version.
const Version = "0.1.0"

// settings collects the injectable pieces before the manager is assembled.
type settings struct {
	store    ports.SessionStore
	computer ports.Computer
	repo     ports.ResultRepository
	locker   ports.DistributedLocker
	logger   *slog.Logger
	timeout  time.Duration
}

// Option defines a functional option for configuring the engine.
type Option func(*settings)

// WithStore injects a custom session store, bypassing the default
// filesystem initialization.
func WithStore(store ports.SessionStore) Option {
	return func(s *settings) {
		s.store = store
	}
}

// WithComputer injects the symbolic computation backend. Without one,
// operation steps must be recorded manually.
func WithComputer(c ports.Computer) Option {
	return func(s *settings) {
		s.computer = c
	}
}

// WithRepository injects a custom result archive.
func WithRepository(repo ports.ResultRepository) Option {
	return func(s *settings) {
		s.repo = repo
	}
}

// WithLocker enables distributed session locking for multi-process
// deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(s *settings) {
		s.locker = locker
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		s.logger = logger
	}
}

// WithComputeTimeout bounds each delegated computation.
func WithComputeTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.timeout = d
	}
}

// New initializes a derivation session manager.
// By default sessions and results live on the filesystem under dataDir.
// If WithStore is provided, dataDir may be empty and no directories are
// touched until the injected store is used.
func New(dataDir string, opts ...Option) (*session.Manager, error) {
	s := &settings{}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		if dataDir == "" {
			return nil, fmt.Errorf("dataDir is required when no custom store is provided")
		}
		absPath, err := filepath.Abs(dataDir)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		s.store = file.New(filepath.Join(absPath, "sessions"))
		if s.repo == nil {
			s.repo = yamlrepo.New(filepath.Join(absPath, "results"))
		}
	}
	if s.computer == nil {
		s.computer = session.NopComputer{}
	}

	mgrOpts := []session.Option{}
	if s.repo != nil {
		mgrOpts = append(mgrOpts, session.WithRepository(s.repo))
	}
	if s.locker != nil {
		mgrOpts = append(mgrOpts, session.WithLocker(s.locker))
	}
	if s.logger != nil {
		mgrOpts = append(mgrOpts, session.WithLogger(s.logger))
	}
	if s.timeout > 0 {
		mgrOpts = append(mgrOpts, session.WithComputeTimeout(s.timeout))
	}

	return session.NewManager(s.store, s.computer, mgrOpts...), nil
}
