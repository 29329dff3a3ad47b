package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/derivekit/derivekit/internal/logging"
	"github.com/derivekit/derivekit/internal/metrics"
	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Manager orchestrates session access, ensuring safe concurrent operations.
// It uses reference counting to garbage collect unused locks, and tracks
// which session IDs are bound to a scope so a session is never resumed by
// two callers at once.
type Manager struct {
	store    ports.SessionStore
	computer ports.Computer
	repo     ports.ResultRepository // optional archive for completed results

	mu    sync.Mutex            // Global lock for the maps
	locks map[string]*lockEntry // Map of active locks
	bound map[string]bool       // Session IDs currently bound to a scope

	locker ports.DistributedLocker // Optional distributed locker
	logger *slog.Logger
	stats  *metrics.Registry

	computeTimeout time.Duration
	lockTTL        time.Duration
}

// Option configures the Manager.
type Option func(*Manager)

// WithLocker enables distributed locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(m *Manager) {
		m.locker = locker
	}
}

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithRepository enables archival of completed results.
func WithRepository(repo ports.ResultRepository) Option {
	return func(m *Manager) {
		m.repo = repo
	}
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(stats *metrics.Registry) Option {
	return func(m *Manager) {
		m.stats = stats
	}
}

// WithComputeTimeout bounds each delegated computation. Zero disables the
// bound; the caller's context still applies.
func WithComputeTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.computeTimeout = d
	}
}

// NewManager creates a session manager over the given store and computer.
func NewManager(store ports.SessionStore, computer ports.Computer, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		computer: computer,
		locks:    make(map[string]*lockEntry),
		bound:    make(map[string]bool),
		logger:   logging.NewNop(),
		lockTTL:  30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(sessionID) after unlocking.
func (m *Manager) acquire(sessionID string) *lockEntry {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		entry = &lockEntry{}
		m.locks[sessionID] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (m *Manager) release(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.locks[sessionID]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(m.locks, sessionID)
	}
}

// bind reserves a session ID for one scope. The second concurrent binder
// is rejected, not queued.
func (m *Manager) bind(sessionID string) *domain.StateError {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.bound[sessionID] {
		return domain.NewStateError(domain.KindAlreadyBound,
			"session %s is already bound to another caller", sessionID)
	}
	m.bound[sessionID] = true
	return nil
}

func (m *Manager) unbind(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.bound, sessionID)
}

// WithLock executes a function while holding the lock for the session.
func (m *Manager) WithLock(ctx context.Context, sessionID string, fn func(context.Context) error) error {
	entry := m.acquire(sessionID)
	m.stats.LockAcquired()
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		m.release(sessionID)
		m.stats.LockReleased()
	}()

	// Distributed Locking
	if m.locker != nil {
		unlock, err := m.locker.Lock(ctx, sessionID, m.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				m.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"session_id", sessionID,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}

// Get retrieves a session snapshot from the store.
func (m *Manager) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	var sess *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		sess, err = m.store.Load(ctx, sessionID)
		return err
	})
	return sess, err
}

// Delete removes the session from the store.
func (m *Manager) Delete(ctx context.Context, sessionID string) error {
	return m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		return m.store.Delete(ctx, sessionID)
	})
}

// List returns the resumable sessions: non-terminal and not currently
// bound to a scope. Completed and aborted sessions are retained in the
// store for audit but never offered for resumption.
func (m *Manager) List(ctx context.Context) ([]domain.Summary, error) {
	all, err := m.store.ListSummaries(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	resumable := make([]domain.Summary, 0, len(all))
	for _, summary := range all {
		if summary.Status != domain.StatusActive || m.bound[summary.ID] {
			continue
		}
		resumable = append(resumable, summary)
	}
	return resumable, nil
}

// Store returns the underlying session store.
func (m *Manager) Store() ports.SessionStore {
	return m.store
}

// Repository returns the result archive, or nil when none is configured.
func (m *Manager) Repository() ports.ResultRepository {
	return m.repo
}

// mutate runs one atomic session mutation: load, clone, apply fn, persist,
// and only then hand the clone back. A failed persist leaves the stored
// session exactly as it was, so the error is reported with state unchanged.
func (m *Manager) mutate(ctx context.Context, sessionID string, fn func(context.Context, *domain.Session) error) (*domain.Session, error) {
	var out *domain.Session
	err := m.WithLock(ctx, sessionID, func(ctx context.Context) error {
		stored, err := m.store.Load(ctx, sessionID)
		if err != nil {
			return err
		}
		clone := stored.Clone()
		if err := fn(ctx, clone); err != nil {
			return err
		}
		clone.Touch()
		if err := m.store.Save(ctx, clone); err != nil {
			m.stats.PersistFailure()
			m.logger.Error("session write failed; mutation rolled back",
				"session_id", sessionID,
				"err", err,
			)
			return &domain.PersistenceError{Err: err}
		}
		out = clone
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
