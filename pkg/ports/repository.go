package ports

import (
	"context"

	"github.com/derivekit/derivekit/pkg/domain"
)

// ResultQuery filters archived results. Zero-value fields do not filter.
type ResultQuery struct {
	// Text matches case-insensitively against name and description.
	Text string
	// Category restricts to one category.
	Category string
	// Tags restricts to results carrying all listed tags.
	Tags []string
	// Verified, when set, restricts by verification state.
	Verified *bool
}

// RepositoryStats summarizes the archive contents.
type RepositoryStats struct {
	Total      int            `json:"total" yaml:"total"`
	Verified   int            `json:"verified" yaml:"verified"`
	ByCategory map[string]int `json:"by_category" yaml:"by_category"`
}

// ResultRepository archives completed derivations for later retrieval.
type ResultRepository interface {
	// Store persists a result keyed by its ID.
	Store(ctx context.Context, result *domain.Result) error

	// Get retrieves a result by ID.
	// Returns domain.ErrResultNotFound if no such result exists.
	Get(ctx context.Context, id string) (*domain.Result, error)

	// Find returns results matching the query, newest first.
	Find(ctx context.Context, q ResultQuery) ([]*domain.Result, error)

	// List enumerates every archived result, newest first.
	List(ctx context.Context) ([]*domain.Result, error)

	// UpdateMetadata applies a bounded metadata patch to a stored result.
	// The expression and step history are immutable once archived.
	UpdateMetadata(ctx context.Context, id string, patch domain.ResultPatch) (*domain.Result, error)

	// Delete removes a result by ID.
	Delete(ctx context.Context, id string) error

	// Stats summarizes the archive.
	Stats(ctx context.Context) (RepositoryStats, error)
}
