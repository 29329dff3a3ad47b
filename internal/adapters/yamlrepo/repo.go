// Package yamlrepo archives completed derivation results as YAML files,
// one per result, grouped into per-category directories so the archive
// stays browsable without tooling.
package yamlrepo

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/ports"
)

const uncategorized = "uncategorized"

// Repo implements ports.ResultRepository on the local filesystem.
type Repo struct {
	BasePath string

	mu sync.Mutex
}

// New creates a repository rooted at basePath. If basePath is empty, it
// defaults to ".derivekit/results".
func New(basePath string) *Repo {
	if basePath == "" {
		basePath = filepath.Join(".derivekit", "results")
	}
	return &Repo{BasePath: basePath}
}

func categoryDir(category string) string {
	c := strings.TrimSpace(category)
	if c == "" {
		return uncategorized
	}
	// Category names come from callers; keep them path-safe.
	c = strings.ReplaceAll(c, string(os.PathSeparator), "-")
	return c
}

func (r *Repo) path(result *domain.Result) string {
	return filepath.Join(r.BasePath, categoryDir(result.Category), result.ID+".yaml")
}

// Store persists a result, replacing any previous file for the same ID.
func (r *Repo) Store(ctx context.Context, result *domain.Result) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("result ID cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	// The category may have changed since the last write; drop stale copies.
	if old, err := r.find(result.ID); err == nil && old != r.path(result) {
		_ = os.Remove(old)
	}
	return r.write(result)
}

// write marshals and atomically replaces the result file.
func (r *Repo) write(result *domain.Result) error {
	dir := filepath.Join(r.BasePath, categoryDir(result.Category))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to ensure result directory: %w", err)
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "tmp-"+result.ID+"-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	dest := filepath.Join(dir, result.ID+".yaml")
	if _, err := os.Stat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return fmt.Errorf("failed to remove existing result file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// find locates the file for an ID across category directories.
func (r *Repo) find(id string) (string, error) {
	var found string
	err := filepath.WalkDir(r.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if !d.IsDir() && d.Name() == id+".yaml" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", domain.ErrResultNotFound
	}
	return found, nil
}

func (r *Repo) read(path string) (*domain.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read result file: %w", err)
	}
	var result domain.Result
	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal result: %w", err)
	}
	return &result, nil
}

// Get retrieves a result by ID.
func (r *Repo) Get(ctx context.Context, id string) (*domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, err := r.find(id)
	if err != nil {
		return nil, err
	}
	return r.read(path)
}

// List enumerates every archived result, newest completion first.
func (r *Repo) List(ctx context.Context) ([]*domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.list()
}

func (r *Repo) list() ([]*domain.Result, error) {
	var results []*domain.Result
	err := filepath.WalkDir(r.BasePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".yaml" {
			return nil
		}
		result, rerr := r.read(path)
		if rerr != nil {
			// A malformed file should not hide the rest of the archive.
			return nil
		}
		results = append(results, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].CompletedAt.After(results[j].CompletedAt)
	})
	return results, nil
}

// Find returns results matching the query, newest first.
func (r *Repo) Find(ctx context.Context, q ports.ResultQuery) ([]*domain.Result, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	var out []*domain.Result
	for _, result := range all {
		if matches(result, q) {
			out = append(out, result)
		}
	}
	return out, nil
}

func matches(result *domain.Result, q ports.ResultQuery) bool {
	if q.Category != "" && result.Category != q.Category {
		return false
	}
	if q.Verified != nil && result.Verified != *q.Verified {
		return false
	}
	if q.Text != "" {
		text := strings.ToLower(q.Text)
		hit := strings.Contains(strings.ToLower(result.Name), text) ||
			strings.Contains(strings.ToLower(result.Description), text)
		for _, tag := range result.Tags {
			if hit {
				break
			}
			hit = strings.Contains(strings.ToLower(tag), text)
		}
		if !hit {
			return false
		}
	}
	for _, want := range q.Tags {
		found := false
		for _, tag := range result.Tags {
			if tag == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// UpdateMetadata applies a bounded metadata patch and rewrites the file,
// moving it if the category changed.
func (r *Repo) UpdateMetadata(ctx context.Context, id string, patch domain.ResultPatch) (*domain.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	path, err := r.find(id)
	if err != nil {
		return nil, err
	}
	result, err := r.read(path)
	if err != nil {
		return nil, err
	}

	patch.Apply(result)

	if newPath := r.path(result); newPath != path {
		if err := r.write(result); err != nil {
			return nil, err
		}
		_ = os.Remove(path)
		return result, nil
	}
	if err := r.write(result); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a result by ID.
func (r *Repo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, err := r.find(id)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to delete result file: %w", err)
	}
	return nil
}

// Stats summarizes the archive.
func (r *Repo) Stats(ctx context.Context) (ports.RepositoryStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	all, err := r.list()
	if err != nil {
		return ports.RepositoryStats{}, err
	}
	stats := ports.RepositoryStats{
		Total:      len(all),
		ByCategory: make(map[string]int),
	}
	for _, result := range all {
		if result.Verified {
			stats.Verified++
		}
		stats.ByCategory[categoryDir(result.Category)]++
	}
	return stats, nil
}
