package yamlrepo

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derivekit/derivekit/pkg/domain"
	"github.com/derivekit/derivekit/pkg/ports"
)

func testResult(id, name, category string) *domain.Result {
	return &domain.Result{
		ID:         id,
		Name:       name,
		Expression: "C_0 * exp(-k * t)",
		Category:   category,
		Steps: domain.Ledger{
			{Number: 1, Operation: domain.OpLoad, Output: "C_0 * exp(-k * t)", Source: domain.SourceInternal},
		},
		CreatedAt:   time.Now().UTC().Add(-time.Hour),
		CompletedAt: time.Now().UTC(),
	}
}

func TestStoreAndGet(t *testing.T) {
	repo := New(t.TempDir())
	ctx := context.Background()

	want := testResult("res-1", "decay law", "kinetics")
	want.Tags = []string{"chemistry", "first-order"}
	require.NoError(t, repo.Store(ctx, want))

	got, err := repo.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, want.Name, got.Name)
	assert.Equal(t, want.Expression, got.Expression)
	assert.Equal(t, want.Tags, got.Tags)
	require.Len(t, got.Steps, 1)
	assert.Equal(t, domain.OpLoad, got.Steps[0].Operation)
}

func TestGetNotFound(t *testing.T) {
	repo := New(t.TempDir())
	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrResultNotFound)
}

func TestFilesGroupByCategory(t *testing.T) {
	dir := t.TempDir()
	repo := New(dir)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, testResult("res-1", "a", "kinetics")))
	require.NoError(t, repo.Store(ctx, testResult("res-2", "b", "")))

	assert.FileExists(t, filepath.Join(dir, "kinetics", "res-1.yaml"))
	assert.FileExists(t, filepath.Join(dir, "uncategorized", "res-2.yaml"))
}

func TestFind(t *testing.T) {
	repo := New(t.TempDir())
	ctx := context.Background()

	decay := testResult("res-1", "Decay Law", "kinetics")
	decay.Tags = []string{"chemistry"}
	decay.Description = "first-order decay of a reactant"
	require.NoError(t, repo.Store(ctx, decay))

	ohm := testResult("res-2", "Ohm's Law", "circuits")
	ohm.Verified = true
	require.NoError(t, repo.Store(ctx, ohm))

	// Case-insensitive text match over name and description.
	got, err := repo.Find(ctx, ports.ResultQuery{Text: "decay"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-1", got[0].ID)

	got, err = repo.Find(ctx, ports.ResultQuery{Category: "circuits"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-2", got[0].ID)

	// Keyword search also reaches tags.
	got, err = repo.Find(ctx, ports.ResultQuery{Text: "CHEMIS"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-1", got[0].ID)

	got, err = repo.Find(ctx, ports.ResultQuery{Tags: []string{"chemistry"}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-1", got[0].ID)

	verified := true
	got, err = repo.Find(ctx, ports.ResultQuery{Verified: &verified})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "res-2", got[0].ID)

	got, err = repo.Find(ctx, ports.ResultQuery{Text: "decay", Category: "circuits"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListNewestFirst(t *testing.T) {
	repo := New(t.TempDir())
	ctx := context.Background()

	older := testResult("res-old", "older", "")
	older.CompletedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, repo.Store(ctx, older))
	require.NoError(t, repo.Store(ctx, testResult("res-new", "newer", "")))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "res-new", all[0].ID)
}

func TestListSkipsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	repo := New(dir)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, testResult("res-1", "intact", "")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uncategorized", "broken.yaml"), []byte("a: [unclosed"), 0644))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "res-1", all[0].ID)
}

func TestUpdateMetadata(t *testing.T) {
	repo := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, testResult("res-1", "draft", "kinetics")))

	name := "polished"
	verified := true
	method := "checked against textbook"
	updated, err := repo.UpdateMetadata(ctx, "res-1", domain.ResultPatch{
		Name:               &name,
		Verified:           &verified,
		VerificationMethod: &method,
	})
	require.NoError(t, err)
	assert.Equal(t, "polished", updated.Name)
	assert.True(t, updated.Verified)
	require.NotNil(t, updated.VerifiedAt)

	// The expression and steps are untouched by a metadata patch.
	got, err := repo.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "C_0 * exp(-k * t)", got.Expression)
	assert.Len(t, got.Steps, 1)
	assert.True(t, got.Verified)
}

func TestUpdateMetadataMovesCategories(t *testing.T) {
	dir := t.TempDir()
	repo := New(dir)
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, testResult("res-1", "mobile", "kinetics")))

	category := "thermodynamics"
	_, err := repo.UpdateMetadata(ctx, "res-1", domain.ResultPatch{Category: &category})
	require.NoError(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "kinetics", "res-1.yaml"))
	assert.FileExists(t, filepath.Join(dir, "thermodynamics", "res-1.yaml"))

	got, err := repo.Get(ctx, "res-1")
	require.NoError(t, err)
	assert.Equal(t, "thermodynamics", got.Category)
}

func TestDelete(t *testing.T) {
	repo := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, repo.Store(ctx, testResult("res-1", "", "")))
	require.NoError(t, repo.Delete(ctx, "res-1"))

	_, err := repo.Get(ctx, "res-1")
	require.ErrorIs(t, err, domain.ErrResultNotFound)

	require.ErrorIs(t, repo.Delete(ctx, "res-1"), domain.ErrResultNotFound)
}

func TestStats(t *testing.T) {
	repo := New(t.TempDir())
	ctx := context.Background()

	a := testResult("res-1", "a", "kinetics")
	a.Verified = true
	require.NoError(t, repo.Store(ctx, a))
	require.NoError(t, repo.Store(ctx, testResult("res-2", "b", "kinetics")))
	require.NoError(t, repo.Store(ctx, testResult("res-3", "c", "")))

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Verified)
	assert.Equal(t, 2, stats.ByCategory["kinetics"])
	assert.Equal(t, 1, stats.ByCategory["uncategorized"])
}
