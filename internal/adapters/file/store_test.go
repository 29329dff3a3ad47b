package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derivekit/derivekit/pkg/domain"
)

func testSession(id, name string) *domain.Session {
	sess := domain.NewSession(id, name, "")
	_ = sess.Append(&domain.Step{
		Operation:   domain.OpLoad,
		Description: "loaded",
		Output:      "x + 1",
		Source:      domain.SourceInternal,
	}, true)
	return sess
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	sess := testSession("sess-1", "round trip")
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, sess.ID, loaded.ID)
	assert.Equal(t, sess.Name, loaded.Name)
	assert.Equal(t, sess.Current, loaded.Current)
	require.Len(t, loaded.Steps, 1)
	assert.Equal(t, domain.OpLoad, loaded.Steps[0].Operation)
}

func TestSaveOverwrites(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	sess := testSession("sess-1", "v1")
	require.NoError(t, store.Save(ctx, sess))

	sess.Name = "v2"
	require.NoError(t, store.Save(ctx, sess))

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", loaded.Name)
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	require.NoError(t, store.Save(context.Background(), testSession("sess-1", "tidy")))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "sess-1.json", entries[0].Name())
}

func TestLoadNotFound(t *testing.T) {
	store := New(t.TempDir())
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSaveRejectsEmptyID(t *testing.T) {
	store := New(t.TempDir())
	require.Error(t, store.Save(context.Background(), &domain.Session{}))
}

func TestDeleteIsIdempotent(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testSession("sess-1", "doomed")))
	require.NoError(t, store.Delete(ctx, "sess-1"))
	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err := store.Load(ctx, "sess-1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestListSummaries(t *testing.T) {
	dir := t.TempDir()
	store := New(dir)
	ctx := context.Background()

	older := testSession("sess-old", "older")
	older.UpdatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, store.Save(ctx, older))

	newer := testSession("sess-new", "newer")
	require.NoError(t, store.Save(ctx, newer))

	// A corrupt file must not break the listing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644))

	summaries, err := store.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "sess-new", summaries[0].ID)
	assert.Equal(t, "sess-old", summaries[1].ID)
	assert.Equal(t, 1, summaries[0].StepCount)
}

func TestListSummariesMissingDir(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "never-created"))
	summaries, err := store.ListSummaries(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summaries)
}
