package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derivekit/derivekit/pkg/domain"
)

func TestStoreIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	sess := domain.NewSession("sess-1", "isolated", "")
	require.NoError(t, store.Save(ctx, sess))

	// Mutating the caller's copy must not leak into the store.
	sess.Name = "mutated"

	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "isolated", loaded.Name)

	// And mutating a loaded copy must not either.
	loaded.Name = "mutated again"
	again, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "isolated", again.Name)
}

func TestStoreNotFound(t *testing.T) {
	store := New()
	_, err := store.Load(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStoreDelete(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domain.NewSession("sess-1", "", "")))
	require.NoError(t, store.Delete(ctx, "sess-1"))
	_, err := store.Load(ctx, "sess-1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStoreListSummaries(t *testing.T) {
	store := New()
	ctx := context.Background()

	a := domain.NewSession("a", "first", "")
	require.NoError(t, store.Save(ctx, a))
	b := domain.NewSession("b", "second", "")
	b.Touch()
	require.NoError(t, store.Save(ctx, b))

	summaries, err := store.ListSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "b", summaries[0].ID)
}
