package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_CreateAndFind(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	id, err := store.Create(ctx, NewProcessingJob("alice", `["X"]`))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, StatusProcessing, got.Status)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = store.FindByID(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = store.FindByID(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateLifecycle(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	id, err := store.Create(ctx, NewProcessingJob("alice", "[]"))
	require.NoError(t, err)

	clock = clock.Add(time.Second)
	ok, err := store.Update(ctx, id, CompletedUpdate("Foo", "a.pdf", "a.docx"))
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, clock, got.UpdatedAt)

	ok, err = store.Update(ctx, id, FailedUpdate())
	assert.ErrorIs(t, err, ErrFinalized)
	assert.False(t, ok)

	got, err = store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status, "terminal jobs are immutable")

	ok, err = store.Update(ctx, "00000000-0000-0000-0000-000000000000", FailedUpdate())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_FindByOwnerNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	var ids []string
	for i := 0; i < 3; i++ {
		id, err := store.Create(ctx, NewProcessingJob("alice", "[]"))
		require.NoError(t, err)
		ids = append(ids, id)
		clock = clock.Add(time.Minute)
	}
	_, err := store.Create(ctx, NewProcessingJob("bob", "[]"))
	require.NoError(t, err)

	list, err := store.FindByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ids[2], list[0].ID)
	assert.Equal(t, ids[0], list[2].ID)

	latest, err := store.FindLatestByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, ids[2], latest.ID)

	_, err = store.FindLatestByOwner(ctx, "carol")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_FindStale(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }
	old, err := store.Create(ctx, NewProcessingJob("alice", "[]"))
	require.NoError(t, err)

	clock = clock.Add(2 * time.Hour)
	_, err = store.Create(ctx, NewProcessingJob("alice", "[]"))
	require.NoError(t, err)

	stale, err := store.FindStale(ctx, StatusProcessing, clock.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old, stale[0].ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	id, err := store.Create(ctx, NewProcessingJob("alice", "[]"))
	require.NoError(t, err)

	got, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	got.Status = StatusFailed

	again, err := store.FindByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, again.Status)
}
