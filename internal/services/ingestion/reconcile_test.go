package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/models"
)

func TestReconciler_SweepRemovesStalePending(t *testing.T) {
	storage := newTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	stale := newDocument("Crashed mid-write")
	stale.Status = models.DocumentStatusPending
	stale.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, storage.DocumentStorage().SaveDocument(ctx, stale))
	require.NoError(t, storage.ChunkStorage().SaveChunks(ctx, nil, []*models.DocumentChunk{
		{DocumentID: stale.ID, ChunkID: "chk_1"},
	}))

	fresh := newDocument("Still writing")
	fresh.Status = models.DocumentStatusPending
	require.NoError(t, storage.DocumentStorage().SaveDocument(ctx, fresh))

	empty := newDocument("Zero chunks")
	empty.Status = models.DocumentStatusComplete
	empty.CreatedAt = now.Add(-time.Hour)
	require.NoError(t, storage.DocumentStorage().SaveDocument(ctx, empty))

	r, err := NewReconciler(storage, &common.ReconcileConfig{Grace: "15m"}, arbor.NewLogger())
	require.NoError(t, err)

	removed, err := r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = storage.DocumentStorage().GetDocument(ctx, stale.ID)
	assert.True(t, errors.Is(err, models.ErrNotFound))

	links, err := storage.ChunkStorage().GetChunksByDocument(ctx, stale.ID)
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = storage.DocumentStorage().GetDocument(ctx, fresh.ID)
	assert.NoError(t, err)
	_, err = storage.DocumentStorage().GetDocument(ctx, empty.ID)
	assert.NoError(t, err)

	removed, err = r.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
}

func TestNewReconciler(t *testing.T) {
	storage := newTestStorage(t)

	r, err := NewReconciler(storage, &common.ReconcileConfig{}, arbor.NewLogger())
	require.NoError(t, err)
	assert.Equal(t, "@hourly", r.schedule)
	assert.Equal(t, 15*time.Minute, r.grace)

	_, err = NewReconciler(storage, &common.ReconcileConfig{Schedule: "every tuesday"}, arbor.NewLogger())
	assert.Error(t, err)
}

func TestReconciler_StartStop(t *testing.T) {
	storage := newTestStorage(t)
	r, err := NewReconciler(storage, &common.ReconcileConfig{Schedule: "*/5 * * * *"}, arbor.NewLogger())
	require.NoError(t, err)

	require.NoError(t, r.Start())
	r.Stop()
}
