package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/yojana/internal/models"
)

func TestDocumentStorage_SaveAndGet(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	docs := m.DocumentStorage()

	doc := &models.Document{ID: "doc_1", Title: "Gruha Lakshmi", Type: "scheme", Active: true, Status: models.DocumentStatusPending}
	require.NoError(t, docs.SaveDocument(ctx, doc))
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := docs.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.Equal(t, "Gruha Lakshmi", got.Title)
	assert.Equal(t, models.DocumentStatusPending, got.Status)

	_, err = docs.GetDocument(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDocumentStorage_ListFiltersActiveAndType(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	docs := m.DocumentStorage()

	base := time.Now().Add(-time.Hour)
	seed := []*models.Document{
		{ID: "doc_a", Type: "scheme", Active: true, CreatedAt: base},
		{ID: "doc_b", Type: "faq", Active: true, CreatedAt: base.Add(time.Minute)},
		{ID: "doc_c", Type: "scheme", Active: false, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, d := range seed {
		require.NoError(t, docs.SaveDocument(ctx, d))
	}

	all, err := docs.ListDocuments(ctx, models.DocumentFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "doc_c", all[0].ID, "newest first")

	active, err := docs.ListDocuments(ctx, models.DocumentFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	schemes, err := docs.ListDocuments(ctx, models.DocumentFilter{ActiveOnly: true, Type: "scheme"})
	require.NoError(t, err)
	require.Len(t, schemes, 1)
	assert.Equal(t, "doc_a", schemes[0].ID)

	count, err := docs.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestDocumentStorage_SetActive(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	docs := m.DocumentStorage()

	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "doc_1", Active: true, Status: models.DocumentStatusPending}))

	require.NoError(t, docs.SetActive(ctx, "doc_1", false))
	require.NoError(t, docs.SetActive(ctx, "doc_1", false), "no-op when unchanged")

	got, err := docs.GetDocument(ctx, "doc_1")
	require.NoError(t, err)
	assert.False(t, got.Active)
	assert.Equal(t, models.DocumentStatusPending, got.Status)

	assert.ErrorIs(t, docs.SetActive(ctx, "missing", true), models.ErrNotFound)
}

func TestDocumentStorage_ListPendingBefore(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	docs := m.DocumentStorage()

	old := time.Now().Add(-time.Hour)
	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "stale", Status: models.DocumentStatusPending, CreatedAt: old}))
	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "fresh", Status: models.DocumentStatusPending}))
	require.NoError(t, docs.SaveDocument(ctx, &models.Document{ID: "done", Status: models.DocumentStatusComplete, CreatedAt: old}))

	pending, err := docs.ListPendingBefore(ctx, time.Now().Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stale", pending[0].ID)

	require.NoError(t, docs.DeleteDocument(ctx, "stale"))
	require.NoError(t, docs.DeleteDocument(ctx, "stale"), "deleting twice is not an error")
}
