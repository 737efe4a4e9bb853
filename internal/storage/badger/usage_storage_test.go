package badger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/yojana/internal/models"
)

func TestUsageStorage_SumUsageByServiceAndMonth(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	usage := m.UsageStorage()

	records := []*models.UsageRecord{
		{ID: "u1", Service: models.ServiceEmbedding, Units: 1, Month: "2026-10"},
		{ID: "u2", Service: models.ServiceEmbedding, Units: 2, Month: "2026-10"},
		{ID: "u3", Service: models.ServiceEmbedding, Units: 5, Month: "2026-09"},
		{ID: "u4", Service: models.ServiceOCR, Units: 45, Month: "2026-10"},
	}
	for _, r := range records {
		require.NoError(t, usage.AppendUsage(ctx, r))
	}

	total, err := usage.SumUsage(ctx, models.ServiceEmbedding, "2026-10")
	require.NoError(t, err)
	assert.Equal(t, 3.0, total)

	ocr, err := usage.SumUsage(ctx, models.ServiceOCR, "2026-10")
	require.NoError(t, err)
	assert.Equal(t, 45.0, ocr)

	empty, err := usage.SumUsage(ctx, models.ServiceGeneration, "2026-10")
	require.NoError(t, err)
	assert.Zero(t, empty)
}

func TestUsageStorage_AppendDefaultsMonth(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	record := &models.UsageRecord{ID: "u1", Service: models.ServiceOCR, Units: 3}
	require.NoError(t, m.UsageStorage().AppendUsage(ctx, record))
	assert.Equal(t, models.MonthBucket(record.CreatedAt), record.Month)

	assert.Error(t, m.UsageStorage().AppendUsage(ctx, &models.UsageRecord{ID: "u1", Units: 1}), "records are append-only")
}
