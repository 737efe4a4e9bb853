package cache

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

type mockCacheStorage struct {
	mu         sync.Mutex
	match      *models.CacheMatch
	nearestErr error
	saved      []*models.CacheEntry
	hits       []string
	languages  []string
}

var _ interfaces.CacheStorage = (*mockCacheStorage)(nil)

func (m *mockCacheStorage) Nearest(ctx context.Context, vector []float32, language string) (*models.CacheMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.languages = append(m.languages, language)
	return m.match, m.nearestErr
}

func (m *mockCacheStorage) SaveEntry(ctx context.Context, entry *models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, entry)
	return nil
}

func (m *mockCacheStorage) IncrementHit(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits = append(m.hits, id)
	return nil
}

func (m *mockCacheStorage) CountEntries(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saved), nil
}

type mockEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

var _ interfaces.EmbeddingService = (*mockEmbedder)(nil)

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return nil, errors.New("not used")
}

func (m *mockEmbedder) MaxBatchSize() int { return 100 }

func newTestService(storage *mockCacheStorage, embedder *mockEmbedder, enabled bool) *Service {
	return NewService(storage, embedder, &common.CacheConfig{
		Enabled:             enabled,
		SimilarityThreshold: 0.94,
		WriteTimeout:        "1s",
	}, arbor.NewLogger())
}

func TestLookup_Hit(t *testing.T) {
	storage := &mockCacheStorage{match: &models.CacheMatch{
		Entry:      &models.CacheEntry{ID: "entry-1", Response: []byte(`{"answer":"cached"}`)},
		Similarity: 0.97,
	}}
	s := newTestService(storage, &mockEmbedder{}, true)

	result, err := s.Lookup(context.Background(), "Gruha Lakshmi amount", "en")
	require.NoError(t, err)
	s.Wait()

	assert.True(t, result.Hit)
	assert.Equal(t, `{"answer":"cached"}`, string(result.Response))
	assert.InDelta(t, 0.97, result.Similarity, 1e-9)
	assert.Equal(t, []string{"entry-1"}, storage.hits)
	assert.Equal(t, []string{"en"}, storage.languages)
}

func TestLookup_ThresholdIsInclusive(t *testing.T) {
	storage := &mockCacheStorage{match: &models.CacheMatch{
		Entry:      &models.CacheEntry{ID: "entry-1"},
		Similarity: 0.94,
	}}
	s := newTestService(storage, &mockEmbedder{}, true)

	result, err := s.Lookup(context.Background(), "query", "en")
	require.NoError(t, err)
	s.Wait()
	assert.True(t, result.Hit)
}

func TestLookup_MissKeepsEmbedding(t *testing.T) {
	storage := &mockCacheStorage{match: &models.CacheMatch{
		Entry:      &models.CacheEntry{ID: "entry-1"},
		Similarity: 0.90,
	}}
	s := newTestService(storage, &mockEmbedder{}, true)

	result, err := s.Lookup(context.Background(), "Anna Bhagya rice quantity", "kn")
	require.NoError(t, err)
	s.Wait()

	assert.False(t, result.Hit)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, result.Embedding)
	assert.Empty(t, storage.hits)
}

func TestLookup_StorageErrorIsMiss(t *testing.T) {
	storage := &mockCacheStorage{nearestErr: errors.New("badger closed")}
	s := newTestService(storage, &mockEmbedder{}, true)

	result, err := s.Lookup(context.Background(), "query", "en")
	require.NoError(t, err)
	assert.False(t, result.Hit)
	assert.NotEmpty(t, result.Embedding)
}

func TestLookup_EmbeddingError(t *testing.T) {
	s := newTestService(&mockCacheStorage{}, &mockEmbedder{err: errors.New("429 RESOURCE_EXHAUSTED")}, true)

	_, err := s.Lookup(context.Background(), "query", "en")
	assert.Error(t, err)
}

func TestDisabledCache(t *testing.T) {
	storage := &mockCacheStorage{}
	embedder := &mockEmbedder{}
	s := newTestService(storage, embedder, false)

	result, err := s.Lookup(context.Background(), "query", "en")
	require.NoError(t, err)
	assert.False(t, result.Hit)
	assert.Nil(t, result.Embedding)

	s.Store(context.Background(), "query", "en", nil, []byte("{}"), 10)
	s.Wait()

	assert.Equal(t, 0, embedder.calls)
	assert.Empty(t, storage.saved)
}

func TestStore_FireAndForget(t *testing.T) {
	storage := &mockCacheStorage{}
	embedder := &mockEmbedder{}
	s := newTestService(storage, embedder, true)

	ctx, cancel := context.WithCancel(context.Background())
	s.Store(ctx, "Shakti free bus travel", "en", []float32{1, 0}, []byte(`{"answer":"yes"}`), 420)
	cancel() // the request ending must not abort the write
	s.Wait()

	require.Len(t, storage.saved, 1)
	entry := storage.saved[0]
	assert.Equal(t, "Shakti free bus travel", entry.Query)
	assert.Equal(t, "en", entry.Language)
	assert.Equal(t, []float32{1, 0}, entry.Embedding)
	assert.Equal(t, 420, entry.TokensUsed)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 0, embedder.calls)
}

func TestStore_EmbedsWhenVectorMissing(t *testing.T) {
	storage := &mockCacheStorage{}
	embedder := &mockEmbedder{}
	s := newTestService(storage, embedder, true)

	s.Store(context.Background(), "query", "en", nil, []byte("{}"), 1)
	s.Wait()

	assert.Equal(t, 1, embedder.calls)
	require.Len(t, storage.saved, 1)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, storage.saved[0].Embedding)
}
