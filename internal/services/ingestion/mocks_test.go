package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/ternarybob/yojana/internal/storage/badger"
)

func newTestStorage(t *testing.T) interfaces.StorageManager {
	t.Helper()
	manager, err := badger.NewManager(arbor.NewLogger(), &common.BadgerConfig{Path: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

type mockEmbedder struct {
	mu      sync.Mutex
	calls   int
	batches []int
	err     error
	// hold, when set, runs before each batch is embedded
	hold func()
}

func (m *mockEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return []float32{1, 0, 0}, nil
}

func (m *mockEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if m.hold != nil {
		m.hold()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.batches = append(m.batches, len(texts))
	if m.err != nil {
		return nil, m.err
	}
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1, 0}
	}
	return vectors, nil
}

func (m *mockEmbedder) MaxBatchSize() int {
	return 100
}

// mockQuota allows the first allow embedding checks; allow < 0 is unlimited
type mockQuota struct {
	mu       sync.Mutex
	allow    int
	checks   int
	recorded float64
}

func (m *mockQuota) Check(ctx context.Context, service string) models.QuotaStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks++
	allowed := m.allow < 0 || m.checks <= m.allow
	return models.QuotaStatus{Service: service, Allowed: allowed}
}

func (m *mockQuota) Record(ctx context.Context, service, usageType string, units float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recorded += units
}

func (m *mockQuota) Statuses(ctx context.Context) []models.QuotaStatus {
	return nil
}

type mockExtractor struct {
	extraction *models.Extraction
	err        error
	requests   []models.ExtractRequest
}

func (m *mockExtractor) Extract(ctx context.Context, req models.ExtractRequest) (*models.Extraction, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	e := *m.extraction
	return &e, nil
}

// mockChunker splits on the pipe character, one draft per piece
type mockChunker struct{}

func (mockChunker) Chunk(input models.ChunkInput) []models.ChunkDraft {
	var drafts []models.ChunkDraft
	start := 0
	for i := 0; i <= len(input.Text); i++ {
		if i == len(input.Text) || input.Text[i] == '|' {
			if i > start {
				drafts = append(drafts, models.ChunkDraft{
					Text:             input.Text[start:i],
					Section:          fmt.Sprintf("Section %d", len(drafts)+1),
					Page:             1,
					Language:         input.Language,
					ExtractionMethod: input.ExtractionMethod,
					Position:         len(drafts),
					TokenCount:       common.EstimateTokens(input.Text[start:i], common.DefaultCharsPerToken),
				})
			}
			start = i + 1
		}
	}
	return drafts
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.IngestionEvent
}

func (p *recordingPublisher) Publish(event models.IngestionEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) stages() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	stages := make([]string, len(p.events))
	for i, e := range p.events {
		stages[i] = e.Stage
	}
	return stages
}

// failingChunks fails every chunk commit
type failingChunks struct {
	interfaces.ChunkStorage
}

func (failingChunks) SaveChunks(ctx context.Context, chunks []*models.Chunk, links []*models.DocumentChunk) error {
	return errors.New("transaction too big")
}

func (failingChunks) CommitDocument(ctx context.Context, doc *models.Document, chunks []*models.Chunk, links []*models.DocumentChunk) (*models.ChunkCommit, error) {
	return nil, errors.New("transaction too big")
}

func drafts(texts ...string) []models.ChunkDraft {
	out := make([]models.ChunkDraft, len(texts))
	for i, text := range texts {
		out[i] = models.ChunkDraft{
			Text:             text,
			Section:          fmt.Sprintf("Section %d", i+1),
			Page:             1,
			Language:         "en",
			ExtractionMethod: models.ExtractionNative,
			Position:         i,
			TokenCount:       common.EstimateTokens(text, common.DefaultCharsPerToken),
		}
	}
	return out
}

func newDocument(title string) *models.Document {
	return &models.Document{
		ID:               common.NewDocumentID(),
		Title:            title,
		Type:             "scheme",
		ExtractionMethod: models.ExtractionNative,
		Language:         "en",
		Active:           true,
	}
}
