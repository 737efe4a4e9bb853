package handlers

import (
	"context"

	"github.com/ternarybob/yojana/internal/models"
)

type mockPipeline struct {
	queryFunc  func(ctx context.Context, req models.QueryRequest) *models.QueryResponse
	searchFunc func(ctx context.Context, req models.SchemeSearchRequest) *models.SchemeSearchResponse
	queries    []models.QueryRequest
}

func (m *mockPipeline) Query(ctx context.Context, req models.QueryRequest) *models.QueryResponse {
	m.queries = append(m.queries, req)
	if m.queryFunc != nil {
		return m.queryFunc(ctx, req)
	}
	return &models.QueryResponse{Success: true, Data: &models.AnswerData{Answer: "ok", Citations: []models.Citation{}}}
}

func (m *mockPipeline) SearchSchemes(ctx context.Context, req models.SchemeSearchRequest) *models.SchemeSearchResponse {
	if m.searchFunc != nil {
		return m.searchFunc(ctx, req)
	}
	return &models.SchemeSearchResponse{Success: true, Schemes: []models.SchemeMatch{}}
}

type mockIngester struct {
	ingestFunc func(ctx context.Context, req models.IngestRequest) (*models.IngestionResult, error)
	docs       map[string]*models.Document
	ingested   []models.IngestRequest
	lastFilter models.DocumentFilter
}

func newMockIngester() *mockIngester {
	return &mockIngester{docs: map[string]*models.Document{
		"doc_1": {ID: "doc_1", Title: "Gruha Lakshmi Scheme Guidelines", Active: true},
	}}
}

func (m *mockIngester) Ingest(ctx context.Context, req models.IngestRequest) (*models.IngestionResult, error) {
	m.ingested = append(m.ingested, req)
	if m.ingestFunc != nil {
		return m.ingestFunc(ctx, req)
	}
	return &models.IngestionResult{DocumentID: "doc_new", ChunkCount: 3}, nil
}

func (m *mockIngester) Archive(ctx context.Context, id string) error {
	doc, ok := m.docs[id]
	if !ok {
		return models.ErrNotFound
	}
	doc.Active = false
	return nil
}

func (m *mockIngester) Restore(ctx context.Context, id string) error {
	doc, ok := m.docs[id]
	if !ok {
		return models.ErrNotFound
	}
	doc.Active = true
	return nil
}

func (m *mockIngester) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := m.docs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return doc, nil
}

func (m *mockIngester) ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, error) {
	m.lastFilter = filter
	out := []*models.Document{}
	for _, d := range m.docs {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockIngester) DocumentChunks(ctx context.Context, id string) ([]*models.Chunk, error) {
	if _, ok := m.docs[id]; !ok {
		return nil, models.ErrNotFound
	}
	return []*models.Chunk{{ID: "chk_1", DocumentID: id, Text: "₹2,000 per month"}}, nil
}
