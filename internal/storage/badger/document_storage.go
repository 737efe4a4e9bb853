package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// DocumentStorage implements the DocumentStorage interface for Badger
type DocumentStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewDocumentStorage creates a new DocumentStorage instance
func NewDocumentStorage(db *BadgerDB, logger arbor.ILogger) interfaces.DocumentStorage {
	return &DocumentStorage{
		db:     db,
		logger: logger,
	}
}

func (s *DocumentStorage) SaveDocument(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now

	if err := s.db.Store().Upsert(doc.ID, doc); err != nil {
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	if err := s.db.Store().Get(id, &doc); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStorage) GetDocuments(ctx context.Context, ids []string) (map[string]*models.Document, error) {
	result := make(map[string]*models.Document, len(ids))
	for _, id := range ids {
		if _, seen := result[id]; seen {
			continue
		}
		doc, err := s.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return nil, err
		}
		result[id] = doc
	}
	return result, nil
}

func (s *DocumentStorage) ListDocuments(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, error) {
	query := badgerhold.Where("ID").Ne("")
	if filter.ActiveOnly {
		query = badgerhold.Where("Active").Eq(true)
	}
	if filter.Type != "" {
		query = query.And("Type").Eq(filter.Type)
	}
	query = query.SortBy("CreatedAt").Reverse()
	if filter.Offset > 0 {
		query = query.Skip(filter.Offset)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var docs []models.Document
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}

func (s *DocumentStorage) CountDocuments(ctx context.Context) (int, error) {
	count, err := s.db.Store().Count(&models.Document{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(count), nil
}

func (s *DocumentStorage) SetActive(ctx context.Context, id string, active bool) error {
	doc, err := s.GetDocument(ctx, id)
	if err != nil {
		return err
	}
	if doc.Active == active {
		return nil
	}
	doc.Active = active
	return s.SaveDocument(ctx, doc)
}

func (s *DocumentStorage) DeleteDocument(ctx context.Context, id string) error {
	if err := s.db.Store().Delete(id, &models.Document{}); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

func (s *DocumentStorage) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*models.Document, error) {
	var docs []models.Document
	query := badgerhold.Where("Status").Eq(models.DocumentStatusPending).And("CreatedAt").Lt(cutoff)
	if err := s.db.Store().Find(&docs, query); err != nil {
		return nil, fmt.Errorf("failed to list pending documents: %w", err)
	}

	result := make([]*models.Document, len(docs))
	for i := range docs {
		result[i] = &docs[i]
	}
	return result, nil
}
