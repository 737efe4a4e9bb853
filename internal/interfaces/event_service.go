package interfaces

import "github.com/ternarybob/yojana/internal/models"

// IngestionEventPublisher fans ingestion progress out to listeners.
// Publish must not block the ingestion path.
type IngestionEventPublisher interface {
	Publish(event models.IngestionEvent)
}

// IngestionEventHandler receives published ingestion events
type IngestionEventHandler func(event models.IngestionEvent) error

// EventService is a publisher that handlers can subscribe to
type EventService interface {
	IngestionEventPublisher
	Subscribe(name string, handler IngestionEventHandler) error
	Unsubscribe(name string) error
	Close() error
}
