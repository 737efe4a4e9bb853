package events

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// NewLoggerSubscriber creates an event handler that logs every ingestion event
func NewLoggerSubscriber(logger arbor.ILogger) interfaces.IngestionEventHandler {
	return func(event models.IngestionEvent) error {
		logEvent := logger.Debug()
		if event.Stage == "failed" {
			logEvent = logger.Warn()
		}

		logEvent = logEvent.
			Str("stage", event.Stage).
			Str("filename", event.Filename)

		if id, ok := event.Details["document_id"].(string); ok && id != "" {
			logEvent = logEvent.Str("document_id", id)
		}
		if msg, ok := event.Details["error"].(string); ok && msg != "" {
			logEvent = logEvent.Str("error", msg)
		}

		logEvent.Msg("Ingestion event")
		return nil
	}
}
