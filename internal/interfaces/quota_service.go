package interfaces

import (
	"context"

	"github.com/ternarybob/yojana/internal/models"
)

// QuotaService meters monthly consumption of external services
type QuotaService interface {
	// Check reports whether another unit may be consumed. It fails open.
	Check(ctx context.Context, service string) models.QuotaStatus

	// Record appends usage; failures are logged, never returned
	Record(ctx context.Context, service, usageType string, units float64)

	// Statuses reports every metered service for the current month
	Statuses(ctx context.Context) []models.QuotaStatus
}
