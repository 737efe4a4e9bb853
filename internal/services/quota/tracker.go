package quota

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/models"
)

// Tracker implements interfaces.QuotaService over append-only usage records
type Tracker struct {
	storage      interfaces.UsageStorage
	limits       map[string]float64
	warningRatio float64
	logger       arbor.ILogger
	now          func() time.Time
}

var _ interfaces.QuotaService = (*Tracker)(nil)

var meteredServices = []string{models.ServiceEmbedding, models.ServiceOCR, models.ServiceGeneration}

// NewTracker creates a quota tracker with the configured monthly limits
func NewTracker(storage interfaces.UsageStorage, config *common.QuotaConfig, logger arbor.ILogger) *Tracker {
	ratio := config.WarningRatio
	if ratio <= 0 {
		ratio = 0.8
	}

	return &Tracker{
		storage: storage,
		limits: map[string]float64{
			models.ServiceEmbedding:  config.EmbeddingCalls,
			models.ServiceOCR:        config.OCRCredits,
			models.ServiceGeneration: config.GenerationTokens,
		},
		warningRatio: ratio,
		logger:       logger,
		now:          time.Now,
	}
}

// Check sums this month's usage for service. A read failure allows the call.
func (t *Tracker) Check(ctx context.Context, service string) models.QuotaStatus {
	month := models.MonthBucket(t.now())
	limit := t.limits[service]

	status := models.QuotaStatus{
		Service: service,
		Month:   month,
		Limit:   limit,
		Allowed: true,
	}

	used, err := t.storage.SumUsage(ctx, service, month)
	if err != nil {
		t.logger.Warn().Err(err).Str("service", service).Msg("Quota read failed, allowing request")
		return status
	}
	status.Used = used

	if limit <= 0 {
		return status
	}

	status.Allowed = used < limit
	status.Warning = used/limit > t.warningRatio

	if !status.Allowed {
		t.logger.Warn().
			Str("service", service).
			Float64("used", used).
			Float64("limit", limit).
			Msg("Monthly quota exhausted")
	} else if status.Warning {
		t.logger.Warn().
			Str("service", service).
			Float64("used", used).
			Float64("limit", limit).
			Msg("Monthly quota above warning threshold")
	}

	return status
}

// Record appends one usage row. Failures are logged and swallowed.
func (t *Tracker) Record(ctx context.Context, service, usageType string, units float64) {
	now := t.now()
	record := &models.UsageRecord{
		ID:        common.NewID(),
		Service:   service,
		UsageType: usageType,
		Units:     units,
		Month:     models.MonthBucket(now),
		CreatedAt: now,
	}

	if err := t.storage.AppendUsage(ctx, record); err != nil {
		t.logger.Warn().
			Err(err).
			Str("service", service).
			Float64("units", units).
			Msg("Failed to record usage")
	}
}

func (t *Tracker) Statuses(ctx context.Context) []models.QuotaStatus {
	statuses := make([]models.QuotaStatus, 0, len(meteredServices))
	for _, service := range meteredServices {
		statuses = append(statuses, t.Check(ctx, service))
	}
	return statuses
}
