package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/interfaces"
)

// Reconciler removes documents left pending by an interrupted write
type Reconciler struct {
	documents interfaces.DocumentStorage
	chunks    interfaces.ChunkStorage
	schedule  string
	grace     time.Duration
	cron      *cron.Cron
	logger    arbor.ILogger
	now       func() time.Time

	mu      sync.Mutex
	running bool
}

// NewReconciler creates the sweep. It does not start until Start is called.
func NewReconciler(storage interfaces.StorageManager, config *common.ReconcileConfig, logger arbor.ILogger) (*Reconciler, error) {
	schedule := config.Schedule
	if schedule == "" {
		schedule = "@hourly"
	}
	if err := common.ValidateSchedule(schedule); err != nil {
		return nil, fmt.Errorf("invalid reconcile schedule: %w", err)
	}

	return &Reconciler{
		documents: storage.DocumentStorage(),
		chunks:    storage.ChunkStorage(),
		schedule:  schedule,
		grace:     common.ParseDurationOr(config.Grace, 15*time.Minute),
		cron:      cron.New(),
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Start registers the sweep with the cron scheduler
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, func() {
		if _, err := r.Sweep(context.Background()); err != nil {
			r.logger.Error().Err(err).Msg("Reconcile sweep failed")
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule reconcile sweep: %w", err)
	}

	r.cron.Start()
	r.logger.Info().
		Str("schedule", r.schedule).
		Str("grace", r.grace.String()).
		Msg("Reconcile sweep scheduled")
	return nil
}

// Stop halts the scheduler and waits for a running sweep to finish
func (r *Reconciler) Stop() {
	<-r.cron.Stop().Done()
}

// Sweep deletes documents still pending after the grace period, with their
// links. Complete documents, including zero-chunk ones, are never touched.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return 0, nil
	}
	r.running = true
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	cutoff := r.now().Add(-r.grace)
	orphans, err := r.documents.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, doc := range orphans {
		if err := r.chunks.DeleteLinksByDocument(ctx, doc.ID); err != nil {
			r.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to delete orphan links")
			continue
		}
		if err := r.documents.DeleteDocument(ctx, doc.ID); err != nil {
			r.logger.Warn().Err(err).Str("document_id", doc.ID).Msg("Failed to delete orphan document")
			continue
		}
		removed++
	}

	if removed > 0 {
		r.logger.Info().Int("removed", removed).Str("cutoff", cutoff.Format(time.RFC3339)).Msg("Removed orphaned pending documents")
	} else {
		r.logger.Debug().Msg("Reconcile sweep found no orphans")
	}

	return removed, nil
}
