// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 11:04:37 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
	"github.com/ternarybob/yojana/internal/handlers"
	"github.com/ternarybob/yojana/internal/interfaces"
	"github.com/ternarybob/yojana/internal/services/budget"
	"github.com/ternarybob/yojana/internal/services/cache"
	"github.com/ternarybob/yojana/internal/services/chunking"
	"github.com/ternarybob/yojana/internal/services/events"
	"github.com/ternarybob/yojana/internal/services/extraction"
	"github.com/ternarybob/yojana/internal/services/ingestion"
	"github.com/ternarybob/yojana/internal/services/llm"
	"github.com/ternarybob/yojana/internal/services/ocr"
	"github.com/ternarybob/yojana/internal/services/pdf"
	"github.com/ternarybob/yojana/internal/services/pipeline"
	"github.com/ternarybob/yojana/internal/services/prompt"
	"github.com/ternarybob/yojana/internal/services/quota"
	"github.com/ternarybob/yojana/internal/services/ratelimit"
	"github.com/ternarybob/yojana/internal/services/retrieval"
	"github.com/ternarybob/yojana/internal/storage"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	// Event-driven services
	EventService *events.Service

	// Model providers
	Gemini    *llm.GeminiService
	Generator interfaces.GenerationService

	// Ingestion
	QuotaTracker     *quota.Tracker
	IngestionService *ingestion.Service
	Reconciler       *ingestion.Reconciler

	// Question answering
	Pipeline *pipeline.Service

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	QueryHandler    *handlers.QueryHandler
	DocumentHandler *handlers.DocumentHandler
	QuotaHandler    *handlers.QuotaHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	app.EventService = events.NewService(app.Logger)
	if err := app.EventService.Subscribe("logger", events.NewLoggerSubscriber(app.Logger)); err != nil {
		return nil, fmt.Errorf("failed to subscribe event logger: %w", err)
	}

	if err := app.initServices(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := app.initHandlers(); err != nil {
		app.StorageManager.Close()
		return nil, fmt.Errorf("failed to initialize handlers: %w", err)
	}

	if app.Reconciler != nil {
		if err := app.Reconciler.Start(); err != nil {
			app.StorageManager.Close()
			return nil, err
		}
	}

	logger.Info().
		Str("generation_model", app.Generator.Model()).
		Bool("ocr_enabled", cfg.OCR.Enabled).
		Bool("cache_enabled", cfg.Cache.Enabled).
		Bool("reconcile_enabled", cfg.Reconcile.Enabled).
		Msg("Application initialization complete")

	return app, nil
}

// initDatabase initializes the storage layer (Badger)
func (a *App) initDatabase() error {
	storageManager, err := storage.NewStorageManager(a.Logger, a.Config)
	if err != nil {
		return fmt.Errorf("failed to create storage manager: %w", err)
	}

	a.StorageManager = storageManager
	a.Logger.Debug().
		Str("storage", "badger").
		Str("path", a.Config.Storage.Badger.Path).
		Msg("Storage layer initialized")

	return nil
}

// initServices wires ingestion and the question pipeline
func (a *App) initServices() error {
	var err error

	// 1. Gemini always provides embeddings
	a.Gemini, err = llm.NewGeminiService(&a.Config.Gemini, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize embedding service: %w", err)
	}

	// 2. Generation may come from Gemini or Claude
	a.Generator, err = llm.NewGenerationService(a.Config, a.Gemini, a.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize generation service: %w", err)
	}

	// 3. Monthly quota tracking shared by ingestion and answering
	a.QuotaTracker = quota.NewTracker(a.StorageManager.UsageStorage(), &a.Config.Quota, a.Logger)

	// 4. Ingestion: extract -> chunk -> write
	ocrService, err := a.newOCRService()
	if err != nil {
		return err
	}

	extractor := extraction.NewExtractor(
		pdf.NewExtractor(a.Logger),
		ocrService,
		a.QuotaTracker,
		&a.Config.Ingestion,
		&a.Config.OCR,
		a.Logger,
	)

	chunker := chunking.NewChunker(a.Logger,
		chunking.WithTargetTokens(a.Config.Ingestion.TargetTokens),
		chunking.WithMinTokens(a.Config.Ingestion.MinTokens),
		chunking.WithCharsPerToken(a.Config.Budget.CharsPerToken),
		chunking.WithDefaultLanguage(a.Config.Ingestion.DefaultLanguage),
	)

	writer := ingestion.NewWriter(
		a.StorageManager.DocumentStorage(),
		a.StorageManager.ChunkStorage(),
		a.Gemini,
		a.QuotaTracker,
		a.Config.Ingestion.EmbedBatchSize,
		a.Logger,
	)

	a.IngestionService = ingestion.NewService(extractor, chunker, writer, a.StorageManager, a.EventService, a.Logger)

	if a.Config.Reconcile.Enabled {
		a.Reconciler, err = ingestion.NewReconciler(a.StorageManager, &a.Config.Reconcile, a.Logger)
		if err != nil {
			return err
		}
	}

	// 5. Question pipeline
	a.Pipeline = pipeline.NewService(pipeline.Components{
		Limiter:   ratelimit.NewLimiter(a.StorageManager.RateLimitStorage(), &a.Config.RateLimit, a.Logger),
		Cache:     cache.NewService(a.StorageManager.CacheStorage(), a.Gemini, &a.Config.Cache, a.Logger),
		Retriever: retrieval.NewRetriever(a.StorageManager.ChunkStorage(), a.Gemini, &a.Config.Retrieval, a.Logger),
		Gate:      retrieval.NewGate(&a.Config.Retrieval),
		Budget:    budget.NewValidator(a.Generator, &a.Config.Budget, a.Logger),
		Prompts:   prompt.NewBuilder(&a.Config.Fallback, a.Logger),
		Generator: a.Generator,
		Quota:     a.QuotaTracker,
	}, a.Config, a.Logger)

	a.Logger.Debug().Msg("Services initialized")
	return nil
}

// newOCRService returns nil when OCR is disabled, so scanned documents fail extraction
func (a *App) newOCRService() (interfaces.OCRService, error) {
	if !a.Config.OCR.Enabled {
		a.Logger.Info().Msg("OCR disabled, only native text extraction available")
		return nil, nil
	}

	apiKey, err := common.ResolveAPIKey("ocr_api_key", a.Config.OCR.APIKey)
	if err != nil {
		return nil, fmt.Errorf("OCR is enabled but no API key is configured: %w", err)
	}

	return ocr.NewClient(apiKey,
		ocr.WithBaseURL(a.Config.OCR.BaseURL),
		ocr.WithLogger(a.Logger),
		ocr.WithMinInterval(common.ParseDurationOr(a.Config.OCR.RateLimit, time.Second)),
	), nil
}

// initHandlers initializes all HTTP handlers
func (a *App) initHandlers() error {
	a.APIHandler = handlers.NewAPIHandler(storeCounter{a.StorageManager}, a.Logger)
	a.QueryHandler = handlers.NewQueryHandler(a.Pipeline, a.Config.Fallback.URL, a.Logger)
	a.DocumentHandler = handlers.NewDocumentHandler(a.IngestionService, a.Config.Ingestion.MaxUploadBytes, a.Logger)
	a.QuotaHandler = handlers.NewQuotaHandler(a.QuotaTracker, a.Logger)

	if a.Config.WebSocket.Enabled {
		a.WSHandler = handlers.NewWebSocketHandler(a.EventService, a.Logger, &a.Config.WebSocket)
		if err := a.WSHandler.SubscribeToIngestionEvents(); err != nil {
			return fmt.Errorf("failed to subscribe websocket to ingestion events: %w", err)
		}
	}

	a.Logger.Debug().Msg("Handlers initialized")
	return nil
}

// IngestManifest runs a manifest ingest and logs each entry's outcome
func (a *App) IngestManifest(ctx context.Context, path string) error {
	outcomes, err := a.IngestionService.IngestManifest(ctx, path)
	failed := 0
	for _, o := range outcomes {
		if o.Error != "" {
			failed++
			a.Logger.Warn().Str("path", o.Path).Str("error", o.Error).Msg("Manifest entry failed")
			continue
		}
		a.Logger.Info().
			Str("path", o.Path).
			Str("document_id", o.Result.DocumentID).
			Int("chunks", o.Result.ChunkCount).
			Msg("Manifest entry ingested")
	}

	a.Logger.Info().
		Int("entries", len(outcomes)).
		Int("failed", failed).
		Msg("Manifest ingest finished")

	return err
}

// Close closes all application resources
func (a *App) Close() error {
	if a.Reconciler != nil {
		a.Reconciler.Stop()
		a.Logger.Info().Msg("Reconcile sweep stopped")
	}

	if a.WSHandler != nil {
		a.WSHandler.Close()
	}

	// Let fire-and-forget cache writes finish before storage closes
	if a.Pipeline != nil {
		a.Pipeline.Wait()
	}

	if a.EventService != nil {
		if err := a.EventService.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close event service")
		}
	}

	if a.Gemini != nil {
		if err := a.Gemini.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close Gemini client")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
		a.Logger.Info().Msg("Storage closed")
	}

	return nil
}

// storeCounter adapts the storage manager to handlers.StoreCounter
type storeCounter struct {
	storage interfaces.StorageManager
}

func (s storeCounter) CountDocuments(ctx context.Context) (int, error) {
	return s.storage.DocumentStorage().CountDocuments(ctx)
}

func (s storeCounter) CountChunks(ctx context.Context) (int, error) {
	return s.storage.ChunkStorage().CountChunks(ctx)
}

func (s storeCounter) CountEntries(ctx context.Context) (int, error) {
	return s.storage.CacheStorage().CountEntries(ctx)
}
