package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/common"
)

type APIHandler struct {
	store  StoreCounter
	logger arbor.ILogger
}

func NewAPIHandler(store StoreCounter, logger arbor.ILogger) *APIHandler {
	return &APIHandler{
		store:  store,
		logger: logger,
	}
}

// VersionHandler returns version information
func (h *APIHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"full":    common.GetFullVersion(),
	})
}

// HealthHandler reports liveness and corpus size. A storage failure is 503.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	ctx := r.Context()
	documents, err := h.store.CountDocuments(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check failed to count documents")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	chunks, err := h.store.CountChunks(ctx)
	if err != nil {
		h.logger.Error().Err(err).Msg("Health check failed to count chunks")
		WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	cached, _ := h.store.CountEntries(ctx)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"version":       common.GetVersion(),
		"documents":     documents,
		"chunks":        chunks,
		"cache_entries": cached,
		"goroutines":    common.GetGoroutineCount(),
	})
}

// NotFoundHandler handles 404 errors with JSON response
func (h *APIHandler) NotFoundHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":   "Not Found",
		"path":    r.URL.Path,
		"message": "The requested endpoint does not exist",
	})
}
