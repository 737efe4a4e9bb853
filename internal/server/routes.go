// -----------------------------------------------------------------------
// Last Modified: Friday, 16th October 2026 10:21:48 am
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route (ingestion progress)
	if s.app.WSHandler != nil {
		mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)
	}

	// API routes - Questions
	mux.HandleFunc("/api/query", s.app.QueryHandler.QueryHandler)           // POST
	mux.HandleFunc("/api/schemes/search", s.app.QueryHandler.SchemesHandler) // POST

	// API routes - Documents
	mux.HandleFunc("/api/documents", s.handleDocumentsRoute)                 // GET (list), POST (upload)
	mux.HandleFunc("/api/documents/", s.app.DocumentHandler.DocumentRoutes) // GET /{id}, /{id}/chunks, POST /{id}/archive|restore

	// API routes - System
	mux.HandleFunc("/api/quota", s.app.QuotaHandler.StatusHandler)
	mux.HandleFunc("/api/version", s.app.APIHandler.VersionHandler)
	mux.HandleFunc("/api/health", s.app.APIHandler.HealthHandler)

	// 404 handler for unmatched API routes
	mux.HandleFunc("/", s.app.APIHandler.NotFoundHandler)

	return mux
}

// handleDocumentsRoute routes /api/documents requests (list and upload)
func (s *Server) handleDocumentsRoute(w http.ResponseWriter, r *http.Request) {
	RouteResourceCollection(w, r,
		s.app.DocumentHandler.ListHandler,
		s.app.DocumentHandler.UploadHandler,
	)
}
