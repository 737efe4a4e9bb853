// -----------------------------------------------------------------------
// Last Modified: Thursday, 15th October 2026 4:12:37 pm
// Modified By: Bob McAllan
// -----------------------------------------------------------------------

package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/models"
)

const multipartMemory = 8 << 20

type DocumentHandler struct {
	ingester       DocumentIngester
	maxUploadBytes int64
	logger         arbor.ILogger
}

func NewDocumentHandler(ingester DocumentIngester, maxUploadBytes int64, logger arbor.ILogger) *DocumentHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = 50 << 20
	}
	return &DocumentHandler{
		ingester:       ingester,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// ListHandler returns a page of documents. ?active=true hides archived ones.
func (h *DocumentHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	page, pageSize := GetPaginationParams(r)
	query := r.URL.Query()
	filter := models.DocumentFilter{
		ActiveOnly: query.Get("active") == "true",
		Type:       query.Get("type"),
		Limit:      pageSize,
		Offset:     page * pageSize,
	}

	docs, err := h.ingester.ListDocuments(r.Context(), filter)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list documents")
		WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": docs,
		"page":      page,
		"page_size": pageSize,
	})
}

// UploadHandler ingests a multipart upload. The file goes in the "file" part;
// title, type, source_url, reference_number, reference_date (YYYY-MM-DD) and
// language_hints (comma separated) are optional form fields.
func (h *DocumentHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, http.StatusRequestEntityTooLarge, "Upload exceeds the maximum size")
			return
		}
		WriteError(w, http.StatusBadRequest, "Expected a multipart form upload")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Missing file part")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "Failed to read upload")
		return
	}

	req := models.IngestRequest{
		Filename:        header.Filename,
		ContentType:     header.Header.Get("Content-Type"),
		Data:            data,
		Title:           r.FormValue("title"),
		Type:            r.FormValue("type"),
		SourceURL:       r.FormValue("source_url"),
		ReferenceNumber: r.FormValue("reference_number"),
	}
	if hints := r.FormValue("language_hints"); hints != "" {
		for _, hint := range strings.Split(hints, ",") {
			if hint = strings.TrimSpace(hint); hint != "" {
				req.LanguageHints = append(req.LanguageHints, hint)
			}
		}
	}
	if date := r.FormValue("reference_date"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "reference_date must be YYYY-MM-DD")
			return
		}
		req.ReferenceDate = &parsed
	}

	result, err := h.ingester.Ingest(r.Context(), req)
	if err != nil {
		h.writeIngestError(w, result, err)
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"result":  result,
	})
}

func (h *DocumentHandler) writeIngestError(w http.ResponseWriter, result *models.IngestionResult, err error) {
	var partial *models.PartialIngestionError
	switch {
	case errors.As(err, &partial) && result != nil:
		WriteJSON(w, http.StatusAccepted, map[string]interface{}{
			"success": true,
			"partial": true,
			"result":  result,
			"error":   err.Error(),
		})
	case errors.Is(err, models.ErrQuotaExhausted):
		WriteError(w, http.StatusTooManyRequests, "Monthly embedding quota exhausted")
	case errors.Is(err, models.ErrExtractionFailed):
		WriteError(w, http.StatusUnprocessableEntity, "No text could be extracted from the document")
	case errors.Is(err, models.ErrInvalidRequest):
		WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error().Err(err).Msg("Document ingestion failed")
		WriteError(w, http.StatusInternalServerError, "Document ingestion failed")
	}
}

// DocumentRoutes handles /api/documents/{id}, /{id}/chunks, /{id}/archive and /{id}/restore
func (h *DocumentHandler) DocumentRoutes(w http.ResponseWriter, r *http.Request) {
	segments := PathSegments(r.URL.Path, "/api/documents/")
	if len(segments) == 0 || len(segments) > 2 {
		WriteError(w, http.StatusNotFound, "Not found")
		return
	}

	id := segments[0]
	action := ""
	if len(segments) == 2 {
		action = segments[1]
	}

	switch action {
	case "":
		h.getDocument(w, r, id)
	case "chunks":
		h.getChunks(w, r, id)
	case "archive", "restore":
		h.setActive(w, r, id, action == "restore")
	default:
		WriteError(w, http.StatusNotFound, "Not found")
	}
}

func (h *DocumentHandler) getDocument(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	doc, err := h.ingester.GetDocument(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	WriteJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) getChunks(w http.ResponseWriter, r *http.Request, id string) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	chunks, err := h.ingester.DocumentChunks(r.Context(), id)
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}
	if chunks == nil {
		chunks = []*models.Chunk{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"chunks":      chunks,
	})
}

func (h *DocumentHandler) setActive(w http.ResponseWriter, r *http.Request, id string, active bool) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var err error
	if active {
		err = h.ingester.Restore(r.Context(), id)
	} else {
		err = h.ingester.Archive(r.Context(), id)
	}
	if err != nil {
		h.writeLookupError(w, id, err)
		return
	}

	if active {
		WriteSuccess(w, "Document restored")
	} else {
		WriteSuccess(w, "Document archived")
	}
}

func (h *DocumentHandler) writeLookupError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, models.ErrNotFound) {
		WriteError(w, http.StatusNotFound, "Document not found")
		return
	}
	h.logger.Error().Err(err).Str("document_id", id).Msg("Document request failed")
	WriteError(w, http.StatusInternalServerError, "Document request failed")
}
