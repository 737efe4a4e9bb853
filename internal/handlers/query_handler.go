package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/models"
)

// QueryHandler serves question answering and scheme search
type QueryHandler struct {
	pipeline    QueryAnswerer
	fallbackURL string
	validate    *validator.Validate
	logger      arbor.ILogger
}

func NewQueryHandler(pipeline QueryAnswerer, fallbackURL string, logger arbor.ILogger) *QueryHandler {
	return &QueryHandler{
		pipeline:    pipeline,
		fallbackURL: fallbackURL,
		validate:    newJSONValidator(),
		logger:      logger,
	}
}

// QueryHandler answers POST /api/query. The body is always the result
// contract; the status code mirrors the error type.
func (h *QueryHandler) QueryHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.QueryRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.writeInvalid(w, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeInvalid(w, describeValidation(err))
		return
	}

	resp := h.pipeline.Query(r.Context(), req)
	if !resp.Success && resp.Error != nil && resp.Error.RetryAfterMs != nil {
		seconds := (*resp.Error.RetryAfterMs + 999) / 1000
		if seconds > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(seconds, 10))
		}
	}
	WriteJSON(w, statusFor(resp.Success, resp.Error), resp)
}

// SchemesHandler answers POST /api/schemes/search
func (h *QueryHandler) SchemesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req models.SchemeSearchRequest
	if err := DecodeJSON(r, &req); err != nil {
		h.writeInvalid(w, err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeInvalid(w, describeValidation(err))
		return
	}

	resp := h.pipeline.SearchSchemes(r.Context(), req)
	WriteJSON(w, statusFor(resp.Success, resp.Error), resp)
}

// newJSONValidator reports fields by their JSON names
func newJSONValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// describeValidation names the first failing field and its rule
func describeValidation(err error) string {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return "invalid request"
	}

	fe := fieldErrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of %s", fe.Field(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "min", "max":
		return fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// writeInvalid reports a malformed request in the query result shape
func (h *QueryHandler) writeInvalid(w http.ResponseWriter, message string) {
	WriteJSON(w, http.StatusBadRequest, &models.QueryResponse{
		Error: &models.ErrorInfo{
			Type:        models.ErrorQueryBlocked,
			Message:     message,
			FallbackURL: h.fallbackURL,
		},
	})
}

func statusFor(success bool, info *models.ErrorInfo) int {
	if success || info == nil {
		return http.StatusOK
	}
	switch info.Type {
	case models.ErrorQueryBlocked:
		return http.StatusBadRequest
	case models.ErrorRateLimit, models.ErrorDailyLimit:
		return http.StatusTooManyRequests
	case models.ErrorTokenLimit:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}
