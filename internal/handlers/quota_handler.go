package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"
)

type QuotaHandler struct {
	quota  QuotaReporter
	logger arbor.ILogger
}

func NewQuotaHandler(quota QuotaReporter, logger arbor.ILogger) *QuotaHandler {
	return &QuotaHandler{quota: quota, logger: logger}
}

// StatusHandler returns this month's usage for every metered service
func (h *QuotaHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"services": h.quota.Statuses(r.Context()),
	})
}
