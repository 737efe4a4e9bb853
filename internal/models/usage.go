package models

import "time"

// External services whose usage is metered against a monthly quota
const (
	ServiceEmbedding  = "embedding"
	ServiceOCR        = "ocr"
	ServiceGeneration = "generation"
)

// Usage types recorded against a service
const (
	UsageEmbedCall  = "embed_call"
	UsageOCRCredits = "ocr_credits"
	UsageTokens     = "tokens"
)

// UsageRecord is an append-only usage row; monthly consumption is the sum of Units
type UsageRecord struct {
	ID        string    `json:"id"`
	Service   string    `json:"service" badgerhold:"index"`
	UsageType string    `json:"usage_type"`
	Units     float64   `json:"units"`
	Month     string    `json:"month" badgerhold:"index"` // YYYY-MM
	CreatedAt time.Time `json:"created_at"`
}

// QuotaStatus reports monthly consumption for one service
type QuotaStatus struct {
	Service string  `json:"service"`
	Month   string  `json:"month"`
	Used    float64 `json:"used"`
	Limit   float64 `json:"limit"` // 0 = unlimited
	Allowed bool    `json:"allowed"`
	Warning bool    `json:"warning"`
}

// MonthBucket formats the calendar-month bucket for t
func MonthBucket(t time.Time) string {
	return t.Format("2006-01")
}
