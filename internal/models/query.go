package models

// QueryRequest is a citizen question
type QueryRequest struct {
	Query    string `json:"query" validate:"required"`
	Language string `json:"language,omitempty" validate:"omitempty,oneof=en kn hi ta te"`
}

// AnswerData is the success payload of a query
type AnswerData struct {
	Answer     string     `json:"answer"`
	Citations  []Citation `json:"citations"`
	Confidence Confidence `json:"confidence"`
	Cached     bool       `json:"cached"`
	TokensUsed int        `json:"tokens_used"`
}

// ErrorInfo is the user-safe failure payload of a query
type ErrorInfo struct {
	Type         ErrorType `json:"type"`
	Message      string    `json:"message"`
	FallbackURL  string    `json:"fallback_url"`
	RetryAfterMs *int64    `json:"retry_after_ms,omitempty"`
}

// QueryResponse is the caller-facing result contract
type QueryResponse struct {
	Success bool        `json:"success"`
	Data    *AnswerData `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// SchemeSearchRequest asks for schemes relevant to a description
type SchemeSearchRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=50"`
}

// SchemeSearchResponse mirrors QueryResponse for scheme recommendation
type SchemeSearchResponse struct {
	Success bool          `json:"success"`
	Schemes []SchemeMatch `json:"schemes,omitempty"`
	Error   *ErrorInfo    `json:"error,omitempty"`
}

// Generation is one completion from the generative language service
type Generation struct {
	Text         string
	PromptTokens int
	OutputTokens int
}

// TotalTokens returns prompt plus output tokens
func (g *Generation) TotalTokens() int {
	return g.PromptTokens + g.OutputTokens
}
