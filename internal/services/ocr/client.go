// Package ocr provides a client for an asynchronous document parsing API
// (LlamaParse-compatible upload, job status and markdown result endpoints).
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/yojana/internal/interfaces"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the base URL for the parsing API.
	DefaultBaseURL = "https://api.cloud.llamaindex.ai"

	// DefaultTimeout is the default HTTP timeout for a single request.
	DefaultTimeout = 60 * time.Second
)

// Client is a parsing API client.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

var _ interfaces.OCRService = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithBaseURL sets a custom base URL.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMinInterval spaces requests at least d apart.
func WithMinInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// NewClient creates a new parsing API client.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger:  arbor.NewLogger(),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents an error from the parsing API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ocr API error: %s (status %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

type jobResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type markdownResponse struct {
	Markdown    string `json:"markdown"`
	JobMetadata struct {
		CreditsUsed float64 `json:"credits_used"`
		JobPages    int     `json:"job_pages"`
	} `json:"job_metadata"`
}

// Submit uploads a document for parsing and returns the job ID.
func (c *Client) Submit(ctx context.Context, filename string, data []byte, languages []string) (string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("failed to write form file: %w", err)
	}
	for _, lang := range languages {
		if err := writer.WriteField("language", lang); err != nil {
			return "", fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close multipart writer: %w", err)
	}

	var job jobResponse
	if err := c.do(ctx, http.MethodPost, "/api/parsing/upload", body, writer.FormDataContentType(), &job); err != nil {
		return "", fmt.Errorf("failed to submit document: %w", err)
	}
	if job.ID == "" {
		return "", fmt.Errorf("parsing API returned no job ID")
	}

	c.logger.Debug().
		Str("job_id", job.ID).
		Str("filename", filename).
		Int("bytes", len(data)).
		Msg("OCR job submitted")

	return job.ID, nil
}

// Status polls the job state.
func (c *Client) Status(ctx context.Context, jobID string) (interfaces.OCRJobStatus, error) {
	var job jobResponse
	if err := c.do(ctx, http.MethodGet, "/api/parsing/job/"+jobID, nil, "", &job); err != nil {
		return "", fmt.Errorf("failed to get job status: %w", err)
	}
	return interfaces.OCRJobStatus(strings.ToUpper(job.Status)), nil
}

// Result fetches the markdown output for a finished job.
func (c *Client) Result(ctx context.Context, jobID string) (*interfaces.OCRResult, error) {
	var result markdownResponse
	if err := c.do(ctx, http.MethodGet, "/api/parsing/job/"+jobID+"/result/markdown", nil, "", &result); err != nil {
		return nil, fmt.Errorf("failed to get job result: %w", err)
	}

	return &interfaces.OCRResult{
		Markdown:    result.Markdown,
		PageCount:   result.JobMetadata.JobPages,
		CreditsUsed: result.JobMetadata.CreditsUsed,
	}, nil
}

// do performs one API request and decodes the JSON response into result.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", c.baseURL+path).
		Msg("OCR API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(msg)),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
