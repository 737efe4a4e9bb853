package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/yojana/internal/interfaces"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/parsing/upload", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		defer file.Close()
		assert.Equal(t, "scan.pdf", header.Filename)
		assert.Equal(t, []string{"en", "kn"}, r.MultipartForm.Value["language"])

		json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "PENDING"})
	})
	mux.HandleFunc("/api/parsing/job/job-1", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "job-1", "status": "success"})
	})
	mux.HandleFunc("/api/parsing/job/job-1/result/markdown", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"markdown": "# ಗೃಹ ಲಕ್ಷ್ಮಿ\n\nText",
			"job_metadata": map[string]interface{}{
				"credits_used": 45.0,
				"job_pages":    3,
			},
		})
	})
	mux.HandleFunc("/api/parsing/job/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "job not found", http.StatusNotFound)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_SubmitStatusResult(t *testing.T) {
	server := newTestServer(t)
	client := NewClient("test-key", WithBaseURL(server.URL), WithMinInterval(1))
	ctx := context.Background()

	jobID, err := client.Submit(ctx, "scan.pdf", []byte("%PDF-1.4"), []string{"en", "kn"})
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)

	status, err := client.Status(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, interfaces.OCRJobSuccess, status)

	result, err := client.Result(ctx, jobID)
	require.NoError(t, err)
	assert.Contains(t, result.Markdown, "ಗೃಹ ಲಕ್ಷ್ಮಿ")
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 45.0, result.CreditsUsed)
}

func TestClient_APIError(t *testing.T) {
	server := newTestServer(t)
	client := NewClient("test-key", WithBaseURL(server.URL), WithMinInterval(1))

	_, err := client.Status(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "job not found", apiErr.Message)
}
