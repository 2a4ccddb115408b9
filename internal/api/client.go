package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client talks to the dashboard backend REST API
type Client struct {
	baseURL string
	http    *resty.Client
}

// NewClient creates a new dashboard API client authenticated with a bearer token
func NewClient(baseURL, token string) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	// Configure resty client
	client.http = resty.New().
		SetAuthToken(token).
		SetTimeout(300 * time.Second). // Document analysis can take minutes per file
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Only GETs are retried. Analyze submissions must stay
			// at-most-once per file; their recovery is handled by the
			// session delivery confirmation instead.
			if r == nil || r.Request == nil || r.Request.Method != resty.MethodGet {
				return false
			}
			return r.StatusCode() == 429 || (r.StatusCode() >= 500 && r.StatusCode() <= 504)
		})

	return client
}

// Get performs a GET request to the backend API
func (c *Client) Get(endpoint string, params map[string]string) (*resty.Response, error) {
	url := c.buildURL(endpoint)
	req := c.http.R()

	if params != nil {
		req.SetQueryParams(params)
	}

	return req.Get(url)
}

// Post performs a POST request to the backend API
func (c *Client) Post(endpoint string, payload interface{}) (*resty.Response, error) {
	url := c.buildURL(endpoint)
	return c.http.R().
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(url)
}

// Delete performs a DELETE request to the backend API
func (c *Client) Delete(endpoint string, params map[string]string) (*resty.Response, error) {
	url := c.buildURL(endpoint)
	req := c.http.R()

	if params != nil {
		req.SetQueryParams(params)
	}

	return req.Delete(url)
}

// StartSession opens an aggregation session for an import job.
// Not idempotent; call once per job.
func (c *Client) StartSession(req StartSessionRequest) (*StartSessionResponse, error) {
	resp, err := c.Post("api/session/start", req)
	if err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("session start failed: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var result StartSessionResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse session start response: %w", err)
	}

	if result.SessionID == "" {
		return nil, fmt.Errorf("session start returned no session id")
	}

	return &result, nil
}

// CheckClient asks the backend whether a client with the given name exists
func (c *Client) CheckClient(name string) (*CheckClientResponse, error) {
	resp, err := c.Get("api/check-client", map[string]string{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to check client: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("client check failed: HTTP %d", resp.StatusCode())
	}

	var result CheckClientResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse client check response: %w", err)
	}

	return &result, nil
}

// AnalyzeFile submits one file into an aggregation session. At-most-once per file.
func (c *Client) AnalyzeFile(ctx context.Context, sessionID, filename string, data []byte, forceClientID string) (*AnalyzeResponse, error) {
	endpoint := fmt.Sprintf("api/session/%s/analyze", sessionID)
	return c.analyzeMultipart(ctx, endpoint, filename, data, forceClientID)
}

// AnalyzeSingle submits one file through the non-aggregated fallback endpoint,
// which analyzes and persists immediately
func (c *Client) AnalyzeSingle(ctx context.Context, filename string, data []byte, forceClientID string) (*AnalyzeResponse, error) {
	return c.analyzeMultipart(ctx, "api/analyze-single", filename, data, forceClientID)
}

// analyzeMultipart posts a multipart file body with the job's context attached,
// so an in-flight upload aborts when the job is cancelled
func (c *Client) analyzeMultipart(ctx context.Context, endpoint, filename string, data []byte, forceClientID string) (*AnalyzeResponse, error) {
	req := c.http.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(data))

	if forceClientID != "" {
		req.SetFormData(map[string]string{"force_client_id": forceClientID})
	}

	resp, err := req.Post(c.buildURL(endpoint))
	if err != nil {
		return nil, err
	}

	var result AnalyzeResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		if !resp.IsSuccess() {
			return nil, fmt.Errorf("analyze failed: HTTP %d: %s", resp.StatusCode(), resp.String())
		}
		return nil, fmt.Errorf("failed to parse analyze response: %w", err)
	}

	// A non-2xx with a parseable body carries the server's per-file verdict
	// (duplicate, invalid file, extraction failure) and is not a transport error.
	if !resp.IsSuccess() && result.Error == "" {
		return nil, fmt.Errorf("analyze failed: HTTP %d", resp.StatusCode())
	}

	return &result, nil
}

// SessionStatus fetches the server's view of a session. Idempotent.
func (c *Client) SessionStatus(sessionID string) (*SessionStatusResponse, error) {
	resp, err := c.Get(fmt.Sprintf("api/session/%s/status", sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session status: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("session status failed: HTTP %d", resp.StatusCode())
	}

	var result SessionStatusResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse session status: %w", err)
	}

	return &result, nil
}

// FinishSession commits the accumulated session data. Call exactly once.
func (c *Client) FinishSession(sessionID string) (*FinishSessionResponse, error) {
	resp, err := c.Post(fmt.Sprintf("api/session/%s/finish", sessionID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to finish session: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("session finish failed: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var result FinishSessionResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse finish response: %w", err)
	}

	return &result, nil
}

// PushJobProgress reports counters to the server-side job ledger. Best-effort;
// callers log and swallow failures.
func (c *Client) PushJobProgress(jobID string, processed, errorCount int) error {
	payload := map[string]int{
		"processed": processed,
		"errors":    errorCount,
	}

	resp, err := c.Post(fmt.Sprintf("api/background-job/%s/progress", jobID), payload)
	if err != nil {
		return fmt.Errorf("failed to push job progress: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("job progress push failed: HTTP %d", resp.StatusCode())
	}

	return nil
}

// ListBackgroundJobs fetches the job ledger, optionally filtered by status
func (c *Client) ListBackgroundJobs(status string) (*BackgroundJobsResponse, error) {
	params := map[string]string{}
	if status != "" {
		params["status"] = status
	}

	resp, err := c.Get("api/background-jobs", params)
	if err != nil {
		return nil, fmt.Errorf("failed to list background jobs: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("background jobs listing failed: HTTP %d", resp.StatusCode())
	}

	var result BackgroundJobsResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse background jobs: %w", err)
	}

	return &result, nil
}

// CancelBackgroundJob requests cancellation of a running ledger job
func (c *Client) CancelBackgroundJob(jobID string) error {
	resp, err := c.Post(fmt.Sprintf("api/background-jobs/%s/cancel", jobID), nil)
	if err != nil {
		return fmt.Errorf("failed to cancel job: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("job cancel failed: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// DeleteBackgroundJob removes a terminated ledger job
func (c *Client) DeleteBackgroundJob(jobID string) error {
	resp, err := c.Delete(fmt.Sprintf("api/background-jobs/%s", jobID), nil)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("job delete failed: HTTP %d", resp.StatusCode())
	}

	return nil
}

// ClearTerminatedJobs removes all non-running ledger jobs in one action
func (c *Client) ClearTerminatedJobs() error {
	resp, err := c.Delete("api/background-jobs", nil)
	if err != nil {
		return fmt.Errorf("failed to clear jobs: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("job clear failed: HTTP %d", resp.StatusCode())
	}

	return nil
}

// ListImportErrors fetches the durable import error ledger
func (c *Client) ListImportErrors() (*ImportErrorsResponse, error) {
	resp, err := c.Get("api/import-errors", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list import errors: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("import errors listing failed: HTTP %d", resp.StatusCode())
	}

	var result ImportErrorsResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse import errors: %w", err)
	}

	return &result, nil
}

// RecordImportError creates a new entry on the import error ledger
func (c *Client) RecordImportError(req RecordImportErrorRequest) error {
	resp, err := c.Post("api/import-errors", req)
	if err != nil {
		return fmt.Errorf("failed to record import error: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("import error record failed: HTTP %d", resp.StatusCode())
	}

	return nil
}

// ResolveImportError marks a ledger entry resolved against a client
func (c *Client) ResolveImportError(errorID, resolvedClientID string) error {
	payload := map[string]string{"resolved_client_id": resolvedClientID}

	resp, err := c.Post(fmt.Sprintf("api/import-errors/%s/resolve", errorID), payload)
	if err != nil {
		return fmt.Errorf("failed to resolve import error: %w", err)
	}

	if !resp.IsSuccess() {
		return fmt.Errorf("import error resolve failed: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	return nil
}

// ListSuggestions fetches a process's pending conflict suggestions
func (c *Client) ListSuggestions(processID string) (*SuggestionsResponse, error) {
	resp, err := c.Get(fmt.Sprintf("api/processes/%s/suggestions", processID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestions: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("suggestions listing failed: HTTP %d", resp.StatusCode())
	}

	var result SuggestionsResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse suggestions: %w", err)
	}

	return &result, nil
}

// ResolveConflict applies a keep-current or accept-new decision to one field
func (c *Client) ResolveConflict(processID, field, choice, suggestionID string) (*MessageResponse, error) {
	payload := map[string]string{
		"field":         field,
		"choice":        choice,
		"suggestion_id": suggestionID,
	}

	resp, err := c.Post(fmt.Sprintf("api/processes/%s/resolve-conflict", processID), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve conflict: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("conflict resolve failed: HTTP %d: %s", resp.StatusCode(), resp.String())
	}

	var result MessageResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse resolve response: %w", err)
	}

	return &result, nil
}

// ConfirmData toggles a process's data-confirmed flag
func (c *Client) ConfirmData(processID string, confirmed bool) (*MessageResponse, error) {
	payload := map[string]bool{"confirmed": confirmed}

	resp, err := c.Post(fmt.Sprintf("api/processes/%s/confirm-data", processID), payload)
	if err != nil {
		return nil, fmt.Errorf("failed to confirm data: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("data confirm failed: HTTP %d", resp.StatusCode())
	}

	var result MessageResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse confirm response: %w", err)
	}

	return &result, nil
}

// buildURL constructs the full URL for an endpoint
func (c *Client) buildURL(endpoint string) string {
	endpoint = strings.TrimPrefix(endpoint, "/")
	return fmt.Sprintf("%s/%s", c.baseURL, endpoint)
}

// SetTimeout allows customizing the timeout for specific operations
func (c *Client) SetTimeout(timeout time.Duration) {
	c.http.SetTimeout(timeout)
}
