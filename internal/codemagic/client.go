package codemagic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type Client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	backoffs   []time.Duration
}

// APIError is a non-2xx answer from the Codemagic API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("codemagic: status %d, body: %s", e.StatusCode, e.Body)
}

// StartBuildIn is the request body for POST /builds
type StartBuildIn struct {
	AppID       string           `json:"appId"`
	WorkflowID  string           `json:"workflowId"`
	Branch      string           `json:"branch"`
	Environment BuildEnvironment `json:"environment"`
}

type BuildEnvironment struct {
	Variables map[string]string `json:"variables"`
}

// StartBuildOut carries the new build id. Older API versions answer with
// buildId, newer ones with _id.
type StartBuildOut struct {
	ID      string `json:"_id"`
	BuildID string `json:"buildId"`
}

func (o StartBuildOut) JobID() string {
	if o.ID != "" {
		return o.ID
	}
	return o.BuildID
}

// Artefact is one file produced by a build. Codemagic spells it the British way.
type Artefact struct {
	Name string `json:"name"`
	Type string `json:"type"`
	URL  string `json:"url"`
	Size int64  `json:"size,omitempty"`
}

type BuildOut struct {
	ID         string     `json:"_id"`
	AppID      string     `json:"appId"`
	WorkflowID string     `json:"workflowId"`
	Branch     string     `json:"branch"`
	Status     string     `json:"status"`
	Artefacts  []Artefact `json:"artefacts"`
	StartedAt  *time.Time `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// GetBuildOut is the response of GET /builds/{id}
type GetBuildOut struct {
	Build BuildOut `json:"build"`
}

// WebhookEvent is the payload Codemagic posts on build lifecycle changes.
type WebhookEvent struct {
	BuildID    string     `json:"buildId"`
	AppID      string     `json:"appId"`
	WorkflowID string     `json:"workflowId"`
	Branch     string     `json:"branch"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
	Artefacts  []Artefact `json:"artefacts,omitempty"`
	Error      string     `json:"error,omitempty"`
}

func NewClient(baseURL, apiToken string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		apiToken: apiToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		backoffs: []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second},
	}
}

// WithBackoffs replaces the retry schedule used by GetBuild.
func (c *Client) WithBackoffs(backoffs ...time.Duration) *Client {
	c.backoffs = backoffs
	return c
}

// StartBuild queues one workflow run. It is not retried: a duplicate POST
// would start a second build.
func (c *Client) StartBuild(ctx context.Context, in StartBuildIn) (*StartBuildOut, error) {
	jsonData, err := json.Marshal(in)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var result StartBuildOut
	if err := c.do(ctx, http.MethodPost, "/builds", jsonData, &result); err != nil {
		return nil, fmt.Errorf("failed to start build: %w", err)
	}
	if result.JobID() == "" {
		return nil, fmt.Errorf("failed to start build: response carried no build id")
	}
	return &result, nil
}

// GetBuild fetches the current state of a build, retrying transient failures.
func (c *Client) GetBuild(ctx context.Context, buildID string) (*BuildOut, error) {
	var result GetBuildOut
	err := c.RetryWithBackoff(ctx, func() error {
		return c.do(ctx, http.MethodGet, "/builds/"+buildID, nil, &result)
	}, len(c.backoffs)+1)
	if err != nil {
		return nil, fmt.Errorf("failed to get build %s: %w", buildID, err)
	}
	if result.Build.ID == "" {
		result.Build.ID = buildID
	}
	return &result.Build, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("x-auth-token", c.apiToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode response: %w, body: %s", err, string(respBody))
	}
	return nil
}

// RetryWithBackoff executes a function with exponential backoff retry logic.
// Client errors (4xx) are returned immediately.
func (c *Client) RetryWithBackoff(ctx context.Context, fn func() error, maxRetries int) error {
	var lastErr error
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode < 500 && apiErr.StatusCode != http.StatusTooManyRequests {
			return err
		}

		lastErr = err
		if i < len(c.backoffs) && i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoffs[i]):
			}
		}
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}
