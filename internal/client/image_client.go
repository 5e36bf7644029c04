package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/quickmv/videoworker/internal/config"
	"github.com/quickmv/videoworker/internal/model"
)

// ImageGenerator defines the interface for batch image generation
type ImageGenerator interface {
	GenerateBatch(ctx context.Context, prompts []model.ImagePrompt, width, height int) ([]model.GeneratedImage, error)
}

// ImageClient implements ImageGenerator against the external provider.
// One provider session is established per batch call and released on
// every exit path; sessions are never shared across batches.
type ImageClient struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	maxConcurrent int
	maxRetries    int
}

// generateImageRequest is the per-request shape consumed by the provider
type generateImageRequest struct {
	Prompt string `json:"prompt"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type generateImageResponse struct {
	ImageURL string `json:"imageUrl"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

// apiError carries the provider's HTTP status so callers can distinguish
// throttling from hard failures.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("image API error (status %d): %s", e.Status, e.Body)
}

func (e *apiError) throttled() bool {
	return e.Status == http.StatusTooManyRequests
}

// NewImageClient creates a new image provider client
func NewImageClient(cfg *config.ImageProviderConfig) (*ImageClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("image provider configuration incomplete: missing API key")
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120
	}

	return &ImageClient{
		httpClient: &http.Client{
			Timeout: time.Duration(timeout) * time.Second,
		},
		baseURL:       cfg.BaseURL,
		apiKey:        cfg.APIKey,
		maxConcurrent: maxConcurrent,
		maxRetries:    cfg.MaxRetries,
	}, nil
}

// GenerateBatch issues one generation request per prompt, concurrently up
// to the configured ceiling. The returned slice has exactly len(prompts)
// elements in prompt order; a failed request becomes a failure marker and
// never aborts sibling requests. A session-establishment failure aborts
// the whole batch.
func (c *ImageClient) GenerateBatch(ctx context.Context, prompts []model.ImagePrompt, width, height int) ([]model.GeneratedImage, error) {
	results := make([]model.GeneratedImage, len(prompts))
	if len(prompts) == 0 {
		return results, nil
	}

	session, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to establish image session: %w", err)
	}
	defer c.release(session)

	sem := make(chan struct{}, c.maxConcurrent)
	var wg sync.WaitGroup

	for i, prompt := range prompts {
		wg.Add(1)
		go func(i int, prompt model.ImagePrompt) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			url, err := c.generateWithRetry(ctx, session, prompt.Text, width, height)
			if err != nil {
				log.Printf("[Image API] ✗ scene %d failed: %v", prompt.Scene, err)
				results[i] = model.GeneratedImage{Scene: prompt.Scene, Failed: true, Err: err.Error()}
				return
			}
			results[i] = model.GeneratedImage{Scene: prompt.Scene, URL: url}
		}(i, prompt)
	}

	wg.Wait()
	return results, nil
}

// connect establishes a provider session scoped to one batch call
func (c *ImageClient) connect(ctx context.Context) (string, error) {
	var resp sessionResponse
	if err := c.post(ctx, "/v1/sessions", "", struct{}{}, &resp); err != nil {
		return "", err
	}
	if resp.SessionID == "" {
		return "", fmt.Errorf("image API returned empty session id")
	}
	log.Printf("[Image API] session %s established", resp.SessionID)
	return resp.SessionID, nil
}

// release closes the session. Failures are logged, not propagated: the
// batch result is already decided by the time the session is released.
func (c *ImageClient) release(sessionID string) {
	req, err := http.NewRequest(http.MethodDelete, c.baseURL+"/v1/sessions/"+sessionID, nil)
	if err != nil {
		log.Printf("[Image API] failed to build session release request: %v", err)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("[Image API] failed to release session %s: %v", sessionID, err)
		return
	}
	resp.Body.Close()
	log.Printf("[Image API] session %s released", sessionID)
}

// generateWithRetry retries throttled requests with exponential backoff.
// Hard failures are returned immediately.
func (c *ImageClient) generateWithRetry(ctx context.Context, sessionID, prompt string, width, height int) (string, error) {
	backoff := time.Second
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		url, err := c.generateOne(ctx, sessionID, prompt, width, height)
		if err == nil {
			return url, nil
		}
		lastErr = err

		apiErr, ok := err.(*apiError)
		if !ok || !apiErr.throttled() || attempt == c.maxRetries {
			return "", err
		}

		log.Printf("[Image API] throttled, retrying in %v (attempt %d/%d)", backoff, attempt+1, c.maxRetries)
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return "", lastErr
}

// generateOne issues a single image generation request
func (c *ImageClient) generateOne(ctx context.Context, sessionID, prompt string, width, height int) (string, error) {
	reqBody := generateImageRequest{
		Prompt: prompt,
		Width:  width,
		Height: height,
	}

	var resp generateImageResponse
	if err := c.post(ctx, "/v1/images/generations", sessionID, reqBody, &resp); err != nil {
		return "", err
	}
	if resp.ImageURL == "" {
		return "", fmt.Errorf("image API returned no image for prompt %q", prompt)
	}
	return resp.ImageURL, nil
}

// post sends a POST request with JSON body and parses the response
func (c *ImageClient) post(ctx context.Context, endpoint, sessionID string, body interface{}, result interface{}) error {
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{Status: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}

// IsConfigured returns true if the client has valid configuration
func (c *ImageClient) IsConfigured() bool {
	return c.apiKey != ""
}
