package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-4o-mini"
	// DefaultTimeout bounds a single completion attempt.
	DefaultTimeout = 15 * time.Second

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 512
)

// Client talks to an OpenRouter-compatible chat completions API.
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	timeout    time.Duration
	policy     RetryPolicy
	httpClient *http.Client
	referer    string
	title      string
	logger     *slog.Logger
}

// NewClient creates an OpenRouter client with the given API key.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		timeout:    DefaultTimeout,
		policy:     DefaultRetryPolicy,
		httpClient: &http.Client{},
		referer:    "https://github.com/kalambet/frontdesk",
		title:      "frontdesk",
		logger:     slog.Default(),
	}
}

// NewClientWithBaseURL creates a client pointing at a custom base URL.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// WithModel sets the model used when a request leaves Model empty.
func (c *Client) WithModel(model string) *Client {
	if model != "" {
		c.model = model
	}
	return c
}

// WithTimeout sets the per-attempt timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.timeout = d
	}
	return c
}

// WithRetryPolicy replaces the default single-retry policy.
func (c *Client) WithRetryPolicy(p RetryPolicy) *Client {
	c.policy = p
	return c
}

// HasCredential reports whether an API key is configured.
func (c *Client) HasCredential() bool {
	return c.apiKey != ""
}

// Model returns the default model for requests.
func (c *Client) Model() string {
	return c.model
}

// Complete sends a non-streaming chat completion. The payload is encoded
// once and sent byte-for-byte on every attempt.
func (c *Client) Complete(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	if req.Model == "" {
		req.Model = c.model
	}
	body, err := json.Marshal(req)
	if err != nil {
		return ChatResponse{}, fmt.Errorf("marshaling request: %w", err)
	}

	var out ChatResponse
	attempt := 0
	err = do(ctx, c.policy, c.timeout, func(actx context.Context) error {
		attempt++
		resp, err := c.doComplete(actx, body)
		if err != nil {
			c.logger.Warn("completion attempt failed", "attempt", attempt, "model", req.Model, "error", err)
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return ChatResponse{}, err
	}
	return out, nil
}

func (c *Client) doComplete(ctx context.Context, body []byte) (ChatResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return ChatResponse{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return ChatResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ChatResponse{}, &StatusError{Status: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var out ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if ctx.Err() != nil {
			return ChatResponse{}, fmt.Errorf("reading response: %w", ctx.Err())
		}
		return ChatResponse{}, fmt.Errorf("decoding response: %w", err)
	}
	return out, nil
}

// ListModels returns the list of available models from the provider.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode}
	}

	var list ModelList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decoding models: %w", err)
	}

	if list.Data == nil {
		return []Model{}, nil
	}
	return list.Data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", c.referer)
	req.Header.Set("X-Title", c.title)
}
