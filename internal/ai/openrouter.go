package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// OpenRouterClient talks to an OpenAI-compatible chat completions API.
type OpenRouterClient struct {
	transport
	apiKey  string
	baseURL string
}

// NewOpenRouterClient returns a client with default timeouts and retry strategy.
func NewOpenRouterClient(apiKey string) *OpenRouterClient {
	return NewClient(apiKey, 60*time.Second, 3, 500*time.Millisecond, 4*time.Second)
}

// NewClient allows customizing HTTP timeout and retry/backoff behavior.
func NewClient(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OpenRouterClient {
	return &OpenRouterClient{
		transport: newTransport(httpTimeout, retryMax, baseDelay, maxDelay),
		apiKey:    apiKey,
		baseURL:   defaultOpenRouterURL,
	}
}

// NewClientWithBaseURL allows injecting a custom base URL (used in tests).
func NewClientWithBaseURL(apiKey string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration, baseURL string) *OpenRouterClient {
	c := NewClient(apiKey, httpTimeout, retryMax, baseDelay, maxDelay)
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

func (c *OpenRouterClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, &MissingKeyError{Env: "OPENROUTER_API_KEY"}
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	sys, msgs := splitSystem(req)
	if sys != "" {
		msgs = append([]Message{{Role: "system", Content: sys}}, msgs...)
	}
	req.Messages = msgs

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)
	header.Set("HTTP-Referer", "https://github.com/KaramelBytes/census-cli")
	header.Set("X-Title", "census-cli")

	var out GenerateResponse
	reqID, err := c.postJSON(ctx, c.baseURL+"/chat/completions", header, req, &out)
	if err != nil {
		return nil, err
	}
	out.RequestID = reqID
	return &out, nil
}
