package ai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAnthropicURL = "https://api.anthropic.com"
	anthropicVersion    = "2023-06-01"
	// DefaultMaxTokens is used when a request leaves MaxTokens unset.
	DefaultMaxTokens = 1500
)

// AnthropicClient calls the Messages API.
type AnthropicClient struct {
	transport
	apiKey  string
	baseURL string
}

// NewAnthropicClient returns a client; an empty baseURL uses the public API.
func NewAnthropicClient(apiKey, baseURL string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *AnthropicClient {
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}
	return &AnthropicClient{
		transport: newTransport(httpTimeout, retryMax, baseDelay, maxDelay),
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type anthropicResponse struct {
	ID      string `json:"id"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func (c *AnthropicClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if c.apiKey == "" {
		return nil, &MissingKeyError{Env: "ANTHROPIC_API_KEY"}
	}
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	sys, msgs := splitSystem(req)
	if len(msgs) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	areq := anthropicRequest{
		Model:     req.Model,
		MaxTokens: req.MaxTokens,
		System:    sys,
		Messages:  msgs,
	}
	if areq.MaxTokens <= 0 {
		areq.MaxTokens = DefaultMaxTokens
	}
	if req.Temperature > 0 {
		t := req.Temperature
		areq.Temperature = &t
	}

	header := http.Header{}
	header.Set("x-api-key", c.apiKey)
	header.Set("anthropic-version", anthropicVersion)

	var aresp anthropicResponse
	reqID, err := c.postJSON(ctx, c.baseURL+"/v1/messages", header, areq, &aresp)
	if err != nil {
		return nil, err
	}
	var text strings.Builder
	for _, block := range aresp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	out := textResponse(aresp.ID, text.String(), Usage{
		PromptTokens:     aresp.Usage.InputTokens,
		CompletionTokens: aresp.Usage.OutputTokens,
		TotalTokens:      aresp.Usage.InputTokens + aresp.Usage.OutputTokens,
	})
	out.RequestID = reqID
	return out, nil
}
