package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

const defaultOllamaHost = "http://127.0.0.1:11434"

// OllamaClient is a minimal HTTP client for a local Ollama runtime.
type OllamaClient struct {
	transport
	host string
}

// NewOllamaClient creates a client targeting host (e.g. http://127.0.0.1:11434).
func NewOllamaClient(host string, httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) *OllamaClient {
	if host == "" {
		host = defaultOllamaHost
	}
	if retryMax <= 0 {
		retryMax = 2
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = time.Second
	}
	return &OllamaClient{
		transport: newTransport(httpTimeout, retryMax, baseDelay, maxDelay),
		host:      strings.TrimRight(host, "/"),
	}
}

type ollamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []Message      `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message         Message `json:"message"`
	Done            bool    `json:"done"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

// Generate sends a non-streaming chat request to /api/chat.
func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	if req.Model == "" {
		return nil, errors.New("model cannot be empty")
	}
	sys, msgs := splitSystem(req)
	if len(msgs) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	if sys != "" {
		msgs = append([]Message{{Role: "system", Content: sys}}, msgs...)
	}
	oreq := ollamaChatRequest{Model: req.Model, Messages: msgs, Options: map[string]any{}}
	if req.Temperature > 0 {
		oreq.Options["temperature"] = req.Temperature
	}
	if req.MaxTokens > 0 {
		oreq.Options["num_predict"] = req.MaxTokens
	}

	var oresp ollamaChatResponse
	if _, err := c.postJSON(ctx, c.host+"/api/chat", nil, oreq, &oresp); err != nil {
		return nil, asUnreachable(c.host, err)
	}
	out := textResponse("", oresp.Message.Content, Usage{
		PromptTokens:     oresp.PromptEvalCount,
		CompletionTokens: oresp.EvalCount,
		TotalTokens:      oresp.PromptEvalCount + oresp.EvalCount,
	})
	// Ollama has no request ids; synthesize one for log correlation.
	out.RequestID = fmt.Sprintf("ollama_%d", time.Now().UnixNano())
	return out, nil
}
