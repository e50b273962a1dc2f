// Package ai holds the text-generation runtimes the narrative step can use:
// hosted chat APIs over HTTP, a local Ollama runtime, and Gemini through
// the GenAI SDK.
package ai

import (
	"context"
	"strings"
)

// Runtime generates one completion.
type Runtime interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// Provider identifiers used for selection.
const (
	ProviderAnthropic  = "anthropic"
	ProviderOpenRouter = "openrouter"
	ProviderOllama     = "ollama"
	ProviderGemini     = "gemini"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is provider neutral. System is sent the way each
// provider expects a system instruction.
type GenerateRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"-"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

type Choice struct {
	Message Message `json:"message"`
}

type GenerateResponse struct {
	ID        string   `json:"id"`
	Choices   []Choice `json:"choices"`
	Usage     Usage    `json:"usage"`
	RequestID string   `json:"-"`
}

// Text returns the first choice's content, trimmed.
func (r *GenerateResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(r.Choices[0].Message.Content)
}

func textResponse(id, text string, usage Usage) *GenerateResponse {
	return &GenerateResponse{
		ID:      id,
		Choices: []Choice{{Message: Message{Role: "assistant", Content: text}}},
		Usage:   usage,
	}
}

// splitSystem separates system messages from the conversation, joining
// them after req.System.
func splitSystem(req GenerateRequest) (string, []Message) {
	var sys []string
	if s := strings.TrimSpace(req.System); s != "" {
		sys = append(sys, s)
	}
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			sys = append(sys, m.Content)
			continue
		}
		msgs = append(msgs, m)
	}
	return strings.Join(sys, "\n\n"), msgs
}
