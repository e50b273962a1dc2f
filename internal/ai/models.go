package ai

// ModelInfo is the metadata the narrative step needs: the context window
// bounds the prompt, and prices feed the cost estimate printed after a run.
// Prices are approximate USD per 1K tokens.
type ModelInfo struct {
	Name          string
	Provider      string
	ContextTokens int
	InputPerK     float64
	OutputPerK    float64
}

var models = map[string]ModelInfo{
	"claude-sonnet-4-20250514": {
		Name:          "claude-sonnet-4-20250514",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.003,
		OutputPerK:    0.015,
	},
	"claude-3-5-haiku-latest": {
		Name:          "claude-3-5-haiku-latest",
		Provider:      ProviderAnthropic,
		ContextTokens: 200000,
		InputPerK:     0.0008,
		OutputPerK:    0.004,
	},
	"anthropic/claude-sonnet-4": {
		Name:          "anthropic/claude-sonnet-4",
		Provider:      ProviderOpenRouter,
		ContextTokens: 200000,
		InputPerK:     0.003,
		OutputPerK:    0.015,
	},
	"openai/gpt-4o-mini": {
		Name:          "openai/gpt-4o-mini",
		Provider:      ProviderOpenRouter,
		ContextTokens: 128000,
		InputPerK:     0.00015,
		OutputPerK:    0.0006,
	},
	"gemini-2.0-flash": {
		Name:          "gemini-2.0-flash",
		Provider:      ProviderGemini,
		ContextTokens: 1000000,
		InputPerK:     0.0001,
		OutputPerK:    0.0004,
	},
	"llama3.1:8b-instruct": {
		Name:          "llama3.1:8b-instruct",
		Provider:      ProviderOllama,
		ContextTokens: 8192,
	},
}

var defaultModels = map[string]string{
	ProviderAnthropic:  "claude-sonnet-4-20250514",
	ProviderOpenRouter: "anthropic/claude-sonnet-4",
	ProviderGemini:     "gemini-2.0-flash",
	ProviderOllama:     "llama3.1:8b-instruct",
}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost for the given token counts.
// Unknown models return 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}
