package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Key is one user-settable configuration entry.
type Key struct {
	Name   string
	Secret bool
	get    func(*Global) string
	set    func(*Global, string) error
}

func strKey(name string, secret bool, p func(*Global) *string) Key {
	return Key{
		Name:   name,
		Secret: secret,
		get:    func(c *Global) string { return *p(c) },
		set:    func(c *Global, v string) error { *p(c) = v; return nil },
	}
}

func intKey(name string, min int, p func(*Global) *int) Key {
	return Key{
		Name: name,
		get:  func(c *Global) string { return strconv.Itoa(*p(c)) },
		set: func(c *Global, v string) error {
			i, err := strconv.Atoi(v)
			if err != nil || i < min {
				return fmt.Errorf("invalid int for %s: %q (min %d)", name, v, min)
			}
			*p(c) = i
			return nil
		},
	}
}

func floatKey(name string, p func(*Global) *float64) Key {
	return Key{
		Name: name,
		get:  func(c *Global) string { return strconv.FormatFloat(*p(c), 'f', -1, 64) },
		set: func(c *Global, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("invalid float for %s: %q", name, v)
			}
			*p(c) = f
			return nil
		},
	}
}

func listKey(name string, p func(*Global) *[]string) Key {
	return Key{
		Name: name,
		get:  func(c *Global) string { return strings.Join(*p(c), ",") },
		set: func(c *Global, v string) error {
			*p(c) = splitList([]string{v})
			return nil
		},
	}
}

var keys = []Key{
	strKey("census_api_key", true, func(c *Global) *string { return &c.CensusAPIKey }),
	strKey("census_base_url", false, func(c *Global) *string { return &c.CensusBaseURL }),
	strKey("census_scope", false, func(c *Global) *string { return &c.CensusScope }),
	intKey("census_max_vars", 2, func(c *Global) *int { return &c.CensusMaxVars }),
	floatKey("threshold", func(c *Global) *float64 { return &c.Threshold }),
	strKey("national_name", false, func(c *Global) *string { return &c.NationalName }),
	intKey("cache_ttl_sec", 1, func(c *Global) *int { return &c.CacheTTLSec }),
	{
		Name: "default_provider",
		get:  func(c *Global) string { return c.DefaultProvider },
		set: func(c *Global, v string) error {
			p, err := NormalizeProvider(v)
			if err != nil {
				return err
			}
			c.DefaultProvider = p
			return nil
		},
	},
	strKey("default_model", false, func(c *Global) *string { return &c.DefaultModel }),
	strKey("openrouter_api_key", true, func(c *Global) *string { return &c.OpenRouterAPIKey }),
	strKey("anthropic_api_key", true, func(c *Global) *string { return &c.AnthropicAPIKey }),
	strKey("gemini_api_key", true, func(c *Global) *string { return &c.GeminiAPIKey }),
	intKey("max_tokens", 1, func(c *Global) *int { return &c.MaxTokens }),
	floatKey("temperature", func(c *Global) *float64 { return &c.Temperature }),
	intKey("prompt_token_limit", 1, func(c *Global) *int { return &c.PromptTokenLimit }),
	intKey("summary_max_rows", 1, func(c *Global) *int { return &c.SummaryMaxRows }),
	intKey("http_timeout_sec", 1, func(c *Global) *int { return &c.HTTPTimeoutSec }),
	intKey("retry_max_attempts", 1, func(c *Global) *int { return &c.RetryMaxAttempts }),
	intKey("retry_base_delay_ms", 0, func(c *Global) *int { return &c.RetryBaseDelayMs }),
	intKey("retry_max_delay_ms", 0, func(c *Global) *int { return &c.RetryMaxDelayMs }),
	strKey("ollama_host", false, func(c *Global) *string { return &c.OllamaHost }),
	intKey("ollama_timeout_sec", 1, func(c *Global) *int { return &c.OllamaTimeoutSec }),
	strKey("server_addr", false, func(c *Global) *string { return &c.ServerAddr }),
	intKey("port", 1, func(c *Global) *int { return &c.Port }),
	listKey("cors_origins", func(c *Global) *[]string { return &c.CORSOrigins }),
	strKey("output_dir", false, func(c *Global) *string { return &c.OutputDir }),
	listKey("export_formats", func(c *Global) *[]string { return &c.ExportFormats }),
	strKey("log_level", false, func(c *Global) *string { return &c.LogLevel }),
}

// Keys returns the settable keys in display order.
func Keys() []Key {
	out := make([]Key, len(keys))
	copy(out, keys)
	return out
}

// Get returns the value of a key, masked when secret and mask is true.
func (c *Global) Get(name string, mask bool) (string, error) {
	for _, k := range keys {
		if k.Name == name {
			v := k.get(c)
			if mask && k.Secret {
				v = Mask(v)
			}
			return v, nil
		}
	}
	return "", fmt.Errorf("unknown key: %s", name)
}

// Set assigns a key from its string form and revalidates.
func (c *Global) Set(name, value string) error {
	for _, k := range keys {
		if k.Name == name {
			if err := k.set(c, value); err != nil {
				return err
			}
			return c.Validate()
		}
	}
	return fmt.Errorf("unknown key: %s", name)
}

// NormalizeProvider accepts provider names case-insensitively; "local" is
// an alias for ollama and "google" for gemini.
func NormalizeProvider(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "anthropic", "claude":
		return "anthropic", nil
	case "openrouter":
		return "openrouter", nil
	case "ollama", "local":
		return "ollama", nil
	case "gemini", "google":
		return "gemini", nil
	}
	return "", fmt.Errorf("invalid provider: %s (use anthropic, openrouter, ollama or gemini)", v)
}

// Mask hides all but the ends of a secret.
func Mask(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "******"
	}
	return s[:3] + "****" + s[len(s)-3:]
}
