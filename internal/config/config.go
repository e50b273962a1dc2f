package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Global configuration structure.
type Global struct {
	// Census data API
	CensusAPIKey  string `mapstructure:"census_api_key" yaml:"census_api_key"`
	CensusBaseURL string `mapstructure:"census_base_url" yaml:"census_base_url"`
	CensusScope   string `mapstructure:"census_scope" yaml:"census_scope"`
	CensusMaxVars int    `mapstructure:"census_max_vars" yaml:"census_max_vars"`

	// Selection
	Threshold    float64 `mapstructure:"threshold" yaml:"threshold"`
	NationalName string  `mapstructure:"national_name" yaml:"national_name"`
	CacheTTLSec  int     `mapstructure:"cache_ttl_sec" yaml:"cache_ttl_sec"`

	// Narrative
	DefaultProvider  string  `mapstructure:"default_provider" yaml:"default_provider"`
	DefaultModel     string  `mapstructure:"default_model" yaml:"default_model"`
	OpenRouterAPIKey string  `mapstructure:"openrouter_api_key" yaml:"openrouter_api_key"`
	AnthropicAPIKey  string  `mapstructure:"anthropic_api_key" yaml:"anthropic_api_key"`
	GeminiAPIKey     string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	MaxTokens        int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	PromptTokenLimit int     `mapstructure:"prompt_token_limit" yaml:"prompt_token_limit"`
	SummaryMaxRows   int     `mapstructure:"summary_max_rows" yaml:"summary_max_rows"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Server
	ServerAddr  string   `mapstructure:"server_addr" yaml:"server_addr"`
	Port        int      `mapstructure:"port" yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`

	// Export
	OutputDir     string   `mapstructure:"output_dir" yaml:"output_dir"`
	ExportFormats []string `mapstructure:"export_formats" yaml:"export_formats"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// DefaultCORSOrigins are the dashboard's deployed and local dev origins.
var DefaultCORSOrigins = []string{
	"https://census-analytics-dashboard.vercel.app",
	"https://*.vercel.app",
	"http://localhost:5173",
	"http://localhost:3000",
}

// Dir returns ~/.census.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".census"), nil
}

// Save writes c to cfgFile, or to ~/.census/config.yaml when empty.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// The file may hold API keys.
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("census_base_url", "https://api.census.gov/data/2023/acs/acs1")
	v.SetDefault("census_scope", "state:*")
	v.SetDefault("census_max_vars", 50)
	v.SetDefault("threshold", 0.80)
	v.SetDefault("national_name", "United States")
	v.SetDefault("cache_ttl_sec", 3600)
	v.SetDefault("default_provider", "anthropic")
	v.SetDefault("default_model", "")
	v.SetDefault("max_tokens", 1500)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("prompt_token_limit", 6000)
	v.SetDefault("summary_max_rows", 25)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 60)
	v.SetDefault("server_addr", "")
	v.SetDefault("port", 3000)
	v.SetDefault("cors_origins", DefaultCORSOrigins)
	v.SetDefault("output_dir", "output")
	v.SetDefault("export_formats", []string{"csv", "xlsx"})
	v.SetDefault("log_level", "info")
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. Keys read CENSUS_<KEY>; the
// provider keys and PORT also read their conventional unprefixed names.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("CENSUS")
	v.AutomaticEnv()
	setDefaults(v)
	binds := map[string][]string{
		"census_api_key":     {"CENSUS_CENSUS_API_KEY", "CENSUS_API_KEY"},
		"anthropic_api_key":  {"CENSUS_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		"openrouter_api_key": {"CENSUS_OPENROUTER_API_KEY", "OPENROUTER_API_KEY"},
		"gemini_api_key":     {"CENSUS_GEMINI_API_KEY", "GEMINI_API_KEY"},
		"port":               {"CENSUS_PORT", "PORT"},
	}
	for key, envs := range binds {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// optional read; a malformed file is still an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.CORSOrigins = splitList(c.CORSOrigins)
	c.ExportFormats = splitList(c.ExportFormats)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// splitList accepts both YAML lists and comma-separated env values.
func splitList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// Validate rejects values the pipeline cannot run with.
func (c *Global) Validate() error {
	if c.Threshold <= 0 || c.Threshold > 1 {
		return fmt.Errorf("threshold must be in (0, 1], got %v", c.Threshold)
	}
	if c.CacheTTLSec <= 0 {
		return fmt.Errorf("cache_ttl_sec must be positive, got %d", c.CacheTTLSec)
	}
	if c.CensusMaxVars < 2 || c.CensusMaxVars > 50 {
		return fmt.Errorf("census_max_vars must be between 2 and 50, got %d", c.CensusMaxVars)
	}
	return nil
}

// Addr is the server listen address: server_addr, else :port.
func (c *Global) Addr() string {
	if c.ServerAddr != "" {
		return c.ServerAddr
	}
	return ":" + strconv.Itoa(c.Port)
}

// CacheTTL returns the cache freshness window.
func (c *Global) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSec) * time.Second
}

// HTTPTimeout returns the client timeout.
func (c *Global) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSec) * time.Second
}

// RetryBaseDelay returns the first backoff step.
func (c *Global) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelayMs) * time.Millisecond
}

// RetryMaxDelay returns the backoff cap.
func (c *Global) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelayMs) * time.Millisecond
}

// ProviderAPIKey returns the key for a hosted provider.
func (c *Global) ProviderAPIKey(provider string) string {
	switch provider {
	case "anthropic":
		return c.AnthropicAPIKey
	case "openrouter":
		return c.OpenRouterAPIKey
	case "gemini":
		return c.GeminiAPIKey
	}
	return ""
}
