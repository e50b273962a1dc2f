package cmd

import (
	"fmt"
	"time"

	"github.com/KaramelBytes/census-cli/internal/acs"
	"github.com/KaramelBytes/census-cli/internal/ai"
	"github.com/KaramelBytes/census-cli/internal/cache"
	"github.com/KaramelBytes/census-cli/internal/census"
	cfgpkg "github.com/KaramelBytes/census-cli/internal/config"
	"github.com/KaramelBytes/census-cli/internal/narrative"
	"github.com/KaramelBytes/census-cli/internal/pipeline"
)

// app is the wired pipeline for one command invocation.
type app struct {
	pipeline *pipeline.Pipeline
	model    string
}

// newApp builds the fetcher, the narrator (unless skipped) and the pipeline
// from the loaded config.
func newApp(c *cfgpkg.Global, withNarrative bool) (*app, error) {
	client := acs.NewClient(acs.Options{
		APIKey:         c.CensusAPIKey,
		BaseURL:        c.CensusBaseURL,
		HTTPTimeout:    c.HTTPTimeout(),
		RetryMax:       c.RetryMaxAttempts,
		RetryBaseDelay: c.RetryBaseDelay(),
		RetryMaxDelay:  c.RetryMaxDelay(),
		Logger:         log.With("component", "acs").Slog(),
	})

	a := &app{}
	var narrator pipeline.Narrator
	if withNarrative {
		n, model, err := newNarrator(c)
		if err != nil {
			return nil, err
		}
		narrator, a.model = n, model
	}
	a.pipeline = pipeline.New(client, narrator, pipeline.Options{
		Catalog:      census.DefaultCatalog(),
		Threshold:    c.Threshold,
		PrimaryField: census.HispanicPop,
		NationalName: c.NationalName,
		Scope:        c.CensusScope,
		MaxVars:      c.CensusMaxVars,
		Logger:       log.With("component", "pipeline").Slog(),
	})
	return a, nil
}

func newNarrator(c *cfgpkg.Global) (*narrative.Narrator, string, error) {
	provider, err := cfgpkg.NormalizeProvider(c.DefaultProvider)
	if err != nil {
		return nil, "", err
	}
	model := c.DefaultModel
	if model == "" {
		model = ai.DefaultModel(provider)
	}
	timeout := c.HTTPTimeout()
	if provider == ai.ProviderOllama && c.OllamaTimeoutSec > 0 {
		timeout = time.Duration(c.OllamaTimeoutSec) * time.Second
	}
	rt, err := ai.NewRuntime(provider, ai.RuntimeConfig{
		HTTPTimeout: timeout,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay(),
		MaxDelay:    c.RetryMaxDelay(),
		APIKey:      c.ProviderAPIKey(provider),
		Host:        c.OllamaHost,
	})
	if err != nil {
		return nil, "", fmt.Errorf("narrative runtime: %w", err)
	}
	log.Debug("narrative runtime", "provider", provider, "model", model)
	return narrative.New(rt, narrative.Options{
		Model:            model,
		MaxTokens:        c.MaxTokens,
		Temperature:      c.Temperature,
		PromptTokenLimit: c.PromptTokenLimit,
		MaxRows:          c.SummaryMaxRows,
		Logger:           log.With("component", "narrative").Slog(),
	}), model, nil
}

// newCache wraps the pipeline in the result cache.
func (a *app) newCache(ttl time.Duration) *cache.Cache {
	return cache.New(a.pipeline.Run, ttl, cache.WithLogger(log.With("component", "cache").Slog()))
}
