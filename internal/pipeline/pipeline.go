// Package pipeline runs one census refresh: plan, fetch, build the
// dataset, then narrate it.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/KaramelBytes/census-cli/internal/acs"
	"github.com/KaramelBytes/census-cli/internal/cache"
	"github.com/KaramelBytes/census-cli/internal/census"
)

// Narrator writes the analysis text. Implementations never fail; problems
// come back as placeholder text.
type Narrator interface {
	Narrate(ctx context.Context, ds census.Dataset) string
}

// Options configures a Pipeline. Zero values take defaults.
type Options struct {
	Catalog      *census.Catalog
	Threshold    float64
	PrimaryField census.Field
	NationalName string
	Scope        string
	MaxVars      int
	Logger       *slog.Logger
}

// Pipeline is the producer the result cache wraps.
type Pipeline struct {
	fetcher  acs.Fetcher
	narrator Narrator
	opt      Options
	log      *slog.Logger
}

// New returns a pipeline. A nil narrator leaves the analysis empty.
func New(fetcher acs.Fetcher, narrator Narrator, opt Options) *Pipeline {
	if opt.Catalog == nil {
		opt.Catalog = census.DefaultCatalog()
	}
	if opt.Threshold <= 0 {
		opt.Threshold = census.DefaultThreshold
	}
	if opt.NationalName == "" {
		opt.NationalName = census.DefaultNationalName
	}
	if opt.Scope == "" {
		opt.Scope = acs.DefaultScope
	}
	log := opt.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{fetcher: fetcher, narrator: narrator, opt: opt, log: log}
}

// Run executes the steps strictly in sequence. Only fetch and ingest
// failures are returned; the narrative degrades to placeholder text.
func (p *Pipeline) Run(ctx context.Context) (*cache.Entry, error) {
	runID := uuid.NewString()
	log := p.log.With("run_id", runID)
	start := time.Now()

	plan, err := acs.Plan(p.opt.Catalog, p.opt.Scope, p.opt.MaxVars)
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	log.Info("fetching census data", "requests", len(plan), "scope", p.opt.Scope)
	extracts, err := acs.FetchAll(ctx, p.fetcher, plan)
	if err != nil {
		log.Error("fetch failed", "err", err)
		return nil, fmt.Errorf("fetch: %w", err)
	}

	ds, err := census.Build(extracts, p.opt.Catalog, census.Options{
		Threshold:    p.opt.Threshold,
		Primary:      p.opt.PrimaryField,
		NationalName: p.opt.NationalName,
	})
	if err != nil {
		log.Error("build failed", "err", err)
		return nil, fmt.Errorf("build: %w", err)
	}
	log.Info("dataset built", "regions", len(ds.Regions()), "threshold", p.opt.Threshold)
	if neg := census.Negatives(ds.Rows); len(neg) > 0 {
		log.Warn("negative values kept, likely provider missing-data codes", "count", len(neg), "fields", neg)
	}

	var narrative string
	if p.narrator != nil {
		narrative = p.narrator.Narrate(ctx, ds)
	}
	log.Info("pipeline complete", "elapsed", time.Since(start))
	return &cache.Entry{RunID: runID, Dataset: ds, Narrative: narrative}, nil
}
