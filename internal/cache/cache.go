// Package cache is a single-slot, time-to-live memo around the census
// pipeline. Concurrent misses share one computation.
package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/KaramelBytes/census-cli/internal/census"
)

// DefaultTTL is the freshness window.
const DefaultTTL = time.Hour

// Entry is one pipeline result.
type Entry struct {
	RunID     string         `json:"runId"`
	Dataset   census.Dataset `json:"data"`
	Narrative string         `json:"analysis"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ComputeFunc produces a new entry. CreatedAt is set by the cache.
type ComputeFunc func(ctx context.Context) (*Entry, error)

// Result is what GetOrCompute returns. Cached is true when the entry was
// served from the slot without running the pipeline.
type Result struct {
	Entry  *Entry
	Cached bool
}

// State of the slot.
type State int

const (
	StateEmpty State = iota
	StateFresh
	StateStale
)

func (s State) String() string {
	switch s {
	case StateFresh:
		return "fresh"
	case StateStale:
		return "stale"
	default:
		return "empty"
	}
}

// Status describes the slot for health reporting.
type Status struct {
	State   State
	HasData bool
	Age     time.Duration
	Valid   bool
}

type Option func(*Cache)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.log = l }
}

// Cache holds at most one entry.
type Cache struct {
	compute ComputeFunc
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu    sync.Mutex
	entry *Entry
	// gen advances on Clear so computations started before it are not stored.
	gen   uint64
	group singleflight.Group
}

// New returns an empty cache. ttl <= 0 means DefaultTTL.
func New(compute ComputeFunc, ttl time.Duration, opts ...Option) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		compute: compute,
		ttl:     ttl,
		now:     time.Now,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// TTL returns the freshness window.
func (c *Cache) TTL() time.Duration { return c.ttl }

func (c *Cache) fresh(e *Entry, now time.Time) bool {
	return e != nil && now.Sub(e.CreatedAt) < c.ttl
}

// GetOrCompute returns the stored entry while fresh, otherwise runs the
// pipeline and stores its result. A failed run leaves the slot unchanged
// and its error is returned. Callers arriving during a run wait for it
// and receive the same entry. ctx bounds only this caller's wait.
func (c *Cache) GetOrCompute(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if e := c.entry; c.fresh(e, c.now()) {
		c.mu.Unlock()
		return Result{Entry: e, Cached: true}, nil
	}
	gen := c.gen
	c.mu.Unlock()

	ch := c.group.DoChan(strconv.FormatUint(gen, 10), func() (any, error) {
		return c.run(context.WithoutCancel(ctx), gen)
	})
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return Result{}, r.Err
		}
		return Result{Entry: r.Val.(*Entry)}, nil
	}
}

func (c *Cache) run(ctx context.Context, gen uint64) (*Entry, error) {
	if c.compute == nil {
		return nil, errors.New("cache: no compute function")
	}
	start := c.now()
	e, err := c.compute(ctx)
	if err != nil {
		c.log.Error("cache refresh failed", "err", err, "elapsed", c.now().Sub(start))
		return nil, err
	}
	if e == nil {
		return nil, errors.New("cache: compute returned no entry")
	}
	e.CreatedAt = c.now()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		c.log.Info("cache cleared during refresh, result not stored", "run_id", e.RunID)
		return e, nil
	}
	c.entry = e
	c.log.Info("cache refreshed", "run_id", e.RunID, "rows", len(e.Dataset.Rows), "elapsed", e.CreatedAt.Sub(start))
	return e, nil
}

// Clear empties the slot; the next GetOrCompute recomputes.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entry = nil
	c.gen++
	c.mu.Unlock()
	c.log.Info("cache cleared")
}

// Status reports the slot's state without computing.
func (c *Cache) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entry == nil {
		return Status{State: StateEmpty}
	}
	now := c.now()
	st := Status{HasData: true, Age: now.Sub(c.entry.CreatedAt)}
	if c.fresh(c.entry, now) {
		st.State, st.Valid = StateFresh, true
	} else {
		st.State = StateStale
	}
	return st
}
