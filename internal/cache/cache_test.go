package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/KaramelBytes/census-cli/internal/census"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type counter struct {
	calls int32
	fail  atomic.Bool
}

func (c *counter) compute(ctx context.Context) (*Entry, error) {
	n := atomic.AddInt32(&c.calls, 1)
	if c.fail.Load() {
		return nil, errors.New("fetch failed")
	}
	rec := census.NewRecord("United States")
	rec.Set(census.HispanicPop, census.Some(float64(n)))
	return &Entry{RunID: string(rune('a' + n - 1)), Dataset: census.Dataset{Rows: []census.Record{rec}}}, nil
}

func newTestCache(ttl time.Duration) (*Cache, *counter, *fakeClock) {
	clk := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	cnt := &counter{}
	return New(cnt.compute, ttl, WithClock(clk.Now)), cnt, clk
}

func TestRoundTripWithinTTL(t *testing.T) {
	c, cnt, clk := newTestCache(time.Hour)
	ctx := context.Background()

	if st := c.Status(); st.State != StateEmpty || st.HasData {
		t.Fatalf("expected empty status, got %+v", st)
	}
	first, err := c.GetOrCompute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Cached {
		t.Fatalf("first call should compute")
	}
	clk.Advance(59 * time.Minute)
	second, err := c.GetOrCompute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !second.Cached || second.Entry != first.Entry {
		t.Fatalf("expected identical cached entry")
	}
	if cnt.calls != 1 {
		t.Fatalf("expected 1 compute, got %d", cnt.calls)
	}
	st := c.Status()
	if st.State != StateFresh || !st.Valid || st.Age != 59*time.Minute {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestExpiryRecomputes(t *testing.T) {
	c, cnt, clk := newTestCache(time.Hour)
	ctx := context.Background()
	if _, err := c.GetOrCompute(ctx); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Hour)
	if st := c.Status(); st.State != StateStale || st.Valid || !st.HasData {
		t.Fatalf("expected stale at exactly TTL, got %+v", st)
	}
	res, err := c.GetOrCompute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || cnt.calls != 2 {
		t.Fatalf("expected recompute, cached=%v calls=%d", res.Cached, cnt.calls)
	}
	if !res.Entry.CreatedAt.Equal(clk.Now()) {
		t.Fatalf("entry not restamped: %v", res.Entry.CreatedAt)
	}
}

func TestClearForcesRecompute(t *testing.T) {
	c, cnt, _ := newTestCache(time.Hour)
	ctx := context.Background()
	if _, err := c.GetOrCompute(ctx); err != nil {
		t.Fatal(err)
	}
	c.Clear()
	if st := c.Status(); st.State != StateEmpty {
		t.Fatalf("expected empty after clear, got %v", st.State)
	}
	res, err := c.GetOrCompute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Cached || cnt.calls != 2 {
		t.Fatalf("expected recompute after clear, calls=%d", cnt.calls)
	}
}

func TestFailureLeavesEntryIntact(t *testing.T) {
	c, cnt, clk := newTestCache(time.Hour)
	ctx := context.Background()
	first, err := c.GetOrCompute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	clk.Advance(2 * time.Hour)
	cnt.fail.Store(true)
	if _, err := c.GetOrCompute(ctx); err == nil {
		t.Fatalf("expected fetch failure to propagate")
	}
	c.mu.Lock()
	kept := c.entry
	c.mu.Unlock()
	if kept != first.Entry {
		t.Fatalf("failed refresh replaced the stored entry")
	}
	if st := c.Status(); st.State != StateStale || !st.HasData {
		t.Fatalf("expected stale prior entry, got %+v", st)
	}

	empty, _, _ := newTestCache(time.Hour)
	empty.compute = func(context.Context) (*Entry, error) { return nil, errors.New("down") }
	if _, err := empty.GetOrCompute(ctx); err == nil {
		t.Fatalf("expected error")
	}
	if st := empty.Status(); st.State != StateEmpty {
		t.Fatalf("failure should leave empty cache empty, got %v", st.State)
	}
}

func TestConcurrentMissesShareOneRun(t *testing.T) {
	release := make(chan struct{})
	var calls int32
	c := New(func(ctx context.Context) (*Entry, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return &Entry{RunID: "shared"}, nil
	}, time.Hour)

	const n = 8
	var wg sync.WaitGroup
	results := make([]Result, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.GetOrCompute(context.Background())
		}(i)
	}
	// let the goroutines join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one computation, got %d", got)
	}
	for i := range results {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if results[i].Entry != results[0].Entry {
			t.Fatalf("caller %d received a different entry", i)
		}
	}
}

func TestClearDuringRunIsNotOverwritten(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var calls int32
	c := New(func(ctx context.Context) (*Entry, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			close(started)
			<-release
			return &Entry{RunID: "old"}, nil
		}
		return &Entry{RunID: "new"}, nil
	}, time.Hour)

	done := make(chan Result)
	go func() {
		r, _ := c.GetOrCompute(context.Background())
		done <- r
	}()
	<-started
	c.Clear()
	close(release)
	if r := <-done; r.Entry.RunID != "old" {
		t.Fatalf("waiter should still receive its run, got %q", r.Entry.RunID)
	}
	r, err := c.GetOrCompute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if r.Entry.RunID != "new" || r.Cached {
		t.Fatalf("expected a fresh run after clear, got %+v", r)
	}
}

func TestCallerContextBoundsWaitOnly(t *testing.T) {
	release := make(chan struct{})
	c := New(func(ctx context.Context) (*Entry, error) {
		<-release
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return &Entry{RunID: "done"}, nil
	}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error)
	go func() {
		_, err := c.GetOrCompute(ctx)
		errc <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	close(release)
	// the detached run still completes and is stored
	deadline := time.Now().Add(2 * time.Second)
	for c.Status().State != StateFresh {
		if time.Now().After(deadline) {
			t.Fatalf("detached run was not stored")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
