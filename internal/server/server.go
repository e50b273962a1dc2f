// Package server exposes the cached census result over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/KaramelBytes/census-cli/internal/cache"
	"github.com/KaramelBytes/census-cli/internal/census"
	"github.com/KaramelBytes/census-cli/internal/report"
)

// Source is the result cache as seen by the handlers.
type Source interface {
	GetOrCompute(ctx context.Context) (cache.Result, error)
	Clear()
	Status() cache.Status
}

// Options configures a Server.
type Options struct {
	Addr        string
	CORSOrigins []string
	Logger      *slog.Logger
	// ShutdownTimeout bounds graceful shutdown; 0 means 10s.
	ShutdownTimeout time.Duration
	// Now replaces time.Now in response timestamps.
	Now func() time.Time
}

// Server serves the census API.
type Server struct {
	src     Source
	opt     Options
	log     *slog.Logger
	handler http.Handler
}

// New wires routes and middleware around src.
func New(src Source, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opt.Now == nil {
		opt.Now = time.Now
	}
	if opt.ShutdownTimeout <= 0 {
		opt.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{src: src, opt: opt, log: opt.Logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/census/raw", s.handleRaw)
	mux.HandleFunc("GET /api/census/formatted", s.handleFormatted)
	mux.HandleFunc("GET /api/census/analysis", s.handleAnalysis)
	mux.HandleFunc("GET /api/census/summary", s.handleSummary)
	mux.HandleFunc("POST /api/cache/clear", s.handleClear)
	mux.HandleFunc("GET /api/docs", s.handleDocs)
	mux.HandleFunc("/", s.handleNotFound)

	s.handler = recoverer(s.log, logRequests(s.log, securityHeaders(cors(opt.CORSOrigins, mux))))
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.handler }

// ListenAndServe serves on opt.Addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opt.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info("census api listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	s.log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), s.opt.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) timestamp() string {
	return s.opt.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// --- health ---

type cacheHealth struct {
	HasData bool  `json:"hasData"`
	Age     int64 `json:"age"`
	Valid   bool  `json:"valid"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.src.Status()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": s.timestamp(),
		"cache": cacheHealth{
			HasData: st.HasData,
			Age:     st.Age.Milliseconds(),
			Valid:   st.Valid,
		},
	})
}

// --- census data ---

func (s *Server) load(w http.ResponseWriter, r *http.Request, failure string) (cache.Result, bool) {
	res, err := s.src.GetOrCompute(r.Context())
	if err != nil {
		s.log.Error(failure, "path", r.URL.Path, "err", err)
		writeFailure(w, http.StatusInternalServerError, failure, err.Error())
		return cache.Result{}, false
	}
	return res, true
}

func (s *Server) handleRaw(w http.ResponseWriter, r *http.Request) {
	res, ok := s.load(w, r, "Failed to fetch census data")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"runId":     res.Entry.RunID,
		"data":      res.Entry.Dataset,
		"analysis":  res.Entry.Narrative,
		"timestamp": s.timestamp(),
		"cached":    res.Cached,
	})
}

func (s *Server) handleFormatted(w http.ResponseWriter, r *http.Request) {
	res, ok := s.load(w, r, "Failed to fetch formatted census data")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"data":      report.Display(res.Entry.Dataset),
		"analysis":  res.Entry.Narrative,
		"timestamp": s.timestamp(),
		"cached":    res.Cached,
	})
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	res, ok := s.load(w, r, "Failed to fetch analysis")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"analysis":   res.Entry.Narrative,
		"dataPoints": len(res.Entry.Dataset.Rows),
		"timestamp":  s.timestamp(),
		"cached":     res.Cached,
	})
}

// TopRegion is one entry of Summary.TopStates.
type TopRegion struct {
	Name            string     `json:"name"`
	HispanicPop     census.Num `json:"hispanicPop"`
	HispanicPercent census.Num `json:"hispanicPercent"`
}

// Summary is the /api/census/summary payload.
type Summary struct {
	TotalHispanicPopulation   float64     `json:"totalHispanicPopulation"`
	TotalPopulation           float64     `json:"totalPopulation"`
	HispanicPercentage        float64     `json:"hispanicPercentage"`
	SpanishSpeakersPercentage float64     `json:"spanishSpeakersPercentage"`
	StatesIncluded            int         `json:"statesIncluded"`
	TopStates                 []TopRegion `json:"topStates"`
}

// Summarize reduces a dataset to national totals and the five largest
// selected regions.
func Summarize(ds census.Dataset) Summary {
	nat, _ := ds.National()
	regions := ds.Regions()
	out := Summary{
		TotalHispanicPopulation:   nat.Get(census.HispanicPop).Or(0),
		TotalPopulation:           nat.Get(census.TotalPop).Or(0),
		HispanicPercentage:        nat.Get(census.HispanicPct).Or(0),
		SpanishSpeakersPercentage: nat.Get(census.SpanishPct).Or(0),
		StatesIncluded:            len(regions),
		TopStates:                 []TopRegion{},
	}
	for i, r := range regions {
		if i == 5 {
			break
		}
		out.TopStates = append(out.TopStates, TopRegion{
			Name:            r.Name,
			HispanicPop:     r.Get(census.HispanicPop),
			HispanicPercent: r.Get(census.HispanicPct),
		})
	}
	return out
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	res, ok := s.load(w, r, "Failed to fetch summary")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"summary":   Summarize(res.Entry.Dataset),
		"timestamp": s.timestamp(),
		"cached":    res.Cached,
	})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.src.Clear()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "Cache cleared successfully",
		"timestamp": s.timestamp(),
	})
}

// --- docs ---

type endpoint struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

var endpoints = []endpoint{
	{"/health", http.MethodGet, "Health check and cache status"},
	{"/api/census/raw", http.MethodGet, "Get raw census data with numeric values"},
	{"/api/census/formatted", http.MethodGet, "Get formatted census data (display-ready with commas, percentages, etc.)"},
	{"/api/census/analysis", http.MethodGet, "Get only the AI analysis"},
	{"/api/census/summary", http.MethodGet, "Get summary statistics and top states"},
	{"/api/cache/clear", http.MethodPost, "Clear the data cache to force fresh API calls"},
	{"/api/docs", http.MethodGet, "This documentation"},
}

func (s *Server) handleDocs(w http.ResponseWriter, r *http.Request) {
	ttl := "1 hour"
	if c, ok := s.src.(interface{ TTL() time.Duration }); ok {
		ttl = c.TTL().String()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"title":       "Census Data API",
		"description": "API for accessing US Hispanic demographic data with AI analysis",
		"version":     "1.0.0",
		"endpoints":   endpoints,
		"caching":     "Data is cached for " + ttl + " to avoid repeated Census API calls",
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	paths := make([]string, 0, len(endpoints))
	for _, e := range endpoints {
		if e.Method == http.MethodGet {
			paths = append(paths, e.Path)
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{
		"success":            false,
		"error":              "Endpoint not found",
		"availableEndpoints": paths,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFailure(w http.ResponseWriter, code int, msg, detail string) {
	writeJSON(w, code, map[string]any{
		"success": false,
		"error":   msg,
		"message": detail,
	})
}
