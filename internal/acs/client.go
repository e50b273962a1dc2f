// Package acs fetches American Community Survey tables from the Census
// Bureau data API.
package acs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/KaramelBytes/census-cli/internal/census"
)

const (
	// DefaultBaseURL is the ACS 1-year endpoint.
	DefaultBaseURL = "https://api.census.gov/data/2023/acs/acs1"
	// DefaultScope requests every state.
	DefaultScope = "state:*"
	// MaxVars is the provider's per-request variable limit, name included.
	MaxVars = 50
)

// Request is one table fetch.
type Request struct {
	NameCode string
	Codes    []string
	Scope    string
}

// Vars returns the get= list: the name column then the codes.
func (r Request) Vars() []string {
	out := make([]string, 0, len(r.Codes)+1)
	out = append(out, r.NameCode)
	return append(out, r.Codes...)
}

// Options configures a Client. Zero values take defaults.
type Options struct {
	APIKey         string
	BaseURL        string
	HTTPTimeout    time.Duration
	RetryMax       int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	Logger         *slog.Logger
}

// Client talks to the data API.
type Client struct {
	httpClient       *http.Client
	apiKey           string
	baseURL          string
	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	log              *slog.Logger
}

// NewClient returns a client with default timeouts and retry strategy
// where opt leaves them unset.
func NewClient(opt Options) *Client {
	if opt.HTTPTimeout <= 0 {
		opt.HTTPTimeout = 60 * time.Second
	}
	if opt.RetryMax <= 0 {
		opt.RetryMax = 3
	}
	if opt.RetryBaseDelay <= 0 {
		opt.RetryBaseDelay = 500 * time.Millisecond
	}
	if opt.RetryMaxDelay <= 0 {
		opt.RetryMaxDelay = 4 * time.Second
	}
	if opt.BaseURL == "" {
		opt.BaseURL = DefaultBaseURL
	}
	if opt.Logger == nil {
		opt.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		httpClient:       &http.Client{Timeout: opt.HTTPTimeout},
		apiKey:           opt.APIKey,
		baseURL:          strings.TrimRight(opt.BaseURL, "/"),
		retryMaxAttempts: opt.RetryMax,
		retryBaseDelay:   opt.RetryBaseDelay,
		retryMaxDelay:    opt.RetryMaxDelay,
		log:              opt.Logger,
	}
}

// Endpoint returns the query URL for req. The API key is included when set.
func (c *Client) Endpoint(req Request) string {
	q := url.Values{}
	q.Set("get", strings.Join(req.Vars(), ","))
	scope := req.Scope
	if scope == "" {
		scope = DefaultScope
	}
	q.Set("for", scope)
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	return c.baseURL + "?" + q.Encode()
}

// Fetch retrieves one table. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, req Request) (census.Extract, error) {
	if req.NameCode == "" {
		req.NameCode = census.NameField
	}
	if n := len(req.Codes) + 1; n > MaxVars {
		return census.Extract{}, &FetchError{Op: "fetch", Err: fmt.Errorf("request has %d variables, limit is %d", n, MaxVars)}
	}
	endpoint := c.Endpoint(req)
	logURL := redact(endpoint)
	backoff := c.retryBaseDelay

	var lastErr error
	lastStatus := 0
	for attempt := 1; attempt <= c.retryMaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return census.Extract{}, &FetchError{Op: "fetch", URL: logURL, Err: err}
		}
		x, status, retryAfter, err := c.do(ctx, endpoint, req.NameCode)
		if err == nil {
			c.log.Debug("acs fetch ok", "url", logURL, "rows", len(x.Rows), "attempt", attempt)
			return x, nil
		}
		lastErr, lastStatus = err, status
		if !retryable(status, err) || attempt == c.retryMaxAttempts {
			break
		}
		wait := retryAfter
		if wait <= 0 {
			wait = withJitter(backoff)
			if wait > c.retryMaxDelay {
				wait = c.retryMaxDelay
			}
			backoff *= 2
		}
		c.log.Warn("acs fetch retry", "url", logURL, "attempt", attempt, "status", status, "wait", wait, "err", err)
		if err := sleep(ctx, wait); err != nil {
			return census.Extract{}, &FetchError{Op: "fetch", URL: logURL, Err: err}
		}
	}
	return census.Extract{}, &FetchError{Op: "fetch", URL: logURL, StatusCode: lastStatus, Err: lastErr}
}

func (c *Client) do(ctx context.Context, endpoint, nameCode string) (census.Extract, int, time.Duration, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return census.Extract{}, 0, 0, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", "census-cli")
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return census.Extract{}, 0, 0, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		var ra time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if secs, err := parseRetryAfterSeconds(v); err == nil && secs > 0 {
				ra = time.Duration(secs) * time.Second
			}
		}
		return census.Extract{}, resp.StatusCode, ra, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	x, err := DecodeExtract(resp.Body, nameCode)
	if err != nil {
		return census.Extract{}, resp.StatusCode, 0, err
	}
	return x, resp.StatusCode, 0, nil
}

func retryable(status int, err error) bool {
	if status == http.StatusTooManyRequests || (status >= 500 && status <= 599) {
		return true
	}
	if status != 0 {
		return false
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// parseRetryAfterSeconds accepts seconds or an HTTP date.
func parseRetryAfterSeconds(v string) (int, error) {
	if s, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		return s, nil
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d < 0 {
			d = 0
		}
		return int(d.Seconds()), nil
	}
	return 0, fmt.Errorf("invalid Retry-After: %q", v)
}

// withJitter applies +/- 20% jitter.
func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 500 * time.Millisecond
	}
	f := 0.8 + rand.Float64()*0.4
	out := time.Duration(float64(d) * f)
	if out <= 0 {
		return d
	}
	return out
}

// redact hides the API key in logged URLs.
func redact(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	q := u.Query()
	if q.Get("key") == "" {
		return endpoint
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
