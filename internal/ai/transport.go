package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"time"
)

// transport is the JSON-over-HTTP plumbing shared by the hosted runtimes:
// one POST per attempt, retried on 429/5xx and transient network errors
// with jittered exponential backoff, honoring Retry-After.
type transport struct {
	httpClient  *http.Client
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

func newTransport(httpTimeout time.Duration, retryMax int, baseDelay, maxDelay time.Duration) transport {
	if httpTimeout <= 0 {
		httpTimeout = 60 * time.Second
	}
	if retryMax <= 0 {
		retryMax = 3
	}
	if baseDelay <= 0 {
		baseDelay = 500 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 4 * time.Second
	}
	return transport{
		httpClient:  &http.Client{Timeout: httpTimeout},
		maxAttempts: retryMax,
		baseDelay:   baseDelay,
		maxDelay:    maxDelay,
	}
}

// postJSON sends payload and decodes a 2xx body into out. It returns the
// provider request id of the successful response.
func (t transport) postJSON(ctx context.Context, endpoint string, header http.Header, payload any, out any) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	backoff := t.baseDelay
	var lastErr error
	for attempt := 1; attempt <= t.maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		reqID, wait, retry, err := t.once(ctx, endpoint, header, body, out)
		if err == nil {
			return reqID, nil
		}
		lastErr = err
		if !retry || attempt == t.maxAttempts {
			break
		}
		if wait <= 0 {
			wait = withJitter(backoff)
			if wait > t.maxDelay {
				wait = t.maxDelay
			}
			backoff *= 2
		}
		if err := sleepContext(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (t transport) once(ctx context.Context, endpoint string, header http.Header, body []byte, out any) (reqID string, wait time.Duration, retry bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", 0, false, fmt.Errorf("build request: %w", err)
	}
	for k, vals := range header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return "", 0, isRetryableNetErr(err), fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		classified := classifyAPIError(decodeAPIError(resp), resp)
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", retryAfter(resp), true, classified
		}
		return "", 0, false, classified
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return "", 0, false, fmt.Errorf("decode response: %w", err)
	}
	return extractRequestID(resp), 0, false, nil
}

// asUnreachable wraps transport-level failures for local runtimes.
func asUnreachable(host string, err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return &UnreachableError{Host: host, Err: err}
	}
	return err
}

func isRetryableNetErr(err error) bool {
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// withJitter returns a backoff duration with +/- 20% jitter applied.
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
