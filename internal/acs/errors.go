package acs

import (
	"errors"
	"fmt"
)

// ErrMalformedTable marks a response that is not a header-first table of
// cells, or that lacks the name column.
var ErrMalformedTable = errors.New("malformed table")

// FetchError is the only failure a fetch reports. It aborts the pipeline
// run that triggered it.
type FetchError struct {
	Op         string
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "fetch error"
	}
	if e.StatusCode != 0 {
		return fmt.Sprintf("acs %s: status=%d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("acs %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError carries a non-2xx provider response body.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
