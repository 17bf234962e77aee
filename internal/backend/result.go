package backend

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable means the slot has no loaded instance.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrAllCandidatesFailed is returned by Load when no candidate could be loaded.
	ErrAllCandidatesFailed = errors.New("all candidates failed")
	// ErrTimeout means the invocation did not finish within its deadline.
	ErrTimeout = errors.New("backend invocation timed out")
	// ErrUnknownRole is returned for roles outside the fixed set.
	ErrUnknownRole = errors.New("unknown backend role")
)

// Status classifies an invocation outcome.
type Status int

const (
	StatusOK Status = iota
	StatusUnavailable
	StatusFailed
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusUnavailable:
		return "unavailable"
	case StatusFailed:
		return "failed"
	case StatusTimeout:
		return "timeout"
	}
	return "unknown"
}

// Result is the outcome of Invoke. Value always holds something usable: the backend's
// output when Status is StatusOK, the role's fallback value otherwise.
type Result struct {
	Status  Status
	Value   any
	Err     error
	Backend string
	Elapsed time.Duration
}

// OK reports whether the value came from the backend.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Cacheable reports whether a response built from this result may be cached.
// Failures and timeouts are transient and must be retried on the next request.
func (r Result) Cacheable() bool {
	return r.Status == StatusOK || r.Status == StatusUnavailable
}
