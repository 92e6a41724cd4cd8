package store

import (
	"errors"
	"strings"
)

// ErrNotFound signals a missing document or index.
var ErrNotFound = errors.New("store: not found")

// Op constants name backend operations for error context.
const (
	OpClusterHealth = "cluster-health"
	OpCreateIndex   = "create-index"
	OpDeleteIndex   = "delete-index"
	OpIndexExists   = "index-exists"
	OpListIndices   = "list-indices"
	OpIndexMeta     = "index-meta"
	OpFlush         = "flush"
	OpForceMerge    = "force-merge"
	OpGet           = "get-document"
	OpIndexDoc      = "index-document"
	OpDeleteDoc     = "delete-document"
	OpBulk          = "bulk"
	OpSearch        = "search"
	OpScroll        = "scroll"
	OpReleaseScroll = "release-scroll"
)

// TransportError is an I/O failure reaching the backend. Retried per the
// relevant policy, then surfaced.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// BackendError is a structured failure reported by the store: a message plus
// a causal chain, optionally with per-shard failure detail.
type BackendError struct {
	Op     string
	Status int
	Reason string
	// Causes are nested root-cause reasons.
	Causes []string
	// ShardFailures are per-shard failure reasons; non-empty means at
	// least one shard reported a failure.
	ShardFailures []string
}

// Error flattens the causal chain into one human-readable string,
// deduplicating repeated reasons.
func (e *BackendError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	b.WriteString(": ")
	if e.Reason != "" {
		b.WriteString(e.Reason)
	} else {
		b.WriteString("backend failure")
	}
	seen := map[string]bool{e.Reason: true}
	for _, c := range append(append([]string{}, e.Causes...), e.ShardFailures...) {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		b.WriteString("; ")
		b.WriteString(c)
	}
	return b.String()
}

// HasShardFailures reports whether any shard reported a failure.
func (e *BackendError) HasShardFailures() bool { return len(e.ShardFailures) > 0 }

// IsTransport reports whether err is an I/O failure reaching the backend.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsBackend reports whether the store itself reported a structured failure.
func IsBackend(err error) bool {
	var be *BackendError
	return errors.As(err, &be)
}

// HasShardFailure reports whether err carries per-shard failure detail.
func HasShardFailure(err error) bool {
	var be *BackendError
	return errors.As(err, &be) && be.HasShardFailures()
}
