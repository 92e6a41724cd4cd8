// Package store defines the contract of the remote document-store search
// engine. Driver packages (elastic, opensearch) implement it; everything
// above this package is backend-agnostic.
package store

import (
	"context"
	"time"
)

// Readiness is the tri-state outcome of a health probe. An I/O failure is
// Unknown, never NotReady.
type Readiness string

// Readiness states.
const (
	Ready    Readiness = "ready"
	NotReady Readiness = "not-ready"
	Unknown  Readiness = "unknown"
)

// Store is the full backend contract.
type Store interface {
	Probe
	IndexAdmin
	Documents
	Searcher
	Close()
}

// Probe is the readiness surface. Ready never returns an error.
type Probe interface {
	// Ready probes cluster health against the minimum acceptable status.
	Ready(ctx context.Context) Readiness
	// WaitForReady polls Ready until the store responds or timeout expires.
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// IndexAdmin is the index lifecycle surface.
type IndexAdmin interface {
	CreateIndex(ctx context.Context, name string, settings, mappings map[string]any) (bool, error)
	DeleteIndex(ctx context.Context, name string) (bool, error)
	IndexExists(ctx context.Context, name string) (bool, error)
	ListIndices(ctx context.Context) ([]string, error)
	// IndexMeta returns settings and mappings including the internal index
	// identity, for drift detection.
	IndexMeta(ctx context.Context, name string) (*IndexMeta, error)
	// Flush forces visibility of recent writes. Shard-level failures are an
	// error, not silently swallowed.
	Flush(ctx context.Context, index string) error
	// ForceMerge merges the index down to a single segment.
	ForceMerge(ctx context.Context, index string) error
}

// Documents is the single-document and bulk surface.
type Documents interface {
	GetDocument(ctx context.Context, index, id string) (map[string]any, bool, error)
	// IndexDocument indexes or updates one document, honoring the op's
	// script / doc-as-upsert settings.
	IndexDocument(ctx context.Context, index string, op *DocumentOp) error
	// DeleteDocument reports whether the document existed.
	DeleteDocument(ctx context.Context, index, id string) (bool, error)
	// Bulk submits heterogeneous per-item operations in one call and
	// returns one outcome per attempted item, in submission order. The
	// outcome slice may be shorter than ops if the backend aborted the
	// batch partway.
	Bulk(ctx context.Context, index string, ops []BulkOp) ([]BulkItemOutcome, error)
}

// Searcher is the query surface, including the scroll cursor lifecycle.
type Searcher interface {
	Search(ctx context.Context, index string, req *SearchRequest) (*SearchResponse, error)
	// OpenScroll starts a cursor; the response carries the scroll ID.
	OpenScroll(ctx context.Context, index string, req *SearchRequest, keepAlive time.Duration) (*SearchResponse, error)
	ContinueScroll(ctx context.Context, scrollID string, keepAlive time.Duration) (*SearchResponse, error)
	// ReleaseScroll frees the cursor. Always called, success or failure.
	ReleaseScroll(ctx context.Context, scrollID string) error
}
