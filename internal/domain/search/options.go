// Package search holds the request/response value types for search calls.
package search

import (
	"github.com/kailas-cloud/matchdex/internal/domain/document"
)

// Unlimited is the sentinel limit meaning "return every match".
const Unlimited = -1

// TypeFilterMode selects which fields an entity-type filter matches against.
type TypeFilterMode int

// Type filter modes.
const (
	// TypeFilterEntity filters on entity-level type keyword fields.
	TypeFilterEntity TypeFilterMode = iota
	// TypeFilterIdentifier filters on identifier-level type keyword fields.
	TypeFilterIdentifier
	// TypeFilterBoth filters on both field sets.
	TypeFilterBoth
)

// TypeFilter injects a required phrase match over type keyword fields.
type TypeFilter struct {
	Type string
	Mode TypeFilterMode
}

// SecurityContext decides per-user visibility and redaction of documents.
// Implementations are supplied by the caller; the search client only
// consumes the contract.
type SecurityContext interface {
	// UserID identifies the requesting user, used as part of the
	// redaction cache key.
	UserID() string
	// Redact returns a redacted copy of the document and reports whether
	// the user may view it at all. The input document must not be mutated.
	Redact(id string, doc document.Document) (document.Document, bool)
}

// Options describes one search request.
type Options struct {
	// Limit is the maximum number of results, or Unlimited. Zero requests
	// an empty result without querying the backend.
	Limit int
	// Offset is 1-based.
	Offset int
	// Highlight requests highlighted fragments on each hit.
	Highlight bool
	// SortFields replace the default score-then-document-order sort.
	SortFields []string
	// Security enables per-result redaction filtering when non-nil.
	Security SecurityContext
	// TypeFilter restricts results to one entity type when non-nil.
	TypeFilter *TypeFilter
}

// Normalized returns a copy with the offset floored to 1.
func (o Options) Normalized() Options {
	if o.Offset < 1 {
		o.Offset = 1
	}
	return o
}

// Window is the last absolute result position the request needs, or
// Unlimited when every match is requested.
func (o Options) Window() int {
	if o.Limit == Unlimited {
		return Unlimited
	}
	return o.Limit + o.Offset - 1
}
