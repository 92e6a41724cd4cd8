package search

import (
	"github.com/kailas-cloud/matchdex/internal/domain/document"
)

// Result is one scored hit.
type Result struct {
	ID          string
	Score       float64
	Document    document.Document
	Highlighted map[string][]string
}

// Results is the outcome of one search request.
type Results struct {
	// MaybeMore reports whether matches beyond the returned window may
	// exist, after security filtering.
	MaybeMore bool
	Limit     int
	Offset    int
	Query     string
	Type      string
	Results   []Result
}

// FacetCount is one tallied facet value.
type FacetCount struct {
	Value string
	Count int
}
