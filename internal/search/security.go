package search

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/matchdex/internal/domain/document"
	opts "github.com/kailas-cloud/matchdex/internal/domain/search"
	"github.com/kailas-cloud/matchdex/internal/metrics"
)

// redactionEntry is one cached redaction decision.
type redactionEntry struct {
	doc     document.Document
	allowed bool
}

// redactionCache memoizes per-user redaction decisions in a bounded,
// time-expiring structure. Concurrent lookups for the same key may both
// compute; correctness, not work-avoidance, is the invariant.
type redactionCache struct {
	lru *expirable.LRU[string, redactionEntry]
}

func newRedactionCache(size int, ttl time.Duration) *redactionCache {
	if size <= 0 {
		size = 10000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &redactionCache{lru: expirable.NewLRU[string, redactionEntry](size, nil, ttl)}
}

// redact returns the redacted document and whether the user may view it,
// consulting the cache keyed by user and document ID first.
func (c *redactionCache) redact(
	sec opts.SecurityContext, id string, doc document.Document,
) (document.Document, bool) {
	key := sec.UserID() + "\x00" + id
	if entry, ok := c.lru.Get(key); ok {
		metrics.RedactionCacheTotal.WithLabelValues("hit").Inc()
		return entry.doc, entry.allowed
	}
	metrics.RedactionCacheTotal.WithLabelValues("miss").Inc()

	redacted, allowed := sec.Redact(id, doc)
	c.lru.Add(key, redactionEntry{doc: redacted, allowed: allowed})
	return redacted, allowed
}
