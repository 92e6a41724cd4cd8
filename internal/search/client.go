// Package search executes queries against the document store: query
// construction, pagination strategy selection, scroll lifecycle, and
// security-aware result filtering with a redaction cache.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain/document"
	opts "github.com/kailas-cloud/matchdex/internal/domain/search"
	"github.com/kailas-cloud/matchdex/internal/store"
)

const (
	// maxWindow is the largest window served by direct size+from paging.
	maxWindow = 10000
	// defaultScrollPage is the page size for small scrolled windows, to
	// avoid excessive round-trips.
	defaultScrollPage = 2500
	// defaultMaxPage stands in when the backend page cap is undetectable.
	defaultMaxPage = 10000
)

// Backend is the store surface the client needs.
type Backend interface {
	store.Searcher
	IndexMeta(ctx context.Context, name string) (*store.IndexMeta, error)
}

// Client executes search requests against a fixed set of indices.
type Client struct {
	backend   Backend
	indices   []string
	cache     *redactionCache
	keepAlive time.Duration
	log       *zap.Logger

	// maxPage is the backend's page cap, detected once per client as the
	// minimum across all queried indices.
	maxPageOnce sync.Once
	maxPage     int
}

// Option configures a Client.
type Option func(*Client)

// WithRedactionCache sizes the redaction cache.
func WithRedactionCache(size int, ttl time.Duration) Option {
	return func(c *Client) { c.cache = newRedactionCache(size, ttl) }
}

// WithKeepAlive sets the scroll cursor keep-alive.
func WithKeepAlive(d time.Duration) Option {
	return func(c *Client) { c.keepAlive = d }
}

// WithLogger sets the client's logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// NewClient creates a search client over the given indices.
func NewClient(backend Backend, indices []string, options ...Option) *Client {
	c := &Client{
		backend:   backend,
		indices:   indices,
		keepAlive: time.Minute,
		log:       zap.NewNop(),
	}
	for _, opt := range options {
		opt(c)
	}
	if c.cache == nil {
		c.cache = newRedactionCache(0, 0)
	}
	return c
}

func (c *Client) target() string { return strings.Join(c.indices, ",") }

// Search executes the query under the given options.
func (c *Client) Search(ctx context.Context, q Query, o opts.Options) (*opts.Results, error) {
	o = o.Normalized()

	results := &opts.Results{
		Limit:  o.Limit,
		Offset: o.Offset,
		Query:  q.Text,
	}
	if o.TypeFilter != nil {
		results.Type = o.TypeFilter.Type
	}
	// A zero limit asks for nothing; skip the backend entirely.
	if o.Limit == 0 {
		return results, nil
	}

	body := withTypeFilter(q.Body(), o.TypeFilter)
	var err error
	if c.needsScroll(ctx, o) {
		err = c.searchScrolled(ctx, body, o, results)
	} else {
		err = c.searchDirect(ctx, body, o, results)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// needsScroll decides between direct windowing and cursor-based scrolling.
// Security filtering forces scrolling because dropped hits require fetching
// speculatively beyond the requested window.
func (c *Client) needsScroll(ctx context.Context, o opts.Options) bool {
	if o.Limit == opts.Unlimited || o.Security != nil {
		return true
	}
	return o.Limit > c.maxPageSize(ctx) || o.Window() > maxWindow
}

func (c *Client) searchDirect(
	ctx context.Context, body map[string]any, o opts.Options, results *opts.Results,
) error {
	req := &store.SearchRequest{
		Query:     body,
		Size:      o.Limit,
		From:      o.Offset - 1,
		Sort:      sortFields(o),
		Highlight: highlightFields(o),
	}
	resp, err := c.searchWithSortRetry(ctx, req, o)
	if err != nil {
		return err
	}

	for _, hit := range resp.Hits {
		results.Results = append(results.Results, opts.Result{
			ID:          hit.ID,
			Score:       hit.Score,
			Document:    document.FromMap(hit.Source),
			Highlighted: hit.Highlight,
		})
	}
	results.MaybeMore = resp.Total > o.Window()
	return nil
}

func (c *Client) searchScrolled(
	ctx context.Context, body map[string]any, o opts.Options, results *opts.Results,
) error {
	window := o.Window()
	req := &store.SearchRequest{
		Query:     body,
		Size:      c.scrollPageSize(ctx, window),
		Sort:      sortFields(o),
		Highlight: highlightFields(o),
	}

	resp, err := c.openScrollWithSortRetry(ctx, req, o)
	if err != nil {
		return err
	}
	scrollID := resp.ScrollID
	// The cursor is released no matter how the loop ends.
	defer func() {
		if scrollID == "" {
			return
		}
		if relErr := c.backend.ReleaseScroll(ctx, scrollID); relErr != nil {
			c.log.Warn("failed to release scroll cursor", zap.Error(relErr))
		}
	}()

	total := resp.Total
	skip := o.Offset - 1
	seen := 0 // post-filter hits observed so far

	for {
		for _, hit := range resp.Hits {
			doc := document.FromMap(hit.Source)
			if o.Security != nil {
				redacted, allowed := c.cache.redact(o.Security, hit.ID, doc)
				if !allowed {
					// Keep MaybeMore honest for invisible hits.
					total--
					continue
				}
				doc = redacted
			}
			seen++
			if seen <= skip {
				continue
			}
			if window != opts.Unlimited && len(results.Results) >= o.Limit {
				results.MaybeMore = total > window
				return nil
			}
			results.Results = append(results.Results, opts.Result{
				ID:          hit.ID,
				Score:       hit.Score,
				Document:    doc,
				Highlighted: hit.Highlight,
			})
		}

		if len(resp.Hits) == 0 {
			break
		}
		if window != opts.Unlimited && len(results.Results) >= o.Limit && seen >= window {
			break
		}

		resp, err = c.backend.ContinueScroll(ctx, scrollID, c.keepAlive)
		if err != nil {
			return fmt.Errorf("continue scroll: %w", err)
		}
		if resp.ScrollID != "" {
			scrollID = resp.ScrollID
		}
	}

	if window == opts.Unlimited {
		results.MaybeMore = false
	} else {
		results.MaybeMore = total > window
	}
	return nil
}

// scrollPageSize picks the page size for a scrolled query: the backend max
// for unlimited or max-exceeding windows, the fixed default for small
// windows, the backend max once a window reaches 75% of it, otherwise the
// window itself.
func (c *Client) scrollPageSize(ctx context.Context, window int) int {
	maxPage := c.maxPageSize(ctx)
	switch {
	case window == opts.Unlimited:
		return maxPage
	case window >= maxPage:
		return maxPage
	case window < defaultScrollPage:
		return defaultScrollPage
	case window*4 >= maxPage*3:
		return maxPage
	default:
		return window
	}
}

// maxPageSize detects the backend's page cap once per client instance, as
// the minimum max_result_window across all queried indices.
func (c *Client) maxPageSize(ctx context.Context) int {
	c.maxPageOnce.Do(func() {
		c.maxPage = defaultMaxPage
		for _, index := range c.indices {
			meta, err := c.backend.IndexMeta(ctx, index)
			if err != nil {
				c.log.Warn("could not detect max page size",
					zap.String("index", index), zap.Error(err))
				continue
			}
			if meta.MaxResultWindow > 0 && meta.MaxResultWindow < c.maxPage {
				c.maxPage = meta.MaxResultWindow
			}
		}
	})
	return c.maxPage
}

// searchWithSortRetry executes the request; a failure caused by a missing
// sort field is retried once with all sort fields cleared.
func (c *Client) searchWithSortRetry(
	ctx context.Context, req *store.SearchRequest, o opts.Options,
) (*store.SearchResponse, error) {
	resp, err := c.backend.Search(ctx, c.target(), req)
	if err != nil && len(o.SortFields) > 0 && isMissingSortField(err) {
		c.log.Warn("sort field missing from mapping, retrying unsorted", zap.Error(err))
		unsorted := *req
		unsorted.Sort = nil
		return c.backend.Search(ctx, c.target(), &unsorted)
	}
	return resp, err
}

func (c *Client) openScrollWithSortRetry(
	ctx context.Context, req *store.SearchRequest, o opts.Options,
) (*store.SearchResponse, error) {
	resp, err := c.backend.OpenScroll(ctx, c.target(), req, c.keepAlive)
	if err != nil && len(o.SortFields) > 0 && isMissingSortField(err) {
		c.log.Warn("sort field missing from mapping, retrying unsorted", zap.Error(err))
		unsorted := *req
		unsorted.Sort = nil
		return c.backend.OpenScroll(ctx, c.target(), &unsorted, c.keepAlive)
	}
	return resp, err
}

// sortFields renders explicit sort fields, or the deterministic default of
// descending score then ascending internal document order.
func sortFields(o opts.Options) []store.SortField {
	if len(o.SortFields) > 0 {
		fields := make([]store.SortField, 0, len(o.SortFields))
		for _, f := range o.SortFields {
			fields = append(fields, store.SortField{Field: f, Ascending: true})
		}
		return fields
	}
	return []store.SortField{
		{Field: "_score", Ascending: false},
		{Field: "_doc", Ascending: true},
	}
}

func highlightFields(o opts.Options) []string {
	if !o.Highlight {
		return nil
	}
	return []string{"*"}
}

// isMissingSortField recognizes the backend's missing-sort-field failure.
func isMissingSortField(err error) bool {
	var be *store.BackendError
	if !errors.As(err, &be) {
		return false
	}
	return strings.Contains(be.Error(), "No mapping found for")
}
