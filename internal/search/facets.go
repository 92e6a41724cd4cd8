package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/kailas-cloud/matchdex/internal/domain"
	"github.com/kailas-cloud/matchdex/internal/domain/document"
	opts "github.com/kailas-cloud/matchdex/internal/domain/search"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// FacetCounts tallies values of the facet path across a random sample of the
// query's matches rather than the full result set. The sample is drawn with
// a deterministic re-scoring seeded by the sample size, so identical
// requests observe the same sample. Only offset 1 is permitted.
func (c *Client) FacetCounts(
	ctx context.Context, q Query, facetPath string, sampleSize int, o opts.Options,
) ([]opts.FacetCount, error) {
	o = o.Normalized()
	if o.Offset != 1 {
		return nil, domain.Invalid("facet query", "offset must be 1, got %d", o.Offset)
	}
	if sampleSize <= 0 {
		return nil, domain.Invalid("facet query", "sample size must be positive, got %d", sampleSize)
	}

	body := map[string]any{
		"function_score": map[string]any{
			"query": withTypeFilter(q.Body(), o.TypeFilter),
			"random_score": map[string]any{
				"seed":  sampleSize,
				"field": "_seq_no",
			},
		},
	}

	size := sampleSize
	if maxPage := c.maxPageSize(ctx); size > maxPage {
		size = maxPage
	}
	resp, err := c.backend.Search(ctx, c.target(), &store.SearchRequest{
		Query: body,
		Size:  size,
	})
	if err != nil {
		return nil, fmt.Errorf("facet sample: %w", err)
	}

	tally := map[string]int{}
	for _, hit := range resp.Hits {
		doc := document.FromMap(hit.Source)
		value, ok := doc.Get(facetPath)
		if !ok || value == nil {
			continue
		}
		for _, v := range facetValues(value) {
			tally[v]++
		}
	}

	counts := make([]opts.FacetCount, 0, len(tally))
	for value, count := range tally {
		counts = append(counts, opts.FacetCount{Value: value, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Value < counts[j].Value
	})
	return counts, nil
}

// facetValues flattens a facet path's value: lists contribute each element.
func facetValues(value any) []string {
	switch v := value.(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	default:
		return []string{fmt.Sprint(v)}
	}
}
