package search

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/matchdex/internal/domain/document"
	opts "github.com/kailas-cloud/matchdex/internal/domain/search"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// fakeSearcher serves a fixed hit list through direct and scrolled search.
type fakeSearcher struct {
	hits            []store.Hit
	maxResultWindow int

	searchCalls  []*store.SearchRequest
	scrollOpens  []*store.SearchRequest
	scrollPos    int
	scrollSize   int
	released     []string
	metaCalls    int
	failWithSort bool
}

func (f *fakeSearcher) missingSortErr() error {
	return &store.BackendError{
		Op: store.OpSearch, Status: 400,
		Reason: "No mapping found for [missing] in order to sort on",
	}
}

func (f *fakeSearcher) Search(_ context.Context, _ string, req *store.SearchRequest) (*store.SearchResponse, error) {
	f.searchCalls = append(f.searchCalls, req)
	if f.failWithSort && len(req.Sort) > 0 {
		return nil, f.missingSortErr()
	}
	from := req.From
	if from > len(f.hits) {
		from = len(f.hits)
	}
	end := from + req.Size
	if end > len(f.hits) {
		end = len(f.hits)
	}
	return &store.SearchResponse{Total: len(f.hits), Hits: f.hits[from:end]}, nil
}

func (f *fakeSearcher) OpenScroll(_ context.Context, _ string, req *store.SearchRequest, _ time.Duration) (*store.SearchResponse, error) {
	f.scrollOpens = append(f.scrollOpens, req)
	if f.failWithSort && len(req.Sort) > 0 {
		return nil, f.missingSortErr()
	}
	f.scrollSize = req.Size
	f.scrollPos = 0
	return f.nextScrollPage(), nil
}

func (f *fakeSearcher) ContinueScroll(_ context.Context, scrollID string, _ time.Duration) (*store.SearchResponse, error) {
	if scrollID != "cur" {
		return nil, fmt.Errorf("unknown cursor %q", scrollID)
	}
	return f.nextScrollPage(), nil
}

func (f *fakeSearcher) ReleaseScroll(_ context.Context, scrollID string) error {
	f.released = append(f.released, scrollID)
	return nil
}

func (f *fakeSearcher) nextScrollPage() *store.SearchResponse {
	end := f.scrollPos + f.scrollSize
	if end > len(f.hits) {
		end = len(f.hits)
	}
	page := f.hits[f.scrollPos:end]
	f.scrollPos = end
	return &store.SearchResponse{Total: len(f.hits), Hits: page, ScrollID: "cur"}
}

func (f *fakeSearcher) IndexMeta(_ context.Context, name string) (*store.IndexMeta, error) {
	f.metaCalls++
	return &store.IndexMeta{Name: name, UUID: "u", MaxResultWindow: f.maxResultWindow}, nil
}

func hitsFor(n int) []store.Hit {
	hits := make([]store.Hit, 0, n)
	for i := 0; i < n; i++ {
		hits = append(hits, store.Hit{
			ID:     fmt.Sprintf("doc-%02d", i),
			Score:  float64(n - i),
			Source: map[string]any{"name": fmt.Sprintf("world %d", i)},
		})
	}
	return hits
}

func TestSearchZeroLimitShortCircuits(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(5)}
	c := NewClient(f, []string{"people"})

	res, err := c.Search(context.Background(), FreeText("world"), opts.Options{Limit: 0, Offset: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 0 || res.MaybeMore {
		t.Errorf("zero limit must return empty with maybeMore=false: %+v", res)
	}
	if len(f.searchCalls) != 0 || len(f.scrollOpens) != 0 {
		t.Error("zero limit must not hit the backend")
	}
}

func TestSearchDirectWindow(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(25)}
	c := NewClient(f, []string{"people"})

	res, err := c.Search(context.Background(), FreeText("world"), opts.Options{Limit: 10, Offset: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 10 {
		t.Fatalf("got %d results, want 10", len(res.Results))
	}
	if !res.MaybeMore {
		t.Error("25 matches beyond a window of 10 must report maybeMore")
	}
	if res.Results[0].ID != "doc-00" {
		t.Errorf("first result = %q", res.Results[0].ID)
	}
}

func TestSearchUnlimitedReturnsAll(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(25)}
	c := NewClient(f, []string{"people"})

	res, err := c.Search(context.Background(), FreeText("world"), opts.Options{Limit: opts.Unlimited, Offset: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 25 {
		t.Fatalf("got %d results, want 25", len(res.Results))
	}
	if res.MaybeMore {
		t.Error("unlimited query must report maybeMore=false")
	}
	if len(f.scrollOpens) != 1 {
		t.Error("unlimited query must scroll")
	}
	if len(f.released) != 1 {
		t.Error("scroll cursor must be released")
	}
}

type allowSome struct {
	user    string
	allowed map[string]bool
}

func (s allowSome) UserID() string { return s.user }
func (s allowSome) Redact(id string, doc document.Document) (document.Document, bool) {
	return doc, s.allowed[id]
}

func TestSecurityFilteringDecrementsTotal(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(10)}
	c := NewClient(f, []string{"people"})

	allowed := map[string]bool{}
	for i := 0; i < 6; i++ {
		allowed[fmt.Sprintf("doc-%02d", i)] = true
	}
	sec := allowSome{user: "u1", allowed: allowed}

	res, err := c.Search(context.Background(), FreeText("world"),
		opts.Options{Limit: opts.Unlimited, Offset: 1, Security: sec})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 6 {
		t.Fatalf("got %d results, want 6 visible", len(res.Results))
	}
	if res.MaybeMore {
		t.Error("all visible hits consumed, maybeMore must be false")
	}
}

func TestSecurityFilteringForcesScroll(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(5)}
	c := NewClient(f, []string{"people"})

	sec := allowSome{user: "u1", allowed: map[string]bool{
		"doc-00": true, "doc-01": true, "doc-02": true, "doc-03": true, "doc-04": true,
	}}
	_, err := c.Search(context.Background(), FreeText("world"),
		opts.Options{Limit: 3, Offset: 1, Security: sec})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(f.scrollOpens) != 1 {
		t.Error("security filtering must force scrolling")
	}
	if len(f.released) != 1 {
		t.Error("scroll cursor must be released")
	}
}

func TestScenarioWorldDocuments(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(7)}
	c := NewClient(f, []string{"people"})

	res, err := c.Search(context.Background(), FreeText("world"), opts.Options{Limit: 3, Offset: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Results) != 3 {
		t.Fatalf("got %d results, want 3", len(res.Results))
	}
	if !res.MaybeMore {
		t.Error("4 remaining matches must report maybeMore")
	}
	for i := 1; i < len(res.Results); i++ {
		if res.Results[i].Score > res.Results[i-1].Score {
			t.Errorf("results must rank highest score first: %v then %v",
				res.Results[i-1].Score, res.Results[i].Score)
		}
	}
}

func TestDefaultSortIsScoreThenDocumentOrder(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(3)}
	c := NewClient(f, []string{"people"})

	if _, err := c.Search(context.Background(), FreeText("x"), opts.Options{Limit: 2, Offset: 1}); err != nil {
		t.Fatalf("Search: %v", err)
	}

	sort := f.searchCalls[0].Sort
	if len(sort) != 2 || sort[0].Field != "_score" || sort[0].Ascending ||
		sort[1].Field != "_doc" || !sort[1].Ascending {
		t.Errorf("default sort = %+v", sort)
	}
}

func TestMissingSortFieldRetriesUnsorted(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(3), failWithSort: true}
	c := NewClient(f, []string{"people"})

	res, err := c.Search(context.Background(), FreeText("x"),
		opts.Options{Limit: 2, Offset: 1, SortFields: []string{"missing"}})
	if err != nil {
		t.Fatalf("retry without sort must succeed: %v", err)
	}
	if len(res.Results) != 2 {
		t.Errorf("got %d results, want 2", len(res.Results))
	}
	if len(f.searchCalls) != 2 {
		t.Fatalf("expected failing sorted call then unsorted retry, got %d calls", len(f.searchCalls))
	}
	if len(f.searchCalls[1].Sort) != 0 {
		t.Error("retry must clear all sort fields")
	}
}

func TestMissingSortFieldWithDefaultSortFails(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(3), failWithSort: true}
	c := NewClient(f, []string{"people"})

	_, err := c.Search(context.Background(), FreeText("x"), opts.Options{Limit: 2, Offset: 1})
	if err == nil {
		t.Fatal("without explicit sort fields the failure must surface")
	}
}

func TestScrollPageSizeHeuristic(t *testing.T) {
	tests := []struct {
		name    string
		window  int
		maxPage int
		want    int
	}{
		{"unlimited uses backend max", opts.Unlimited, 10000, 10000},
		{"window above max uses backend max", 12000, 10000, 10000},
		{"small window uses fixed default", 100, 10000, 2500},
		{"window at 75 percent of max uses max", 7500, 10000, 10000},
		{"mid window uses window", 5000, 10000, 5000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSearcher{maxResultWindow: tt.maxPage}
			c := NewClient(f, []string{"people"})
			if got := c.scrollPageSize(context.Background(), tt.window); got != tt.want {
				t.Errorf("scrollPageSize(%d) = %d, want %d", tt.window, got, tt.want)
			}
		})
	}
}

func TestMaxPageSizeDetectedOncePerClient(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(3), maxResultWindow: 5000}
	c := NewClient(f, []string{"people", "orgs"})

	ctx := context.Background()
	if got := c.maxPageSize(ctx); got != 5000 {
		t.Errorf("maxPageSize = %d, want 5000", got)
	}
	c.maxPageSize(ctx)
	c.maxPageSize(ctx)
	if f.metaCalls != 2 {
		t.Errorf("detection must run once per client (one call per index), got %d", f.metaCalls)
	}
}

func TestTypeFilterInjection(t *testing.T) {
	modes := map[opts.TypeFilterMode][]string{
		opts.TypeFilterEntity:     {"entityType"},
		opts.TypeFilterIdentifier: {"identifiers.type"},
		opts.TypeFilterBoth:       {"entityType", "identifiers.type"},
	}

	for mode, wantFields := range modes {
		body := withTypeFilter(FreeText("x").Body(), &opts.TypeFilter{Type: "person", Mode: mode})
		boolQ, ok := body["bool"].(map[string]any)
		if !ok {
			t.Fatalf("mode %v: filter must wrap in bool query", mode)
		}
		filters := boolQ["filter"].([]any)
		mm := filters[0].(map[string]any)["multi_match"].(map[string]any)
		fields := mm["fields"].([]string)
		if len(fields) != len(wantFields) {
			t.Errorf("mode %v: fields = %v, want %v", mode, fields, wantFields)
			continue
		}
		for i, want := range wantFields {
			if fields[i] != want {
				t.Errorf("mode %v: fields = %v, want %v", mode, fields, wantFields)
			}
		}
	}
}

func TestFacetCountsRejectsOffsets(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(3)}
	c := NewClient(f, []string{"people"})

	_, err := c.FacetCounts(context.Background(), FreeText("x"), "name", 100, opts.Options{Offset: 2})
	if err == nil || !strings.Contains(err.Error(), "offset") {
		t.Errorf("facet queries must reject offsets other than 1, got %v", err)
	}
}

func TestFacetCountsTallySorted(t *testing.T) {
	f := &fakeSearcher{hits: []store.Hit{
		{ID: "1", Source: map[string]any{"country": "de"}},
		{ID: "2", Source: map[string]any{"country": "de"}},
		{ID: "3", Source: map[string]any{"country": "at"}},
		{ID: "4", Source: map[string]any{"country": "ch"}},
		{ID: "5", Source: map[string]any{"country": "at"}},
		{ID: "6", Source: map[string]any{"other": true}},
	}}
	c := NewClient(f, []string{"people"})

	counts, err := c.FacetCounts(context.Background(), FreeText("x"), "country", 100, opts.Options{Offset: 1})
	if err != nil {
		t.Fatalf("FacetCounts: %v", err)
	}

	want := []opts.FacetCount{{Value: "at", Count: 2}, {Value: "de", Count: 2}, {Value: "ch", Count: 1}}
	if len(counts) != len(want) {
		t.Fatalf("counts = %+v", counts)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("counts[%d] = %+v, want %+v", i, counts[i], want[i])
		}
	}
}

func TestFacetQueryIsSeededBySampleSize(t *testing.T) {
	f := &fakeSearcher{hits: hitsFor(3)}
	c := NewClient(f, []string{"people"})

	if _, err := c.FacetCounts(context.Background(), FreeText("x"), "name", 42, opts.Options{Offset: 1}); err != nil {
		t.Fatalf("FacetCounts: %v", err)
	}

	fn := f.searchCalls[0].Query["function_score"].(map[string]any)
	rs := fn["random_score"].(map[string]any)
	if rs["seed"] != 42 {
		t.Errorf("random sample must be seeded by the sample size, got %v", rs["seed"])
	}
}
