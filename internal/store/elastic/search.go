package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kailas-cloud/matchdex/internal/store"
)

// Search executes one direct query against an index.
func (s *Store) Search(
	ctx context.Context, index string, req *store.SearchRequest,
) (*store.SearchResponse, error) {
	resp, err := s.execute(ctx, store.OpSearch, http.MethodPost,
		"/"+index+"/_search", searchBody(req), nil)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, backendError(store.OpSearch, resp)
	}
	return parseSearchResponse(store.OpSearch, resp.Body())
}

// OpenScroll starts a scroll cursor over the index.
func (s *Store) OpenScroll(
	ctx context.Context, index string, req *store.SearchRequest, keepAlive time.Duration,
) (*store.SearchResponse, error) {
	resp, err := s.execute(ctx, store.OpScroll, http.MethodPost,
		"/"+index+"/_search", searchBody(req),
		map[string]string{"scroll": keepAliveString(keepAlive)})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, backendError(store.OpScroll, resp)
	}
	return parseSearchResponse(store.OpScroll, resp.Body())
}

// ContinueScroll fetches the next page of an open cursor.
func (s *Store) ContinueScroll(
	ctx context.Context, scrollID string, keepAlive time.Duration,
) (*store.SearchResponse, error) {
	body := map[string]any{
		"scroll":    keepAliveString(keepAlive),
		"scroll_id": scrollID,
	}
	resp, err := s.execute(ctx, store.OpScroll, http.MethodPost, "/_search/scroll", body, nil)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, backendError(store.OpScroll, resp)
	}
	return parseSearchResponse(store.OpScroll, resp.Body())
}

// ReleaseScroll frees a cursor on the backend.
func (s *Store) ReleaseScroll(ctx context.Context, scrollID string) error {
	body := map[string]any{"scroll_id": []string{scrollID}}
	resp, err := s.execute(ctx, store.OpReleaseScroll, http.MethodDelete, "/_search/scroll", body, nil)
	if err != nil {
		return err
	}
	// A cursor that already expired comes back 404; releasing it is done
	// either way.
	if resp.IsError() && resp.StatusCode() != http.StatusNotFound {
		return backendError(store.OpReleaseScroll, resp)
	}
	return nil
}

// searchBody renders the request into the backend's search body.
func searchBody(req *store.SearchRequest) map[string]any {
	body := map[string]any{
		"query":            req.Query,
		"size":             req.Size,
		"track_total_hits": true,
	}
	if req.From > 0 {
		body["from"] = req.From
	}
	if req.MinScore > 0 {
		body["min_score"] = req.MinScore
	}
	if len(req.Sort) > 0 {
		sort := make([]any, 0, len(req.Sort))
		for _, sf := range req.Sort {
			order := "desc"
			if sf.Ascending {
				order = "asc"
			}
			sort = append(sort, map[string]any{sf.Field: map[string]any{"order": order}})
		}
		body["sort"] = sort
	}
	if len(req.Highlight) > 0 {
		fields := map[string]any{}
		for _, f := range req.Highlight {
			fields[f] = map[string]any{}
		}
		body["highlight"] = map[string]any{"fields": fields}
	}
	return body
}

func keepAliveString(d time.Duration) string {
	if d <= 0 {
		d = time.Minute
	}
	return fmt.Sprintf("%ds", int(d.Seconds()))
}

func parseSearchResponse(op string, body []byte) (*store.SearchResponse, error) {
	var out struct {
		ScrollID string `json:"_scroll_id"`
		Hits     struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID        string              `json:"_id"`
				Score     *float64            `json:"_score"`
				Source    map[string]any      `json:"_source"`
				Highlight map[string][]string `json:"highlight"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("parse %s response: %w", op, err)
	}

	resp := &store.SearchResponse{
		Total:    out.Hits.Total.Value,
		ScrollID: out.ScrollID,
		Hits:     make([]store.Hit, 0, len(out.Hits.Hits)),
	}
	for _, h := range out.Hits.Hits {
		hit := store.Hit{ID: h.ID, Source: h.Source, Highlight: h.Highlight}
		// _score is null when sorting suppresses scoring.
		if h.Score != nil {
			hit.Score = *h.Score
		}
		resp.Hits = append(resp.Hits, hit)
	}
	return resp, nil
}
