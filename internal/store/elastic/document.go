package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/kailas-cloud/matchdex/internal/store"
)

// GetDocument fetches a document source by ID.
func (s *Store) GetDocument(
	ctx context.Context, index, id string,
) (map[string]any, bool, error) {
	path := "/" + index + "/_doc/" + url.PathEscape(id)
	resp, err := s.execute(ctx, store.OpGet, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, false, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.IsError() {
		return nil, false, backendError(store.OpGet, resp)
	}

	var out struct {
		Found  bool           `json:"found"`
		Source map[string]any `json:"_source"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, false, fmt.Errorf("parse get-document response: %w", err)
	}
	return out.Source, out.Found, nil
}

// IndexDocument indexes or updates one document. With a script it becomes a
// scripted update; with DocAsUpsert a merge-or-create. A no-op update result
// is success.
func (s *Store) IndexDocument(ctx context.Context, index string, op *store.DocumentOp) error {
	var (
		path string
		verb string
		body any
	)
	switch {
	case op.Script != nil:
		verb = http.MethodPost
		path = "/" + index + "/_update/" + url.PathEscape(op.ID)
		update := map[string]any{"script": op.Script}
		if op.Doc != nil {
			update["upsert"] = op.Doc
		}
		body = update
	case op.DocAsUpsert:
		verb = http.MethodPost
		path = "/" + index + "/_update/" + url.PathEscape(op.ID)
		body = map[string]any{"doc": op.Doc, "doc_as_upsert": true}
	default:
		verb = http.MethodPut
		path = "/" + index + "/_doc/" + url.PathEscape(op.ID)
		body = op.Doc
	}

	resp, err := s.execute(ctx, store.OpIndexDoc, verb, path, body, nil)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return backendError(store.OpIndexDoc, resp)
	}
	// "result" may be created, updated, or noop; all are success.
	return nil
}

// DeleteDocument removes a document, reporting whether it existed.
func (s *Store) DeleteDocument(ctx context.Context, index, id string) (bool, error) {
	path := "/" + index + "/_doc/" + url.PathEscape(id)
	resp, err := s.execute(ctx, store.OpDeleteDoc, http.MethodDelete, path, nil, nil)
	if err != nil {
		return false, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, backendError(store.OpDeleteDoc, resp)
	}
	return true, nil
}
