package elastic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/kailas-cloud/matchdex/internal/store"
)

// CreateIndex creates an index with the given settings and mappings.
func (s *Store) CreateIndex(
	ctx context.Context, name string, settings, mappings map[string]any,
) (bool, error) {
	body := map[string]any{}
	if len(settings) > 0 {
		body["settings"] = settings
	}
	if len(mappings) > 0 {
		body["mappings"] = mappings
	}

	resp, err := s.execute(ctx, store.OpCreateIndex, http.MethodPut, "/"+name, body, nil)
	if err != nil {
		return false, err
	}
	if resp.IsError() {
		return false, backendError(store.OpCreateIndex, resp)
	}

	var out struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return false, fmt.Errorf("parse create-index response: %w", err)
	}
	return out.Acknowledged, nil
}

// DeleteIndex removes an index. A missing index is reported as unacknowledged
// without an error.
func (s *Store) DeleteIndex(ctx context.Context, name string) (bool, error) {
	resp, err := s.execute(ctx, store.OpDeleteIndex, http.MethodDelete, "/"+name, nil, nil)
	if err != nil {
		return false, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return false, nil
	}
	if resp.IsError() {
		return false, backendError(store.OpDeleteIndex, resp)
	}

	var out struct {
		Acknowledged bool `json:"acknowledged"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return false, fmt.Errorf("parse delete-index response: %w", err)
	}
	return out.Acknowledged, nil
}

// IndexExists probes index existence.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := s.execute(ctx, store.OpIndexExists, http.MethodHead, "/"+name, nil, nil)
	if err != nil {
		return false, err
	}
	switch {
	case resp.StatusCode() == http.StatusOK:
		return true, nil
	case resp.StatusCode() == http.StatusNotFound:
		return false, nil
	default:
		return false, backendError(store.OpIndexExists, resp)
	}
}

// ListIndices returns all index names.
func (s *Store) ListIndices(ctx context.Context) ([]string, error) {
	resp, err := s.execute(ctx, store.OpListIndices, http.MethodGet, "/_cat/indices",
		nil, map[string]string{"format": "json", "h": "index"})
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, backendError(store.OpListIndices, resp)
	}

	var rows []struct {
		Index string `json:"index"`
	}
	if err := json.Unmarshal(resp.Body(), &rows); err != nil {
		return nil, fmt.Errorf("parse index listing: %w", err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Index)
	}
	return names, nil
}

// IndexMeta returns settings and mappings including the internal identity.
func (s *Store) IndexMeta(ctx context.Context, name string) (*store.IndexMeta, error) {
	resp, err := s.execute(ctx, store.OpIndexMeta, http.MethodGet, "/"+name, nil, nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() == http.StatusNotFound {
		return nil, fmt.Errorf("index %q: %w", name, store.ErrNotFound)
	}
	if resp.IsError() {
		return nil, backendError(store.OpIndexMeta, resp)
	}

	var out map[string]struct {
		Settings map[string]any `json:"settings"`
		Mappings map[string]any `json:"mappings"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("parse index metadata: %w", err)
	}
	entry, ok := out[name]
	if !ok {
		// Aliased lookups come back under the concrete index name.
		for _, v := range out {
			entry = v
			break
		}
	}

	meta := &store.IndexMeta{
		Name:     name,
		Settings: entry.Settings,
		Mappings: entry.Mappings,
	}
	if idx, ok := entry.Settings["index"].(map[string]any); ok {
		if uuid, ok := idx["uuid"].(string); ok {
			meta.UUID = uuid
		}
		meta.MaxResultWindow = settingInt(idx["max_result_window"])
	}
	return meta, nil
}

// Flush forces visibility of recent writes. Shard-level failures raise an
// error.
func (s *Store) Flush(ctx context.Context, index string) error {
	return s.shardChecked(ctx, store.OpFlush, "/"+index+"/_flush", nil)
}

// ForceMerge merges the index down to a single segment.
func (s *Store) ForceMerge(ctx context.Context, index string) error {
	return s.shardChecked(ctx, store.OpForceMerge, "/"+index+"/_forcemerge",
		map[string]string{"max_num_segments": "1"})
}

func (s *Store) shardChecked(
	ctx context.Context, op, path string, query map[string]string,
) error {
	resp, err := s.execute(ctx, op, http.MethodPost, path, nil, query)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return backendError(op, resp)
	}

	var out struct {
		Shards struct {
			Total      int `json:"total"`
			Successful int `json:"successful"`
			Failed     int `json:"failed"`
			Failures   []struct {
				Reason *errorDetail `json:"reason"`
			} `json:"failures"`
		} `json:"_shards"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return fmt.Errorf("parse %s response: %w", op, err)
	}
	if out.Shards.Failed > 0 {
		be := &store.BackendError{
			Op:     op,
			Status: resp.StatusCode(),
			Reason: fmt.Sprintf("%d of %d shards failed", out.Shards.Failed, out.Shards.Total),
		}
		for _, f := range out.Shards.Failures {
			if f.Reason != nil && f.Reason.Reason != "" {
				be.ShardFailures = append(be.ShardFailures, f.Reason.Reason)
			}
		}
		if len(be.ShardFailures) == 0 {
			be.ShardFailures = []string{be.Reason}
		}
		return be
	}
	return nil
}

// settingInt parses a numeric setting that the store may report as either a
// JSON number or a string.
func settingInt(v any) int {
	switch t := v.(type) {
	case float64:
		return int(t)
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
