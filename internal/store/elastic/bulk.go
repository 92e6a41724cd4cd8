package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kailas-cloud/matchdex/internal/metrics"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// Bulk submits heterogeneous per-item operations as one batch and returns
// one outcome per item in submission order.
func (s *Store) Bulk(
	ctx context.Context, index string, ops []store.BulkOp,
) ([]store.BulkItemOutcome, error) {
	if len(ops) == 0 {
		return nil, nil
	}

	payload, err := encodeBulk(ops)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/x-ndjson").
		SetBody(payload).
		Post("/" + index + "/_bulk")
	if err != nil {
		err = &store.TransportError{Op: store.OpBulk, Err: err}
	}
	metrics.ObserveStoreOp(store.OpBulk, start, err)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, backendError(store.OpBulk, resp)
	}

	return parseBulkResponse(resp)
}

// encodeBulk renders the newline-delimited action/payload pairs.
func encodeBulk(ops []store.BulkOp) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range ops {
		op := &ops[i]
		action := map[string]any{string(op.Action): map[string]any{"_id": op.ID}}
		if err := enc.Encode(action); err != nil {
			return nil, fmt.Errorf("encode bulk action: %w", err)
		}

		switch op.Action {
		case store.ActionIndex:
			if err := enc.Encode(op.Doc); err != nil {
				return nil, fmt.Errorf("encode bulk document: %w", err)
			}
		case store.ActionUpdate:
			update := map[string]any{}
			if op.Script != nil {
				update["script"] = op.Script
				if op.Doc != nil {
					update["upsert"] = op.Doc
				}
			} else {
				update["doc"] = op.Doc
				update["doc_as_upsert"] = op.DocAsUpsert
			}
			if err := enc.Encode(update); err != nil {
				return nil, fmt.Errorf("encode bulk update: %w", err)
			}
		case store.ActionDelete:
			// Action line only.
		default:
			return nil, fmt.Errorf("unknown bulk action %q", op.Action)
		}
	}
	return buf.Bytes(), nil
}

func parseBulkResponse(resp *resty.Response) ([]store.BulkItemOutcome, error) {
	var out struct {
		Errors bool                                 `json:"errors"`
		Items  []map[string]bulkItemResponseDetail `json:"items"`
	}
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("parse bulk response: %w", err)
	}

	outcomes := make([]store.BulkItemOutcome, 0, len(out.Items))
	for _, item := range out.Items {
		// Each item object has exactly one key: the action name.
		for _, detail := range item {
			outcome := store.BulkItemOutcome{
				ID:     detail.ID,
				Status: detail.Status,
				OK:     detail.Status < 300,
			}
			if detail.Error != nil {
				be := &store.BackendError{
					Op:     store.OpBulk,
					Status: detail.Status,
					Reason: detail.Error.Reason,
				}
				for cb := detail.Error.CausedBy; cb != nil; cb = cb.CausedBy {
					if cb.Reason != "" {
						be.Causes = append(be.Causes, cb.Reason)
					}
				}
				outcome.Reason = be.Error()
			}
			outcomes = append(outcomes, outcome)
			break
		}
	}
	return outcomes, nil
}

type bulkItemResponseDetail struct {
	ID     string       `json:"_id"`
	Status int          `json:"status"`
	Result string       `json:"result"`
	Error  *errorDetail `json:"error"`
}
