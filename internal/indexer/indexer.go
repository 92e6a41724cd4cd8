// Package indexer writes documents of one caller-defined item type into a
// single target index, with retrying single and bulk operations, upsert and
// scripted-update semantics, and flush control.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/domain/bulk"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	"github.com/kailas-cloud/matchdex/internal/retry"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// ErrNoDeleteScript is raised when content deletion is requested without a
// configured delete-script function. This is a caller programming error.
var ErrNoDeleteScript = errors.New("indexer: no delete script configured")

// Backend is the store surface the indexer needs.
type Backend interface {
	store.Documents
	Flush(ctx context.Context, index string) error
	ForceMerge(ctx context.Context, index string) error
}

// Indexer writes items of type T into one index. ID extracts each item's
// document identifier; Doc renders the item's source document.
type Indexer[T any] struct {
	backend Backend
	index   string
	idOf    func(T) string
	docOf   func(T) (map[string]any, error)

	upsert       bool
	updateScript func(T) *store.Script
	deleteScript func(T) *store.Script

	dataPolicy  retry.Policy
	flushPolicy retry.Policy
	log         *zap.Logger
}

// Option configures an Indexer.
type Option[T any] func(*Indexer[T])

// WithUpsert makes Index merge into existing documents instead of
// overwriting them.
func WithUpsert[T any]() Option[T] {
	return func(ix *Indexer[T]) { ix.upsert = true }
}

// WithUpdateScript sets the scripted-update function used for upserts.
func WithUpdateScript[T any](fn func(T) *store.Script) Option[T] {
	return func(ix *Indexer[T]) { ix.updateScript = fn }
}

// WithDeleteScript sets the script used by DeleteContents.
func WithDeleteScript[T any](fn func(T) *store.Script) Option[T] {
	return func(ix *Indexer[T]) { ix.deleteScript = fn }
}

// WithPolicies overrides the data and flush retry policies.
func WithPolicies[T any](data, flush retry.Policy) Option[T] {
	return func(ix *Indexer[T]) {
		ix.dataPolicy = data
		ix.flushPolicy = flush
	}
}

// WithLogger sets the indexer's logger.
func WithLogger[T any](log *zap.Logger) Option[T] {
	return func(ix *Indexer[T]) { ix.log = log }
}

// New creates an indexer for one target index.
func New[T any](
	backend Backend, index string,
	idOf func(T) string, docOf func(T) (map[string]any, error),
	opts ...Option[T],
) *Indexer[T] {
	ix := &Indexer[T]{
		backend:     backend,
		index:       index,
		idOf:        idOf,
		docOf:       docOf,
		dataPolicy:  retry.DataPolicy(),
		flushPolicy: retry.FlushPolicy(),
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Index writes one item. With upsert enabled it becomes a scripted update
// (when an update script is configured) or a doc-as-upsert merge.
func (ix *Indexer[T]) Index(ctx context.Context, item T) error {
	op, err := ix.documentOp(item)
	if err != nil {
		return err
	}
	return ix.dataPolicy.Do(ctx, "index document", func(ctx context.Context) error {
		return ix.backend.IndexDocument(ctx, ix.index, op)
	})
}

// BulkIndex writes items as one batch, returning one result per item in
// input order. On partial failure the suffix starting at the first failing
// item is retried; earlier successes are never resent.
func (ix *Indexer[T]) BulkIndex(ctx context.Context, items []T) ([]bulk.Result[T], error) {
	ops := make([]store.BulkOp, 0, len(items))
	for _, item := range items {
		op, err := ix.documentOp(item)
		if err != nil {
			return nil, err
		}
		ops = append(ops, store.BulkOp{
			Action:      bulkAction(op),
			ID:          op.ID,
			Doc:         op.Doc,
			Script:      op.Script,
			DocAsUpsert: op.DocAsUpsert,
		})
	}
	return ix.bulkWithRetry(ctx, "bulk index", items, ops)
}

// DeleteDocument removes one document by ID. A missing document is an
// acceptable success, logged at warn.
func (ix *Indexer[T]) DeleteDocument(ctx context.Context, id string) error {
	return ix.dataPolicy.Do(ctx, "delete document", func(ctx context.Context) error {
		existed, err := ix.backend.DeleteDocument(ctx, ix.index, id)
		if err != nil {
			return err
		}
		if !existed {
			ix.log.Warn("document to delete was already absent",
				zap.String("index", ix.index), zap.String("id", id))
		}
		return nil
	})
}

// BulkDeleteDocuments removes items as one batch with the same suffix-retry
// strategy as BulkIndex. Missing documents are acceptable successes.
func (ix *Indexer[T]) BulkDeleteDocuments(ctx context.Context, items []T) ([]bulk.Result[T], error) {
	ops := make([]store.BulkOp, 0, len(items))
	for _, item := range items {
		ops = append(ops, store.BulkOp{Action: store.ActionDelete, ID: ix.idOf(item)})
	}
	return ix.bulkWithRetry(ctx, "bulk delete", items, ops)
}

// DeleteContents runs the configured delete script against the item's
// document, clearing owned content without removing the document itself.
func (ix *Indexer[T]) DeleteContents(ctx context.Context, item T) error {
	if ix.deleteScript == nil {
		return ErrNoDeleteScript
	}
	op := &store.DocumentOp{ID: ix.idOf(item), Script: ix.deleteScript(item)}
	return ix.dataPolicy.Do(ctx, "delete contents", func(ctx context.Context) error {
		return ix.backend.IndexDocument(ctx, ix.index, op)
	})
}

// BulkDeleteContents runs the configured delete script over each item in one
// batch.
func (ix *Indexer[T]) BulkDeleteContents(ctx context.Context, items []T) ([]bulk.Result[T], error) {
	if ix.deleteScript == nil {
		return nil, ErrNoDeleteScript
	}
	ops := make([]store.BulkOp, 0, len(items))
	for _, item := range items {
		ops = append(ops, store.BulkOp{
			Action: store.ActionUpdate,
			ID:     ix.idOf(item),
			Script: ix.deleteScript(item),
		})
	}
	return ix.bulkWithRetry(ctx, "bulk delete contents", items, ops)
}

// Flush forces visibility of recent writes. When finished is set the index
// is additionally merged down to a single segment.
func (ix *Indexer[T]) Flush(ctx context.Context, finished bool) error {
	err := ix.flushPolicy.Do(ctx, "flush index", func(ctx context.Context) error {
		return ix.backend.Flush(ctx, ix.index)
	})
	if err != nil {
		return err
	}
	if !finished {
		return nil
	}
	return ix.flushPolicy.Do(ctx, "force merge index", func(ctx context.Context) error {
		return ix.backend.ForceMerge(ctx, ix.index)
	})
}

// documentOp builds the single-document write for one item.
func (ix *Indexer[T]) documentOp(item T) (*store.DocumentOp, error) {
	doc, err := ix.docOf(item)
	if err != nil {
		return nil, fmt.Errorf("render document: %w", err)
	}
	op := &store.DocumentOp{ID: ix.idOf(item), Doc: doc}
	if ix.upsert {
		if ix.updateScript != nil {
			op.Script = ix.updateScript(item)
		} else {
			op.DocAsUpsert = true
		}
	}
	return op, nil
}

func bulkAction(op *store.DocumentOp) store.BulkAction {
	if op.Script != nil || op.DocAsUpsert {
		return store.ActionUpdate
	}
	return store.ActionIndex
}

// bulkWithRetry submits ops, then retries the suffix starting at the first
// unsuccessful index until everything succeeds or attempts run out. Items
// before the retried suffix keep their recorded success and are never
// resent. Items the backend never reported on are marked not-attempted.
// Call-level failures honor the data policy's retryable predicate and
// backoff bounds.
func (ix *Indexer[T]) bulkWithRetry(
	ctx context.Context, action string, items []T, ops []store.BulkOp,
) ([]bulk.Result[T], error) {
	if len(items) == 0 {
		return nil, nil
	}

	results := make([]bulk.Result[T], len(items))
	for i, item := range items {
		results[i] = bulk.NotAttempted(item)
	}

	retryable := ix.dataPolicy.Retryable
	if retryable == nil {
		retryable = retry.DefaultRetryable
	}
	maxAttempts := ix.dataPolicy.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = ix.dataPolicy.MinInterval
	bo.MaxInterval = ix.dataPolicy.MaxInterval
	bo.Reset()

	start := 0
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcomes, err := ix.backend.Bulk(ctx, ix.index, ops[start:])
		if err != nil {
			lastErr = err
			if !retryable(err) {
				break
			}
			if attempt < maxAttempts && !ix.waitBackoff(ctx, bo, action, attempt, err) {
				break
			}
			continue
		}
		lastErr = nil

		for i, outcome := range outcomes {
			idx := start + i
			if idx >= len(items) {
				break
			}
			if outcome.OK {
				// Deleting an absent document reports success.
				results[idx] = bulk.OK(items[idx])
			} else {
				results[idx] = bulk.Failed(items[idx], outcome.Reason)
			}
		}

		next := firstUnsuccessful(results, start)
		if next == -1 {
			return results, nil
		}
		start = next
		if attempt < maxAttempts {
			ix.log.Warn("retrying bulk suffix",
				zap.String("action", action),
				zap.Int("attempt", attempt),
				zap.Int("from", start),
				zap.Int("total", len(items)))
		}
	}

	if lastErr != nil && firstUnsuccessful(results, 0) == 0 && !anySuccess(results) {
		// The whole batch failed outright without per-item outcomes.
		return results, fmt.Errorf("while attempting to %s: %w", action, lastErr)
	}
	return results, nil
}

// waitBackoff sleeps for the policy's next backoff interval. Returns false
// when the backoff is exhausted or the context ended.
func (ix *Indexer[T]) waitBackoff(
	ctx context.Context, bo backoff.BackOff, action string, attempt int, err error,
) bool {
	wait := bo.NextBackOff()
	if wait == backoff.Stop {
		return false
	}
	ix.log.Warn("retrying after bulk failure",
		zap.String("action", action),
		zap.Int("attempt", attempt),
		zap.Duration("wait", wait),
		zap.Error(err))
	metrics.StoreRetriesTotal.WithLabelValues(action).Inc()
	select {
	case <-ctx.Done():
		return false
	case <-time.After(wait):
		return true
	}
}

func firstUnsuccessful[T any](results []bulk.Result[T], from int) int {
	for i := from; i < len(results); i++ {
		if !results[i].Success {
			return i
		}
	}
	return -1
}

func anySuccess[T any](results []bulk.Result[T]) bool {
	for _, r := range results {
		if r.Success {
			return true
		}
	}
	return false
}
