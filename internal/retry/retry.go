// Package retry runs store operations under bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/kailas-cloud/matchdex/internal/config"
	"github.com/kailas-cloud/matchdex/internal/logger"
	"github.com/kailas-cloud/matchdex/internal/metrics"
	"github.com/kailas-cloud/matchdex/internal/store"
)

// Policy bounds one class of retried operations.
type Policy struct {
	MaxAttempts int
	MinInterval time.Duration
	MaxInterval time.Duration
	// Retryable decides whether an attempt's error warrants another try.
	// Nil means DefaultRetryable.
	Retryable func(error) bool
}

// DataPolicy is the default policy for document reads and writes.
func DataPolicy() Policy {
	return Policy{MaxAttempts: 3, MinInterval: 10 * time.Second, MaxInterval: 60 * time.Second}
}

// FlushPolicy is the default policy for flush and force-merge calls.
func FlushPolicy() Policy {
	return Policy{MaxAttempts: 3, MinInterval: 5 * time.Second, MaxInterval: 30 * time.Second}
}

// FromConfig builds a policy from configured bounds.
func FromConfig(cfg config.RetryPolicyConfig) Policy {
	return Policy{
		MaxAttempts: cfg.MaxAttempts,
		MinInterval: time.Duration(cfg.MinIntervalSec) * time.Second,
		MaxInterval: time.Duration(cfg.MaxIntervalSec) * time.Second,
	}
}

// DefaultRetryable retries transport failures, shard-level failures, and
// backend errors that signal transient overload. Client errors are permanent.
func DefaultRetryable(err error) bool {
	if store.IsTransport(err) || store.HasShardFailure(err) {
		return true
	}
	var be *store.BackendError
	if errors.As(err, &be) {
		return be.Status == http.StatusTooManyRequests || be.Status >= http.StatusInternalServerError
	}
	return false
}

// Do runs fn until it succeeds, the policy is exhausted, or the context ends.
// The action name is woven into the final error for operator context.
func (p Policy) Do(ctx context.Context, action string, fn func(ctx context.Context) error) error {
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.MinInterval
	bo.MaxInterval = p.MaxInterval
	bo.Reset()

	log := logger.FromContext(ctx)

	var err error
	for attempt := 1; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts || !retryable(err) {
			break
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		log.Warn("retrying after failure",
			zap.String("action", action),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
		metrics.StoreRetriesTotal.WithLabelValues(action).Inc()

		select {
		case <-ctx.Done():
			return fmt.Errorf("while attempting to %s: %w", action, ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("while attempting to %s: %w", action, err)
}
