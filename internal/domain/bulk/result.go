// Package bulk holds per-item outcomes of bulk store operations.
package bulk

// Result is the outcome of processing one item in a bulk operation. A bulk
// call yields exactly one Result per input item, in input order, including
// items whose send was skipped because an earlier failure aborted the batch.
type Result[T any] struct {
	Success bool
	Item    T
	Reason  string // failure reason, empty on success
}

// OK creates a successful result.
func OK[T any](item T) Result[T] { return Result[T]{Success: true, Item: item} }

// Failed creates a failed result with a reason.
func Failed[T any](item T, reason string) Result[T] {
	return Result[T]{Item: item, Reason: reason}
}

// NotAttempted marks an item that was never sent because a preceding item
// in the batch failed.
func NotAttempted[T any](item T) Result[T] {
	return Result[T]{Item: item, Reason: "not attempted because a preceding item failed"}
}

// AllSuccessful reports whether every result in the vector succeeded.
func AllSuccessful[T any](results []Result[T]) bool {
	for _, r := range results {
		if !r.Success {
			return false
		}
	}
	return true
}
