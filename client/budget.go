package client

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// Bounded runs fn with a deadline of budget. When the budget runs out
// first, it returns a TimeoutError right away and drops whatever fn returns
// later. A cancellation of the parent context is reported as such, not as a timeout.
func Bounded[T any](ctx context.Context, op string, budget time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if budget <= 0 {
		budget = DefaultWaitBudget
	}

	bctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(bctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() == nil && errors.Is(bctx.Err(), context.DeadlineExceeded) {
			return zero, &TimeoutError{Op: op, Budget: budget}
		}
		return r.v, r.err
	case <-bctx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, &TimeoutError{Op: op, Budget: budget}
	}
}
