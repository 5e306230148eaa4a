package accounts

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// RetryOnConflict calls fn until it succeeds, fails with a non retryable
// error, ctx is done or attempts run out. The core never retries on its own;
// fn must re read whatever state it acts on.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		select {
		case <-ctx.Done():
			return goerrors.Wrap(ctx.Err(), goerrors.CategoryOperation, "context cancelled while retrying")
		default:
		}

		if err = fn(ctx); err == nil || !IsRetryable(err) {
			return err
		}
	}
	return err
}
