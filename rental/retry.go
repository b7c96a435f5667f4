package rental

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Retry re-runs op while it fails with ErrSerializationConflict, up to
// attempts times in total, with exponential backoff starting at base.
// Callers of Core use it; Core itself never retries.
func Retry(ctx context.Context, attempts int, base time.Duration, op func(context.Context) (Outcome, error)) (Outcome, error) {
	if attempts < 1 {
		attempts = 1
	}
	if base <= 0 {
		base = 10 * time.Millisecond
	}

	var outcome Outcome
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewExponential(base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		outcome, err = op(ctx)
		if IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return Outcome{}, err
	}
	return outcome, nil
}
