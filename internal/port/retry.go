package port

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
)

const (
	retryBase = 10 * time.Millisecond
	retryCap  = 250 * time.Millisecond
)

// RetryConflicts calls fn up to attempts times while it fails with ErrConflict,
// backing off exponentially with jitter between attempts. Other errors stop
// the loop immediately. Once attempts are exhausted the conflict is returned.
func RetryConflicts(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	b := retry.NewExponential(retryBase)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(retryCap, b)
	b = retry.WithMaxRetries(uint64(attempts-1), b)

	tries := 0
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		tries++
		err := fn(ctx)
		if errors.Is(err, ErrConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if errors.Is(err, ErrConflict) {
		return fmt.Errorf("gave up after %d attempts: %w", tries, err)
	}
	return err
}
