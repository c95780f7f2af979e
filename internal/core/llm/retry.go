package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/markdave123-py/docembed/internal/core"
)

// ErrInvalidMaxAttempts is returned when a retry policy allows no attempt at all.
var ErrInvalidMaxAttempts = errors.New("max attempts must be greater than zero")

// RetryingEmbedder wraps a provider with bounded retries and exponential backoff.
// One attempt means no retry at all.
type RetryingEmbedder struct {
	next        core.EmbeddingProvider
	maxAttempts int
	baseDelay   time.Duration
}

var _ core.EmbeddingProvider = (*RetryingEmbedder)(nil)

func NewRetryingEmbedder(next core.EmbeddingProvider, maxAttempts int, baseDelay time.Duration) (*RetryingEmbedder, error) {
	if maxAttempts <= 0 {
		return nil, ErrInvalidMaxAttempts
	}
	return &RetryingEmbedder{next: next, maxAttempts: maxAttempts, baseDelay: baseDelay}, nil
}

func (r *RetryingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	var out []float32
	err := retryWithBackoff(ctx, func() error {
		var err error
		out, err = r.next.EmbedText(ctx, text)
		return err
	}, r.maxAttempts, r.baseDelay)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// retryWithBackoff retries an operation with exponential backoff.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
// Returns the error from the last attempt if all attempts fail.
func retryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("embedding succeeded after retry", "attempt", attempt)
			}
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		delay := baseDelay << (attempt - 1)
		slog.Debug("embedding failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}
