package ledger

import (
	"context"
	"errors"
	"time"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// RetryingCommitter decorates a Committer with bounded retries and
// exponential backoff on ErrUnavailable. Ledger writes are idempotent, so
// re-sending after a lost acknowledgement cannot double-commit. Only
// availability errors are retried; anything else surfaces immediately.
type RetryingCommitter struct {
	inner       Committer
	maxAttempts int
	baseDelay   time.Duration
}

func NewRetrying(inner Committer, maxAttempts int, baseDelay time.Duration) *RetryingCommitter {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryingCommitter{inner: inner, maxAttempts: maxAttempts, baseDelay: baseDelay}
}

func (r *RetryingCommitter) CommitRecord(ctx context.Context, batchID domain.BatchID, recordType RecordType, payload []byte) error {
	var err error
	delay := r.baseDelay
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		err = r.inner.CommitRecord(ctx, batchID, recordType, payload)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrUnavailable) {
			return err
		}
		if attempt == r.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

func (r *RetryingCommitter) Close() error {
	return r.inner.Close()
}
