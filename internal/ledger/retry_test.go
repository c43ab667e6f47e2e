package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// flakyCommitter fails with ErrUnavailable a fixed number of times before
// delegating to an in-memory committer.
type flakyCommitter struct {
	inner     *InMemoryCommitter
	failures  int
	attempts  int
	permanent error
}

func (f *flakyCommitter) CommitRecord(ctx context.Context, batchID domain.BatchID, recordType RecordType, payload []byte) error {
	f.attempts++
	if f.permanent != nil {
		return f.permanent
	}
	if f.attempts <= f.failures {
		return sentinel.ErrUnavailable
	}
	return f.inner.CommitRecord(ctx, batchID, recordType, payload)
}

func (f *flakyCommitter) Close() error { return nil }

func TestRetryingCommitter(t *testing.T) {
	ctx := context.Background()
	batchID := domain.NewBatchID()

	t.Run("retries transient unavailability until success", func(t *testing.T) {
		flaky := &flakyCommitter{inner: NewInMemoryCommitter(), failures: 2}
		r := NewRetrying(flaky, 3, time.Millisecond)

		err := r.CommitRecord(ctx, batchID, RecordStageAppended, []byte("{}"))
		require.NoError(t, err)
		assert.Equal(t, 3, flaky.attempts)
		assert.Len(t, flaky.inner.RecordsFor(batchID), 1)
	})

	t.Run("gives up after the attempt limit", func(t *testing.T) {
		flaky := &flakyCommitter{inner: NewInMemoryCommitter(), failures: 10}
		r := NewRetrying(flaky, 3, time.Millisecond)

		err := r.CommitRecord(ctx, batchID, RecordStageAppended, []byte("{}"))
		assert.ErrorIs(t, err, sentinel.ErrUnavailable)
		assert.Equal(t, 3, flaky.attempts)
	})

	t.Run("does not retry non-availability errors", func(t *testing.T) {
		boom := errors.New("payload rejected")
		flaky := &flakyCommitter{inner: NewInMemoryCommitter(), permanent: boom}
		r := NewRetrying(flaky, 3, time.Millisecond)

		err := r.CommitRecord(ctx, batchID, RecordStageAppended, []byte("{}"))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, flaky.attempts)
	})

	t.Run("stops when the context is cancelled", func(t *testing.T) {
		flaky := &flakyCommitter{inner: NewInMemoryCommitter(), failures: 10}
		r := NewRetrying(flaky, 5, 50*time.Millisecond)

		cancelCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		err := r.CommitRecord(cancelCtx, batchID, RecordStageAppended, []byte("{}"))
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestInMemoryCommitterCopiesPayload(t *testing.T) {
	c := NewInMemoryCommitter()
	batchID := domain.NewBatchID()
	payload := []byte(`{"stage":"Harvesting"}`)
	require.NoError(t, c.CommitRecord(context.Background(), batchID, RecordStageAppended, payload))

	payload[0] = 'X'
	records := c.RecordsFor(batchID)
	require.Len(t, records, 1)
	assert.Equal(t, byte('{'), records[0].Payload[0])
}
