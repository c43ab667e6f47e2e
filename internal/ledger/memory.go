package ledger

import (
	"context"
	"sync"
	"time"

	"custos/pkg/domain"
)

// InMemoryCommitter records commits in process memory. It backs tests and
// dev deployments that run without a broker.
type InMemoryCommitter struct {
	mu      sync.Mutex
	records []Record
}

func NewInMemoryCommitter() *InMemoryCommitter {
	return &InMemoryCommitter{}
}

func (c *InMemoryCommitter) CommitRecord(_ context.Context, batchID domain.BatchID, recordType RecordType, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, Record{
		BatchID:     batchID,
		Type:        recordType,
		Payload:     append([]byte(nil), payload...),
		CommittedAt: time.Now(),
	})
	return nil
}

func (c *InMemoryCommitter) Close() error {
	return nil
}

// Records returns a copy of everything committed so far.
func (c *InMemoryCommitter) Records() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record{}, c.records...)
}

// RecordsFor filters committed records by batch.
func (c *InMemoryCommitter) RecordsFor(batchID domain.BatchID) []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Record
	for _, r := range c.records {
		if r.BatchID == batchID {
			out = append(out, r)
		}
	}
	return out
}
