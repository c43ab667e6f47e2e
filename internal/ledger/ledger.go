// Package ledger is the client side of the external durable ledger. The core
// treats a successful commit as authoritative; failures are retryable and
// must leave core state untouched, so services commit to the ledger before
// committing the in-core mutation.
package ledger

import (
	"context"
	"time"

	"custos/pkg/domain"
)

// RecordType tags what a committed record attests.
type RecordType string

const (
	RecordBatchCreated       RecordType = "batch_created"
	RecordParticipantAdded   RecordType = "participant_added"
	RecordParticipantRemoved RecordType = "participant_removed"
	RecordCustodyTransferred RecordType = "custody_transferred"
	RecordStageAppended      RecordType = "stage_appended"
	RecordBatchFinalized     RecordType = "batch_finalized"
)

// Record is the unit committed to the durable ledger. Payload is an already
// serialized document; the ledger never interprets it.
type Record struct {
	BatchID     domain.BatchID
	Type        RecordType
	Payload     []byte
	CommittedAt time.Time
}

// Committer appends records to the durable ledger. Implementations return
// sentinel.ErrUnavailable (possibly wrapped) when the ledger cannot be
// reached; writes are idempotent on the ledger side, so retrying a commit
// whose acknowledgement was lost is safe.
type Committer interface {
	CommitRecord(ctx context.Context, batchID domain.BatchID, recordType RecordType, payload []byte) error
	Close() error
}
