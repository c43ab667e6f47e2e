package models

import (
	"time"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Stage is one immutable event in a batch's custody history. Created exactly
// once; never mutated or deleted, even if the authoring participant is later
// removed from the batch.
type Stage struct {
	BatchID       domain.BatchID    `json:"batch_id"`
	SequenceIndex int64             `json:"sequence_index"`
	ActorKey      domain.ActorKey   `json:"actor_key"`
	StageName     string            `json:"stage_name"`
	ContentRef    domain.ContentRef `json:"content_ref,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}

// NewStage validates and constructs a stage record. The sequence index comes
// from the owning batch's counter, never from the caller.
func NewStage(batchID domain.BatchID, index int64, actorKey domain.ActorKey, name string, ref domain.ContentRef, now time.Time) (*Stage, error) {
	if batchID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage batch id is required")
	}
	if index < 0 {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage sequence index must not be negative")
	}
	if actorKey.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "stage actor key is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "stage name must not be empty")
	}
	return &Stage{
		BatchID:       batchID,
		SequenceIndex: index,
		ActorKey:      actorKey,
		StageName:     name,
		ContentRef:    ref,
		Timestamp:     now,
	}, nil
}

// StageWithBatch decorates a stage with enough batch context for an actor's
// cross-batch history view.
type StageWithBatch struct {
	Stage           Stage  `json:"stage"`
	HumanReadableID string `json:"human_readable_id"`
	ProducerName    string `json:"producer_name"`
	BatchStatus     Status `json:"batch_status"`
}
