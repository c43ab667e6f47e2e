package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"custos/internal/batch/models"
	"custos/internal/ledger"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
	"custos/pkg/platform/sentinel"
)

type stageAppendedRecord struct {
	BatchID       string    `json:"batch_id"`
	SequenceIndex int64     `json:"sequence_index"`
	ActorKey      string    `json:"actor_key"`
	StageName     string    `json:"stage_name"`
	ContentRef    string    `json:"content_ref,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// AppendStage records one custody event. Only the current holder may append,
// and the returned sequence index is assigned under the batch's version CAS:
// two concurrent appends can never both win the same index. A lost race is
// replayed against fresh state a bounded number of times before a conflict
// surfaces.
func (s *Service) AppendStage(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, stageName string, ref domain.ContentRef) (int64, error) {
	ctx, span := s.tracer.Start(ctx, "batch.AppendStage")
	defer span.End()

	if stageName == "" {
		return 0, dErrors.New(dErrors.CodeValidation, "stage name must not be empty")
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		index, err := s.appendStageOnce(ctx, batchID, callerKey, stageName, ref)
		if err == nil {
			s.metrics.IncStagesAppended()
			s.logOp(ctx, "stage appended",
				"batch_id", batchID.String(),
				"sequence_index", index,
				"stage_name", stageName,
			)
			return index, nil
		}
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}

// appendStageOnce runs one optimistic pass: read, authorize, assign the next
// index, commit the attestation, then commit the core state. The ledger
// write happens before the CAS, so a failed external call leaves the batch
// unchanged; a lost CAS after a ledger write is harmless because ledger
// writes are idempotent and the replay commits the corrected record.
func (s *Service) appendStageOnce(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, stageName string, ref domain.ContentRef) (int64, error) {
	b, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return 0, err
	}
	if err := s.verifier.RequireActor(b.CurrentHolderKey, callerKey, "current holder"); err != nil {
		return 0, err
	}

	stage, err := b.NextStage(callerKey, stageName, ref, s.now())
	if err != nil {
		return 0, err
	}

	payload, err := json.Marshal(stageAppendedRecord{
		BatchID:       stage.BatchID.String(),
		SequenceIndex: stage.SequenceIndex,
		ActorKey:      stage.ActorKey.String(),
		StageName:     stage.StageName,
		ContentRef:    stage.ContentRef.String(),
		RecordedAt:    stage.Timestamp,
	})
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode ledger record")
	}
	if err := s.commitLedger(ctx, batchID, ledger.RecordStageAppended, payload); err != nil {
		return 0, err
	}

	if err := s.store.AppendStage(ctx, b, stage); err != nil {
		return 0, s.translateCommitErr(err)
	}
	return stage.SequenceIndex, nil
}

// AppendStageWithAttachment stores the attachment in the content-addressed
// store first and records the returned reference on the stage. The blob
// write is idempotent by content hash, so replays of the same payload are
// safe.
func (s *Service) AppendStageWithAttachment(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, stageName string, attachment []byte) (int64, error) {
	if s.blobs == nil {
		return 0, dErrors.New(dErrors.CodeUnavailable, "content store is not configured")
	}
	if len(attachment) == 0 {
		return 0, dErrors.New(dErrors.CodeValidation, "attachment must not be empty")
	}
	ref, err := s.blobs.Put(ctx, attachment)
	if err != nil {
		if errors.Is(err, sentinel.ErrUnavailable) {
			return 0, dErrors.Wrap(err, dErrors.CodeUnavailable, "content store is unreachable")
		}
		return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store attachment")
	}
	return s.AppendStage(ctx, batchID, callerKey, stageName, ref)
}

// GetAttachment resolves a stage attachment from the content store.
func (s *Service) GetAttachment(ctx context.Context, ref domain.ContentRef) ([]byte, error) {
	if s.blobs == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "content store is not configured")
	}
	if ref.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "content reference is required")
	}
	data, err := s.blobs.Get(ctx, ref)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "no content stored under reference")
		case errors.Is(err, sentinel.ErrUnavailable):
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "content store is unreachable")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attachment")
		}
	}
	return data, nil
}

// ListStages returns a batch's history ordered ascending by sequence index.
func (s *Service) ListStages(ctx context.Context, batchID domain.BatchID) ([]models.Stage, error) {
	if _, err := s.loadBatch(ctx, batchID); err != nil {
		return nil, err
	}
	stages, err := s.store.ListStages(ctx, batchID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stages")
	}
	return stages, nil
}

// ListStagesByActor returns every stage the actor authored across all
// batches, for the personal history view.
func (s *Service) ListStagesByActor(ctx context.Context, actorKey domain.ActorKey) ([]models.StageWithBatch, error) {
	if err := s.verifier.Validate(actorKey); err != nil {
		return nil, err
	}
	stages, err := s.store.ListStagesByActor(ctx, actorKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list actor history")
	}
	return stages, nil
}
