package service

import (
	"context"
	"encoding/json"
	"time"

	"custos/internal/ledger"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

type batchFinalizedRecord struct {
	BatchID     string    `json:"batch_id"`
	FinalizedBy string    `json:"finalized_by"`
	FinalizedAt time.Time `json:"finalized_at"`
	StageCount  int64     `json:"stage_count"`
}

// Finalize freezes a batch. Brand owner only; the only transition out of
// active, with no path back. Finalizing an already-completed batch is a
// no-op success, so the operation is idempotent.
func (s *Service) Finalize(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey) error {
	ctx, span := s.tracer.Start(ctx, "batch.Finalize")
	defer span.End()

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		err := s.finalizeOnce(ctx, batchID, callerKey)
		if err == nil {
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeConflict) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (s *Service) finalizeOnce(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey) error {
	b, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := s.verifier.RequireActor(b.BrandOwnerKey, callerKey, "brand owner"); err != nil {
		return err
	}

	if !b.ApplyFinalize() {
		// Already completed: idempotent success, nothing to commit.
		return nil
	}

	payload, err := json.Marshal(batchFinalizedRecord{
		BatchID:     batchID.String(),
		FinalizedBy: callerKey.String(),
		FinalizedAt: s.now(),
		StageCount:  b.NextStageIndex,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode ledger record")
	}
	if err := s.commitLedger(ctx, batchID, ledger.RecordBatchFinalized, payload); err != nil {
		return err
	}

	if err := s.store.UpdateBatch(ctx, b); err != nil {
		return s.translateCommitErr(err)
	}

	s.metrics.IncBatchesFinalized()
	s.logOp(ctx, "batch finalized", "batch_id", batchID.String())
	return nil
}
