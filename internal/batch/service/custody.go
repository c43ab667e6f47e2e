package service

import (
	"context"
	"encoding/json"
	"time"

	"custos/internal/ledger"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

type custodyTransferredRecord struct {
	BatchID       string    `json:"batch_id"`
	FromHolderKey string    `json:"from_holder_key"`
	ToHolderKey   string    `json:"to_holder_key"`
	ToPartnerID   string    `json:"to_partner_id"`
	TransferredAt time.Time `json:"transferred_at"`
}

// TransferCustody hands the batch to a new holder. Only the current holder
// may hand off, and only to a partner already in the batch's cast; the brand
// owner has no special transfer privilege.
func (s *Service) TransferCustody(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, newHolderPartnerID domain.PartnerID) error {
	ctx, span := s.tracer.Start(ctx, "batch.TransferCustody")
	defer span.End()

	b, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := s.verifier.RequireActor(b.CurrentHolderKey, callerKey, "current holder"); err != nil {
		return err
	}
	if err := b.RequireActive(); err != nil {
		return err
	}

	newHolder, err := s.directory.Resolve(ctx, newHolderPartnerID)
	if err != nil {
		return err
	}
	if !newHolder.Role.Profile().CanHoldCustody {
		return dErrors.New(dErrors.CodeValidation, "partner role "+newHolder.Role.String()+" cannot take custody")
	}

	participants, err := s.store.ListParticipants(ctx, batchID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	isParticipant := false
	for _, p := range participants {
		if p.PartnerID == newHolderPartnerID {
			isParticipant = true
			break
		}
	}
	if !isParticipant {
		return dErrors.New(dErrors.CodeNotFound, "new holder is not a participant of this batch")
	}

	fromKey := b.CurrentHolderKey
	if err := b.ApplyTransfer(newHolder.PublicKey); err != nil {
		return err
	}

	payload, err := json.Marshal(custodyTransferredRecord{
		BatchID:       batchID.String(),
		FromHolderKey: fromKey.String(),
		ToHolderKey:   newHolder.PublicKey.String(),
		ToPartnerID:   newHolderPartnerID.String(),
		TransferredAt: s.now(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode ledger record")
	}
	if err := s.commitLedger(ctx, batchID, ledger.RecordCustodyTransferred, payload); err != nil {
		return err
	}

	if err := s.store.UpdateBatch(ctx, b); err != nil {
		return s.translateCommitErr(err)
	}

	s.metrics.IncCustodyTransfers()
	s.logOp(ctx, "custody transferred",
		"batch_id", batchID.String(),
		"to_partner_id", newHolderPartnerID.String(),
	)
	return nil
}
