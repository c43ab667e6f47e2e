package service

import (
	"context"
	"encoding/json"
	"time"

	"custos/internal/batch/models"
	"custos/internal/ledger"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

type participantChangeRecord struct {
	BatchID    string    `json:"batch_id"`
	PartnerIDs []string  `json:"partner_ids"`
	ChangedBy  string    `json:"changed_by"`
	ChangedAt  time.Time `json:"changed_at"`
}

// AddParticipants extends a batch's cast. Brand owner only; idempotent
// union, so ids already present are no-ops rather than errors.
func (s *Service) AddParticipants(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, partnerIDs []domain.PartnerID) error {
	ctx, span := s.tracer.Start(ctx, "batch.AddParticipants")
	defer span.End()

	ids := domain.DedupePartnerIDs(partnerIDs)
	if len(ids) == 0 {
		return dErrors.New(dErrors.CodeValidation, "partner id set must not be empty")
	}

	b, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := s.verifier.RequireActor(b.BrandOwnerKey, callerKey, "brand owner"); err != nil {
		return err
	}
	if err := b.RequireActive(); err != nil {
		return err
	}
	if _, err := s.directory.ResolveAll(ctx, ids); err != nil {
		return err
	}

	now := s.now()
	participants := make([]models.Participant, len(ids))
	rawIDs := make([]string, len(ids))
	for i, id := range ids {
		participants[i] = models.Participant{BatchID: batchID, PartnerID: id, AddedAt: now}
		rawIDs[i] = id.String()
	}

	payload, err := json.Marshal(participantChangeRecord{
		BatchID:    batchID.String(),
		PartnerIDs: rawIDs,
		ChangedBy:  callerKey.String(),
		ChangedAt:  now,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode ledger record")
	}
	if err := s.commitLedger(ctx, batchID, ledger.RecordParticipantAdded, payload); err != nil {
		return err
	}

	if err := s.store.AddParticipants(ctx, b, participants); err != nil {
		return s.translateCommitErr(err)
	}

	s.logOp(ctx, "participants added", "batch_id", batchID.String(), "count", len(ids))
	return nil
}

// RemoveParticipant shrinks a batch's cast. Brand owner only. The current
// holder can never be removed: custody must move first.
func (s *Service) RemoveParticipant(ctx context.Context, batchID domain.BatchID, callerKey domain.ActorKey, partnerID domain.PartnerID) error {
	ctx, span := s.tracer.Start(ctx, "batch.RemoveParticipant")
	defer span.End()

	b, err := s.loadBatch(ctx, batchID)
	if err != nil {
		return err
	}
	if err := s.verifier.RequireActor(b.BrandOwnerKey, callerKey, "brand owner"); err != nil {
		return err
	}
	if err := b.RequireActive(); err != nil {
		return err
	}

	target, err := s.directory.Resolve(ctx, partnerID)
	if err != nil {
		return err
	}
	if target.PublicKey == b.CurrentHolderKey {
		return dErrors.New(dErrors.CodeConflict, "partner currently holds custody and cannot be removed")
	}

	// Membership is checked before the ledger commit: a removal that was
	// never going to succeed must not leave a participant_removed record in
	// the append-only ledger.
	participants, err := s.store.ListParticipants(ctx, batchID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	isParticipant := false
	for _, p := range participants {
		if p.PartnerID == partnerID {
			isParticipant = true
			break
		}
	}
	if !isParticipant {
		return dErrors.New(dErrors.CodeNotFound, "partner is not a participant of this batch")
	}

	payload, err := json.Marshal(participantChangeRecord{
		BatchID:    batchID.String(),
		PartnerIDs: []string{partnerID.String()},
		ChangedBy:  callerKey.String(),
		ChangedAt:  s.now(),
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode ledger record")
	}
	if err := s.commitLedger(ctx, batchID, ledger.RecordParticipantRemoved, payload); err != nil {
		return err
	}

	if err := s.store.RemoveParticipant(ctx, b, partnerID); err != nil {
		return s.translateRemoveErr(err)
	}

	s.logOp(ctx, "participant removed", "batch_id", batchID.String(), "partner_id", partnerID.String())
	return nil
}

// translateRemoveErr distinguishes "membership row missing" from the other
// commit failures; translateCommitErr would blame the batch.
func (s *Service) translateRemoveErr(err error) error {
	translated := s.translateCommitErr(err)
	if dErrors.HasCode(translated, dErrors.CodeNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "partner is not a participant of this batch")
	}
	return translated
}
