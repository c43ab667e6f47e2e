package service

import (
	"context"
	"encoding/json"
	"time"

	"golang.org/x/sync/errgroup"

	"custos/internal/batch/models"
	"custos/internal/ledger"
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

type batchCreatedRecord struct {
	BatchID          string    `json:"batch_id"`
	HumanReadableID  string    `json:"human_readable_id"`
	ProducerName     string    `json:"producer_name"`
	BrandOwnerKey    string    `json:"brand_owner_key"`
	InitialHolderKey string    `json:"initial_holder_key"`
	ParticipantIDs   []string  `json:"participant_ids"`
	CreatedAt        time.Time `json:"created_at"`
}

// CreateBatch registers a new batch under the caller's ownership. The
// initial holder is always part of the cast: its partner id is added to the
// participant set even when the caller forgot to list it.
func (s *Service) CreateBatch(ctx context.Context, brandOwnerKey domain.ActorKey, producerName string, initialHolderKey domain.ActorKey, participantIDs []domain.PartnerID) (*models.Batch, error) {
	ctx, span := s.tracer.Start(ctx, "batch.CreateBatch")
	defer span.End()

	if err := s.verifier.Validate(brandOwnerKey); err != nil {
		return nil, err
	}
	if producerName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "producer name must not be empty")
	}
	if len(participantIDs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "participant set must not be empty")
	}

	holder, err := s.directory.ResolveKey(ctx, initialHolderKey)
	if err != nil {
		return nil, err
	}

	ids := domain.DedupePartnerIDs(participantIDs)
	holderListed := false
	for _, id := range ids {
		if id == holder.ID {
			holderListed = true
			break
		}
	}
	if !holderListed {
		ids = append(ids, holder.ID)
	}
	if _, err := s.directory.ResolveAll(ctx, ids); err != nil {
		return nil, err
	}

	now := s.now()
	b, err := models.NewBatch(domain.NewBatchID(), producerName, brandOwnerKey, holder.PublicKey, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	participants := make([]models.Participant, len(ids))
	rawIDs := make([]string, len(ids))
	for i, id := range ids {
		participants[i] = models.Participant{BatchID: b.ID, PartnerID: id, AddedAt: now}
		rawIDs[i] = id.String()
	}

	payload, err := json.Marshal(batchCreatedRecord{
		BatchID:          b.ID.String(),
		HumanReadableID:  b.HumanReadableID,
		ProducerName:     b.ProducerName,
		BrandOwnerKey:    b.BrandOwnerKey.String(),
		InitialHolderKey: b.CurrentHolderKey.String(),
		ParticipantIDs:   rawIDs,
		CreatedAt:        now,
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode ledger record")
	}
	if err := s.commitLedger(ctx, b.ID, ledger.RecordBatchCreated, payload); err != nil {
		return nil, err
	}

	if err := s.store.CreateBatch(ctx, b, participants); err != nil {
		return nil, s.translateCommitErr(err)
	}

	s.metrics.IncBatchesCreated()
	s.logOp(ctx, "batch created",
		"batch_id", b.ID.String(),
		"human_readable_id", b.HumanReadableID,
		"participants", len(participants),
	)
	return b, nil
}

// GetBatch assembles the read model for one batch: the aggregate, its cast,
// and its history ordered by sequence index.
func (s *Service) GetBatch(ctx context.Context, id domain.BatchID) (*models.View, error) {
	b, err := s.loadBatch(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.assembleView(ctx, b)
}

// ListBatchesHeldBy returns the read models of every batch the actor
// currently holds. Pure query, no locks.
func (s *Service) ListBatchesHeldBy(ctx context.Context, actorKey domain.ActorKey) ([]*models.View, error) {
	if err := s.verifier.Validate(actorKey); err != nil {
		return nil, err
	}
	batches, err := s.store.ListByHolder(ctx, actorKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list held batches")
	}
	return s.assembleViews(ctx, batches)
}

// ListBatchesOwnedBy returns the read models of every batch the actor
// created.
func (s *Service) ListBatchesOwnedBy(ctx context.Context, actorKey domain.ActorKey) ([]*models.View, error) {
	if err := s.verifier.Validate(actorKey); err != nil {
		return nil, err
	}
	batches, err := s.store.ListByOwner(ctx, actorKey)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list owned batches")
	}
	return s.assembleViews(ctx, batches)
}

func (s *Service) assembleView(ctx context.Context, b *models.Batch) (*models.View, error) {
	participants, err := s.store.ListParticipants(ctx, b.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	stages, err := s.store.ListStages(ctx, b.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list stages")
	}
	return &models.View{Batch: *b, Participants: participants, Stages: stages}, nil
}

// assembleViews fans the per-batch child reads out in parallel; each view is
// an independent snapshot, so the group only shares the context.
func (s *Service) assembleViews(ctx context.Context, batches []*models.Batch) ([]*models.View, error) {
	views := make([]*models.View, len(batches))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range batches {
		g.Go(func() error {
			v, err := s.assembleView(ctx, b)
			if err != nil {
				return err
			}
			views[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}
