// Package store persists batches, participants, and stages. The batch row is
// the single serialization point: every mutation is a compare-and-swap on
// the batch's version, so two writers on the same batch can never interleave.
// Implementations return sentinel errors; the service translates them.
package store

import (
	"context"

	"custos/internal/batch/models"
	"custos/pkg/domain"
)

// Store is the persistence contract for the custody core.
//
// Mutating methods take the batch with the version it was loaded at; the
// implementation commits only if the stored version still matches, bumps the
// version, and reflects the new version back into the passed batch. A lost
// race returns sentinel.ErrConflict and writes nothing.
type Store interface {
	// CreateBatch persists a new batch and its initial participant rows as
	// one atomic unit.
	CreateBatch(ctx context.Context, b *models.Batch, participants []models.Participant) error

	// FindBatch loads a batch including its current version.
	FindBatch(ctx context.Context, id domain.BatchID) (*models.Batch, error)

	// UpdateBatch commits mutated batch fields (holder, status) under CAS.
	UpdateBatch(ctx context.Context, b *models.Batch) error

	// AppendStage commits the stage insert and the batch's advanced stage
	// counter as one atomic unit under CAS. Two concurrent appends can never
	// both win the same sequence index.
	AppendStage(ctx context.Context, b *models.Batch, stage *models.Stage) error

	// AddParticipants inserts membership rows idempotently (existing pairs
	// are no-ops) under the batch's CAS so membership changes serialize with
	// custody changes.
	AddParticipants(ctx context.Context, b *models.Batch, participants []models.Participant) error

	// RemoveParticipant deletes one membership row under the batch's CAS.
	// Returns sentinel.ErrNotFound when the row does not exist.
	RemoveParticipant(ctx context.Context, b *models.Batch, partnerID domain.PartnerID) error

	ListParticipants(ctx context.Context, batchID domain.BatchID) ([]models.Participant, error)
	ListStages(ctx context.Context, batchID domain.BatchID) ([]models.Stage, error)

	// ListStagesByActor returns every stage authored by the actor across all
	// batches, with batch context, ordered by timestamp ascending.
	ListStagesByActor(ctx context.Context, actorKey domain.ActorKey) ([]models.StageWithBatch, error)

	// ListByHolder and ListByOwner are pure reads over a consistent
	// snapshot; they take no batch locks.
	ListByHolder(ctx context.Context, holderKey domain.ActorKey) ([]*models.Batch, error)
	ListByOwner(ctx context.Context, ownerKey domain.ActorKey) ([]*models.Batch, error)
}
