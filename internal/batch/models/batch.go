// Package models holds the batch aggregate and its children. The aggregate
// methods are the single place custody and lifecycle rules are written; the
// service layer sequences them and the stores persist them.
package models

import (
	"fmt"
	"time"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Status is the batch lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// CanTransitionTo encodes the one-way state machine: the only transition is
// active -> completed. Completed is terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusActive && next == StatusCompleted
}

func (s Status) IsValid() bool {
	return s == StatusActive || s == StatusCompleted
}

// Batch is the unit of custody.
//
// Invariants:
//   - BrandOwnerKey never changes after construction
//   - CurrentHolderKey is always the public key of a current participant
//     (enforced at the service layer, which owns participant resolution)
//   - Stage sequence indices are exactly 0..NextStageIndex-1, no gaps
//   - Once Status is completed the record is frozen
//
// Version is the optimistic concurrency token: every mutating operation must
// win a compare-and-swap on it before committing, which serializes all
// mutations on one batch.
type Batch struct {
	ID               domain.BatchID  `json:"id"`
	HumanReadableID  string          `json:"human_readable_id"`
	ProducerName     string          `json:"producer_name"`
	BrandOwnerKey    domain.ActorKey `json:"brand_owner_key"`
	CurrentHolderKey domain.ActorKey `json:"current_holder_key"`
	Status           Status          `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
	NextStageIndex   int64           `json:"next_stage_index"`
	Version          int64           `json:"-"`
}

// NewBatch constructs an active batch with a zeroed stage counter.
func NewBatch(id domain.BatchID, producerName string, brandOwnerKey, initialHolderKey domain.ActorKey, now time.Time) (*Batch, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "batch id is required")
	}
	if producerName == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "producer name must not be empty")
	}
	if brandOwnerKey.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "brand owner key is required")
	}
	if initialHolderKey.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "initial holder key is required")
	}
	return &Batch{
		ID:               id,
		HumanReadableID:  humanReadableID(id, now),
		ProducerName:     producerName,
		BrandOwnerKey:    brandOwnerKey,
		CurrentHolderKey: initialHolderKey,
		Status:           StatusActive,
		CreatedAt:        now,
		NextStageIndex:   0,
		Version:          1,
	}, nil
}

// humanReadableID derives a short label operators can read off a bag tag.
// Uniqueness still comes from the UUID; the label is a convenience.
func humanReadableID(id domain.BatchID, now time.Time) string {
	return fmt.Sprintf("LOT-%s-%.8s", now.UTC().Format("20060102"), id.String())
}

func (b *Batch) IsActive() bool {
	return b.Status == StatusActive
}

// RequireActive gates every mutation: completed batches are frozen.
func (b *Batch) RequireActive() error {
	if !b.IsActive() {
		return dErrors.New(dErrors.CodeInvalidState, "batch is completed and its record is frozen")
	}
	return nil
}

// ApplyTransfer moves custody to a new holder. The caller has already
// verified the new holder is a participant.
func (b *Batch) ApplyTransfer(newHolderKey domain.ActorKey) error {
	if err := b.RequireActive(); err != nil {
		return err
	}
	if newHolderKey.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "new holder key is required")
	}
	b.CurrentHolderKey = newHolderKey
	return nil
}

// NextStage assigns the next sequence index, advances the counter, and
// returns the immutable stage record. The mutation only becomes real when
// the store commits batch and stage in one atomic unit.
func (b *Batch) NextStage(actorKey domain.ActorKey, stageName string, ref domain.ContentRef, now time.Time) (*Stage, error) {
	if err := b.RequireActive(); err != nil {
		return nil, err
	}
	stage, err := NewStage(b.ID, b.NextStageIndex, actorKey, stageName, ref, now)
	if err != nil {
		return nil, err
	}
	b.NextStageIndex++
	return stage, nil
}

// ApplyFinalize freezes the batch. Finalizing an already-completed batch is
// a no-op: the transition is idempotent by contract.
func (b *Batch) ApplyFinalize() (changed bool) {
	if b.Status.CanTransitionTo(StatusCompleted) {
		b.Status = StatusCompleted
		return true
	}
	return false
}
