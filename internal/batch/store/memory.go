package store

import (
	"context"
	"sort"
	"sync"

	"custos/internal/batch/models"
	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemory keeps all batch state in process memory behind one RWMutex. It
// favors clarity over performance and backs unit tests and single-node
// deployments. Version checks happen inside the lock, so the CAS semantics
// match the Postgres implementation exactly.
type InMemory struct {
	mu      sync.RWMutex
	batches map[domain.BatchID]*batchRecord
}

type batchRecord struct {
	batch        models.Batch
	participants map[domain.PartnerID]models.Participant
	stages       []models.Stage
}

func NewInMemory() *InMemory {
	return &InMemory{batches: make(map[domain.BatchID]*batchRecord)}
}

func (s *InMemory) CreateBatch(_ context.Context, b *models.Batch, participants []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.batches[b.ID]; exists {
		return sentinel.ErrConflict
	}
	rec := &batchRecord{
		batch:        *b,
		participants: make(map[domain.PartnerID]models.Participant, len(participants)),
	}
	for _, p := range participants {
		rec.participants[p.PartnerID] = p
	}
	s.batches[b.ID] = rec
	return nil
}

func (s *InMemory) FindBatch(_ context.Context, id domain.BatchID) (*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.batches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := rec.batch
	return &cp, nil
}

// casLocked verifies the caller's version still matches the stored one.
// Callers hold the write lock.
func (s *InMemory) casLocked(b *models.Batch) (*batchRecord, error) {
	rec, ok := s.batches[b.ID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if rec.batch.Version != b.Version {
		return nil, sentinel.ErrConflict
	}
	return rec, nil
}

func (s *InMemory) UpdateBatch(_ context.Context, b *models.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.casLocked(b)
	if err != nil {
		return err
	}
	b.Version++
	rec.batch = *b
	return nil
}

func (s *InMemory) AppendStage(_ context.Context, b *models.Batch, stage *models.Stage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.casLocked(b)
	if err != nil {
		return err
	}
	b.Version++
	rec.batch = *b
	rec.stages = append(rec.stages, *stage)
	return nil
}

func (s *InMemory) AddParticipants(_ context.Context, b *models.Batch, participants []models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.casLocked(b)
	if err != nil {
		return err
	}
	b.Version++
	rec.batch = *b
	for _, p := range participants {
		if _, exists := rec.participants[p.PartnerID]; !exists {
			rec.participants[p.PartnerID] = p
		}
	}
	return nil
}

func (s *InMemory) RemoveParticipant(_ context.Context, b *models.Batch, partnerID domain.PartnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, err := s.casLocked(b)
	if err != nil {
		return err
	}
	if _, exists := rec.participants[partnerID]; !exists {
		return sentinel.ErrNotFound
	}
	b.Version++
	rec.batch = *b
	delete(rec.participants, partnerID)
	return nil
}

func (s *InMemory) ListParticipants(_ context.Context, batchID domain.BatchID) ([]models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.batches[batchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make([]models.Participant, 0, len(rec.participants))
	for _, p := range rec.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AddedAt.Before(out[j].AddedAt) })
	return out, nil
}

func (s *InMemory) ListStages(_ context.Context, batchID domain.BatchID) ([]models.Stage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.batches[batchID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := append([]models.Stage{}, rec.stages...)
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceIndex < out[j].SequenceIndex })
	return out, nil
}

func (s *InMemory) ListStagesByActor(_ context.Context, actorKey domain.ActorKey) ([]models.StageWithBatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StageWithBatch
	for _, rec := range s.batches {
		for _, st := range rec.stages {
			if st.ActorKey == actorKey {
				out = append(out, models.StageWithBatch{
					Stage:           st,
					HumanReadableID: rec.batch.HumanReadableID,
					ProducerName:    rec.batch.ProducerName,
					BatchStatus:     rec.batch.Status,
				})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Stage.Timestamp.Before(out[j].Stage.Timestamp) })
	return out, nil
}

func (s *InMemory) ListByHolder(_ context.Context, holderKey domain.ActorKey) ([]*models.Batch, error) {
	return s.listWhere(func(b models.Batch) bool { return b.CurrentHolderKey == holderKey })
}

func (s *InMemory) ListByOwner(_ context.Context, ownerKey domain.ActorKey) ([]*models.Batch, error) {
	return s.listWhere(func(b models.Batch) bool { return b.BrandOwnerKey == ownerKey })
}

func (s *InMemory) listWhere(match func(models.Batch) bool) ([]*models.Batch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Batch
	for _, rec := range s.batches {
		if match(rec.batch) {
			cp := rec.batch
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
