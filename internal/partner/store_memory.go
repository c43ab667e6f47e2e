package partner

import (
	"context"
	"sort"
	"sync"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemoryStore keeps the registry in process memory. It favors clarity over
// performance and backs unit tests and single-node deployments.
type InMemoryStore struct {
	mu       sync.RWMutex
	partners map[domain.PartnerID]*Partner
	byKey    map[domain.ActorKey]domain.PartnerID
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		partners: make(map[domain.PartnerID]*Partner),
		byKey:    make(map[domain.ActorKey]domain.PartnerID),
	}
}

func (s *InMemoryStore) CreateIfKeyAvailable(_ context.Context, p *Partner) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byKey[p.PublicKey]; taken {
		return sentinel.ErrConflict
	}
	if _, exists := s.partners[p.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *p
	s.partners[p.ID] = &cp
	s.byKey[p.PublicKey] = p.ID
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.PartnerID) (*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.partners[id]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByKey(_ context.Context, key domain.ActorKey) (*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.byKey[key]; ok {
		cp := *s.partners[id]
		return &cp, nil
	}
	return nil, sentinel.ErrNotFound
}

// FindByIDs resolves a set of ids in one call. Any missing id fails the
// whole lookup with ErrNotFound so callers never operate on a partial cast.
func (s *InMemoryStore) FindByIDs(_ context.Context, ids []domain.PartnerID) ([]*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Partner, 0, len(ids))
	for _, id := range ids {
		p, ok := s.partners[id]
		if !ok {
			return nil, sentinel.ErrNotFound
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*Partner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Partner, 0, len(s.partners))
	for _, p := range s.partners {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
