package blobstore

import (
	"context"
	"sync"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

// InMemory keeps blobs in process memory for tests and dev runs.
type InMemory struct {
	mu    sync.RWMutex
	blobs map[domain.ContentRef][]byte
}

func NewInMemory() *InMemory {
	return &InMemory{blobs: make(map[domain.ContentRef][]byte)}
}

func (s *InMemory) Put(_ context.Context, data []byte) (domain.ContentRef, error) {
	ref := RefFor(data)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blobs[ref]; !exists {
		s.blobs[ref] = append([]byte(nil), data...)
	}
	return ref, nil
}

func (s *InMemory) Get(_ context.Context, ref domain.ContentRef) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[ref]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
