//go:build integration

package blobstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"custos/internal/blobstore"
	"custos/pkg/platform/sentinel"
	"custos/pkg/testutil/containers"
)

type RedisBlobStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *blobstore.Redis
	ctx   context.Context
}

func TestRedisBlobStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBlobStoreSuite))
}

func (s *RedisBlobStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = blobstore.NewRedis(s.redis.Client)
}

func (s *RedisBlobStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisBlobStoreSuite) TestRoundTrip() {
	payload := []byte("certificate-of-analysis pdf bytes")
	ref, err := s.store.Put(s.ctx, payload)
	s.Require().NoError(err)
	s.Equal(blobstore.RefFor(payload), ref)

	got, err := s.store.Get(s.ctx, ref)
	s.Require().NoError(err)
	s.Equal(payload, got)
}

func (s *RedisBlobStoreSuite) TestIdempotentPut() {
	first, err := s.store.Put(s.ctx, []byte("same bytes"))
	s.Require().NoError(err)
	second, err := s.store.Put(s.ctx, []byte("same bytes"))
	s.Require().NoError(err)
	s.Equal(first, second)
}

func (s *RedisBlobStoreSuite) TestUnknownRefNotFound() {
	_, err := s.store.Get(s.ctx, "deadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeefdeadbeef")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
