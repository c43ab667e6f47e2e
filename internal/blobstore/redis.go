package blobstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"custos/pkg/domain"
	"custos/pkg/platform/sentinel"
)

const keyPrefix = "blob:"

// Redis stores blobs in Redis under their content reference. SETNX keeps
// repeated puts of the same content a single write.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (s *Redis) Put(ctx context.Context, data []byte) (domain.ContentRef, error) {
	ref := RefFor(data)
	if err := s.client.SetNX(ctx, keyPrefix+ref.String(), data, 0).Err(); err != nil {
		return "", fmt.Errorf("%w: put blob: %w", sentinel.ErrUnavailable, err)
	}
	return ref, nil
}

func (s *Redis) Get(ctx context.Context, ref domain.ContentRef) ([]byte, error) {
	data, err := s.client.Get(ctx, keyPrefix+ref.String()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get blob: %w", sentinel.ErrUnavailable, err)
	}
	return data, nil
}
