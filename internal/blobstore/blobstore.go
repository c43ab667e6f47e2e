// Package blobstore is the client side of the external content-addressed
// store that holds stage attachments. References are the hex SHA-256 of the
// content, so writes are idempotent: storing the same bytes twice yields the
// same reference and no second copy.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"custos/pkg/domain"
)

// Store puts and gets opaque attachment bytes. Implementations return
// sentinel.ErrNotFound for unknown references and sentinel.ErrUnavailable
// (possibly wrapped) when the backend cannot be reached.
type Store interface {
	Put(ctx context.Context, data []byte) (domain.ContentRef, error)
	Get(ctx context.Context, ref domain.ContentRef) ([]byte, error)
}

// RefFor computes the content reference for a payload. All implementations
// must use this so references are portable across backends.
func RefFor(data []byte) domain.ContentRef {
	sum := sha256.Sum256(data)
	return domain.ContentRef(hex.EncodeToString(sum[:]))
}
