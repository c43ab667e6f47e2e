// Package partner holds the read-mostly registry of external identities that
// may appear in a batch's cast. Partners are created by an administrative
// action and are immutable once a batch references them.
package partner

import (
	"context"
	"time"

	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Partner is a registered identity with a declared role.
type Partner struct {
	ID          domain.PartnerID `json:"id"`
	PublicKey   domain.ActorKey  `json:"public_key"`
	Name        string           `json:"name"`
	Role        domain.Role      `json:"role"`
	ContactInfo string           `json:"contact_info"`
	CreatedAt   time.Time        `json:"created_at"`
}

// New validates and constructs a Partner. PublicKey uniqueness is enforced
// by the store, not here.
func New(id domain.PartnerID, key domain.ActorKey, name string, role domain.Role, contact string, now time.Time) (*Partner, error) {
	if id.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "partner id is required")
	}
	if key.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "partner public key is required")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "partner name is required")
	}
	if !role.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "partner role is not in the closed enumeration")
	}
	return &Partner{
		ID:          id,
		PublicKey:   key,
		Name:        name,
		Role:        role,
		ContactInfo: contact,
		CreatedAt:   now,
	}, nil
}

// Store is the persistence contract for the partner registry. Implementations
// return sentinel errors; the Directory translates them.
type Store interface {
	CreateIfKeyAvailable(ctx context.Context, p *Partner) error
	FindByID(ctx context.Context, id domain.PartnerID) (*Partner, error)
	FindByKey(ctx context.Context, key domain.ActorKey) (*Partner, error)
	FindByIDs(ctx context.Context, ids []domain.PartnerID) ([]*Partner, error)
	List(ctx context.Context) ([]*Partner, error)
}
