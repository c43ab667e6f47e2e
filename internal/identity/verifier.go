// Package identity enforces the actor rules every privileged operation
// shares: the claimed actor key must be well-formed, and for privileged
// operations it must match the expected key exactly.
package identity

import (
	"custos/pkg/domain"
	dErrors "custos/pkg/domain-errors"
)

// Verifier is the leaf dependency used by all mutating services. It holds no
// state; it exists so the matching rule is written once and tested once.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Validate checks that a claimed actor key is well-formed.
func (v *Verifier) Validate(key domain.ActorKey) error {
	_, err := domain.ParseActorKey(key.String())
	return err
}

// RequireActor checks that the caller is exactly the expected actor. The
// message names the required role so authorization failures are actionable
// without leaking the expected key itself.
func (v *Verifier) RequireActor(expected, got domain.ActorKey, requiredRole string) error {
	if err := v.Validate(got); err != nil {
		return err
	}
	if got != expected {
		return dErrors.New(dErrors.CodeUnauthorized, "caller is not the "+requiredRole)
	}
	return nil
}
