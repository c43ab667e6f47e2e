// Package domain holds the primitive types shared across custos: typed
// identifiers, actor keys, roles, and content references. Parsing happens at
// trust boundaries so the rest of the code can assume validity.
package domain

import (
	"github.com/google/uuid"

	dErrors "custos/pkg/domain-errors"
)

// BatchID identifies a batch. Always system-assigned, never caller-supplied.
type BatchID uuid.UUID

// PartnerID identifies a registered partner.
type PartnerID uuid.UUID

// NewBatchID returns a fresh system-assigned batch identifier.
func NewBatchID() BatchID {
	return BatchID(uuid.New())
}

// NewPartnerID returns a fresh partner identifier.
func NewPartnerID() PartnerID {
	return PartnerID(uuid.New())
}

// ParseBatchID validates and converts an external batch id string.
func ParseBatchID(s string) (BatchID, error) {
	u, err := parseUUID(s, "batch_id")
	if err != nil {
		return BatchID{}, err
	}
	return BatchID(u), nil
}

// ParsePartnerID validates and converts an external partner id string.
func ParsePartnerID(s string) (PartnerID, error) {
	u, err := parseUUID(s, "partner_id")
	if err != nil {
		return PartnerID{}, err
	}
	return PartnerID(u), nil
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeValidation, field+" is not a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeValidation, field+" must not be the nil UUID")
	}
	return u, nil
}

func (id BatchID) String() string { return uuid.UUID(id).String() }

func (id BatchID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the id in canonical UUID form so JSON encoders emit a
// string rather than the underlying byte array.
func (id BatchID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *BatchID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = BatchID(u)
	return nil
}

func (id PartnerID) String() string { return uuid.UUID(id).String() }

func (id PartnerID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

// MarshalText renders the id in canonical UUID form so JSON encoders emit a
// string rather than the underlying byte array.
func (id PartnerID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}

func (id *PartnerID) UnmarshalText(text []byte) error {
	u, err := uuid.Parse(string(text))
	if err != nil {
		return err
	}
	*id = PartnerID(u)
	return nil
}
