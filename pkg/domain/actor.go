package domain

import (
	dErrors "custos/pkg/domain-errors"
)

// ActorKey is the opaque identity token of a partner's public key. The core
// never interprets key material; it only compares keys for equality when
// enforcing required-actor rules.
type ActorKey string

// maxActorKeyLen bounds keys so a malformed client cannot bloat batch rows.
const maxActorKeyLen = 512

// ParseActorKey validates an externally supplied actor key.
func ParseActorKey(s string) (ActorKey, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "actor key is required")
	}
	if len(s) > maxActorKeyLen {
		return "", dErrors.New(dErrors.CodeValidation, "actor key exceeds maximum length")
	}
	return ActorKey(s), nil
}

func (k ActorKey) String() string { return string(k) }

func (k ActorKey) IsNil() bool { return k == "" }
