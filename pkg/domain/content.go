package domain

import (
	dErrors "custos/pkg/domain-errors"
)

// ContentRef is an opaque pointer into the external content-addressed store.
// The core records it on stage events and never interprets it.
type ContentRef string

// ParseContentRef validates an externally supplied content reference. Empty
// refs are allowed at the call sites that treat attachments as optional;
// this parser is for the places that require one.
func ParseContentRef(s string) (ContentRef, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeValidation, "content reference is required")
	}
	return ContentRef(s), nil
}

func (r ContentRef) String() string { return string(r) }

func (r ContentRef) IsNil() bool { return r == "" }
