package models

import (
	"time"

	"custos/pkg/domain"
)

// Participant is the membership edge between a batch and a partner. The pair
// (BatchID, PartnerID) is unique; adds are idempotent unions.
type Participant struct {
	BatchID   domain.BatchID   `json:"batch_id"`
	PartnerID domain.PartnerID `json:"partner_id"`
	AddedAt   time.Time        `json:"added_at"`
}

// View is the read model for one batch: the aggregate plus its cast and its
// ordered history.
type View struct {
	Batch        Batch         `json:"batch"`
	Participants []Participant `json:"participants"`
	Stages       []Stage       `json:"stages"`
}
