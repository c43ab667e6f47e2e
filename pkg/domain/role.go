package domain

import (
	dErrors "custos/pkg/domain-errors"
)

// Role is the closed enumeration of partner roles. Behavior differences per
// role live in the stageProfiles lookup table below, never in scattered
// string comparisons.
type Role string

const (
	RoleProducer       Role = "producer"
	RoleProcessor      Role = "processor"
	RoleTransporter    Role = "transporter"
	RoleGrader         Role = "grader"
	RoleRoaster        Role = "roaster"
	RolePackager       Role = "packager"
	RoleDistributor    Role = "distributor"
	RoleEndConsumer    Role = "end-consumer"
	RoleSustainability Role = "sustainability-auditor"
)

// StageProfile describes the stage events a role conventionally records.
// Advisory only: authorization is decided by custody, not role, so an
// off-profile stage name is accepted but can be flagged by clients.
type StageProfile struct {
	// TypicalStages lists conventional stage names for the role.
	TypicalStages []string
	// CanHoldCustody is false for observer-style roles that join a batch's
	// cast without ever taking physical possession.
	CanHoldCustody bool
}

var stageProfiles = map[Role]StageProfile{
	RoleProducer:       {TypicalStages: []string{"Harvesting", "Drying", "Fermentation"}, CanHoldCustody: true},
	RoleProcessor:      {TypicalStages: []string{"Washing", "Hulling", "Milling"}, CanHoldCustody: true},
	RoleTransporter:    {TypicalStages: []string{"Pickup", "Transport", "Delivery"}, CanHoldCustody: true},
	RoleGrader:         {TypicalStages: []string{"Sampling", "Cupping", "Grading"}, CanHoldCustody: true},
	RoleRoaster:        {TypicalStages: []string{"Roasting", "Blending"}, CanHoldCustody: true},
	RolePackager:       {TypicalStages: []string{"Packaging", "Labelling"}, CanHoldCustody: true},
	RoleDistributor:    {TypicalStages: []string{"Warehousing", "Distribution"}, CanHoldCustody: true},
	RoleEndConsumer:    {TypicalStages: []string{"Receipt"}, CanHoldCustody: true},
	RoleSustainability: {TypicalStages: []string{"Audit"}, CanHoldCustody: false},
}

// ParseRole validates an externally supplied role string against the closed
// enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if _, ok := stageProfiles[r]; !ok {
		return "", dErrors.New(dErrors.CodeValidation, "unknown partner role: "+s)
	}
	return r, nil
}

// Roles returns every valid role. Order is unspecified.
func Roles() []Role {
	out := make([]Role, 0, len(stageProfiles))
	for r := range stageProfiles {
		out = append(out, r)
	}
	return out
}

// Profile returns the stage profile for the role. Unknown roles get an empty
// profile.
func (r Role) Profile() StageProfile {
	return stageProfiles[r]
}

// IsValid reports membership in the closed enumeration.
func (r Role) IsValid() bool {
	_, ok := stageProfiles[r]
	return ok
}

func (r Role) String() string { return string(r) }
