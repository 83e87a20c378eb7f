package models

import "fmt"

// DiscrepancyKind names a disagreement between a user's access snapshot,
// the junction collections and the uniqueness registry.
type DiscrepancyKind string

const (
	DiscrepancyMissingMembership  DiscrepancyKind = "MissingOrganizationUser"
	DiscrepancyUncachedMembership DiscrepancyKind = "UncachedOrganizationUser"
	DiscrepancyMembershipMismatch DiscrepancyKind = "OrganizationUserMismatch"
	DiscrepancyMissingGrant       DiscrepancyKind = "MissingLaboratoryUser"
	DiscrepancyUncachedGrant      DiscrepancyKind = "UncachedLaboratoryUser"
	DiscrepancyGrantMismatch      DiscrepancyKind = "LaboratoryUserMismatch"
	DiscrepancyGrantWithoutMember DiscrepancyKind = "LaboratoryUserWithoutOrganizationUser"
	DiscrepancyMissingReservation DiscrepancyKind = "MissingEmailReservation"
)

// Discrepancy is one finding of a consistency check.
type Discrepancy struct {
	Kind           DiscrepancyKind
	UserID         string
	OrganizationID string
	LaboratoryID   string
	Detail         string
}

func (d Discrepancy) String() string {
	s := fmt.Sprintf("%s user=%s", d.Kind, d.UserID)
	if d.OrganizationID != "" {
		s += " organization=" + d.OrganizationID
	}
	if d.LaboratoryID != "" {
		s += " laboratory=" + d.LaboratoryID
	}
	if d.Detail != "" {
		s += ": " + d.Detail
	}
	return s
}
