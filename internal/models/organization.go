package models

import "time"

// Audit carries the bookkeeping fields shared by every stored entity.
// They are stamped by the access services and never accepted from callers.
type Audit struct {
	CreatedAt  *time.Time `json:"CreatedAt,omitempty"`
	CreatedBy  string     `json:"CreatedBy,omitempty"`
	ModifiedAt *time.Time `json:"ModifiedAt,omitempty"`
	ModifiedBy string     `json:"ModifiedBy,omitempty"`
}

// NewAudit returns creation audit fields for the given actor.
func NewAudit(actor string, at time.Time) Audit {
	t := at.UTC()
	return Audit{CreatedAt: &t, CreatedBy: actor}
}

// Modified returns a copy of the audit fields stamped with a modification.
func (a Audit) Modified(actor string, at time.Time) Audit {
	t := at.UTC()
	a.ModifiedAt = &t
	a.ModifiedBy = actor
	return a
}

// Organization represents a tenant that owns laboratories
type Organization struct {
	OrganizationID        string `json:"OrganizationId"`
	Name                  string `json:"Name"`
	Description           string `json:"Description,omitempty"`
	Country               string `json:"Country,omitempty"`
	AwsHealthOmicsEnabled bool   `json:"AwsHealthOmicsEnabled"`
	NextFlowTowerEnabled  bool   `json:"NextFlowTowerEnabled"`
	Audit
}

// Clone returns a copy of the organization.
func (o *Organization) Clone() *Organization {
	cp := *o
	return &cp
}

// LaboratoryStatus is the administrative state of a laboratory
type LaboratoryStatus string

const (
	LaboratoryStatusActive   LaboratoryStatus = "Active"
	LaboratoryStatusInactive LaboratoryStatus = "Inactive"
)

// Laboratory is a unit of work scoped to one organization
type Laboratory struct {
	OrganizationID        string           `json:"OrganizationId"`
	LaboratoryID          string           `json:"LaboratoryId"`
	Name                  string           `json:"Name"`
	Description           string           `json:"Description,omitempty"`
	Status                LaboratoryStatus `json:"Status"`
	S3Bucket              string           `json:"S3Bucket,omitempty"`
	AwsHealthOmicsEnabled bool             `json:"AwsHealthOmicsEnabled"`
	NextFlowTowerEnabled  bool             `json:"NextFlowTowerEnabled"`
	Audit
}

// Clone returns a copy of the laboratory.
func (l *Laboratory) Clone() *Laboratory {
	cp := *l
	return &cp
}

// IsActive reports whether the laboratory accepts work.
func (l *Laboratory) IsActive() bool {
	return l.Status == LaboratoryStatusActive
}
