package models

// UserStatus represents the lifecycle state of a user or a membership
type UserStatus string

const (
	UserStatusActive   UserStatus = "Active"
	UserStatusInactive UserStatus = "Inactive"
	UserStatusInvited  UserStatus = "Invited"
)

// Valid reports whether the status is one of the known values.
func (s UserStatus) Valid() bool {
	switch s {
	case UserStatusActive, UserStatusInactive, UserStatusInvited:
		return true
	}
	return false
}

// LaboratoryAccess is the cached copy of a LaboratoryUser row held on a User.
type LaboratoryAccess struct {
	Status        UserStatus `json:"Status"`
	LabManager    bool       `json:"LabManager"`
	LabTechnician bool       `json:"LabTechnician"`
}

// OrganizationAccess is the cached copy of an OrganizationUser row held on a
// User, together with the laboratory grants inside that organization.
type OrganizationAccess struct {
	Status            UserStatus                  `json:"Status"`
	OrganizationAdmin bool                        `json:"OrganizationAdmin"`
	LaboratoryAccess  map[string]LaboratoryAccess `json:"LaboratoryAccess,omitempty"`
}

// User represents a person with access to one or more organizations.
//
// OrganizationAccess is a read-optimised snapshot of the OrganizationUser and
// LaboratoryUser collections. It is only ever rewritten in the same atomic
// write as the junction row it mirrors.
type User struct {
	UserID             string                        `json:"UserId"`
	Email              string                        `json:"Email"`
	Status             UserStatus                    `json:"Status"`
	Title              string                        `json:"Title,omitempty"`
	FirstName          string                        `json:"FirstName,omitempty"`
	LastName           string                        `json:"LastName,omitempty"`
	PreferredName      string                        `json:"PreferredName,omitempty"`
	PhoneNumber        string                        `json:"PhoneNumber,omitempty"`
	OrganizationAccess map[string]OrganizationAccess `json:"OrganizationAccess,omitempty"`
	Audit
}

// Clone returns a deep copy of the user including the access snapshot.
func (u *User) Clone() *User {
	cp := *u
	if u.OrganizationAccess != nil {
		cp.OrganizationAccess = make(map[string]OrganizationAccess, len(u.OrganizationAccess))
		for orgID, access := range u.OrganizationAccess {
			cp.OrganizationAccess[orgID] = access.clone()
		}
	}
	return &cp
}

func (a OrganizationAccess) clone() OrganizationAccess {
	cp := a
	if a.LaboratoryAccess != nil {
		cp.LaboratoryAccess = make(map[string]LaboratoryAccess, len(a.LaboratoryAccess))
		for labID, lab := range a.LaboratoryAccess {
			cp.LaboratoryAccess[labID] = lab
		}
	}
	return cp
}

// SetOrganizationAccess writes the organization entry, keeping any existing
// laboratory grants under it.
func (u *User) SetOrganizationAccess(organizationID string, status UserStatus, admin bool) {
	if u.OrganizationAccess == nil {
		u.OrganizationAccess = make(map[string]OrganizationAccess)
	}
	entry := u.OrganizationAccess[organizationID]
	entry.Status = status
	entry.OrganizationAdmin = admin
	u.OrganizationAccess[organizationID] = entry
}

// RemoveOrganizationAccess drops the organization entry and every laboratory grant under it.
func (u *User) RemoveOrganizationAccess(organizationID string) {
	delete(u.OrganizationAccess, organizationID)
}

// SetLaboratoryAccess writes the laboratory entry under its organization.
// The organization entry must already be present.
func (u *User) SetLaboratoryAccess(organizationID, laboratoryID string, access LaboratoryAccess) bool {
	entry, ok := u.OrganizationAccess[organizationID]
	if !ok {
		return false
	}
	if entry.LaboratoryAccess == nil {
		entry.LaboratoryAccess = make(map[string]LaboratoryAccess)
	}
	entry.LaboratoryAccess[laboratoryID] = access
	u.OrganizationAccess[organizationID] = entry
	return true
}

// RemoveLaboratoryAccess deletes the laboratory key; absence is the canonical
// "no access" state.
func (u *User) RemoveLaboratoryAccess(organizationID, laboratoryID string) {
	entry, ok := u.OrganizationAccess[organizationID]
	if !ok {
		return
	}
	delete(entry.LaboratoryAccess, laboratoryID)
	if len(entry.LaboratoryAccess) == 0 {
		entry.LaboratoryAccess = nil
	}
	u.OrganizationAccess[organizationID] = entry
}

// ApplyProfile copies the non-empty profile fields onto the user.
func (u *User) ApplyProfile(p UserProfile) {
	if p.Title != nil {
		u.Title = *p.Title
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.PreferredName != nil {
		u.PreferredName = *p.PreferredName
	}
	if p.PhoneNumber != nil {
		u.PhoneNumber = *p.PhoneNumber
	}
}

// DisplayName returns the preferred name, falling back to first name and email.
func (u *User) DisplayName() string {
	switch {
	case u.PreferredName != "":
		return u.PreferredName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Email
	}
}

// OrganizationUser grants a user baseline access to an organization
type OrganizationUser struct {
	OrganizationID    string     `json:"OrganizationId"`
	UserID            string     `json:"UserId"`
	Status            UserStatus `json:"Status"`
	OrganizationAdmin bool       `json:"OrganizationAdmin"`
	Audit
}

// Clone returns a copy of the membership.
func (o *OrganizationUser) Clone() *OrganizationUser {
	cp := *o
	return &cp
}

// LaboratoryUser grants a user role-scoped access to a laboratory
type LaboratoryUser struct {
	LaboratoryID   string     `json:"LaboratoryId"`
	UserID         string     `json:"UserId"`
	OrganizationID string     `json:"OrganizationId"`
	Status         UserStatus `json:"Status"`
	LabManager     bool       `json:"LabManager"`
	LabTechnician  bool       `json:"LabTechnician"`
	Audit
}

// Clone returns a copy of the laboratory grant.
func (l *LaboratoryUser) Clone() *LaboratoryUser {
	cp := *l
	return &cp
}

// Access returns the snapshot form of the grant.
func (l *LaboratoryUser) Access() LaboratoryAccess {
	return LaboratoryAccess{Status: l.Status, LabManager: l.LabManager, LabTechnician: l.LabTechnician}
}

// UniqueReference reserves a normalised value within a scope tag.
type UniqueReference struct {
	Value string `json:"Value"`
	Type  string `json:"Type"`
}
