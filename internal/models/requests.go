package models

// CreateOrganizationRequest is the payload for creating an organization.
// OrganizationID may be supplied by callers that retry after a timeout so the
// second attempt collides on the primary key instead of creating a new row.
type CreateOrganizationRequest struct {
	OrganizationID        string `json:"OrganizationId,omitempty" validate:"omitempty,uuid"`
	Name                  string `json:"Name" validate:"required,min=1,max=255"`
	Description           string `json:"Description,omitempty" validate:"max=1024"`
	Country               string `json:"Country,omitempty" validate:"max=64"`
	AwsHealthOmicsEnabled bool   `json:"AwsHealthOmicsEnabled"`
	NextFlowTowerEnabled  bool   `json:"NextFlowTowerEnabled"`
}

// UpdateOrganizationRequest replaces the mutable organization fields.
type UpdateOrganizationRequest struct {
	Name                  string `json:"Name" validate:"required,min=1,max=255"`
	Description           string `json:"Description,omitempty" validate:"max=1024"`
	Country               string `json:"Country,omitempty" validate:"max=64"`
	AwsHealthOmicsEnabled bool   `json:"AwsHealthOmicsEnabled"`
	NextFlowTowerEnabled  bool   `json:"NextFlowTowerEnabled"`
}

// CreateLaboratoryRequest is the payload for creating a laboratory. Nil
// capability flags inherit the owning organization's value.
type CreateLaboratoryRequest struct {
	OrganizationID        string           `json:"OrganizationId" validate:"required"`
	LaboratoryID          string           `json:"LaboratoryId,omitempty" validate:"omitempty,uuid"`
	Name                  string           `json:"Name" validate:"required,min=1,max=255"`
	Description           string           `json:"Description,omitempty" validate:"max=1024"`
	Status                LaboratoryStatus `json:"Status,omitempty" validate:"omitempty,oneof=Active Inactive"`
	S3Bucket              string           `json:"S3Bucket,omitempty" validate:"max=63"`
	AwsHealthOmicsEnabled *bool            `json:"AwsHealthOmicsEnabled,omitempty"`
	NextFlowTowerEnabled  *bool            `json:"NextFlowTowerEnabled,omitempty"`
}

// UpdateLaboratoryRequest replaces the mutable laboratory fields.
type UpdateLaboratoryRequest struct {
	Name                  string           `json:"Name" validate:"required,min=1,max=255"`
	Description           string           `json:"Description,omitempty" validate:"max=1024"`
	Status                LaboratoryStatus `json:"Status" validate:"required,oneof=Active Inactive"`
	S3Bucket              string           `json:"S3Bucket,omitempty" validate:"max=63"`
	AwsHealthOmicsEnabled bool             `json:"AwsHealthOmicsEnabled"`
	NextFlowTowerEnabled  bool             `json:"NextFlowTowerEnabled"`
}

// UserProfile holds the optional profile fields a user may edit.
type UserProfile struct {
	Title         *string `json:"Title,omitempty" validate:"omitempty,max=32"`
	FirstName     *string `json:"FirstName,omitempty" validate:"omitempty,max=128"`
	LastName      *string `json:"LastName,omitempty" validate:"omitempty,max=128"`
	PreferredName *string `json:"PreferredName,omitempty" validate:"omitempty,max=128"`
	PhoneNumber   *string `json:"PhoneNumber,omitempty" validate:"omitempty,max=32"`
}

// AddOrganizationUserRequest grants a user, new or existing, access to an organization.
type AddOrganizationUserRequest struct {
	OrganizationID    string `json:"OrganizationId" validate:"required"`
	Email             string `json:"Email" validate:"required,email,max=320"`
	OrganizationAdmin bool   `json:"OrganizationAdmin"`
	UserProfile
}

// UpdateOrganizationUserRequest changes membership status or role.
type UpdateOrganizationUserRequest struct {
	Status            *UserStatus `json:"Status,omitempty" validate:"omitempty,oneof=Active Inactive"`
	OrganizationAdmin *bool       `json:"OrganizationAdmin,omitempty"`
}

// LaboratoryAccessRequest grants or changes a user's laboratory roles.
type LaboratoryAccessRequest struct {
	LaboratoryID  string     `json:"LaboratoryId" validate:"required"`
	UserID        string     `json:"UserId" validate:"required"`
	Status        UserStatus `json:"Status,omitempty" validate:"omitempty,oneof=Active Inactive"`
	LabManager    bool       `json:"LabManager"`
	LabTechnician bool       `json:"LabTechnician"`
}

// UpdateUserRequest changes a user's email and profile.
type UpdateUserRequest struct {
	Email string `json:"Email,omitempty" validate:"omitempty,email,max=320"`
	UserProfile
}

// InviteUserRequest invites an email address into an organization.
type InviteUserRequest struct {
	OrganizationID    string `json:"OrganizationId" validate:"required"`
	Email             string `json:"Email" validate:"required,email,max=320"`
	OrganizationAdmin bool   `json:"OrganizationAdmin"`
}

// AcceptInvitationRequest completes an invitation with optional profile data.
type AcceptInvitationRequest struct {
	Token string `json:"Token" validate:"required"`
	UserProfile
}

// AddOrganizationUserResult reports the user and membership written by AddUserToOrganization.
type AddOrganizationUserResult struct {
	User             *User
	OrganizationUser *OrganizationUser
	// Created is true when a new User row was written.
	Created bool
}

// InvitationResult reports the outcome of an invitation.
type InvitationResult struct {
	User             *User
	OrganizationUser *OrganizationUser
	Token            string
	Resent           bool
}

// LaboratoryCredentials are the external-integration secrets of a laboratory.
type LaboratoryCredentials struct {
	OrganizationID           string
	LaboratoryID             string
	NextFlowTowerAccessToken string
	NextFlowTowerWorkspaceID string
}
