package services

import (
	"context"
	"time"

	"lab-management-platform/internal/models"
)

// AccessService coordinates every write that spans more than one
// collection. Each mutation validates its payload, performs its precondition
// reads, submits a single atomic transaction and then reloads the entity it
// returns. The reload is a separate read: a concurrent writer may change the
// entity between the commit and the read-back.
type AccessService interface {
	// Organizations
	CreateOrganization(ctx context.Context, actor string, req *models.CreateOrganizationRequest) (*models.Organization, error)
	UpdateOrganization(ctx context.Context, actor, organizationID string, req *models.UpdateOrganizationRequest) (*models.Organization, error)
	DeleteOrganization(ctx context.Context, actor, organizationID string) error
	GetOrganization(ctx context.Context, organizationID string) (*models.Organization, error)
	ListOrganizations(ctx context.Context) ([]*models.Organization, error)

	// Laboratories
	CreateLaboratory(ctx context.Context, actor string, req *models.CreateLaboratoryRequest) (*models.Laboratory, error)
	UpdateLaboratory(ctx context.Context, actor, organizationID, laboratoryID string, req *models.UpdateLaboratoryRequest) (*models.Laboratory, error)
	DeleteLaboratory(ctx context.Context, actor, organizationID, laboratoryID string) error
	GetLaboratory(ctx context.Context, organizationID, laboratoryID string) (*models.Laboratory, error)
	ListLaboratories(ctx context.Context, organizationID string) ([]*models.Laboratory, error)

	// Organization membership
	AddUserToOrganization(ctx context.Context, actor string, req *models.AddOrganizationUserRequest) (*models.AddOrganizationUserResult, error)
	UpdateOrganizationUser(ctx context.Context, actor, organizationID, userID string, req *models.UpdateOrganizationUserRequest) (*models.OrganizationUser, error)
	RemoveUserFromOrganization(ctx context.Context, actor, organizationID, userID string) error
	GetOrganizationUser(ctx context.Context, organizationID, userID string) (*models.OrganizationUser, error)
	ListOrganizationUsers(ctx context.Context, organizationID string) ([]*models.OrganizationUser, error)

	// Laboratory access
	GrantLaboratoryAccess(ctx context.Context, actor string, req *models.LaboratoryAccessRequest) (*models.LaboratoryUser, error)
	UpdateLaboratoryAccess(ctx context.Context, actor string, req *models.LaboratoryAccessRequest) (*models.LaboratoryUser, error)
	RevokeLaboratoryAccess(ctx context.Context, actor, laboratoryID, userID string) error
	ListLaboratoryUsers(ctx context.Context, laboratoryID string) ([]*models.LaboratoryUser, error)

	// Users
	GetUser(ctx context.Context, userID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, actor, userID string, req *models.UpdateUserRequest) (*models.User, error)
	SetUserStatus(ctx context.Context, actor, userID string, status models.UserStatus) (*models.User, error)
	ActivateInvitedUser(ctx context.Context, userID, organizationID string, profile models.UserProfile) (*models.User, error)

	// VerifyConsistency compares a user's access snapshot with the junction
	// collections and the email reservation. It never writes.
	VerifyConsistency(ctx context.Context, userID string) ([]models.Discrepancy, error)
}

// TokenService issues and verifies the signed invitation and password reset tokens
type TokenService interface {
	Issue(purpose TokenPurpose, subject TokenSubject) (string, error)
	Verify(token string, purpose TokenPurpose) (*TokenSubject, error)
	TTL(purpose TokenPurpose) time.Duration
}

// InvitationService drives the Invited -> Active transition and password resets
type InvitationService interface {
	Invite(ctx context.Context, actor string, req *models.InviteUserRequest) (*models.InvitationResult, error)
	AcceptInvitation(ctx context.Context, req *models.AcceptInvitationRequest) (*models.User, error)
	RequestPasswordReset(ctx context.Context, email string) (string, error)
	VerifyPasswordReset(ctx context.Context, token string) (*models.User, error)
}

// IntegrationService resolves per-laboratory credentials for external workflow engines
type IntegrationService interface {
	LaboratoryCredentials(ctx context.Context, organizationID, laboratoryID string) (*models.LaboratoryCredentials, error)
}
