package repositories

import (
	"context"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// The transaction builders (PutNew, Replace, Remove, Check) return store
// writes without executing them so the access services can compose several
// collections into one atomic TransactWrite. Replace carries identity and
// creation fields over from previous, never from the caller.

// OrganizationRepository defines the interface for organization data operations
type OrganizationRepository interface {
	Get(ctx context.Context, organizationID string) (*models.Organization, error)
	List(ctx context.Context) ([]*models.Organization, error)
	Add(ctx context.Context, org *models.Organization) error
	Update(ctx context.Context, org, previous *models.Organization) error
	Delete(ctx context.Context, organizationID string) error

	Key(organizationID string) store.Key
	PutNew(org *models.Organization) (store.Write, error)
	Replace(org, previous *models.Organization) (store.Write, error)
	Remove(organizationID string) store.Write
}

// LaboratoryRepository defines the interface for laboratory data operations
type LaboratoryRepository interface {
	Get(ctx context.Context, organizationID, laboratoryID string) (*models.Laboratory, error)
	GetByLaboratoryID(ctx context.Context, laboratoryID string) (*models.Laboratory, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.Laboratory, error)
	List(ctx context.Context) ([]*models.Laboratory, error)
	Add(ctx context.Context, lab *models.Laboratory) error
	Update(ctx context.Context, lab, previous *models.Laboratory) error
	Delete(ctx context.Context, organizationID, laboratoryID string) error

	Key(organizationID, laboratoryID string) store.Key
	PutNew(lab *models.Laboratory) (store.Write, error)
	Replace(lab, previous *models.Laboratory) (store.Write, error)
	Remove(organizationID, laboratoryID string) store.Write
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Get(ctx context.Context, userID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Add(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user, previous *models.User) error
	Delete(ctx context.Context, userID string) error

	Key(userID string) store.Key
	PutNew(user *models.User) (store.Write, error)
	Replace(user, previous *models.User) (store.Write, error)
	Remove(userID string) store.Write
}

// OrganizationUserRepository defines the interface for organization membership operations
type OrganizationUserRepository interface {
	Get(ctx context.Context, organizationID, userID string) (*models.OrganizationUser, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.OrganizationUser, error)
	ListByUser(ctx context.Context, userID string) ([]*models.OrganizationUser, error)
	Add(ctx context.Context, member *models.OrganizationUser) error
	Update(ctx context.Context, member, previous *models.OrganizationUser) error
	Delete(ctx context.Context, organizationID, userID string) error

	Key(organizationID, userID string) store.Key
	PutNew(member *models.OrganizationUser) (store.Write, error)
	Replace(member, previous *models.OrganizationUser) (store.Write, error)
	Remove(organizationID, userID string) store.Write
	Check(organizationID, userID string) store.Write
}

// LaboratoryUserRepository defines the interface for laboratory grant operations
type LaboratoryUserRepository interface {
	Get(ctx context.Context, laboratoryID, userID string) (*models.LaboratoryUser, error)
	ListByLaboratory(ctx context.Context, laboratoryID string) ([]*models.LaboratoryUser, error)
	ListByUser(ctx context.Context, userID string) ([]*models.LaboratoryUser, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*models.LaboratoryUser, error)
	Add(ctx context.Context, grant *models.LaboratoryUser) error
	Update(ctx context.Context, grant, previous *models.LaboratoryUser) error
	Delete(ctx context.Context, laboratoryID, userID string) error

	Key(laboratoryID, userID string) store.Key
	PutNew(grant *models.LaboratoryUser) (store.Write, error)
	Replace(grant, previous *models.LaboratoryUser) (store.Write, error)
	Remove(laboratoryID, userID string) store.Write
}

// UniqueReferenceRepository reserves normalised values within a scope. It
// holds no business rules beyond key composition.
type UniqueReferenceRepository interface {
	Reserve(value, scope string) (store.Write, error)
	Release(value, scope string) store.Write
	Exists(ctx context.Context, value, scope string) (bool, error)
	Key(value, scope string) store.Key
}

// AuthEventRepository defines the interface for the append-only authentication event log
type AuthEventRepository interface {
	Add(ctx context.Context, event *models.AuthEvent) error
	Get(ctx context.Context, eventID string) (*models.AuthEvent, error)
	ListByUser(ctx context.Context, userName string) ([]*models.AuthEvent, error)
}
