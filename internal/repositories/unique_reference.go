package repositories

import (
	"context"
	"errors"
	"strings"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// Scope tags of the uniqueness registry.
const (
	scopeOrganizationName = "organization-name"
	scopeUserEmail        = "user-email"
)

// OrganizationNameScope reserves organization names globally.
func OrganizationNameScope() string { return scopeOrganizationName }

// UserEmailScope reserves user emails globally.
func UserEmailScope() string { return scopeUserEmail }

// LaboratoryNameScope reserves laboratory names within one organization.
func LaboratoryNameScope(organizationID string) string {
	return "organization-" + organizationID + "-laboratory-name"
}

// NormalizeReference is the canonical form of a reserved value.
func NormalizeReference(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// uniqueReferenceRepository implements UniqueReferenceRepository
type uniqueReferenceRepository struct {
	c collection
}

// NewUniqueReferenceRepository creates a new uniqueness registry
func NewUniqueReferenceRepository(s store.Store) UniqueReferenceRepository {
	return &uniqueReferenceRepository{c: collection{store: s, name: CollectionUniqueReference}}
}

func (r *uniqueReferenceRepository) Key(value, scope string) store.Key {
	return store.Key{Collection: CollectionUniqueReference, Partition: NormalizeReference(value), Sort: scope}
}

// Reserve returns a write that fails if the value is already taken.
func (r *uniqueReferenceRepository) Reserve(value, scope string) (store.Write, error) {
	key := r.Key(value, scope)
	item, err := encode(key, models.UniqueReference{Value: key.Partition, Type: scope}, nil)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustNotExist), nil
}

// Release returns a write that fails if the value is not reserved.
func (r *uniqueReferenceRepository) Release(value, scope string) store.Write {
	return store.Delete(r.Key(value, scope), store.MustExist)
}

// Exists reports whether a value is reserved.
func (r *uniqueReferenceRepository) Exists(ctx context.Context, value, scope string) (bool, error) {
	_, err := r.c.get(ctx, r.Key(value, scope))
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
