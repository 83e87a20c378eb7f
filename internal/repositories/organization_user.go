package repositories

import (
	"context"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// organizationUserRepository implements OrganizationUserRepository.
// Memberships are partitioned by organization and indexed by user.
type organizationUserRepository struct {
	c collection
}

// NewOrganizationUserRepository creates a new organization membership repository
func NewOrganizationUserRepository(s store.Store) OrganizationUserRepository {
	return &organizationUserRepository{c: collection{store: s, name: CollectionOrganizationUser}}
}

func (r *organizationUserRepository) Key(organizationID, userID string) store.Key {
	return store.Key{Collection: CollectionOrganizationUser, Partition: organizationID, Sort: userID}
}

func (r *organizationUserRepository) item(member *models.OrganizationUser) (store.Item, error) {
	return encode(r.Key(member.OrganizationID, member.UserID), member, map[string]string{
		IndexUserID: member.UserID,
	})
}

// Get retrieves a membership
func (r *organizationUserRepository) Get(ctx context.Context, organizationID, userID string) (*models.OrganizationUser, error) {
	item, err := r.c.get(ctx, r.Key(organizationID, userID))
	if err != nil {
		return nil, err
	}
	return decode[models.OrganizationUser](item)
}

// ListByOrganization retrieves the memberships of an organization
func (r *organizationUserRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.OrganizationUser, error) {
	items, err := r.c.query(ctx, store.Query{Value: organizationID})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.OrganizationUser](items)
}

// ListByUser retrieves the memberships of a user
func (r *organizationUserRepository) ListByUser(ctx context.Context, userID string) ([]*models.OrganizationUser, error) {
	items, err := r.c.query(ctx, store.Query{Index: IndexUserID, Value: userID})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.OrganizationUser](items)
}

// Add creates a new membership
func (r *organizationUserRepository) Add(ctx context.Context, member *models.OrganizationUser) error {
	item, err := r.item(member)
	if err != nil {
		return err
	}
	return r.c.put(ctx, item, store.MustNotExist)
}

// Update replaces an existing membership
func (r *organizationUserRepository) Update(ctx context.Context, member, previous *models.OrganizationUser) error {
	w, err := r.Replace(member, previous)
	if err != nil {
		return err
	}
	return r.c.put(ctx, w.Item, w.Condition)
}

// Delete removes a membership
func (r *organizationUserRepository) Delete(ctx context.Context, organizationID, userID string) error {
	return r.c.delete(ctx, r.Key(organizationID, userID))
}

func (r *organizationUserRepository) PutNew(member *models.OrganizationUser) (store.Write, error) {
	item, err := r.item(member)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustNotExist), nil
}

func (r *organizationUserRepository) Replace(member, previous *models.OrganizationUser) (store.Write, error) {
	next := member.Clone()
	next.OrganizationID = previous.OrganizationID
	next.UserID = previous.UserID
	keepCreation(&next.Audit, previous.Audit)
	item, err := r.item(next)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustExist), nil
}

func (r *organizationUserRepository) Remove(organizationID, userID string) store.Write {
	return store.Delete(r.Key(organizationID, userID), store.MustExist)
}

// Check asserts inside a transaction that the membership still exists.
func (r *organizationUserRepository) Check(organizationID, userID string) store.Write {
	return store.Check(r.Key(organizationID, userID), store.MustExist)
}
