package repositories

import (
	"context"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// organizationRepository implements OrganizationRepository
type organizationRepository struct {
	c collection
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(s store.Store) OrganizationRepository {
	return &organizationRepository{c: collection{store: s, name: CollectionOrganization}}
}

func (r *organizationRepository) Key(organizationID string) store.Key {
	return store.Key{Collection: CollectionOrganization, Partition: organizationID}
}

func (r *organizationRepository) item(org *models.Organization) (store.Item, error) {
	return encode(r.Key(org.OrganizationID), org, nil)
}

// Get retrieves an organization by ID
func (r *organizationRepository) Get(ctx context.Context, organizationID string) (*models.Organization, error) {
	item, err := r.c.get(ctx, r.Key(organizationID))
	if err != nil {
		return nil, err
	}
	return decode[models.Organization](item)
}

// List retrieves all organizations
func (r *organizationRepository) List(ctx context.Context) ([]*models.Organization, error) {
	items, err := r.c.scan(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Organization](items)
}

// Add creates a new organization
func (r *organizationRepository) Add(ctx context.Context, org *models.Organization) error {
	item, err := r.item(org)
	if err != nil {
		return err
	}
	return r.c.put(ctx, item, store.MustNotExist)
}

// Update replaces an existing organization
func (r *organizationRepository) Update(ctx context.Context, org, previous *models.Organization) error {
	w, err := r.Replace(org, previous)
	if err != nil {
		return err
	}
	return r.c.put(ctx, w.Item, w.Condition)
}

// Delete removes an organization
func (r *organizationRepository) Delete(ctx context.Context, organizationID string) error {
	return r.c.delete(ctx, r.Key(organizationID))
}

func (r *organizationRepository) PutNew(org *models.Organization) (store.Write, error) {
	item, err := r.item(org)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustNotExist), nil
}

func (r *organizationRepository) Replace(org, previous *models.Organization) (store.Write, error) {
	next := org.Clone()
	next.OrganizationID = previous.OrganizationID
	keepCreation(&next.Audit, previous.Audit)
	item, err := r.item(next)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustExist), nil
}

func (r *organizationRepository) Remove(organizationID string) store.Write {
	return store.Delete(r.Key(organizationID), store.MustExist)
}
