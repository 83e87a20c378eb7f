package repositories

import (
	"context"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// laboratoryUserRepository implements LaboratoryUserRepository. Grants are
// partitioned by laboratory and indexed by user and owning organization.
type laboratoryUserRepository struct {
	c collection
}

// NewLaboratoryUserRepository creates a new laboratory grant repository
func NewLaboratoryUserRepository(s store.Store) LaboratoryUserRepository {
	return &laboratoryUserRepository{c: collection{store: s, name: CollectionLaboratoryUser}}
}

func (r *laboratoryUserRepository) Key(laboratoryID, userID string) store.Key {
	return store.Key{Collection: CollectionLaboratoryUser, Partition: laboratoryID, Sort: userID}
}

func (r *laboratoryUserRepository) item(grant *models.LaboratoryUser) (store.Item, error) {
	return encode(r.Key(grant.LaboratoryID, grant.UserID), grant, map[string]string{
		IndexUserID:         grant.UserID,
		IndexOrganizationID: grant.OrganizationID,
	})
}

// Get retrieves a grant
func (r *laboratoryUserRepository) Get(ctx context.Context, laboratoryID, userID string) (*models.LaboratoryUser, error) {
	item, err := r.c.get(ctx, r.Key(laboratoryID, userID))
	if err != nil {
		return nil, err
	}
	return decode[models.LaboratoryUser](item)
}

// ListByLaboratory retrieves the grants of a laboratory
func (r *laboratoryUserRepository) ListByLaboratory(ctx context.Context, laboratoryID string) ([]*models.LaboratoryUser, error) {
	items, err := r.c.query(ctx, store.Query{Value: laboratoryID})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.LaboratoryUser](items)
}

// ListByUser retrieves the grants of a user across organizations
func (r *laboratoryUserRepository) ListByUser(ctx context.Context, userID string) ([]*models.LaboratoryUser, error) {
	items, err := r.c.query(ctx, store.Query{Index: IndexUserID, Value: userID})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.LaboratoryUser](items)
}

// ListByOrganization retrieves every grant inside an organization
func (r *laboratoryUserRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.LaboratoryUser, error) {
	items, err := r.c.query(ctx, store.Query{Index: IndexOrganizationID, Value: organizationID})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.LaboratoryUser](items)
}

// Add creates a new grant
func (r *laboratoryUserRepository) Add(ctx context.Context, grant *models.LaboratoryUser) error {
	item, err := r.item(grant)
	if err != nil {
		return err
	}
	return r.c.put(ctx, item, store.MustNotExist)
}

// Update replaces an existing grant
func (r *laboratoryUserRepository) Update(ctx context.Context, grant, previous *models.LaboratoryUser) error {
	w, err := r.Replace(grant, previous)
	if err != nil {
		return err
	}
	return r.c.put(ctx, w.Item, w.Condition)
}

// Delete removes a grant
func (r *laboratoryUserRepository) Delete(ctx context.Context, laboratoryID, userID string) error {
	return r.c.delete(ctx, r.Key(laboratoryID, userID))
}

func (r *laboratoryUserRepository) PutNew(grant *models.LaboratoryUser) (store.Write, error) {
	item, err := r.item(grant)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustNotExist), nil
}

func (r *laboratoryUserRepository) Replace(grant, previous *models.LaboratoryUser) (store.Write, error) {
	next := grant.Clone()
	next.LaboratoryID = previous.LaboratoryID
	next.UserID = previous.UserID
	next.OrganizationID = previous.OrganizationID
	keepCreation(&next.Audit, previous.Audit)
	item, err := r.item(next)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustExist), nil
}

func (r *laboratoryUserRepository) Remove(laboratoryID, userID string) store.Write {
	return store.Delete(r.Key(laboratoryID, userID), store.MustExist)
}
