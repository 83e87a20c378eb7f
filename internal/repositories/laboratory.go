package repositories

import (
	"context"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// laboratoryRepository implements LaboratoryRepository. Laboratories are
// partitioned by organization and indexed by their own ID.
type laboratoryRepository struct {
	c collection
}

// NewLaboratoryRepository creates a new laboratory repository
func NewLaboratoryRepository(s store.Store) LaboratoryRepository {
	return &laboratoryRepository{c: collection{store: s, name: CollectionLaboratory}}
}

func (r *laboratoryRepository) Key(organizationID, laboratoryID string) store.Key {
	return store.Key{Collection: CollectionLaboratory, Partition: organizationID, Sort: laboratoryID}
}

func (r *laboratoryRepository) item(lab *models.Laboratory) (store.Item, error) {
	return encode(r.Key(lab.OrganizationID, lab.LaboratoryID), lab, map[string]string{
		IndexLaboratoryID: lab.LaboratoryID,
	})
}

// Get retrieves a laboratory by its full key
func (r *laboratoryRepository) Get(ctx context.Context, organizationID, laboratoryID string) (*models.Laboratory, error) {
	item, err := r.c.get(ctx, r.Key(organizationID, laboratoryID))
	if err != nil {
		return nil, err
	}
	return decode[models.Laboratory](item)
}

// GetByLaboratoryID retrieves a laboratory without knowing its organization
func (r *laboratoryRepository) GetByLaboratoryID(ctx context.Context, laboratoryID string) (*models.Laboratory, error) {
	item, err := r.c.uniqueByIndex(ctx, IndexLaboratoryID, laboratoryID)
	if err != nil {
		return nil, err
	}
	return decode[models.Laboratory](item)
}

// ListByOrganization retrieves the laboratories of an organization
func (r *laboratoryRepository) ListByOrganization(ctx context.Context, organizationID string) ([]*models.Laboratory, error) {
	items, err := r.c.query(ctx, store.Query{Value: organizationID})
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Laboratory](items)
}

// List retrieves all laboratories
func (r *laboratoryRepository) List(ctx context.Context) ([]*models.Laboratory, error) {
	items, err := r.c.scan(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.Laboratory](items)
}

// Add creates a new laboratory
func (r *laboratoryRepository) Add(ctx context.Context, lab *models.Laboratory) error {
	item, err := r.item(lab)
	if err != nil {
		return err
	}
	return r.c.put(ctx, item, store.MustNotExist)
}

// Update replaces an existing laboratory
func (r *laboratoryRepository) Update(ctx context.Context, lab, previous *models.Laboratory) error {
	w, err := r.Replace(lab, previous)
	if err != nil {
		return err
	}
	return r.c.put(ctx, w.Item, w.Condition)
}

// Delete removes a laboratory
func (r *laboratoryRepository) Delete(ctx context.Context, organizationID, laboratoryID string) error {
	return r.c.delete(ctx, r.Key(organizationID, laboratoryID))
}

func (r *laboratoryRepository) PutNew(lab *models.Laboratory) (store.Write, error) {
	item, err := r.item(lab)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustNotExist), nil
}

func (r *laboratoryRepository) Replace(lab, previous *models.Laboratory) (store.Write, error) {
	next := lab.Clone()
	next.OrganizationID = previous.OrganizationID
	next.LaboratoryID = previous.LaboratoryID
	keepCreation(&next.Audit, previous.Audit)
	item, err := r.item(next)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustExist), nil
}

func (r *laboratoryRepository) Remove(organizationID, laboratoryID string) store.Write {
	return store.Delete(r.Key(organizationID, laboratoryID), store.MustExist)
}
