package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// Collection names.
const (
	CollectionOrganization     = "organization"
	CollectionLaboratory       = "laboratory"
	CollectionUser             = "user"
	CollectionOrganizationUser = "organization-user"
	CollectionLaboratoryUser   = "laboratory-user"
	CollectionUniqueReference  = "unique-reference"
	CollectionAuthEvent        = "auth-event"
)

// Secondary index names.
const (
	IndexLaboratoryID   = "LaboratoryId"
	IndexEmail          = "Email"
	IndexUserID         = "UserId"
	IndexOrganizationID = "OrganizationId"
	IndexUserName       = "UserName"
)

// IndexNames lists every secondary index used by the repositories, for
// backends that must declare them up front.
func IndexNames() []string {
	return []string{IndexLaboratoryID, IndexEmail, IndexUserID, IndexOrganizationID, IndexUserName}
}

// NormalizeEmail is the canonical form used for the Email index and the
// email reservation.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func encode(key store.Key, entity interface{}, indexes map[string]string) (store.Item, error) {
	data, err := json.Marshal(entity)
	if err != nil {
		return store.Item{}, fmt.Errorf("encode %s: %w", key, err)
	}
	return store.Item{Key: key, Data: data, Indexes: indexes}, nil
}

func decode[T any](item store.Item) (*T, error) {
	var out T
	if err := json.Unmarshal(item.Data, &out); err != nil {
		return nil, &models.DataIntegrityError{Entity: item.Key.Collection, Detail: fmt.Sprintf("undecodable item %s: %v", item.Key, err)}
	}
	return &out, nil
}

func decodeAll[T any](items []store.Item) ([]*T, error) {
	out := make([]*T, 0, len(items))
	for _, it := range items {
		v, err := decode[T](it)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// classifyRead maps a store read failure onto the error taxonomy.
func classifyRead(op string, err error) error {
	if errors.Is(err, store.ErrItemNotFound) {
		return models.ErrNotFound
	}
	return models.NewStorageError(op, err)
}

// classifyWrite maps a single-item write failure onto the error taxonomy.
func classifyWrite(op string, cond store.Condition, err error) error {
	if errors.Is(err, store.ErrConditionFailed) {
		switch cond {
		case store.MustNotExist:
			return models.ErrAlreadyExists
		case store.MustExist:
			return models.ErrNotFound
		}
	}
	return models.NewStorageError(op, err)
}

// collection wraps the store calls shared by every repository.
type collection struct {
	store store.Store
	name  string
}

func (c collection) get(ctx context.Context, key store.Key) (store.Item, error) {
	item, err := c.store.Get(ctx, key)
	if err != nil {
		return store.Item{}, classifyRead("get "+c.name, err)
	}
	return item, nil
}

func (c collection) query(ctx context.Context, q store.Query) ([]store.Item, error) {
	items, err := c.store.Query(ctx, c.name, q)
	if err != nil {
		return nil, models.NewStorageError("query "+c.name, err)
	}
	return items, nil
}

func (c collection) scan(ctx context.Context) ([]store.Item, error) {
	items, err := c.store.Scan(ctx, c.name)
	if err != nil {
		return nil, models.NewStorageError("scan "+c.name, err)
	}
	return items, nil
}

func (c collection) put(ctx context.Context, item store.Item, cond store.Condition) error {
	if err := c.store.Put(ctx, item, cond); err != nil {
		return classifyWrite("put "+c.name, cond, err)
	}
	return nil
}

func (c collection) delete(ctx context.Context, key store.Key) error {
	if err := c.store.Delete(ctx, key, store.MustExist); err != nil {
		return classifyWrite("delete "+c.name, store.MustExist, err)
	}
	return nil
}

// uniqueByIndex returns the single item behind a secondary key that is
// meant to be unique.
func (c collection) uniqueByIndex(ctx context.Context, index, value string) (store.Item, error) {
	items, err := c.query(ctx, store.Query{Index: index, Value: value})
	if err != nil {
		return store.Item{}, err
	}
	switch len(items) {
	case 0:
		return store.Item{}, models.ErrNotFound
	case 1:
		return items[0], nil
	default:
		return store.Item{}, &models.DataIntegrityError{
			Entity: c.name,
			Detail: fmt.Sprintf("%d items share %s=%q", len(items), index, value),
		}
	}
}

// keepCreation carries the creation stamp of the stored entity onto its
// replacement.
func keepCreation(next *models.Audit, previous models.Audit) {
	next.CreatedAt = previous.CreatedAt
	next.CreatedBy = previous.CreatedBy
}

// Set bundles the repositories of every collection sharing one store.
type Set struct {
	Organizations     OrganizationRepository
	Laboratories      LaboratoryRepository
	Users             UserRepository
	OrganizationUsers OrganizationUserRepository
	LaboratoryUsers   LaboratoryUserRepository
	UniqueReferences  UniqueReferenceRepository
	AuthEvents        AuthEventRepository
}

// NewSet creates every repository over s.
func NewSet(s store.Store) *Set {
	return &Set{
		Organizations:     NewOrganizationRepository(s),
		Laboratories:      NewLaboratoryRepository(s),
		Users:             NewUserRepository(s),
		OrganizationUsers: NewOrganizationUserRepository(s),
		LaboratoryUsers:   NewLaboratoryUserRepository(s),
		UniqueReferences:  NewUniqueReferenceRepository(s),
		AuthEvents:        NewAuthEventRepository(s),
	}
}
