package repositories

import (
	"context"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// userRepository implements UserRepository
type userRepository struct {
	c collection
}

// NewUserRepository creates a new user repository
func NewUserRepository(s store.Store) UserRepository {
	return &userRepository{c: collection{store: s, name: CollectionUser}}
}

func (r *userRepository) Key(userID string) store.Key {
	return store.Key{Collection: CollectionUser, Partition: userID}
}

func (r *userRepository) item(user *models.User) (store.Item, error) {
	return encode(r.Key(user.UserID), user, map[string]string{
		IndexEmail: NormalizeEmail(user.Email),
	})
}

// Get retrieves a user by ID
func (r *userRepository) Get(ctx context.Context, userID string) (*models.User, error) {
	item, err := r.c.get(ctx, r.Key(userID))
	if err != nil {
		return nil, err
	}
	return decode[models.User](item)
}

// GetByEmail retrieves a user by email, ignoring case
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	item, err := r.c.uniqueByIndex(ctx, IndexEmail, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return decode[models.User](item)
}

// List retrieves all users
func (r *userRepository) List(ctx context.Context) ([]*models.User, error) {
	items, err := r.c.scan(ctx)
	if err != nil {
		return nil, err
	}
	return decodeAll[models.User](items)
}

// Add creates a new user
func (r *userRepository) Add(ctx context.Context, user *models.User) error {
	item, err := r.item(user)
	if err != nil {
		return err
	}
	return r.c.put(ctx, item, store.MustNotExist)
}

// Update replaces an existing user
func (r *userRepository) Update(ctx context.Context, user, previous *models.User) error {
	w, err := r.Replace(user, previous)
	if err != nil {
		return err
	}
	return r.c.put(ctx, w.Item, w.Condition)
}

// Delete removes a user
func (r *userRepository) Delete(ctx context.Context, userID string) error {
	return r.c.delete(ctx, r.Key(userID))
}

func (r *userRepository) PutNew(user *models.User) (store.Write, error) {
	item, err := r.item(user)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustNotExist), nil
}

func (r *userRepository) Replace(user, previous *models.User) (store.Write, error) {
	next := user.Clone()
	next.UserID = previous.UserID
	keepCreation(&next.Audit, previous.Audit)
	item, err := r.item(next)
	if err != nil {
		return store.Write{}, err
	}
	return store.Put(item, store.MustExist), nil
}

func (r *userRepository) Remove(userID string) store.Write {
	return store.Delete(r.Key(userID), store.MustExist)
}
