package repositories

import (
	"context"
	"sort"

	"lab-management-platform/internal/models"
	"lab-management-platform/internal/store"
)

// authEventRepository implements AuthEventRepository. Events are never
// updated or deleted.
type authEventRepository struct {
	c collection
}

// NewAuthEventRepository creates a new authentication event repository
func NewAuthEventRepository(s store.Store) AuthEventRepository {
	return &authEventRepository{c: collection{store: s, name: CollectionAuthEvent}}
}

func (r *authEventRepository) key(eventID string) store.Key {
	return store.Key{Collection: CollectionAuthEvent, Partition: eventID}
}

// Add appends an event
func (r *authEventRepository) Add(ctx context.Context, event *models.AuthEvent) error {
	item, err := encode(r.key(event.EventID), event, map[string]string{
		IndexUserName: NormalizeEmail(event.UserName),
	})
	if err != nil {
		return err
	}
	return r.c.put(ctx, item, store.MustNotExist)
}

// Get retrieves an event by ID
func (r *authEventRepository) Get(ctx context.Context, eventID string) (*models.AuthEvent, error) {
	item, err := r.c.get(ctx, r.key(eventID))
	if err != nil {
		return nil, err
	}
	return decode[models.AuthEvent](item)
}

// ListByUser retrieves the events recorded for a user name, oldest first
func (r *authEventRepository) ListByUser(ctx context.Context, userName string) ([]*models.AuthEvent, error) {
	items, err := r.c.query(ctx, store.Query{Index: IndexUserName, Value: NormalizeEmail(userName)})
	if err != nil {
		return nil, err
	}
	events, err := decodeAll[models.AuthEvent](items)
	if err != nil {
		return nil, err
	}
	sortEvents(events)
	return events, nil
}

func sortEvents(events []*models.AuthEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].CreatedAt.Before(events[j].CreatedAt)
	})
}
