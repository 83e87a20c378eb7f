// Package memory provides an in-memory implementation of the keyed collection
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"sort"
	"sync"

	"lab-management-platform/internal/store"
)

// Compile-time contract assertion.
var _ store.Store = (*Store)(nil)

type collection map[store.Key]store.Item

// Store keeps every collection in process memory. Transactions evaluate all
// predicates and apply all writes under one lock, so no partial transaction is
// ever observable.
type Store struct {
	mu       sync.RWMutex
	state    map[string]collection
	maxItems int
}

// Option customises a Store.
type Option func(*Store)

// WithMaxTransactItems overrides the transaction size limit.
func WithMaxTransactItems(n int) Option {
	return func(s *Store) { s.maxItems = n }
}

// NewStore constructs an empty in-memory store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		state:    make(map[string]collection),
		maxItems: store.DefaultMaxTransactItems,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) lookup(key store.Key) (store.Item, bool) {
	c, ok := s.state[key.Collection]
	if !ok {
		return store.Item{}, false
	}
	item, ok := c[key]
	return item, ok
}

func (s *Store) apply(w store.Write) {
	switch w.Kind {
	case store.WritePut:
		c, ok := s.state[w.Item.Key.Collection]
		if !ok {
			c = make(collection)
			s.state[w.Item.Key.Collection] = c
		}
		c[w.Item.Key] = w.Item.Clone()
	case store.WriteDelete:
		if c, ok := s.state[w.Key.Collection]; ok {
			delete(c, w.Key)
		}
	}
}

// Get returns a copy of the item at key.
func (s *Store) Get(ctx context.Context, key store.Key) (store.Item, error) {
	if err := ctx.Err(); err != nil {
		return store.Item{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.lookup(key)
	if !ok {
		return store.Item{}, store.ErrItemNotFound
	}
	return item.Clone(), nil
}

// Put writes a single item subject to cond.
func (s *Store) Put(ctx context.Context, item store.Item, cond store.Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.lookup(item.Key)
	if !cond.Holds(exists) {
		return store.ErrConditionFailed
	}
	s.apply(store.Put(item, cond))
	return nil
}

// Delete removes a single item subject to cond.
func (s *Store) Delete(ctx context.Context, key store.Key, cond store.Condition) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, exists := s.lookup(key)
	if !cond.Holds(exists) {
		return store.ErrConditionFailed
	}
	s.apply(store.Delete(key, cond))
	return nil
}

// Query returns the matching items ordered by key.
func (s *Store) Query(ctx context.Context, collectionName string, q store.Query) ([]store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.Item
	for key, item := range s.state[collectionName] {
		if q.Index == "" {
			if key.Partition != q.Value {
				continue
			}
		} else if v, ok := item.Indexes[q.Index]; !ok || v != q.Value {
			continue
		}
		out = append(out, item.Clone())
	}
	sortItems(out)
	return out, nil
}

// Scan returns every item of the collection ordered by key.
func (s *Store) Scan(ctx context.Context, collectionName string) ([]store.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Item, 0, len(s.state[collectionName]))
	for _, item := range s.state[collectionName] {
		out = append(out, item.Clone())
	}
	sortItems(out)
	return out, nil
}

// TransactWrite evaluates every predicate against the current state and
// applies the writes only when all of them hold.
func (s *Store) TransactWrite(ctx context.Context, writes []store.Write) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := store.ValidateWrites(writes, s.maxItems); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var failed []int
	for i, w := range writes {
		_, exists := s.lookup(w.Target())
		if !w.Condition.Holds(exists) {
			failed = append(failed, i)
		}
	}
	if len(failed) > 0 {
		return store.NewCanceled(len(writes), failed...)
	}
	for _, w := range writes {
		s.apply(w)
	}
	return nil
}

// MaxTransactItems returns the transaction size limit.
func (s *Store) MaxTransactItems() int { return s.maxItems }

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of items held in a collection.
func (s *Store) Len(collectionName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.state[collectionName])
}

func sortItems(items []store.Item) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key.String() < items[j].Key.String()
	})
}
