// Package redisstore implements the keyed collection store on Redis using
// optimistic WATCH/MULTI transactions.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/go-redis/redis/v8"

	"lab-management-platform/internal/store"
)

// ErrContention is returned when a transaction keeps losing the optimistic
// race after every retry.
var ErrContention = errors.New("redis: transaction aborted by concurrent writers")

const defaultMaxRetries = 5

// record is the value stored under an item key.
type record struct {
	Collection string            `json:"c"`
	Partition  string            `json:"p"`
	Sort       string            `json:"s,omitempty"`
	Data       json.RawMessage   `json:"d"`
	Indexes    map[string]string `json:"i,omitempty"`
}

func (r *record) item() store.Item {
	return store.Item{
		Key:     store.Key{Collection: r.Collection, Partition: r.Partition, Sort: r.Sort},
		Data:    append([]byte(nil), r.Data...),
		Indexes: r.Indexes,
	}
}

// Store implements store.Store on a Redis client. Keys:
//
//	<prefix>:<collection>:item:<partition>:<sort>   item record
//	<prefix>:<collection>:part:<partition>         set of item keys in a partition
//	<prefix>:<collection>:idx:<index>:<value>      set of item keys per index value
//	<prefix>:<collection>:all                      set of every item key
//
// Key components are URL-escaped so ':' inside values cannot collide.
type Store struct {
	client     *redis.Client
	prefix     string
	maxItems   int
	maxRetries int
}

var _ store.Store = (*Store)(nil)

// Config holds construction parameters.
type Config struct {
	Prefix           string
	MaxTransactItems int
	MaxRetries       int
}

// New wraps a Redis client.
func New(client *redis.Client, cfg Config) *Store {
	s := &Store{
		client:     client,
		prefix:     cfg.Prefix,
		maxItems:   cfg.MaxTransactItems,
		maxRetries: cfg.MaxRetries,
	}
	if s.prefix == "" {
		s.prefix = "lab"
	}
	if s.maxItems <= 0 {
		s.maxItems = store.DefaultMaxTransactItems
	}
	if s.maxRetries <= 0 {
		s.maxRetries = defaultMaxRetries
	}
	return s
}

func esc(v string) string { return url.QueryEscape(v) }

func (s *Store) itemKey(k store.Key) string {
	return s.prefix + ":" + esc(k.Collection) + ":item:" + esc(k.Partition) + ":" + esc(k.Sort)
}

func (s *Store) partitionKey(collection, partition string) string {
	return s.prefix + ":" + esc(collection) + ":part:" + esc(partition)
}

func (s *Store) indexKey(collection, index, value string) string {
	return s.prefix + ":" + esc(collection) + ":idx:" + esc(index) + ":" + esc(value)
}

func (s *Store) allKey(collection string) string {
	return s.prefix + ":" + esc(collection) + ":all"
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *Store) load(ctx context.Context, c getter, key store.Key) (*record, error) {
	raw, err := c.Get(ctx, s.itemKey(key)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("redis decode %s: %w", key, err)
	}
	return &r, nil
}

// Get returns the item at key.
func (s *Store) Get(ctx context.Context, key store.Key) (store.Item, error) {
	r, err := s.load(ctx, s.client, key)
	if err != nil {
		return store.Item{}, err
	}
	if r == nil {
		return store.Item{}, store.ErrItemNotFound
	}
	return r.item(), nil
}

// Put writes a single item subject to cond.
func (s *Store) Put(ctx context.Context, item store.Item, cond store.Condition) error {
	return single(s.TransactWrite(ctx, []store.Write{store.Put(item, cond)}))
}

// Delete removes a single item subject to cond.
func (s *Store) Delete(ctx context.Context, key store.Key, cond store.Condition) error {
	return single(s.TransactWrite(ctx, []store.Write{store.Delete(key, cond)}))
}

func single(err error) error {
	var canceled *store.TransactionCanceledError
	if errors.As(err, &canceled) {
		return store.ErrConditionFailed
	}
	return err
}

// Query reads the members of a partition or index set.
func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Item, error) {
	setKey := s.partitionKey(collection, q.Value)
	if q.Index != "" {
		setKey = s.indexKey(collection, q.Index, q.Value)
	}
	return s.members(ctx, setKey)
}

// Scan reads every item of a collection.
func (s *Store) Scan(ctx context.Context, collection string) ([]store.Item, error) {
	return s.members(ctx, s.allKey(collection))
}

func (s *Store) members(ctx context.Context, setKey string) ([]store.Item, error) {
	keys, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", setKey, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}
	items := make([]store.Item, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// removed between SMEMBERS and MGET
			continue
		}
		var r record
		if err := json.Unmarshal([]byte(str), &r); err != nil {
			return nil, fmt.Errorf("redis decode: %w", err)
		}
		items = append(items, r.item())
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Key.String() < items[j].Key.String()
	})
	return items, nil
}

// TransactWrite watches every target key, evaluates the predicates and
// applies the writes in one MULTI/EXEC. Losing the optimistic race is retried;
// a failed predicate never is.
func (s *Store) TransactWrite(ctx context.Context, writes []store.Write) error {
	if err := store.ValidateWrites(writes, s.maxItems); err != nil {
		return err
	}
	keys := make([]string, len(writes))
	for i, w := range writes {
		keys[i] = s.itemKey(w.Target())
	}

	txf := func(tx *redis.Tx) error {
		current := make([]*record, len(writes))
		var failed []int
		for i, w := range writes {
			r, err := s.load(ctx, tx, w.Target())
			if err != nil {
				return err
			}
			current[i] = r
			if !w.Condition.Holds(r != nil) {
				failed = append(failed, i)
			}
		}
		if len(failed) > 0 {
			return store.NewCanceled(len(writes), failed...)
		}
		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for i, w := range writes {
				if err := s.apply(ctx, pipe, w, current[i]); err != nil {
					return err
				}
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < s.maxRetries; attempt++ {
		err := s.client.Watch(ctx, txf, keys...)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return ErrContention
}

func (s *Store) apply(ctx context.Context, pipe redis.Pipeliner, w store.Write, prev *record) error {
	if w.Kind == store.WriteConditionCheck {
		return nil
	}
	key := w.Target()
	itemKey := s.itemKey(key)

	if prev != nil {
		for name, value := range prev.Indexes {
			pipe.SRem(ctx, s.indexKey(key.Collection, name, value), itemKey)
		}
	}

	if w.Kind == store.WriteDelete {
		if prev != nil {
			pipe.Del(ctx, itemKey)
			pipe.SRem(ctx, s.partitionKey(key.Collection, key.Partition), itemKey)
			pipe.SRem(ctx, s.allKey(key.Collection), itemKey)
		}
		return nil
	}

	raw, err := json.Marshal(record{
		Collection: key.Collection,
		Partition:  key.Partition,
		Sort:       key.Sort,
		Data:       w.Item.Data,
		Indexes:    w.Item.Indexes,
	})
	if err != nil {
		return fmt.Errorf("redis encode %s: %w", key, err)
	}
	pipe.Set(ctx, itemKey, raw, 0)
	pipe.SAdd(ctx, s.partitionKey(key.Collection, key.Partition), itemKey)
	pipe.SAdd(ctx, s.allKey(key.Collection), itemKey)
	for name, value := range w.Item.Indexes {
		pipe.SAdd(ctx, s.indexKey(key.Collection, name, value), itemKey)
	}
	return nil
}

// MaxTransactItems returns the configured transaction size limit.
func (s *Store) MaxTransactItems() int { return s.maxItems }

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}
