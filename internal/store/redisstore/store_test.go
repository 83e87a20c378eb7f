package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lab-management-platform/internal/store"
)

func TestKeysEscapeSeparators(t *testing.T) {
	s := New(nil, Config{Prefix: "test"})

	a := s.itemKey(store.Key{Collection: "unique-reference", Partition: "a:b", Sort: ""})
	b := s.itemKey(store.Key{Collection: "unique-reference", Partition: "a", Sort: "b:"})
	assert.NotEqual(t, a, b)
	assert.Equal(t, "test:unique-reference:item:a%3Ab:", a)

	assert.Equal(t, "test:user:idx:Email:a%40example.com", s.indexKey("user", "Email", "a@example.com"))
	assert.Equal(t, "test:user:all", s.allKey("user"))
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(nil, Config{})
	assert.Equal(t, "lab", s.prefix)
	assert.Equal(t, store.DefaultMaxTransactItems, s.MaxTransactItems())
	assert.Equal(t, defaultMaxRetries, s.maxRetries)
}

func newIntegrationStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 5})
	if _, err := client.Ping(ctx).Result(); err != nil {
		_ = client.Close()
		t.Skip("Redis not available, skipping integration test")
	}
	client.FlushDB(ctx)
	s := New(client, Config{Prefix: "it"})
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		_ = s.Close()
	})
	return s
}

func TestRedisStoreIntegration(t *testing.T) {
	s := newIntegrationStore(t)
	ctx := context.Background()

	user := store.Item{
		Key:     store.Key{Collection: "user", Partition: "user-1"},
		Data:    []byte(`{"UserId":"user-1"}`),
		Indexes: map[string]string{"Email": "a@example.com"},
	}
	email := store.Item{
		Key:  store.Key{Collection: "unique-reference", Partition: "a@example.com", Sort: "user-email"},
		Data: []byte(`{"Value":"a@example.com","Type":"user-email"}`),
	}

	t.Run("transaction applies every write", func(t *testing.T) {
		require.NoError(t, s.TransactWrite(ctx, []store.Write{
			store.Put(user, store.MustNotExist),
			store.Put(email, store.MustNotExist),
		}))
		got, err := s.Get(ctx, user.Key)
		require.NoError(t, err)
		assert.JSONEq(t, string(user.Data), string(got.Data))

		byEmail, err := s.Query(ctx, "user", store.Query{Index: "Email", Value: "a@example.com"})
		require.NoError(t, err)
		assert.Len(t, byEmail, 1)
	})

	t.Run("failed predicate cancels the whole transaction", func(t *testing.T) {
		other := store.Item{Key: store.Key{Collection: "user", Partition: "user-2"}, Data: []byte(`{}`)}
		err := s.TransactWrite(ctx, []store.Write{
			store.Put(other, store.MustNotExist),
			store.Put(email, store.MustNotExist),
		})
		var canceled *store.TransactionCanceledError
		require.True(t, errors.As(err, &canceled))
		assert.True(t, canceled.Failed(1))

		_, err = s.Get(ctx, other.Key)
		assert.ErrorIs(t, err, store.ErrItemNotFound)
	})

	t.Run("replace moves index membership", func(t *testing.T) {
		moved := user.Clone()
		moved.Indexes["Email"] = "b@example.com"
		require.NoError(t, s.Put(ctx, moved, store.MustExist))

		old, err := s.Query(ctx, "user", store.Query{Index: "Email", Value: "a@example.com"})
		require.NoError(t, err)
		assert.Empty(t, old)
		current, err := s.Query(ctx, "user", store.Query{Index: "Email", Value: "b@example.com"})
		require.NoError(t, err)
		assert.Len(t, current, 1)
	})

	t.Run("delete removes partition membership", func(t *testing.T) {
		require.NoError(t, s.Delete(ctx, user.Key, store.MustExist))
		assert.ErrorIs(t, s.Delete(ctx, user.Key, store.MustExist), store.ErrConditionFailed)

		all, err := s.Scan(ctx, "user")
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}
