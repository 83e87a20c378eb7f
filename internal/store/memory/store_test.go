package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lab-management-platform/internal/store"
)

func item(collection, partition, sort string, indexes map[string]string) store.Item {
	return store.Item{
		Key:     store.Key{Collection: collection, Partition: partition, Sort: sort},
		Data:    []byte(`{"k":"` + partition + sort + `"}`),
		Indexes: indexes,
	}
}

func TestPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	it := item("organization", "org-1", "", nil)
	require.NoError(t, s.Put(ctx, it, store.MustNotExist))

	got, err := s.Get(ctx, it.Key)
	require.NoError(t, err)
	assert.Equal(t, it.Data, got.Data)

	err = s.Put(ctx, it, store.MustNotExist)
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	_, err = s.Get(ctx, store.Key{Collection: "organization", Partition: "missing"})
	assert.ErrorIs(t, err, store.ErrItemNotFound)
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	it := item("user", "u-1", "", map[string]string{"Email": "a@example.com"})
	require.NoError(t, s.Put(ctx, it, store.ConditionNone))

	got, err := s.Get(ctx, it.Key)
	require.NoError(t, err)
	got.Data[0] = 'X'
	got.Indexes["Email"] = "changed"

	again, err := s.Get(ctx, it.Key)
	require.NoError(t, err)
	assert.Equal(t, byte('{'), again.Data[0])
	assert.Equal(t, "a@example.com", again.Indexes["Email"])
}

func TestDeleteConditions(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	key := store.Key{Collection: "laboratory", Partition: "org-1", Sort: "lab-1"}

	assert.ErrorIs(t, s.Delete(ctx, key, store.MustExist), store.ErrConditionFailed)
	require.NoError(t, s.Delete(ctx, key, store.ConditionNone))

	require.NoError(t, s.Put(ctx, store.Item{Key: key, Data: []byte(`{}`)}, store.MustNotExist))
	require.NoError(t, s.Delete(ctx, key, store.MustExist))
	assert.Equal(t, 0, s.Len("laboratory"))
}

func TestQueryByPartitionAndIndex(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Put(ctx, item("laboratory-user", "lab-1", "u-2", map[string]string{"UserId": "u-2"}), store.ConditionNone))
	require.NoError(t, s.Put(ctx, item("laboratory-user", "lab-1", "u-1", map[string]string{"UserId": "u-1"}), store.ConditionNone))
	require.NoError(t, s.Put(ctx, item("laboratory-user", "lab-2", "u-1", map[string]string{"UserId": "u-1"}), store.ConditionNone))

	byPartition, err := s.Query(ctx, "laboratory-user", store.Query{Value: "lab-1"})
	require.NoError(t, err)
	require.Len(t, byPartition, 2)
	assert.Equal(t, "u-1", byPartition[0].Key.Sort)
	assert.Equal(t, "u-2", byPartition[1].Key.Sort)

	byIndex, err := s.Query(ctx, "laboratory-user", store.Query{Index: "UserId", Value: "u-1"})
	require.NoError(t, err)
	require.Len(t, byIndex, 2)
	assert.Equal(t, "lab-1", byIndex[0].Key.Partition)
	assert.Equal(t, "lab-2", byIndex[1].Key.Partition)

	all, err := s.Scan(ctx, "laboratory-user")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestTransactWriteIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	reservation := item("unique-reference", "acme", "organization-name", nil)
	require.NoError(t, s.Put(ctx, reservation, store.MustNotExist))

	org := item("organization", "org-1", "", nil)
	err := s.TransactWrite(ctx, []store.Write{
		store.Put(org, store.MustNotExist),
		store.Put(reservation, store.MustNotExist),
	})

	var canceled *store.TransactionCanceledError
	require.True(t, errors.As(err, &canceled))
	assert.False(t, canceled.Failed(0))
	assert.True(t, canceled.Failed(1))
	assert.ErrorIs(t, err, store.ErrConditionFailed)

	_, err = s.Get(ctx, org.Key)
	assert.ErrorIs(t, err, store.ErrItemNotFound, "no write of a canceled transaction may be visible")
}

func TestTransactWriteAppliesPutsDeletesAndChecks(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	member := item("organization-user", "org-1", "u-1", nil)
	oldName := item("unique-reference", "old", "organization-name", nil)
	require.NoError(t, s.Put(ctx, member, store.ConditionNone))
	require.NoError(t, s.Put(ctx, oldName, store.ConditionNone))

	newName := item("unique-reference", "new", "organization-name", nil)
	err := s.TransactWrite(ctx, []store.Write{
		store.Check(member.Key, store.MustExist),
		store.Delete(oldName.Key, store.MustExist),
		store.Put(newName, store.MustNotExist),
	})
	require.NoError(t, err)

	_, err = s.Get(ctx, oldName.Key)
	assert.ErrorIs(t, err, store.ErrItemNotFound)
	_, err = s.Get(ctx, newName.Key)
	assert.NoError(t, err)
}

func TestTransactWriteLimits(t *testing.T) {
	ctx := context.Background()
	s := NewStore(WithMaxTransactItems(2))
	writes := []store.Write{
		store.Put(item("c", "1", "", nil), store.ConditionNone),
		store.Put(item("c", "2", "", nil), store.ConditionNone),
		store.Put(item("c", "3", "", nil), store.ConditionNone),
	}
	assert.ErrorIs(t, s.TransactWrite(ctx, writes), store.ErrTooManyItems)

	dup := []store.Write{
		store.Put(item("c", "1", "", nil), store.ConditionNone),
		store.Delete(store.Key{Collection: "c", Partition: "1"}, store.ConditionNone),
	}
	assert.ErrorIs(t, s.TransactWrite(ctx, dup), store.ErrDuplicateTarget)
	assert.Equal(t, 0, s.Len("c"))
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewStore()
	_, err := s.Get(ctx, store.Key{Collection: "c", Partition: "1"})
	assert.ErrorIs(t, err, context.Canceled)
}
