package recordstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T) (func(Snapshot), func(n int) []Snapshot) {
	t.Helper()
	var mu sync.Mutex
	var got []Snapshot

	record := func(s Snapshot) {
		mu.Lock()
		got = append(got, s)
		mu.Unlock()
	}

	wait := func(n int) []Snapshot {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			mu.Lock()
			if len(got) >= n {
				out := append([]Snapshot(nil), got...)
				mu.Unlock()
				return out
			}
			mu.Unlock()
			time.Sleep(5 * time.Millisecond)
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]Snapshot(nil), got...)
	}

	return record, wait
}

func TestMemoryGetSetRemove(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	_, err := store.Get(ctx, "classes/x")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	require.NoError(t, store.Set(ctx, "classes/x", []byte(`{"a":1}`)))
	value, err := store.Get(ctx, "classes/x")
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(value))

	require.NoError(t, store.Remove(ctx, "classes/x"))
	_, err = store.Get(ctx, "classes/x")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	// removing an absent key is a no-op
	require.NoError(t, store.Remove(ctx, "classes/x"))
}

func TestMemorySubscribeReplaysCurrentValue(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "classes/a", []byte(`1`)))

	record, wait := collect(t)
	unsub, err := store.Subscribe(ctx, "classes/a", record)
	require.NoError(t, err)
	defer unsub()

	got := wait(1)
	require.Len(t, got, 1)
	assert.Equal(t, "classes/a", got[0].Key)
	assert.Equal(t, []byte(`1`), got[0].Value)
}

func TestMemorySubscribeStreamsWritesWithMonotonicRevs(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	record, wait := collect(t)
	unsub, err := store.Subscribe(ctx, "classes/a", record)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, store.Set(ctx, "classes/a", []byte(`1`)))
	require.NoError(t, store.Set(ctx, "classes/a", []byte(`2`)))
	require.NoError(t, store.Remove(ctx, "classes/a"))

	got := wait(3)
	require.Len(t, got, 3)
	assert.Equal(t, []byte(`1`), got[0].Value)
	assert.Equal(t, []byte(`2`), got[1].Value)
	assert.True(t, got[2].Deleted)
	assert.Less(t, got[0].Rev, got[1].Rev)
	assert.Less(t, got[1].Rev, got[2].Rev)
}

func TestMemoryPrefixSubscriptionScopedToCollection(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	record, wait := collect(t)
	unsub, err := store.Subscribe(ctx, "teachers/t1/classes/", record)
	require.NoError(t, err)
	defer unsub()

	require.NoError(t, store.Set(ctx, "teachers/t1/classes/a", []byte(`1`)))
	require.NoError(t, store.Set(ctx, "teachers/t2/classes/b", []byte(`2`)))
	require.NoError(t, store.Set(ctx, "teachers/t1/classes/c", []byte(`3`)))

	got := wait(2)
	require.Len(t, got, 2)
	for _, snap := range got {
		assert.Contains(t, snap.Key, "teachers/t1/classes/")
	}
}

func TestMemoryUpdateAppliesTransform(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "classes/a", []byte(`old`)))
	err := store.Update(ctx, "classes/a", func(current []byte) ([]byte, error) {
		assert.Equal(t, []byte(`old`), current)
		return []byte(`new`), nil
	})
	require.NoError(t, err)

	value, err := store.Get(ctx, "classes/a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`new`), value)

	assert.ErrorIs(t, store.Update(ctx, "classes/missing", func([]byte) ([]byte, error) {
		return nil, nil
	}), ErrKeyNotFound)
}

func TestMemoryUpdateErrorAbortsWrite(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "classes/a", []byte(`old`)))
	err := store.Update(ctx, "classes/a", func([]byte) ([]byte, error) {
		return nil, assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	value, err := store.Get(ctx, "classes/a")
	require.NoError(t, err)
	assert.Equal(t, []byte(`old`), value)
}

func TestMemoryPushGeneratesChildKeys(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	key1, err := store.Push(ctx, "classes", []byte(`1`))
	require.NoError(t, err)
	key2, err := store.Push(ctx, "classes", []byte(`2`))
	require.NoError(t, err)
	assert.NotEqual(t, key1, key2)

	values, err := store.List(ctx, "classes")
	require.NoError(t, err)
	assert.Len(t, values, 2)
}

func TestMemoryUnsubscribeStopsDelivery(t *testing.T) {
	store := NewMemory()
	defer store.Close()
	ctx := context.Background()

	record, wait := collect(t)
	unsub, err := store.Subscribe(ctx, "classes/a", record)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "classes/a", []byte(`1`)))
	wait(1)
	unsub()

	require.NoError(t, store.Set(ctx, "classes/a", []byte(`2`)))
	time.Sleep(50 * time.Millisecond)

	got := wait(1)
	assert.Len(t, got, 1)
}
