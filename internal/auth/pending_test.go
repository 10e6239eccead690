package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPendingStore_ConsumeOnce(t *testing.T) {
	store := NewMemoryPendingStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state-1", "user-1"))

	userKey, ok, err := store.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userKey)

	_, ok, err = store.Consume(ctx, "state-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPendingStore_UnknownState(t *testing.T) {
	store := NewMemoryPendingStore(time.Minute)
	defer store.Close()

	_, ok, err := store.Consume(context.Background(), "never-issued")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPendingStore_AtMostOnceConcurrent(t *testing.T) {
	store := NewMemoryPendingStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "contested", "user-1"))

	const attempts = 32
	var wg sync.WaitGroup
	wins := make(chan string, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if userKey, ok, _ := store.Consume(ctx, "contested"); ok {
				wins <- userKey
			}
		}()
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)
	assert.Equal(t, "user-1", winners[0])
}

func TestMemoryPendingStore_SecondPutDisplacesFirst(t *testing.T) {
	store := NewMemoryPendingStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "first", "user-1"))
	require.NoError(t, store.Put(ctx, "second", "user-1"))

	_, ok, err := store.Consume(ctx, "first")
	require.NoError(t, err)
	assert.False(t, ok, "earlier state must be invalidated by a new connect attempt")

	userKey, ok, err := store.Consume(ctx, "second")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "user-1", userKey)
	assert.Equal(t, 0, store.Len())
}

func TestMemoryPendingStore_ExpiredEntryNotConsumable(t *testing.T) {
	store := NewMemoryPendingStore(10 * time.Millisecond)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "stale", "user-1"))
	time.Sleep(30 * time.Millisecond)

	_, ok, err := store.Consume(ctx, "stale")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPendingStore_IndependentUsers(t *testing.T) {
	store := NewMemoryPendingStore(time.Minute)
	defer store.Close()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "state-a", "user-a"))
	require.NoError(t, store.Put(ctx, "state-b", "user-b"))

	userKey, ok, err := store.Consume(ctx, "state-b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-b", userKey)

	userKey, ok, err = store.Consume(ctx, "state-a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "user-a", userKey)
}
