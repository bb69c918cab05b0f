package idpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_IncrementAndGet_EmptyStartsAtZero(t *testing.T) {
	t.Parallel()

	pool, err := New()
	require.NoError(t, err)

	assert.Equal(t, 0, pool.IncrementAndGet())
	require.NoError(t, pool.Add(5))
	assert.Equal(t, 6, pool.IncrementAndGet())
	assert.True(t, pool.Contains(6))
}

func TestPool_Add(t *testing.T) {
	t.Parallel()

	pool, err := New()
	require.NoError(t, err)

	err = pool.Add(-1)
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Equal(t, 0, pool.Len())

	require.NoError(t, pool.Add(3))
	require.NoError(t, pool.Add(3))
	assert.Equal(t, 1, pool.Len(), "adding the same id twice should be idempotent")
	assert.True(t, pool.Contains(3))
	assert.False(t, pool.Contains(4))
}

func TestPool_SetAndClear(t *testing.T) {
	t.Parallel()

	pool, err := New(1, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, pool.IDs())

	err = pool.Set([]int{7, -2})
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Equal(t, []int{1, 2, 3}, pool.IDs(), "a rejected Set should leave the pool unchanged")

	require.NoError(t, pool.Set([]int{9, 4, 9}))
	assert.Equal(t, []int{4, 9}, pool.IDs())
	assert.Equal(t, 10, pool.IncrementAndGet())

	require.NoError(t, pool.Set(nil))
	assert.Equal(t, 0, pool.Len())

	require.NoError(t, pool.Add(2))
	pool.Clear()
	assert.Equal(t, 0, pool.Len())
	assert.Equal(t, 0, pool.IncrementAndGet())
}

func TestPool_RemoveRecomputesMax(t *testing.T) {
	t.Parallel()

	pool, err := New(1, 8)
	require.NoError(t, err)

	assert.True(t, pool.Remove(8))
	assert.False(t, pool.Remove(8))
	assert.Equal(t, 2, pool.IncrementAndGet())
}

func TestNew_RejectsNegativeSeed(t *testing.T) {
	t.Parallel()

	pool, err := New(0, -3)
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Nil(t, pool)
}

func TestPool_IncrementAndGet_Concurrent(t *testing.T) {
	t.Parallel()

	const (
		callers  = 8
		perCalls = 250
	)

	pool, err := New()
	require.NoError(t, err)

	var (
		mu   sync.Mutex
		seen = make(map[int]struct{}, callers*perCalls)
		wg   sync.WaitGroup
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int, 0, perCalls)
			for j := 0; j < perCalls; j++ {
				local = append(local, pool.IncrementAndGet())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, callers*perCalls, "every returned id should be distinct")
	for id := range seen {
		assert.True(t, pool.Contains(id))
	}
}
