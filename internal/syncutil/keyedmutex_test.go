package syncutil

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SingleHolderPerKey(t *testing.T) {
	var km KeyedMutex
	var holders, overlap, acquired int32

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, ok := km.TryLock("broker-1")
			if !ok {
				return
			}
			atomic.AddInt32(&acquired, 1)
			if atomic.AddInt32(&holders, 1) > 1 {
				atomic.StoreInt32(&overlap, 1)
			}
			atomic.AddInt32(&holders, -1)
			unlock()
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, acquired, int32(1))
	assert.Zero(t, atomic.LoadInt32(&overlap))
	assert.Zero(t, km.size())
}

func TestKeyedMutex_TryLock(t *testing.T) {
	var km KeyedMutex

	unlock, ok := km.TryLock("broker-1")
	require.True(t, ok)

	_, ok = km.TryLock("broker-1")
	assert.False(t, ok, "second TryLock on held key must fail")

	unlock()

	unlock, ok = km.TryLock("broker-1")
	require.True(t, ok)
	unlock()
}

func TestKeyedMutex_DistinctKeysNeverContend(t *testing.T) {
	var km KeyedMutex

	unlock, ok := km.TryLock("broker-held")
	require.True(t, ok)
	defer unlock()

	for i := 0; i < 2000; i++ {
		other, ok := km.TryLock(fmt.Sprintf("broker-%d", i))
		require.True(t, ok, "key %d blocked by an unrelated holder", i)
		other()
	}
}

func TestKeyedMutex_DropsIdleKeys(t *testing.T) {
	var km KeyedMutex

	unlock, ok := km.TryLock("broker-1")
	require.True(t, ok)
	_, ok = km.TryLock("broker-1")
	require.False(t, ok)
	assert.Equal(t, 1, km.size())

	unlock()
	assert.Zero(t, km.size())
}
