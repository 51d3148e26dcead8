package paychlock

/*
 * Dual-licensed under Apache-2.0 and MIT.
 *
 * You can get a copy of the Apache License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * You can also get a copy of the MIT License at
 *
 * http://opensource.org/licenses/MIT
 */

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestLockUnlock(t *testing.T) {
	table := NewTable()
	release, err := table.Lock(context.Background(), "a")
	assert.Nil(t, err)
	assert.NotNil(t, release)
	release()
	assert.Equal(t, 0, len(table.entries))
}

func TestLockBlocksSameKey(t *testing.T) {
	table := NewTable()
	release, err := table.Lock(context.Background(), "a")
	assert.Nil(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = table.Lock(ctx, "a")
	assert.NotNil(t, err)

	release()
}

func TestLockIndependentKeys(t *testing.T) {
	table := NewTable()
	releaseA, err := table.Lock(context.Background(), "a")
	assert.Nil(t, err)
	releaseB, err := table.Lock(context.Background(), "b")
	assert.Nil(t, err)
	releaseA()
	releaseB()
}

func TestFIFOOrdering(t *testing.T) {
	table := NewTable()
	first, err := table.Lock(context.Background(), "a")
	assert.Nil(t, err)

	var order []int
	var mutex sync.Mutex
	var wg sync.WaitGroup
	const n = 5
	for i := 0; i < n; i++ {
		wg.Add(1)
		idx := i
		// Stagger acquisition attempts so they enqueue in index order.
		time.Sleep(2 * time.Millisecond)
		go func() {
			defer wg.Done()
			release, err := table.Lock(context.Background(), "a")
			assert.Nil(t, err)
			mutex.Lock()
			order = append(order, idx)
			mutex.Unlock()
			release()
		}()
		time.Sleep(2 * time.Millisecond)
	}
	first()
	wg.Wait()

	for i := 0; i < n; i++ {
		assert.Equal(t, i, order[i])
	}
}

func TestPairKey(t *testing.T) {
	k := PairKey(common.Address{}, common.Address{})
	assert.Contains(t, k, "->")
}
