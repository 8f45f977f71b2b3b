package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTargetLocks_Exclusive(t *testing.T) {
	locks := newTargetLocks()

	assert.True(t, locks.TryAcquire("orders-db"))
	assert.False(t, locks.TryAcquire("orders-db"))
	assert.True(t, locks.TryAcquire("users-db"))

	locks.Release("orders-db")
	assert.True(t, locks.TryAcquire("orders-db"))
}

func TestTargetLocks_ConcurrentSingleWinner(t *testing.T) {
	locks := newTargetLocks()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- locks.TryAcquire("orders-db")
		}()
	}
	wg.Wait()
	close(results)

	won := 0
	for ok := range results {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)
}
