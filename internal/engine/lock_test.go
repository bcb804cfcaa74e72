package engine

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockManager_NamedMutualExclusion(t *testing.T) {
	lm := NewLockManager()
	var current, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := lm.Acquire("shared")
			defer release()
			n := atomic.AddInt32(&current, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&current, -1)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxSeen)
}

func TestLockManager_WildcardExclusivity(t *testing.T) {
	lm := NewLockManager()
	var mu sync.Mutex
	wildHeld := false
	namedHolders := 0
	violated := false
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := "*"
			if i%2 == 0 {
				name = "namedA"
			}
			release := lm.Acquire(name)

			mu.Lock()
			if name == "*" {
				wildHeld = true
				if namedHolders > 0 {
					violated = true
				}
			} else {
				namedHolders++
				if wildHeld {
					violated = true
				}
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			if name == "*" {
				wildHeld = false
			} else {
				namedHolders--
			}
			mu.Unlock()

			release()
		}(i)
	}
	wg.Wait()
	require.False(t, violated, "wildcard and a named lock were held concurrently")
}

func TestLockManager_WildcardBlocksNamed(t *testing.T) {
	lm := NewLockManager()
	releaseWild := lm.Acquire("*")

	acquired := make(chan struct{})
	go func() {
		release := lm.Acquire("namedA")
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("named lock acquired while wildcard held")
	case <-time.After(30 * time.Millisecond):
	}

	releaseWild()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("named lock never acquired after wildcard released")
	}
}
