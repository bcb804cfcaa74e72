package engine

import "sync"

// WildcardLock is the reserved lock name that excludes all other locks,
// named and wildcard alike (spec.md §3, §4.5).
const WildcardLock = "*"

// LockManager holds named mutexes plus the reserved wildcard exclusive lock.
// It is suite-wide state, injected into every ScenarioRuntime rather than
// ambient (spec.md §9 "Global mutable state").
type LockManager struct {
	mu        sync.Mutex
	cond      *sync.Cond
	held      map[string]bool // named locks currently held
	wildHeld  bool
	wildQueue int // count of goroutines waiting on the wildcard; used to avoid starving it
}

// NewLockManager returns an empty LockManager.
func NewLockManager() *LockManager {
	m := &LockManager{held: map[string]bool{}}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Acquire blocks until name can be held and returns a release function.
// Acquiring the wildcard name excludes all other acquisitions (named or
// wildcard) until released; acquiring a named lock waits only for the same
// name and for the wildcard to be free (spec.md §4.5).
func (m *LockManager) Acquire(name string) func() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if name == WildcardLock {
		m.wildQueue++
		for m.wildHeld || len(m.held) > 0 {
			m.cond.Wait()
		}
		m.wildQueue--
		m.wildHeld = true
		return m.release(name)
	}

	for m.wildHeld || m.held[name] || m.wildQueue > 0 {
		m.cond.Wait()
	}
	m.held[name] = true
	return m.release(name)
}

// release returns a once-only unlock closure for name; must be called with
// m.mu held by the caller context that constructs it (Acquire holds it).
func (m *LockManager) release(name string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			if name == WildcardLock {
				m.wildHeld = false
			} else {
				delete(m.held, name)
			}
			m.mu.Unlock()
			m.cond.Broadcast()
		})
	}
}
