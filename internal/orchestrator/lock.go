package orchestrator

import "sync"

// targetLocks serializes runs per target. Acquisition is non-blocking with
// immediate failure; requests never queue silently behind a slow run.
type targetLocks struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func newTargetLocks() *targetLocks {
	return &targetLocks{held: make(map[string]struct{})}
}

// TryAcquire reports whether the target lock was taken.
func (l *targetLocks) TryAcquire(targetID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.held[targetID]; busy {
		return false
	}
	l.held[targetID] = struct{}{}
	return true
}

func (l *targetLocks) Release(targetID string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, targetID)
}
