package indexer

import "sync"

// IndexLock admits one indexing run at a time and remembers the root it is
// working on
type IndexLock struct {
	mu   sync.Mutex
	held bool
	root string
}

// TryAcquire takes the lock for root without blocking. When another run
// holds it, ok is false and holder is that run's root.
func (l *IndexLock) TryAcquire(root string) (holder string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return l.root, false
	}
	l.held, l.root = true, root
	return root, true
}

// Release frees the lock
func (l *IndexLock) Release() {
	l.mu.Lock()
	l.held, l.root = false, ""
	l.mu.Unlock()
}

// Holder returns the root being indexed, or "" when idle
func (l *IndexLock) Holder() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.root
}
