// Package cache provides a small generic LRU cache with TTL, used for
// rule listings and dashboard overviews, plus a manager that runs
// periodic expiry cleanup for registered caches.
package cache

import "time"

// Cache is the generic read-cache contract.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, data T)
	Delete(key string)
	// Purge drops every entry. Used when a write invalidates more than
	// one key.
	Purge()
	Size() int
}

// Cleaner is implemented by caches that support expiry cleanup.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the cleanup loop for a set of caches.
type Manager struct {
	caches  []Cleaner
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

func NewManager() *Manager {
	return &Manager{
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Register adds a cache to the cleanup set. Not safe to call after
// StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup begins periodic cleanup of all registered caches.
func (m *Manager) StartCleanup(interval time.Duration) {
	m.started = true
	go m.loop(interval)
}

func (m *Manager) loop(interval time.Duration) {
	defer close(m.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, c := range m.caches {
				c.CleanExpired()
			}
		case <-m.stopCh:
			return
		}
	}
}

// Stop terminates the cleanup loop and waits for it to exit.
func (m *Manager) Stop() {
	close(m.stopCh)
	if m.started {
		<-m.doneCh
	}
}
