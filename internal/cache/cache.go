// Package cache provides the TTL-bounded LRU caches backing the read side
// of the budget API, plus a manager that sweeps expired entries.
package cache

import (
	"log/slog"
	"sync"
	"time"
)

// Cleaner is any cache the manager can sweep.
type Cleaner interface {
	CleanExpired() int
}

// Manager owns the periodic expiry sweep for a set of caches.
type Manager struct {
	caches   []Cleaner
	done     chan struct{}
	swept    chan struct{}
	stopOnce sync.Once
}

func NewManager() *Manager {
	return &Manager{
		done:  make(chan struct{}),
		swept: make(chan struct{}),
	}
}

// Register adds a cache to the sweep. Not safe to call after StartCleanup.
func (m *Manager) Register(c Cleaner) {
	m.caches = append(m.caches, c)
}

// StartCleanup sweeps all registered caches every interval until Stop.
func (m *Manager) StartCleanup(interval time.Duration) {
	go m.sweepLoop(interval)
}

func (m *Manager) sweepLoop(interval time.Duration) {
	defer close(m.swept)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cleaned := 0
			for _, c := range m.caches {
				cleaned += c.CleanExpired()
			}
			if cleaned > 0 {
				slog.Debug("Evicted expired cache entries", "count", cleaned)
			}
		case <-m.done:
			return
		}
	}
}

// Stop halts the sweep and waits for the loop to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		<-m.swept
	})
}
