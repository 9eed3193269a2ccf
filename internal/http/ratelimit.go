package http

import (
	"sync"
	"sync/atomic"
	"time"
)

const (
	// writeBudget caps mutating requests per client IP per window. Reads
	// are not limited; they are served from cache anyway.
	writeBudget = 60
	writeWindow = time.Minute

	staleAfter      = 10 * time.Minute
	cleanupInterval = 5 * time.Minute
)

// rateLimiter tracks mutating-request counts per client IP over a sliding
// window, in memory.
type rateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*writeCounter
	done     chan struct{}
	stopOnce sync.Once
}

type writeCounter struct {
	windowStart time.Time
	count       int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients: make(map[string]*writeCounter),
		done:    make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.dropStale()
		case <-rl.done:
			return
		}
	}
}

// dropStale forgets clients that have not written recently, bounding memory.
func (rl *rateLimiter) dropStale() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-staleAfter)
	for ip, c := range rl.clients {
		if c.windowStart.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop terminates the cleanup goroutine.
func (rl *rateLimiter) stop() {
	rl.stopOnce.Do(func() {
		close(rl.done)
	})
}

// allow reports whether clientIP still has write budget left in the current
// window. A denied request is counted in metrics.
func (rl *rateLimiter) allow(clientIP string, metrics *securityMetrics) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	c, ok := rl.clients[clientIP]
	if !ok || now.Sub(c.windowStart) > writeWindow {
		rl.clients[clientIP] = &writeCounter{windowStart: now, count: 1}
		return true
	}

	c.count++
	if c.count > writeBudget {
		if metrics != nil {
			atomic.AddInt64(&metrics.rateLimitHits, 1)
		}
		return false
	}
	return true
}
