package relay

import (
	"sync"
	"time"
)

// Messages allowed per sender per window.
const (
	rateLimitCount  = 100
	rateLimitWindow = time.Minute
)

// RateLimiter implements per-sender rate limiting.
type RateLimiter struct {
	mu      sync.Mutex
	senders map[string]*senderWindow
}

// senderWindow tracks one sender's current window.
type senderWindow struct {
	messageCount int
	windowStart  time.Time
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		senders: make(map[string]*senderWindow),
	}
}

// Allow reports whether the sender may send another message in the current
// window.
func (rl *RateLimiter) Allow(senderID string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()

	window, exists := rl.senders[senderID]
	if !exists {
		rl.senders[senderID] = &senderWindow{messageCount: 1, windowStart: now}
		return true
	}

	if now.Sub(window.windowStart) >= rateLimitWindow {
		window.messageCount = 1
		window.windowStart = now
		return true
	}

	if window.messageCount >= rateLimitCount {
		return false
	}

	window.messageCount++
	return true
}

// Cleanup removes senders idle for several windows. Call periodically.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for senderID, window := range rl.senders {
		if now.Sub(window.windowStart) > 5*rateLimitWindow {
			delete(rl.senders, senderID)
		}
	}
}
