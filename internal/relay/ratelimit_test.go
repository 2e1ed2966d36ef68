package relay

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter()

	for i := 0; i < rateLimitCount; i++ {
		if !limiter.Allow(testBuyerID) {
			t.Fatalf("message %d should be allowed", i)
		}
	}

	if limiter.Allow(testBuyerID) {
		t.Error("message beyond the limit should be rejected")
	}
}

func TestRateLimiterIsPerSender(t *testing.T) {
	limiter := NewRateLimiter()

	for i := 0; i < rateLimitCount; i++ {
		limiter.Allow(testBuyerID)
	}

	if !limiter.Allow(testSellerID) {
		t.Error("one sender's limit must not affect another")
	}
}

func TestRateLimiterWindowReset(t *testing.T) {
	limiter := NewRateLimiter()

	for i := 0; i < rateLimitCount; i++ {
		limiter.Allow(testBuyerID)
	}

	// Age the window out manually instead of sleeping through it.
	limiter.mu.Lock()
	limiter.senders[testBuyerID].windowStart = time.Now().Add(-2 * rateLimitWindow)
	limiter.mu.Unlock()

	if !limiter.Allow(testBuyerID) {
		t.Error("expired window should reset the count")
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	limiter := NewRateLimiter()

	limiter.Allow(testBuyerID)
	limiter.Allow(testSellerID)

	limiter.mu.Lock()
	limiter.senders[testBuyerID].windowStart = time.Now().Add(-10 * rateLimitWindow)
	limiter.mu.Unlock()

	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.senders[testBuyerID]; ok {
		t.Error("idle sender should be pruned")
	}
	if _, ok := limiter.senders[testSellerID]; !ok {
		t.Error("active sender should be kept")
	}
}
