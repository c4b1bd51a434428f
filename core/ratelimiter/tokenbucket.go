// Package ratelimiter implements the token-bucket ingress limits used by
// the mempool, grounded directly on mempool/limiter.py: a global tx/s
// bucket, a global bytes/s bucket, and per-peer tx/s buckets with
// LRU+TTL eviction. It is pure logic — no IO, no sleeping — callers
// supply "now" so tests can drive time deterministically.
package ratelimiter

import "math"

// TokenBucket is a classic token bucket: tokens refill continuously at
// rate_per_sec up to capacity, and an operation of size "amount" consumes
// that many tokens atomically.
type TokenBucket struct {
	Capacity   float64
	RatePerSec float64
	Tokens     float64
	LastRefill float64 // monotonic seconds, caller-supplied clock
}

// NewTokenBucket starts a bucket full at capacity.
func NewTokenBucket(capacity, ratePerSec, now float64) *TokenBucket {
	return &TokenBucket{Capacity: capacity, RatePerSec: ratePerSec, Tokens: capacity, LastRefill: now}
}

// Refill advances the bucket's token count to "now".
func (b *TokenBucket) Refill(now float64) {
	if b.RatePerSec <= 0 {
		b.LastRefill = now
		return
	}
	dt := now - b.LastRefill
	if dt < 0 {
		dt = 0
	}
	if dt > 0 {
		b.Tokens = math.Min(b.Capacity, b.Tokens+b.RatePerSec*dt)
		b.LastRefill = now
	}
}

// TryConsume attempts to consume amount tokens, returning (ok, waitSeconds).
func (b *TokenBucket) TryConsume(amount, now float64) (bool, float64) {
	if amount <= 0 {
		return true, 0
	}
	b.Refill(now)
	if b.Tokens >= amount {
		b.Tokens -= amount
		return true, 0
	}
	deficit := amount - b.Tokens
	if b.RatePerSec <= 0 {
		return false, math.Inf(1)
	}
	return false, deficit / b.RatePerSec
}

// PeekWait computes the wait until amount tokens are available, without
// consuming any.
func (b *TokenBucket) PeekWait(amount, now float64) float64 {
	if amount <= 0 {
		return 0
	}
	b.Refill(now)
	if b.Tokens >= amount {
		return 0
	}
	deficit := amount - b.Tokens
	if b.RatePerSec <= 0 {
		return math.Inf(1)
	}
	return deficit / b.RatePerSec
}

// Remaining reports the current token level after refilling to now.
func (b *TokenBucket) Remaining(now float64) float64 {
	b.Refill(now)
	return b.Tokens
}

// SetLevel clamps and sets the token level directly.
func (b *TokenBucket) SetLevel(tokens, now float64) {
	b.Refill(now)
	if tokens < 0 {
		tokens = 0
	}
	if tokens > b.Capacity {
		tokens = b.Capacity
	}
	b.Tokens = tokens
}
