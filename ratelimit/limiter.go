// Package ratelimit implements per-bot token bucket rate limiting.
//
// A bot's RateLimit field caps how many invocations per second the runner
// will execute for it. Zero means unlimited.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/langboard/engine/id"
)

// Limiter tracks one token bucket per bot.
type Limiter struct {
	mu      sync.Mutex
	buckets map[id.ID]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
	rate     float64 // tokens per second, also the burst cap
}

// New creates an empty limiter.
func New() *Limiter {
	return &Limiter{
		buckets: make(map[id.ID]*bucket),
	}
}

// Allow reports whether the bot may run now. A rate of 0 disables
// limiting for that bot.
func (l *Limiter) Allow(botID id.ID, rate int) bool {
	if rate <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucket(botID, float64(rate))
	b.refill()

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// Wait blocks until the bot may run or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context, botID id.ID, rate int) error {
	if rate <= 0 {
		return nil
	}

	for {
		if l.Allow(botID, rate) {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(float64(time.Second) / float64(rate))):
		}
	}
}

// Reset drops the bucket for a bot, used when its rate limit changes.
func (l *Limiter) Reset(botID id.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, botID)
}

func (l *Limiter) bucket(botID id.ID, rate float64) *bucket {
	b, ok := l.buckets[botID]
	if !ok {
		b = &bucket{
			tokens:   rate, // start full
			lastFill: time.Now(),
			rate:     rate,
		}
		l.buckets[botID] = b
	}
	return b
}

func (b *bucket) refill() {
	now := time.Now()
	elapsed := now.Sub(b.lastFill).Seconds()
	b.tokens += elapsed * b.rate
	if b.tokens > b.rate {
		b.tokens = b.rate
	}
	b.lastFill = now
}
