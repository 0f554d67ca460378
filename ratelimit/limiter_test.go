package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/langboard/engine/id"
)

func TestAllowUnlimited(t *testing.T) {
	l := New()
	botID := id.NewBotID()
	for i := 0; i < 100; i++ {
		if !l.Allow(botID, 0) {
			t.Fatal("rate 0 should never deny")
		}
	}
}

func TestAllowExhaustsBucket(t *testing.T) {
	l := New()
	botID := id.NewBotID()

	if !l.Allow(botID, 2) {
		t.Fatal("first call should be allowed")
	}
	if !l.Allow(botID, 2) {
		t.Fatal("second call should be allowed")
	}
	if l.Allow(botID, 2) {
		t.Fatal("third call should be denied")
	}
}

func TestBucketsAreIndependent(t *testing.T) {
	l := New()
	a, b := id.NewBotID(), id.NewBotID()

	l.Allow(a, 1)
	if l.Allow(a, 1) {
		t.Fatal("bot a should be exhausted")
	}
	if !l.Allow(b, 1) {
		t.Fatal("bot b should have its own bucket")
	}
}

func TestReset(t *testing.T) {
	l := New()
	botID := id.NewBotID()

	l.Allow(botID, 1)
	if l.Allow(botID, 1) {
		t.Fatal("should be exhausted before reset")
	}

	l.Reset(botID)
	if !l.Allow(botID, 1) {
		t.Fatal("reset should refill the bucket")
	}
}

func TestWaitHonorsContext(t *testing.T) {
	l := New()
	botID := id.NewBotID()
	l.Allow(botID, 1) // exhaust

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	// Rate 1/s means the next token is ~1s away, so the context wins.
	if err := l.Wait(ctx, botID, 1); err == nil {
		t.Fatal("expected context deadline error")
	}
}
