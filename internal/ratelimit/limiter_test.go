package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// newTestLimiter connects to a local Redis instance. Tests that call this
// helper require a running Redis on localhost:6379.
func newTestLimiter(t *testing.T) *Limiter {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return NewLimiter(client)
}

func TestAllow_WithinLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_" + uuid.New().String()
	rule := Rule{Key: "rl:test:", Limit: 3, Window: time.Minute}

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(ctx, id, rule)
		if err != nil {
			t.Fatalf("Allow() #%d error: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("request #%d should be allowed", i+1)
		}
	}
}

func TestAllow_OverLimit(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_" + uuid.New().String()
	rule := Rule{Key: "rl:test:", Limit: 2, Window: time.Minute}

	l.Allow(ctx, id, rule)
	l.Allow(ctx, id, rule)

	allowed, err := l.Allow(ctx, id, rule)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if allowed {
		t.Error("request over the limit should be denied")
	}
}

func TestAllow_WindowExpiry(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_" + uuid.New().String()
	rule := Rule{Key: "rl:test:", Limit: 1, Window: time.Second}

	l.Allow(ctx, id, rule)
	if allowed, _ := l.Allow(ctx, id, rule); allowed {
		t.Fatal("second request inside the window should be denied")
	}

	time.Sleep(1100 * time.Millisecond)

	if allowed, _ := l.Allow(ctx, id, rule); !allowed {
		t.Error("request after the window expired should be allowed")
	}
}

func TestRemaining(t *testing.T) {
	l := newTestLimiter(t)
	ctx := context.Background()
	id := "test_" + uuid.New().String()
	rule := Rule{Key: "rl:test:", Limit: 5, Window: time.Minute}

	remaining, err := l.Remaining(ctx, id, rule)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 5 {
		t.Errorf("untouched identifier should have full limit, got %d", remaining)
	}

	l.Allow(ctx, id, rule)
	l.Allow(ctx, id, rule)

	remaining, err = l.Remaining(ctx, id, rule)
	if err != nil {
		t.Fatalf("Remaining() error: %v", err)
	}
	if remaining != 3 {
		t.Errorf("expected 3 remaining after 2 requests, got %d", remaining)
	}
}
