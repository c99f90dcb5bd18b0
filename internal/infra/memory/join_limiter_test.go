package memory

import (
	"context"
	"testing"
	"time"
)

func TestJoinLimiterSlidingWindow(t *testing.T) {
	limiter := NewJoinLimiter(5, 30*time.Second)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		ok, err := limiter.Admit(ctx, "ABC234|10.0.0.1", start.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("admit %d: %v", i+1, err)
		}
		if !ok {
			t.Fatalf("expected join %d admitted", i+1)
		}
	}

	if ok, _ := limiter.Admit(ctx, "ABC234|10.0.0.1", start.Add(5*time.Second)); ok {
		t.Fatalf("expected sixth join inside the window rejected")
	}
	if ok, _ := limiter.Admit(ctx, "ABC234|10.0.0.2", start.Add(5*time.Second)); !ok {
		t.Fatalf("expected other address to have its own window")
	}
	if ok, _ := limiter.Admit(ctx, "ABC234|10.0.0.1", start.Add(30*time.Second+time.Millisecond)); !ok {
		t.Fatalf("expected oldest timestamp pruned after the window")
	}
}

func TestJoinLimiterRejectedAttemptsAreNotRecorded(t *testing.T) {
	limiter := NewJoinLimiter(1, 10*time.Second)
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if ok, _ := limiter.Admit(ctx, "k", start); !ok {
		t.Fatalf("expected first join admitted")
	}
	for i := 1; i < 9; i++ {
		if ok, _ := limiter.Admit(ctx, "k", start.Add(time.Duration(i)*time.Second)); ok {
			t.Fatalf("expected join at +%ds rejected", i)
		}
	}
	if ok, _ := limiter.Admit(ctx, "k", start.Add(10*time.Second+time.Millisecond)); !ok {
		t.Fatalf("expected rejected attempts to leave the window empty")
	}
}

func TestJoinLimiterForgetRoom(t *testing.T) {
	limiter := NewJoinLimiter(5, time.Minute)
	now := time.Now()
	_, _ = limiter.Admit(context.Background(), "ABC234|1.1.1.1", now)
	_, _ = limiter.Admit(context.Background(), "ABC234|2.2.2.2", now)
	_, _ = limiter.Admit(context.Background(), "XYZ789|1.1.1.1", now)

	limiter.ForgetRoom("ABC234")
	if got := limiter.Keys(); got != 1 {
		t.Fatalf("expected 1 key left, got %d", got)
	}
}
