package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
)

func failing(context.Context) (string, error) { return "", errors.New("boom") }
func passing(context.Context) (string, error) { return "ok", nil }

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker("search", BreakerConfig{Failures: 2, ResetTimeout: time.Minute})

	for i := 0; i < 2; i++ {
		if _, err := Call(context.Background(), b, failing); err == nil {
			t.Fatal("expected error")
		}
	}
	if b.State() != Open {
		t.Fatalf("expected open, got %s", b.State())
	}

	_, err := Call(context.Background(), b, passing)
	if !eris.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestBreaker_SuccessResetsCount(t *testing.T) {
	b := NewBreaker("search", BreakerConfig{Failures: 2})
	_, _ = Call(context.Background(), b, failing)
	_, _ = Call(context.Background(), b, passing)
	_, _ = Call(context.Background(), b, failing)
	if b.State() != Closed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreaker_HalfOpenProbe(t *testing.T) {
	now := time.Now()
	b := NewBreaker("gen", BreakerConfig{Failures: 1, ResetTimeout: time.Second})
	b.now = func() time.Time { return now }

	_, _ = Call(context.Background(), b, failing)
	if b.State() != Open {
		t.Fatalf("expected open, got %s", b.State())
	}

	now = now.Add(2 * time.Second)
	if b.State() != HalfOpen {
		t.Fatalf("expected half-open, got %s", b.State())
	}

	// A failed probe reopens.
	_, _ = Call(context.Background(), b, failing)
	if b.State() != Open {
		t.Fatalf("expected reopened, got %s", b.State())
	}

	now = now.Add(2 * time.Second)
	got, err := Call(context.Background(), b, passing)
	if err != nil || got != "ok" {
		t.Fatalf("probe should pass: %q %v", got, err)
	}
	if b.State() != Closed {
		t.Fatalf("expected closed, got %s", b.State())
	}
}

func TestBreaker_IgnoresCallerCancellation(t *testing.T) {
	b := NewBreaker("gen", BreakerConfig{Failures: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = Call(ctx, b, func(ctx context.Context) (string, error) { return "", ctx.Err() })
	if b.State() != Closed {
		t.Fatalf("cancellation must not trip the breaker, got %s", b.State())
	}
}

func TestBreakers_Registry(t *testing.T) {
	r := NewBreakers(BreakerConfig{Failures: 1})
	a := r.Get("search")
	if r.Get("search") != a {
		t.Fatal("expected same breaker")
	}

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = Call(context.Background(), r.Get("generation"), passing)
		}()
	}
	wg.Wait()

	_, _ = Call(context.Background(), a, failing)
	states := r.States()
	if states["search"] != Open || states["generation"] != Closed {
		t.Fatalf("unexpected states %v", states)
	}
}

func TestBreakerState_String(t *testing.T) {
	for s, want := range map[BreakerState]string{Closed: "closed", Open: "open", HalfOpen: "half-open", 7: "unknown"} {
		if s.String() != want {
			t.Errorf("%d: got %q want %q", int(s), s.String(), want)
		}
	}
}
