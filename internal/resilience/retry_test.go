package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestRetry_FirstAttemptSucceeds(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" || calls != 1 {
		t.Fatalf("got %q after %d calls", got, calls)
	}
}

func TestRetry_RecoversFromTransient(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(3), func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("overloaded"), 529)
		}
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 42 || calls != 3 {
		t.Fatalf("got %d after %d calls", got, calls)
	}
}

func TestRetry_KeepsLastValueOnFailure(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), fastPolicy(2), func(context.Context) (int, error) {
		calls++
		return calls * 10, NewTransientError(errors.New("503"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if got != 20 {
		t.Fatalf("expected last value 20, got %d", got)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(2), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(errors.New("503"), 503)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetry_PermanentErrorStops(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), func(context.Context) (int, error) {
		calls++
		return 0, errors.New("invalid api key")
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected single failing call, got %d calls err=%v", calls, err)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, Policy{MaxAttempts: 5, InitialBackoff: time.Second}, func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(errors.New("timeout"), 504)
	})
	if err == nil || calls != 1 {
		t.Fatalf("expected to stop after cancel, got %d calls err=%v", calls, err)
	}
}

func TestRetry_OnRetryAndCustomRetryable(t *testing.T) {
	var attempts []int
	p := fastPolicy(3)
	p.Retryable = func(err error) bool { return err.Error() == "again" }
	p.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	calls := 0
	_, _ = Retry(context.Background(), p, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("again")
	})
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(attempts) != 2 || attempts[0] != 1 || attempts[1] != 2 {
		t.Fatalf("unexpected retry attempts %v", attempts)
	}
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}
	if d := p.Delay(0); d != 100*time.Millisecond {
		t.Errorf("attempt 0: got %v", d)
	}
	if d := p.Delay(2); d != 400*time.Millisecond {
		t.Errorf("attempt 2: got %v", d)
	}
	if d := p.Delay(10); d != time.Second {
		t.Errorf("attempt 10 should cap: got %v", d)
	}

	p.Jitter = 0.5
	for i := 0; i < 50; i++ {
		d := p.Delay(0)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("jittered delay out of range: %v", d)
		}
	}
}

func TestPolicyFrom(t *testing.T) {
	p := PolicyFrom(5, 200, 0)
	if p.MaxAttempts != 5 || p.InitialBackoff != 200*time.Millisecond || p.MaxBackoff != 10*time.Second {
		t.Fatalf("unexpected policy %+v", p)
	}
	b := BreakerFrom(0, 10)
	if b.Failures != 5 || b.ResetTimeout != 10*time.Second {
		t.Fatalf("unexpected breaker config %+v", b)
	}
}
