// Package resilience wraps oracle calls in retries and per-oracle circuit breakers.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// BreakerState is the position of a circuit breaker.
type BreakerState int

const (
	// Closed lets calls through.
	Closed BreakerState = iota
	// Open rejects calls until the reset timeout passes.
	Open
	// HalfOpen lets a probe call through.
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// ErrCircuitOpen is returned when a breaker rejects a call.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// BreakerConfig controls when a breaker trips and recovers.
type BreakerConfig struct {
	// Failures is the number of consecutive failures that opens the breaker. Default: 5.
	Failures int
	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration
}

// Breaker is a consecutive-failure circuit breaker for one oracle.
type Breaker struct {
	name     string
	cfg      BreakerConfig
	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	now      func() time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(name string, cfg BreakerConfig) *Breaker {
	if cfg.Failures <= 0 {
		cfg.Failures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &Breaker{name: name, cfg: cfg, now: time.Now}
}

// State returns the effective state, reporting HalfOpen once an open breaker's
// reset timeout has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == Open && b.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		return HalfOpen
	}
	return b.state
}

func (b *Breaker) acquire() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != Open {
		return nil
	}
	if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
		return eris.Wrapf(ErrCircuitOpen, "resilience: %s", b.name)
	}
	b.setState(HalfOpen)
	return nil
}

func (b *Breaker) release(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.failures = 0
		if b.state != Closed {
			b.setState(Closed)
		}
		return
	}

	b.failures++
	if b.state == HalfOpen || b.failures >= b.cfg.Failures {
		b.openedAt = b.now()
		if b.state != Open {
			b.setState(Open)
		}
	}
}

func (b *Breaker) setState(to BreakerState) {
	zap.L().Info("circuit breaker state change",
		zap.String("oracle", b.name),
		zap.Stringer("from", b.state),
		zap.Stringer("to", to),
	)
	b.state = to
}

// Call runs fn through the breaker. Context cancellation by the caller is
// not counted as a failure.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.acquire(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	if err != nil && ctx.Err() != nil {
		return val, err
	}
	b.release(err)
	return val, err
}

// Breakers hands out one breaker per oracle name.
type Breakers struct {
	cfg BreakerConfig
	mu  sync.Mutex
	m   map[string]*Breaker
}

// NewBreakers creates an empty registry.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, m: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it on first use.
func (r *Breakers) Get(name string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.m[name]
	if !ok {
		b = NewBreaker(name, r.cfg)
		r.m[name] = b
	}
	return b
}

// States snapshots every breaker's state.
func (r *Breakers) States() map[string]BreakerState {
	r.mu.Lock()
	names := make([]*Breaker, 0, len(r.m))
	for _, b := range r.m {
		names = append(names, b)
	}
	r.mu.Unlock()

	out := make(map[string]BreakerState, len(names))
	for _, b := range names {
		out[b.name] = b.State()
	}
	return out
}
