package oracle

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sells-group/stock-researcher/internal/monitoring"
	"github.com/sells-group/stock-researcher/internal/resilience"
	"github.com/sells-group/stock-researcher/internal/tracing"
)

// Guard bounds every oracle call with a per-attempt timeout, transient-error
// retries and a per-oracle circuit breaker.
type Guard struct {
	Timeout  time.Duration
	Policy   resilience.Policy
	Breakers *resilience.Breakers
}

// NewGuard creates a Guard. A zero timeout means 60s.
func NewGuard(timeout time.Duration, policy resilience.Policy, breakers *resilience.Breakers) *Guard {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if breakers == nil {
		breakers = resilience.NewBreakers(resilience.BreakerConfig{})
	}
	return &Guard{Timeout: timeout, Policy: policy, Breakers: breakers}
}

func guarded[T any](ctx context.Context, g *Guard, name, op string, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	ctx, span := tracing.StartSpan(ctx, "oracle."+name,
		attribute.String("oracle", name),
		attribute.String("operation", op),
	)
	defer span.End()

	policy := g.Policy
	if policy.OnRetry == nil {
		policy.OnRetry = resilience.RetryLogger(name, op)
	}
	breaker := g.Breakers.Get(name)

	val, err := resilience.Retry(ctx, policy, func(ctx context.Context) (T, error) {
		return resilience.Call(ctx, breaker, func(ctx context.Context) (T, error) {
			callCtx, cancel := context.WithTimeout(ctx, g.Timeout)
			defer cancel()
			v, err := fn(callCtx)
			if err != nil && ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return v, eris.Wrapf(ErrTimeout, "oracle: %s %s after %s", name, op, g.Timeout)
			}
			return v, err
		})
	})

	monitoring.ObserveOracleCall(name, outcome(err), time.Since(start))
	tracing.RecordError(span, err)
	return val, err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return monitoring.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return monitoring.OutcomeTimeout
	case errors.Is(err, resilience.ErrCircuitOpen):
		return monitoring.OutcomeCircuitOpen
	default:
		return monitoring.OutcomeError
	}
}

type guardedGenerator struct {
	next  Generator
	guard *Guard
	name  string
}

// GuardGenerator wraps gen so every call goes through g under the breaker name.
func GuardGenerator(gen Generator, g *Guard, name string) Generator {
	return &guardedGenerator{next: gen, guard: g, name: name}
}

func (gg *guardedGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	return guarded(ctx, gg.guard, gg.name, "generate", func(ctx context.Context) (*Generation, error) {
		return gg.next.Generate(ctx, req)
	})
}

type guardedSearcher struct {
	next  Searcher
	guard *Guard
	name  string
}

// GuardSearcher wraps s so every call goes through g under the breaker name.
func GuardSearcher(s Searcher, g *Guard, name string) Searcher {
	return &guardedSearcher{next: s, guard: g, name: name}
}

func (gs *guardedSearcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	return guarded(ctx, gs.guard, gs.name, "search", func(ctx context.Context) (*SearchResponse, error) {
		return gs.next.Search(ctx, req)
	})
}
