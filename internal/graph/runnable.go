package graph

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Step describes one executed node, reported to observers.
type Step struct {
	Index int
	Node  string
	Next  string

	// Route is set only when the node left through a conditional edge.
	Route    *Route
	Started  time.Time
	Duration time.Duration
}

// Observer is notified after every node completes.
type Observer func(ctx context.Context, step Step)

type options struct {
	maxSteps int
	observer Observer
}

// Option configures a compiled graph.
type Option func(*options)

// WithMaxSteps overrides DefaultMaxSteps.
func WithMaxSteps(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxSteps = n
		}
	}
}

// WithObserver registers a callback invoked after each node.
func WithObserver(fn Observer) Option {
	return func(o *options) { o.observer = fn }
}

// Runnable is a compiled, immutable graph.
type Runnable[S any] struct {
	entry    string
	nodes    map[string]Node[S]
	edges    map[string]string
	branches map[string]branch[S]
	opts     options
}

// Invoke runs state from the entry point until End. It fails only on context
// cancellation, an unroutable decision or an exhausted step budget; the state
// reached so far is returned in every case.
func (r *Runnable[S]) Invoke(ctx context.Context, state S) (S, error) {
	current := r.entry
	for step := 0; ; step++ {
		if current == End {
			return state, nil
		}
		if step >= r.opts.maxSteps {
			return state, eris.Wrapf(ErrStepLimit, "graph: stopped before %q after %d steps", current, step)
		}
		if err := ctx.Err(); err != nil {
			return state, eris.Wrapf(err, "graph: cancelled before %q", current)
		}

		started := time.Now()
		state = r.nodes[current](ctx, state)
		elapsed := time.Since(started)

		next, route, err := r.next(current, state)
		if err != nil {
			return state, err
		}
		if r.opts.observer != nil {
			r.opts.observer(ctx, Step{
				Index:    step,
				Node:     current,
				Next:     next,
				Route:    route,
				Started:  started,
				Duration: elapsed,
			})
		}
		current = next
	}
}

func (r *Runnable[S]) next(current string, state S) (string, *Route, error) {
	if to, ok := r.edges[current]; ok {
		return to, nil, nil
	}
	br := r.branches[current]
	route := br.router(state)
	to, ok := br.targets[route]
	if !ok {
		return "", &route, eris.Wrapf(ErrUnroutable, "graph: %q returned %s", current, route)
	}
	return to, &route, nil
}
