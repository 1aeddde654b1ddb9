// Package graph runs a typed state through a directed graph of stages with
// explicit conditional routing.
package graph

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
)

// End is the terminal pseudo-node.
const End = "__end__"

// DefaultMaxSteps bounds how many nodes one invocation may execute.
const DefaultMaxSteps = 16

var (
	// ErrStepLimit is returned when an invocation exceeds its step budget.
	ErrStepLimit = eris.New("graph: step limit exceeded")
	// ErrUnroutable is returned when a router yields a route with no target.
	ErrUnroutable = eris.New("graph: route has no target")
)

// Node is the stage contract: it takes the state and returns the state to
// pass on. Nodes do not fail; degraded results are carried in the state.
type Node[S any] func(ctx context.Context, state S) S

// Route is the decision a router makes after a node completes.
type Route int

const (
	// Continue advances to the next stage on the happy path.
	Continue Route = iota
	// Retry loops back to an earlier stage.
	Retry
	// Terminate ends the run.
	Terminate
)

func (r Route) String() string {
	switch r {
	case Continue:
		return "continue"
	case Retry:
		return "retry"
	case Terminate:
		return "terminate"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

// Router inspects the state after a node and picks a Route.
type Router[S any] func(state S) Route

type branch[S any] struct {
	router  Router[S]
	targets map[Route]string
}

// Graph is a mutable graph definition. Build it, then Compile.
type Graph[S any] struct {
	nodes    map[string]Node[S]
	order    []string
	edges    map[string]string
	branches map[string]branch[S]
	entry    string
	errs     []error
}

// New returns an empty graph definition.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes:    make(map[string]Node[S]),
		edges:    make(map[string]string),
		branches: make(map[string]branch[S]),
	}
}

// AddNode registers a named stage.
func (g *Graph[S]) AddNode(name string, fn Node[S]) *Graph[S] {
	switch {
	case name == "" || name == End:
		g.errs = append(g.errs, eris.Errorf("graph: invalid node name %q", name))
	case fn == nil:
		g.errs = append(g.errs, eris.Errorf("graph: node %q has nil func", name))
	case g.nodes[name] != nil:
		g.errs = append(g.errs, eris.Errorf("graph: duplicate node %q", name))
	default:
		g.nodes[name] = fn
		g.order = append(g.order, name)
	}
	return g
}

// AddEdge adds an unconditional transition.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	if g.hasOutgoing(from) {
		g.errs = append(g.errs, eris.Errorf("graph: node %q already has an outgoing transition", from))
		return g
	}
	g.edges[from] = to
	return g
}

// AddConditionalEdge routes out of from according to router. Every route the
// router can return must appear in targets.
func (g *Graph[S]) AddConditionalEdge(from string, router Router[S], targets map[Route]string) *Graph[S] {
	if g.hasOutgoing(from) {
		g.errs = append(g.errs, eris.Errorf("graph: node %q already has an outgoing transition", from))
		return g
	}
	if router == nil || len(targets) == 0 {
		g.errs = append(g.errs, eris.Errorf("graph: conditional edge from %q needs a router and targets", from))
		return g
	}
	copied := make(map[Route]string, len(targets))
	for r, t := range targets {
		copied[r] = t
	}
	g.branches[from] = branch[S]{router: router, targets: copied}
	return g
}

// SetEntryPoint names the first node.
func (g *Graph[S]) SetEntryPoint(name string) *Graph[S] {
	g.entry = name
	return g
}

func (g *Graph[S]) hasOutgoing(name string) bool {
	_, e := g.edges[name]
	_, b := g.branches[name]
	return e || b
}

// Compile validates the definition and returns an executable graph.
func (g *Graph[S]) Compile(opts ...Option) (*Runnable[S], error) {
	if len(g.errs) > 0 {
		return nil, g.errs[0]
	}
	if g.entry == "" {
		return nil, eris.New("graph: entry point not set")
	}
	if g.nodes[g.entry] == nil {
		return nil, eris.Errorf("graph: entry point %q is not a node", g.entry)
	}

	known := func(name string) bool { return name == End || g.nodes[name] != nil }
	for from, to := range g.edges {
		if g.nodes[from] == nil {
			return nil, eris.Errorf("graph: edge from unknown node %q", from)
		}
		if !known(to) {
			return nil, eris.Errorf("graph: edge %q -> unknown node %q", from, to)
		}
	}
	for from, br := range g.branches {
		if g.nodes[from] == nil {
			return nil, eris.Errorf("graph: conditional edge from unknown node %q", from)
		}
		for r, to := range br.targets {
			if !known(to) {
				return nil, eris.Errorf("graph: %q on %s -> unknown node %q", from, r, to)
			}
		}
	}
	for _, name := range g.order {
		if !g.hasOutgoing(name) {
			return nil, eris.Errorf("graph: node %q has no outgoing transition", name)
		}
	}

	r := &Runnable[S]{
		entry:    g.entry,
		nodes:    make(map[string]Node[S], len(g.nodes)),
		edges:    make(map[string]string, len(g.edges)),
		branches: make(map[string]branch[S], len(g.branches)),
		opts:     options{maxSteps: DefaultMaxSteps},
	}
	for k, v := range g.nodes {
		r.nodes[k] = v
	}
	for k, v := range g.edges {
		r.edges[k] = v
	}
	for k, v := range g.branches {
		r.branches[k] = v
	}
	for _, opt := range opts {
		opt(&r.opts)
	}
	return r, nil
}
