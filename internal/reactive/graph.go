// Package reactive recomputes named outputs from named inputs along an
// explicitly declared dependency graph.
package reactive

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mohammed-shakir/gapminder-dash/internal/core/observability"
)

var (
	ErrCycle             = errors.New("dependency cycle")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrDuplicateNode     = errors.New("duplicate node")
	ErrUnknownInput      = errors.New("unknown input")
)

// ComputeFunc derives one output from the values of its declared dependencies.
// in holds exactly the declared dependencies, nothing else.
type ComputeFunc func(ctx context.Context, in Values) (any, error)

// Node is an input when Compute is nil and an output otherwise.
type Node struct {
	Name    string
	Deps    []string
	Compute ComputeFunc
	// excluded from Initial, like an output that only reacts to user actions
	SkipInitial bool
}

func (n Node) isInput() bool { return n.Compute == nil }

// Result is the published value of one output. A failed handler publishes Err instead of aborting the pass.
type Result struct {
	Value any
	Err   error
}

type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCycle, strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

// Graph is immutable after Build and safe for concurrent Evaluate calls.
type Graph struct {
	nodes      map[string]Node
	order      []string
	dependents map[string][]string
}

// Build validates names and dependencies and fixes a topological order.
func Build(nodes ...Node) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]Node, len(nodes)),
		dependents: make(map[string][]string),
	}
	var decl []string
	for _, n := range nodes {
		if n.Name == "" {
			return nil, errors.New("node name is required")
		}
		if _, dup := g.nodes[n.Name]; dup {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateNode, n.Name)
		}
		if n.isInput() && len(n.Deps) > 0 {
			return nil, fmt.Errorf("input %s cannot declare dependencies", n.Name)
		}
		n.Deps = slices.Clone(n.Deps)
		g.nodes[n.Name] = n
		decl = append(decl, n.Name)
	}
	for _, name := range decl {
		for _, d := range g.nodes[name].Deps {
			if _, ok := g.nodes[d]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, name, d)
			}
			if !slices.Contains(g.dependents[d], name) {
				g.dependents[d] = append(g.dependents[d], name)
			}
		}
	}

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(decl))
	var stack []string
	var visit func(string) error
	visit = func(name string) error {
		switch color[name] {
		case black:
			return nil
		case grey:
			i := slices.Index(stack, name)
			path := append(slices.Clone(stack[i:]), name)
			return &CycleError{Path: path}
		}
		color[name] = grey
		stack = append(stack, name)
		for _, d := range g.nodes[name].Deps {
			if err := visit(d); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		color[name] = black
		g.order = append(g.order, name)
		return nil
	}
	for _, name := range decl {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) Inputs() []string {
	var out []string
	for _, name := range g.order {
		if g.nodes[name].isInput() {
			out = append(out, name)
		}
	}
	return out
}

// Outputs lists every output in topological order.
func (g *Graph) Outputs() []string {
	var out []string
	for _, name := range g.order {
		if !g.nodes[name].isInput() {
			out = append(out, name)
		}
	}
	return out
}

// Affected returns, in topological order, every output that transitively depends on a changed input.
func (g *Graph) Affected(changed []string) ([]string, error) {
	dirty := make(map[string]bool)
	queue := make([]string, 0, len(changed))
	for _, c := range changed {
		n, ok := g.nodes[c]
		if !ok || !n.isInput() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownInput, c)
		}
		queue = append(queue, c)
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range g.dependents[cur] {
			if !dirty[d] {
				dirty[d] = true
				queue = append(queue, d)
			}
		}
	}
	var out []string
	for _, name := range g.order {
		if dirty[name] {
			out = append(out, name)
		}
	}
	return out, nil
}

// Evaluate recomputes each affected output exactly once, in one pass, however many inputs changed.
// Unaffected outputs that an affected one depends on are computed but not published.
func (g *Graph) Evaluate(ctx context.Context, inputs Values, changed []string) (map[string]Result, error) {
	targets, err := g.Affected(changed)
	if err != nil {
		return nil, err
	}
	return g.run(ctx, inputs, targets)
}

// Initial computes the outputs a page shows on first render: every output
// not marked SkipInitial, restricted to only when it is non-empty.
func (g *Graph) Initial(ctx context.Context, inputs Values, only ...string) (map[string]Result, error) {
	for _, name := range only {
		if n, ok := g.nodes[name]; !ok || n.isInput() {
			return nil, fmt.Errorf("%w: %s is not an output", ErrUnknownDependency, name)
		}
	}
	var targets []string
	for _, name := range g.order {
		n := g.nodes[name]
		if n.isInput() || n.SkipInitial {
			continue
		}
		if len(only) > 0 && !slices.Contains(only, name) {
			continue
		}
		targets = append(targets, name)
	}
	return g.run(ctx, inputs, targets)
}

func (g *Graph) run(ctx context.Context, inputs Values, targets []string) (map[string]Result, error) {
	need := make(map[string]bool, len(targets))
	var mark func(string)
	mark = func(name string) {
		if need[name] || g.nodes[name].isInput() {
			return
		}
		need[name] = true
		for _, d := range g.nodes[name].Deps {
			mark(d)
		}
	}
	for _, t := range targets {
		mark(t)
	}

	computed := make(map[string]Result, len(need))
	for _, name := range g.order {
		if !need[name] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", name, err)
		}
		computed[name] = g.compute(ctx, g.nodes[name], inputs, computed)
	}

	out := make(map[string]Result, len(targets))
	for _, t := range targets {
		out[t] = computed[t]
	}
	return out, nil
}

func (g *Graph) compute(ctx context.Context, n Node, inputs Values, computed map[string]Result) (res Result) {
	in := make(Values, len(n.Deps))
	for _, d := range n.Deps {
		if g.nodes[d].isInput() {
			in[d] = inputs[d]
			continue
		}
		r := computed[d]
		if r.Err != nil {
			return Result{Err: r.Err}
		}
		in[d] = r.Value
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = Result{Err: fmt.Errorf("%s panicked: %v", n.Name, p)}
		}
		observability.ObserveRecompute(n.Name, res.Err, time.Since(start).Seconds())
	}()
	v, err := n.Compute(ctx, in)
	if err != nil {
		return Result{Err: err}
	}
	return Result{Value: v}
}
