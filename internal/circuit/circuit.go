// Package circuit enumerates the elementary circuits of a directed graph with
// the Hawick & James algorithm.
//
// The graph is materialized from any node through the digraph.Vertex
// capability, numbered, and searched once per start index s with a blocking
// depth first search restricted to indices >= s. Enumeration is exhaustive and
// can explode on dense graphs, so it runs under a circuit count and a search
// step budget and fails closed when either is exceeded.
package circuit

import (
	"context"
	"fmt"
	"strings"

	"github.com/bits-and-blooms/bitset"

	"github.com/BlueSkeye/ApkRe-sub000/internal/digraph"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Options bound the enumeration. Zero values mean no bound.
type Options struct {
	MaxCircuits int
	MaxSteps    int
}

// Circuit is a cycle that visits no node twice, closed from its last node
// back to its first one.
type Circuit[N comparable] struct {
	nodes []N
}

// New creates a circuit going through nodes in the given order.
func New[N comparable](nodes ...N) *Circuit[N] {
	return &Circuit[N]{nodes: nodes}
}

// Nodes returns the circuit starting from its root.
func (c *Circuit[N]) Nodes() []N {
	res := make([]N, len(c.nodes))
	copy(res, c.nodes)
	return res
}

func (c *Circuit[N]) Len() int {
	return len(c.nodes)
}

// Root returns the first node of the circuit.
func (c *Circuit[N]) Root() N {
	return c.nodes[0]
}

func (c *Circuit[N]) Contains(n N) bool {
	return c.position(n) >= 0
}

// RootAt returns the same circuit starting at n.
func (c *Circuit[N]) RootAt(n N) (*Circuit[N], bool) {
	i := c.position(n)
	if i < 0 {
		return nil, false
	}

	nodes := make([]N, 0, len(c.nodes))
	nodes = append(nodes, c.nodes[i:]...)
	nodes = append(nodes, c.nodes[:i]...)
	return &Circuit[N]{nodes: nodes}, true
}

// Equal reports whether both circuits go through the same nodes in the same
// cyclic order, whatever their roots.
func (c *Circuit[N]) Equal(other *Circuit[N]) bool {
	if len(c.nodes) != len(other.nodes) {
		return false
	}

	o, ok := other.RootAt(c.nodes[0])
	if !ok {
		return false
	}
	for i, n := range c.nodes {
		if o.nodes[i] != n {
			return false
		}
	}

	return true
}

// String renders the circuit as "A -> B -> C -> A".
func (c *Circuit[N]) String() string {
	var buf strings.Builder
	for _, n := range c.nodes {
		fmt.Fprintf(&buf, "%v -> ", n)
	}
	if len(c.nodes) > 0 {
		fmt.Fprintf(&buf, "%v", c.nodes[0])
	}

	return buf.String()
}

func (c *Circuit[N]) position(n N) int {
	for i, v := range c.nodes {
		if v == n {
			return i
		}
	}

	return -1
}

// Find enumerates the elementary circuits of the graph start belongs to.
// Circuits are grouped by their least numbered node, which is also their root.
func Find[N digraph.Vertex[N]](ctx context.Context, start N, opts Options) ([]*Circuit[N], error) {
	idx := digraph.NewIndex(digraph.Collect(start))

	f := &finder{
		ctx:     ctx,
		opts:    opts,
		adj:     digraph.Adjacency(idx),
		blocked: bitset.New(uint(idx.Len())),
		blist:   make([]*bitset.BitSet, idx.Len()),
	}
	for i := range f.blist {
		f.blist[i] = bitset.New(uint(idx.Len()))
	}

	for s := range f.adj {
		f.s = s
		f.blocked.ClearAll()
		for _, b := range f.blist {
			b.ClearAll()
		}

		if _, err := f.circuit(s); err != nil {
			return nil, err
		}
	}

	res := make([]*Circuit[N], len(f.found))
	for i, path := range f.found {
		nodes := make([]N, len(path))
		for j, v := range path {
			nodes[j] = idx.Node(v)
		}
		res[i] = &Circuit[N]{nodes: nodes}
	}

	return res, nil
}

type finder struct {
	ctx  context.Context
	opts Options
	adj  [][]int

	s       int
	stack   []int
	blocked *bitset.BitSet

	// blist[w] holds the nodes to unblock once w gets unblocked.
	blist []*bitset.BitSet

	steps int
	found [][]int
}

func (f *finder) circuit(v int) (bool, error) {
	f.steps++
	if f.opts.MaxSteps > 0 && f.steps > f.opts.MaxSteps {
		return false, fault.New(fault.UNS210CircuitBudget, "more than %d search steps", f.opts.MaxSteps)
	}
	if err := f.ctx.Err(); err != nil {
		return false, err
	}

	closed := false
	f.stack = append(f.stack, v)
	f.blocked.Set(uint(v))

	for _, w := range f.adj[v] {
		switch {
		case w < f.s:
		case w == f.s:
			if err := f.emit(); err != nil {
				return false, err
			}
			closed = true
		case !f.blocked.Test(uint(w)):
			ok, err := f.circuit(w)
			if err != nil {
				return false, err
			}
			if ok {
				closed = true
			}
		}
	}

	if closed {
		f.unblock(v)
	} else {
		for _, w := range f.adj[v] {
			if w >= f.s {
				f.blist[w].Set(uint(v))
			}
		}
	}

	f.stack = f.stack[:len(f.stack)-1]
	return closed, nil
}

func (f *finder) unblock(u int) {
	f.blocked.Clear(uint(u))
	b := f.blist[u]
	for w, ok := b.NextSet(0); ok; w, ok = b.NextSet(w + 1) {
		b.Clear(w)
		if f.blocked.Test(w) {
			f.unblock(int(w))
		}
	}
}

func (f *finder) emit() error {
	if f.opts.MaxCircuits > 0 && len(f.found) >= f.opts.MaxCircuits {
		return fault.New(fault.UNS210CircuitBudget, "more than %d circuits", f.opts.MaxCircuits)
	}

	path := make([]int, len(f.stack))
	copy(path, f.stack)
	f.found = append(f.found, path)
	return nil
}
