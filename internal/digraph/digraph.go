// Package digraph holds what the graph algorithms need from a directed graph:
// a node type able to list its neighbours, a stable numbering of the nodes
// reachable from some node, and a boolean adjacency matrix.
package digraph

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
	mapset "github.com/deckarep/golang-set/v2"
)

// Vertex is a directed graph node.
type Vertex[N any] interface {
	comparable
	Successors() []N
	Predecessors() []N
}

// IsEntry reports whether n has no predecessors.
func IsEntry[N Vertex[N]](n N) bool {
	return len(n.Predecessors()) == 0
}

// IsExit reports whether n has no successors.
func IsExit[N Vertex[N]](n N) bool {
	return len(n.Successors()) == 0
}

// Collect returns every node connected to start through edges of either
// direction, start first, in breadth-first order. Successors are explored
// before predecessors, so the order only depends on the neighbour lists.
func Collect[N Vertex[N]](start N) []N {
	visited := mapset.NewThreadUnsafeSet[N](start)
	res := []N{start}
	for i := 0; i < len(res); i++ {
		n := res[i]
		for _, m := range n.Successors() {
			if visited.Add(m) {
				res = append(res, m)
			}
		}
		for _, m := range n.Predecessors() {
			if visited.Add(m) {
				res = append(res, m)
			}
		}
	}

	return res
}

// Index is a stable numbering of graph nodes.
type Index[N comparable] struct {
	nodes []N
	pos   map[N]int
}

// NewIndex numbers nodes in the given order.
func NewIndex[N comparable](nodes []N) *Index[N] {
	idx := &Index[N]{
		nodes: nodes,
		pos:   make(map[N]int, len(nodes)),
	}
	for i, n := range nodes {
		idx.pos[n] = i
	}

	return idx
}

func (idx *Index[N]) Len() int {
	return len(idx.nodes)
}

// Node returns the node numbered i.
func (idx *Index[N]) Node(i int) N {
	return idx.nodes[i]
}

// Of returns the number of n.
func (idx *Index[N]) Of(n N) (int, bool) {
	i, ok := idx.pos[n]
	return i, ok
}

// Adjacency lists the successors of every node by number, dropping edges that
// leave the numbered set. Parallel edges collapse into one entry.
func Adjacency[N Vertex[N]](idx *Index[N]) [][]int {
	res := make([][]int, idx.Len())
	seen := bitset.New(uint(idx.Len()))
	for i, n := range idx.nodes {
		seen.ClearAll()
		for _, m := range n.Successors() {
			j, ok := idx.pos[m]
			if !ok || seen.Test(uint(j)) {
				continue
			}
			seen.Set(uint(j))
			res[i] = append(res[i], j)
		}
	}

	return res
}

// Matrix is a boolean adjacency matrix.
type Matrix struct {
	rows []*bitset.BitSet
}

// NewMatrix builds the adjacency matrix of the numbered nodes.
func NewMatrix[N Vertex[N]](idx *Index[N]) *Matrix {
	n := idx.Len()
	m := &Matrix{rows: make([]*bitset.BitSet, n)}
	for i, succs := range Adjacency(idx) {
		row := bitset.New(uint(n))
		for _, j := range succs {
			row.Set(uint(j))
		}
		m.rows[i] = row
	}

	return m
}

// Len returns the matrix dimension.
func (m *Matrix) Len() int {
	return len(m.rows)
}

// At reports whether there is an edge from i to j.
func (m *Matrix) At(i, j int) bool {
	return m.rows[i].Test(uint(j))
}

// String renders the matrix as rows of 0 and 1.
func (m *Matrix) String() string {
	var buf strings.Builder
	for i := range m.rows {
		for j := range m.rows {
			if m.At(i, j) {
				buf.WriteByte('1')
			} else {
				buf.WriteByte('0')
			}
		}
		buf.WriteByte('\n')
	}

	return buf.String()
}
