package digraph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

type vtx struct {
	name string
	succ []*vtx
	pred []*vtx
}

func (v *vtx) Successors() []*vtx   { return v.succ }
func (v *vtx) Predecessors() []*vtx { return v.pred }

func graph(edges ...string) map[string]*vtx {
	res := map[string]*vtx{}
	get := func(name string) *vtx {
		v, ok := res[name]
		if !ok {
			v = &vtx{name: name}
			res[name] = v
		}
		return v
	}

	for _, e := range edges {
		from, to, _ := strings.Cut(e, ">")
		a, b := get(from), get(to)
		a.succ = append(a.succ, b)
		b.pred = append(b.pred, a)
	}

	return res
}

func names(vs []*vtx) []string {
	res := make([]string, len(vs))
	for i, v := range vs {
		res[i] = v.name
	}
	return res
}

func TestCollect(t *testing.T) {
	g := graph("A>B", "A>C", "B>C", "D>A", "E>F")

	require.Equal(t, []string{"A", "B", "C", "D"}, names(Collect(g["A"])))
	require.Equal(t, []string{"C", "A", "B", "D"}, names(Collect(g["C"])))
	require.Equal(t, []string{"F", "E"}, names(Collect(g["F"])))

	require.True(t, IsEntry(g["D"]))
	require.False(t, IsEntry(g["A"]))
	require.True(t, IsExit(g["C"]))
	require.False(t, IsExit(g["B"]))
}

func TestMatrix(t *testing.T) {
	g := graph("A>B", "A>C", "B>C", "D>A")
	idx := NewIndex(Collect(g["A"]))

	require.Equal(t, 4, idx.Len())
	i, ok := idx.Of(g["D"])
	require.True(t, ok)
	require.Equal(t, 3, i)
	require.Equal(t, g["B"], idx.Node(1))

	require.Equal(t, [][]int{{1, 2}, {2}, nil, {0}}, Adjacency(idx))

	m := NewMatrix(idx)
	require.Equal(t, 4, m.Len())
	require.True(t, m.At(3, 0))
	require.False(t, m.At(0, 3))
	require.Equal(t, "0110\n0010\n0000\n1000\n", m.String())
}

func TestAdjacencyDropsForeignNodes(t *testing.T) {
	g := graph("A>B", "B>C", "C>A")
	idx := NewIndex([]*vtx{g["A"], g["B"]})

	require.Equal(t, [][]int{{1}, nil}, Adjacency(idx))
	_, ok := idx.Of(g["C"])
	require.False(t, ok)
}

func TestAdjacencyCollapsesParallelEdges(t *testing.T) {
	tests := []struct {
		name  string
		edges []string
		want  [][]int
	}{
		{
			name:  "single",
			edges: []string{"A>B", "B>C"},
			want:  [][]int{{1}, {2}, nil},
		},
		{
			name:  "parallel",
			edges: []string{"A>B", "A>B", "B>C"},
			want:  [][]int{{1}, {2}, nil},
		},
		{
			name:  "parallel-back-edge",
			edges: []string{"A>B", "B>A", "B>C", "B>A"},
			want:  [][]int{{1}, {0, 2}, nil},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graph(tt.edges...)
			idx := NewIndex(Collect(g["A"]))

			require.Equal(t, tt.want, Adjacency(idx))
			require.Equal(t, len(tt.want), NewMatrix(idx).Len())
		})
	}
}
