package ast

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
	"github.com/BlueSkeye/ApkRe-sub000/internal/flow"
	"github.com/BlueSkeye/ApkRe-sub000/internal/tree"
)

const nested = `
.method nested 110
0 10 nop
10 10 nop
20 10 nop
30 10 nop
40 10 nop
50 10 nop
60 10 nop
70 10 nop
80 10 nop
90 10 return-void
100 10 return-void
.try 0 100 catchall 100
.try 20 20 catch Ljava/lang/Exception; 100
.end
`

const straight = `
.method straight 40
0 10 nop
10 10 nop
20 10 nop
30 10 return-void
.end
`

func method(t *testing.T, src string) *bytecode.Method {
	t.Helper()

	ms, err := bytecode.ParseListing(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, ms, 1)
	return ms[0]
}

// reconstruct builds the tree and the graph of a method and reconciles
// them with the given regions.
func reconstruct(t *testing.T, m *bytecode.Method, tries []bytecode.TryRegion) (*tree.Tree, *flow.Graph, error) {
	t.Helper()

	log := zaptest.NewLogger(t)
	tr, err := Build(m, WithLogger(log))
	require.NoError(t, err)
	g, err := flow.Build(m, flow.WithLogger(log))
	require.NoError(t, err)

	return tr, g, Reconcile(tr, g, tries, WithLogger(log))
}

func requireCoverage(t *testing.T, tr *tree.Tree) {
	t.Helper()

	var next uint32
	err := tr.Walk(tr.Root(), tree.SelfThenChildren, tree.Forward, func(n tree.Node, ev tree.Event) tree.Action {
		if n.IsLeaf() && n != tr.Root() {
			require.Equal(t, tree.KindInstruction, n.Kind())
			require.Equal(t, next, n.Offset(), "gap or overlap before %s", n)
			next = n.End()
		}
		return tree.Continue
	})
	require.NoError(t, err)
	require.Equal(t, tr.Root().End(), next)
}

func requireCode(t *testing.T, err error, code fault.Code) {
	t.Helper()

	got, ok := fault.CodeOf(err)
	require.True(t, ok, "fault expected, got %v", err)
	require.Equal(t, code, got, err.Error())
}

func TestBuild(t *testing.T) {
	tr, err := Build(method(t, nested), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	requireCoverage(t, tr)
	require.Len(t, tr.Root().Children(), 11)

	n, ok := tr.NodeAt(25)
	require.True(t, ok)
	require.Equal(t, uint32(20), n.Offset())
	require.Equal(t, "nop", n.Payload().(*bytecode.Instruction).Mnemonic)
}

func TestBuildDataTables(t *testing.T) {
	tr, err := Build(method(t, `
.method table 0x10
0x0 2 packed-switch -> 0x4
0x2 2 return-void
0x4 2 return-void
0x6 10 packed-switch-payload
.end
`))
	require.NoError(t, err)
	requireCoverage(t, tr)
}

func TestBuildEmpty(t *testing.T) {
	tr, err := Build(method(t, ".method e 0\n.end\n"))
	require.NoError(t, err)
	require.True(t, tr.Root().IsLeaf())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		listing string
		code    fault.Code
	}{
		{
			name:    "dead code",
			listing: ".method m 6\n0 2 return-void\n2 2 nop\n4 2 return-void\n.end\n",
			code:    fault.FMT050IncompleteCoverage,
		},
		{
			name:    "missing instruction",
			listing: ".method m 6\n0 2 goto -> 4\n2 2 return-void\n.end\n",
			code:    fault.FMT033MissingInstruction,
		},
		{
			name:    "target inside an instruction",
			listing: ".method m 4\n0 2 if-eqz -> 3\n2 2 return-void\n.end\n",
			code:    fault.FMT031TargetMidInstruction,
		},
		{
			name:    "instruction over a decoded one",
			listing: ".method m 6\n0 2 goto -> 4\n2 4 const-wide\n4 2 goto -> 2\n.end\n",
			code:    fault.FMT021OverlappingInstruction,
		},
		{
			name:    "falls off the end",
			listing: ".method m 2\n0 2 nop\n.end\n",
			code:    fault.FMT012FallthroughOutOfBounds,
		},
		{
			name:    "target out of bounds",
			listing: ".method m 4\n0 2 goto -> 8\n2 2 return-void\n.end\n",
			code:    fault.FMT010TargetOutOfBounds,
		},
		{
			name:    "instruction out of bounds",
			listing: ".method m 4\n0 8 return-void\n.end\n",
			code:    fault.FMT011InstructionOutOfBounds,
		},
		{
			name:    "handler without instruction",
			listing: ".method m 4\n0 2 return-void\n.try 0 2 catchall 3\n.end\n",
			code:    fault.FMT033MissingInstruction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(method(t, tt.listing), WithLogger(zaptest.NewLogger(t)))
			requireCode(t, err, tt.code)
		})
	}
}

func TestBuildHierarchy(t *testing.T) {
	tries := []bytecode.TryRegion{
		{Start: 20, Size: 10},
		{Start: 0, Size: 40},
		{Start: 0, Size: 10},
		{Start: 22, Size: 4},
	}

	h, err := BuildHierarchy(tries, 40)
	require.NoError(t, err)

	region := func(n tree.Node) *bytecode.TryRegion {
		return n.Payload().(*bytecode.TryRegion)
	}

	top := h.Root().Children()
	require.Len(t, top, 1)
	require.Equal(t, &tries[1], region(top[0]))

	inner := top[0].Children()
	require.Len(t, inner, 2)
	require.Equal(t, &tries[2], region(inner[0]))
	require.Equal(t, &tries[0], region(inner[1]))
	require.Equal(t, inner[0], inner[1].Left())

	deepest := inner[1].Children()
	require.Len(t, deepest, 1)
	require.Equal(t, &tries[3], region(deepest[0]))
}

func TestBuildHierarchyErrors(t *testing.T) {
	tests := []struct {
		name  string
		tries []bytecode.TryRegion
		code  fault.Code
	}{
		{
			name:  "partial overlap",
			tries: []bytecode.TryRegion{{Start: 0, Size: 20}, {Start: 10, Size: 20}},
			code:  fault.FMT040TryPartialOverlap,
		},
		{
			name:  "partial overlap at a deeper level",
			tries: []bytecode.TryRegion{{Start: 0, Size: 40}, {Start: 0, Size: 20}, {Start: 10, Size: 20}},
			code:  fault.FMT040TryPartialOverlap,
		},
		{
			name:  "empty region",
			tries: []bytecode.TryRegion{{Start: 10}},
			code:  fault.FMT041TryBoundary,
		},
		{
			name:  "past the end",
			tries: []bytecode.TryRegion{{Start: 30, Size: 20}},
			code:  fault.FMT041TryBoundary,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := BuildHierarchy(tt.tries, 40)
			requireCode(t, err, tt.code)
		})
	}
}

func TestReconcileNested(t *testing.T) {
	m := method(t, nested)
	tr, _, err := reconstruct(t, m, m.Tries)
	require.NoError(t, err)
	requireCoverage(t, tr)

	var buf bytes.Buffer
	require.NoError(t, tr.Dump(&buf))
	want := `root [0x0000,0x006e)
  try [0x0000,0x0064) catchall 0x0064
    guarded [0x0000,0x0064)
      insn [0x0000,0x000a) nop
      insn [0x000a,0x0014) nop
      try [0x0014,0x0028) catch Ljava/lang/Exception; 0x0064
        guarded [0x0014,0x0028)
          insn [0x0014,0x001e) nop
          insn [0x001e,0x0028) nop
      insn [0x0028,0x0032) nop
      insn [0x0032,0x003c) nop
      insn [0x003c,0x0046) nop
      insn [0x0046,0x0050) nop
      insn [0x0050,0x005a) nop
      insn [0x005a,0x0064) return-void
  insn [0x0064,0x006e) return-void
`
	require.Equal(t, want, buf.String())

	outer := tr.Root().Children()[0]
	require.Equal(t, tree.KindTry, outer.Kind())
	require.Equal(t, 1, outer.ChildCount())

	leaf, ok := tr.NodeAt(20)
	require.True(t, ok)
	innerTry := leaf.Parent().Parent()
	require.Equal(t, tree.KindTry, innerTry.Kind())
	require.Equal(t, outer.Children()[0], innerTry.Parent(), "inner try sits among the outer guarded nodes")

	var ancestors []tree.Node
	for n := leaf.Parent(); !n.IsZero(); n = n.Parent() {
		ancestors = append(ancestors, n)
	}
	require.Contains(t, ancestors, outer)
}

func TestReconcileSplitsHandlerBlock(t *testing.T) {
	m := method(t, `
.method split 70
0 10 if-eqz -> 50
10 40 nop
50 10 nop
60 10 return-void
.try 0 10 catchall 60
.end
`)

	log := zaptest.NewLogger(t)
	tr, err := Build(m, WithLogger(log))
	require.NoError(t, err)
	g, err := flow.Build(m, flow.WithLogger(log))
	require.NoError(t, err)

	b, ok := g.BlockAt(60)
	require.True(t, ok)
	require.Equal(t, uint32(50), b.Offset())
	require.Equal(t, uint32(70), b.End())

	require.NoError(t, Reconcile(tr, g, m.Tries, WithLogger(log)))

	require.Equal(t, uint32(60), b.End())
	tail, ok := g.BlockAt(60)
	require.True(t, ok)
	require.Equal(t, uint32(60), tail.Offset())
	require.Equal(t, uint32(70), tail.End())
	require.Equal(t, []*flow.Block{tail}, b.Successors())
	require.Equal(t, []*flow.Block{b}, tail.Predecessors())

	try := tr.Root().Children()[0]
	require.Equal(t, tree.KindTry, try.Kind())
	require.Equal(t, uint32(0), try.Offset())
	require.Equal(t, uint32(10), try.End())
}

func TestReconcileEqualRanges(t *testing.T) {
	m := method(t, straight)
	tries := []bytecode.TryRegion{
		{Start: 0, Size: 20, CatchAll: 30, HasCatchAll: true},
		{Start: 0, Size: 20, CatchAll: 20, HasCatchAll: true},
	}

	tr, g, err := reconstruct(t, m, tries)
	require.NoError(t, err)

	outer := tr.Root().Children()[0]
	require.Equal(t, Handlers{Region: &tries[0]}, outer.Payload())
	inner := outer.Children()[0].Children()[0]
	require.Equal(t, tree.KindTry, inner.Kind())
	require.Equal(t, Handlers{Region: &tries[1]}, inner.Payload())

	for _, off := range []uint32{20, 30} {
		b, ok := g.BlockAt(off)
		require.True(t, ok)
		require.Equal(t, off, b.Offset())
	}
}

func TestReconcileErrors(t *testing.T) {
	tests := []struct {
		name  string
		tries []bytecode.TryRegion
		code  fault.Code
	}{
		{
			name: "partial overlap",
			tries: []bytecode.TryRegion{
				{Start: 0, Size: 20, CatchAll: 30, HasCatchAll: true},
				{Start: 10, Size: 20, CatchAll: 30, HasCatchAll: true},
			},
			code: fault.FMT040TryPartialOverlap,
		},
		{
			name:  "boundary inside an instruction",
			tries: []bytecode.TryRegion{{Start: 5, Size: 10, CatchAll: 30, HasCatchAll: true}},
			code:  fault.FMT041TryBoundary,
		},
		{
			name:  "handler out of the method",
			tries: []bytecode.TryRegion{{Start: 0, Size: 10, CatchAll: 50, HasCatchAll: true}},
			code:  fault.FMT042DanglingHandler,
		},
		{
			name: "handler inside an instruction",
			tries: []bytecode.TryRegion{{
				Start:    0,
				Size:     10,
				Handlers: []bytecode.Handler{{Type: "Ljava/lang/Exception;", Offset: 15}},
			}},
			code: fault.FMT031TargetMidInstruction,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := reconstruct(t, method(t, straight), tt.tries)
			requireCode(t, err, tt.code)
		})
	}
}
