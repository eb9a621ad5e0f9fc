package tree

import (
	"bytes"
	"fmt"
	"reflect"
	"testing"

	"github.com/sirkon/deepequal"
	"github.com/stretchr/testify/require"

	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// walkFixture builds
//
//	root [0,16)
//	  A [0,4)
//	  G
//	    B [4,8)
//	    C [8,12)
//	  D [12,16)
func walkFixture(t *testing.T, opts ...Option) *Tree {
	t.Helper()

	tr := New(16, opts...)
	root := tr.Root()
	leaf(t, tr, root, KindInstruction, 0, 4, "A")
	b := leaf(t, tr, root, KindInstruction, 4, 4, "B")
	c := leaf(t, tr, root, KindInstruction, 8, 4, "C")
	leaf(t, tr, root, KindInstruction, 12, 4, "D")

	g := tr.NewNode(KindGroup, 0, 0, label("G"))
	require.NoError(t, tr.Group(root, g, []Node{b, c}))

	return tr
}

func nameOf(n Node) string {
	if l, ok := n.Payload().(label); ok {
		return string(l)
	}

	return n.Kind().String()
}

type rule struct {
	name   string
	ev     Event
	action Action
}

func recordWalk(tr *Tree, mode Mode, dir Direction, rules ...rule) ([]string, error) {
	var got []string
	err := tr.Walk(tr.Root(), mode, dir, func(n Node, ev Event) Action {
		name := nameOf(n)
		if mode == PostThenSelf || mode == SelfThenChildren {
			got = append(got, name)
		} else {
			got = append(got, fmt.Sprintf("%s %s", ev, name))
		}

		for _, r := range rules {
			if r.name == name && r.ev == ev {
				return r.action
			}
		}
		return Continue
	})

	return got, err
}

func TestWalk(t *testing.T) {
	tests := []struct {
		name  string
		mode  Mode
		dir   Direction
		rules []rule
		want  []string
	}{
		{
			name: "self then children",
			mode: SelfThenChildren,
			want: []string{"root", "A", "G", "B", "C", "D"},
		},
		{
			name: "self then children reversed",
			mode: SelfThenChildren,
			dir:  Reverse,
			want: []string{"root", "D", "G", "C", "B", "A"},
		},
		{
			name:  "self then children skip children",
			mode:  SelfThenChildren,
			rules: []rule{{"G", Visit, SkipChildren}},
			want:  []string{"root", "A", "G", "D"},
		},
		{
			name:  "self then children skip siblings",
			mode:  SelfThenChildren,
			rules: []rule{{"B", Visit, SkipSiblings}},
			want:  []string{"root", "A", "G", "B", "D"},
		},
		{
			name:  "self then children skip siblings at top level",
			mode:  SelfThenChildren,
			rules: []rule{{"A", Visit, SkipSiblings}},
			want:  []string{"root", "A"},
		},
		{
			name:  "self then children stop",
			mode:  SelfThenChildren,
			rules: []rule{{"B", Visit, Stop}},
			want:  []string{"root", "A", "G", "B"},
		},
		{
			name: "post then self",
			mode: PostThenSelf,
			want: []string{"A", "B", "C", "G", "D", "root"},
		},
		{
			name: "post then self reversed",
			mode: PostThenSelf,
			dir:  Reverse,
			want: []string{"D", "C", "B", "G", "A", "root"},
		},
		{
			name:  "post then self skip siblings",
			mode:  PostThenSelf,
			rules: []rule{{"B", Visit, SkipSiblings}},
			want:  []string{"A", "B", "G", "D", "root"},
		},
		{
			name:  "post then self skip children is a no-op",
			mode:  PostThenSelf,
			rules: []rule{{"G", Visit, SkipChildren}},
			want:  []string{"A", "B", "C", "G", "D", "root"},
		},
		{
			name:  "post then self stop",
			mode:  PostThenSelf,
			rules: []rule{{"C", Visit, Stop}},
			want:  []string{"A", "B", "C"},
		},
		{
			name: "enter exit",
			mode: EnterExit,
			want: []string{
				"enter root", "leaf A", "enter G", "leaf B", "leaf C", "exit G", "leaf D", "exit root",
			},
		},
		{
			name: "enter exit reversed",
			mode: EnterExit,
			dir:  Reverse,
			want: []string{
				"enter root", "leaf D", "enter G", "leaf C", "leaf B", "exit G", "leaf A", "exit root",
			},
		},
		{
			name:  "enter exit skip children",
			mode:  EnterExit,
			rules: []rule{{"G", Enter, SkipChildren}},
			want:  []string{"enter root", "leaf A", "enter G", "exit G", "leaf D", "exit root"},
		},
		{
			name:  "enter exit skip siblings on enter",
			mode:  EnterExit,
			rules: []rule{{"G", Enter, SkipSiblings}},
			want:  []string{"enter root", "leaf A", "enter G", "exit G", "exit root"},
		},
		{
			name:  "enter exit skip siblings on leaf",
			mode:  EnterExit,
			rules: []rule{{"B", Leaf, SkipSiblings}},
			want:  []string{"enter root", "leaf A", "enter G", "leaf B", "exit G", "leaf D", "exit root"},
		},
		{
			name:  "enter exit stop on exit",
			mode:  EnterExit,
			rules: []rule{{"G", Exit, Stop}},
			want:  []string{"enter root", "leaf A", "enter G", "leaf B", "leaf C", "exit G"},
		},
		{
			name: "full enter exit",
			mode: FullEnterExit,
			want: []string{
				"enter root", "leaf A", "transit root",
				"enter G", "leaf B", "transit G", "leaf C", "exit G",
				"transit root", "leaf D", "exit root",
			},
		},
		{
			name: "full enter exit reversed",
			mode: FullEnterExit,
			dir:  Reverse,
			want: []string{
				"enter root", "leaf D", "transit root",
				"enter G", "leaf C", "transit G", "leaf B", "exit G",
				"transit root", "leaf A", "exit root",
			},
		},
		{
			name:  "full enter exit skip children on transit",
			mode:  FullEnterExit,
			rules: []rule{{"G", Transit, SkipChildren}},
			want: []string{
				"enter root", "leaf A", "transit root",
				"enter G", "leaf B", "transit G", "exit G",
				"transit root", "leaf D", "exit root",
			},
		},
		{
			name:  "full enter exit skip siblings on transit",
			mode:  FullEnterExit,
			rules: []rule{{"G", Transit, SkipSiblings}},
			want: []string{
				"enter root", "leaf A", "transit root",
				"enter G", "leaf B", "transit G", "exit G",
				"exit root",
			},
		},
		{
			name:  "full enter exit no transit after skipped siblings",
			mode:  FullEnterExit,
			rules: []rule{{"A", Leaf, SkipSiblings}},
			want:  []string{"enter root", "leaf A", "exit root"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := recordWalk(walkFixture(t), tt.mode, tt.dir, tt.rules...)
			require.NoError(t, err)

			if !reflect.DeepEqual(tt.want, got) {
				deepequal.SideBySide(t, "events", tt.want, got)
			}
		})
	}
}

func TestWalkSubtree(t *testing.T) {
	tr := walkFixture(t)
	g := tr.Root().Children()[1]

	var got []string
	err := tr.Walk(g, PostThenSelf, Forward, func(n Node, ev Event) Action {
		got = append(got, nameOf(n))
		return SkipSiblings
	})
	require.NoError(t, err)
	require.Equal(t, []string{"B", "G"}, got)
}

func TestWalkBudget(t *testing.T) {
	tr := walkFixture(t, WithMaxSteps(3))

	got, err := recordWalk(tr, SelfThenChildren, Forward)
	requireCode(t, err, fault.INV140WalkBudget)
	require.Equal(t, []string{"root", "A", "G"}, got)
}

func TestDump(t *testing.T) {
	tr := walkFixture(t)

	var buf bytes.Buffer
	require.NoError(t, tr.Dump(&buf))

	want := `root [0x0000,0x0010)
  insn [0x0000,0x0004) A
  group [0x0004,0x000c) G
    insn [0x0004,0x0008) B
    insn [0x0008,0x000c) C
  insn [0x000c,0x0010) D
`
	require.Equal(t, want, buf.String())
}
