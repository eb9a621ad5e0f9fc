package tree

import (
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// AddChild appends node to the children of parent. With a non-nil less the
// node goes right before the first child that is not less than it.
// Leaves are registered in the offset index.
func (t *Tree) AddChild(parent, node Node, less LessFunc) error {
	if err := t.checkAlive(parent); err != nil {
		return err
	}
	if err := t.checkAlive(node); err != nil {
		return err
	}

	nr := t.rec(node.id)
	if nr.parent != noID || node.id == t.root {
		return fault.New(fault.INV100AlreadyParented, "%s is already a child of %s", node, node.Parent())
	}
	if node.id == parent.id {
		return fault.New(fault.INV100AlreadyParented, "%s cannot be its own child", node)
	}

	pos := len(t.rec(parent.id).children)
	if less != nil {
		for i, c := range t.rec(parent.id).children {
			if !less(Node{t: t, id: c}, node) {
				pos = i
				break
			}
		}
	}

	if nr.kind.Indexed() {
		if err := t.register(node.id); err != nil {
			return err
		}
	}

	pr := t.rec(parent.id)
	pr.children = append(pr.children, noID)
	copy(pr.children[pos+1:], pr.children[pos:])
	pr.children[pos] = node.id

	nr = t.rec(node.id)
	nr.parent = parent.id
	nr.left = noID
	nr.right = noID
	if pos > 0 {
		left := pr.children[pos-1]
		nr.left = left
		t.rec(left).right = node.id
	}
	if pos+1 < len(pr.children) {
		right := pr.children[pos+1]
		nr.right = right
		t.rec(right).left = node.id
	}

	return nil
}

// Piece describes the node a Factory builds for a split.
type Piece struct {
	Size    uint32
	Kind    Kind
	Payload any
}

// Factory builds the inner piece of a split at the given offset.
type Factory func(offset uint32) (Piece, error)

// Split replaces leaf with up to three leaves: [lo, at), the piece built by
// inner at [at, at+size) and the remainder up to the end of leaf. The outer
// pieces keep the kind and payload of leaf. It returns the inner node.
func (t *Tree) Split(leaf Node, at uint32, inner Factory) (Node, error) {
	if err := t.checkAlive(leaf); err != nil {
		return Node{}, err
	}

	lr := t.rec(leaf.id)
	if !lr.kind.Indexed() {
		return Node{}, fault.At(fault.INV130SplitOutOfRange, at, "%s is not a leaf", leaf)
	}
	if lr.parent == noID {
		return Node{}, fault.At(fault.INV130SplitOutOfRange, at, "%s is detached", leaf)
	}
	lo, hi := lr.lo, lr.hi
	if at < lo || at >= hi {
		return Node{}, fault.At(fault.INV130SplitOutOfRange, at, "outside of %s", leaf)
	}

	piece, err := inner(at)
	if err != nil {
		return Node{}, err
	}
	if piece.Size == 0 || !piece.Kind.Indexed() {
		return Node{}, fault.At(fault.INV130SplitOutOfRange, at, "factory built an empty or non-leaf %s piece", piece.Kind)
	}
	if uint64(at)+uint64(piece.Size) > uint64(hi) {
		return Node{}, fault.At(
			fault.INV130SplitOutOfRange,
			at,
			"piece of size %d does not fit in %s",
			piece.Size,
			leaf,
		)
	}

	kind, payload := lr.kind, lr.payload
	var pieces []ID
	if at > lo {
		pieces = append(pieces, t.alloc(record{kind: kind, lo: lo, hi: at, payload: payload}))
	}
	innerID := t.alloc(record{kind: piece.Kind, lo: at, hi: at + piece.Size, payload: piece.Payload})
	pieces = append(pieces, innerID)
	if at+piece.Size < hi {
		pieces = append(pieces, t.alloc(record{kind: kind, lo: at + piece.Size, hi: hi, payload: payload}))
	}

	// The arena may have grown, refetch.
	lr = t.rec(leaf.id)
	parent, left, right := lr.parent, lr.left, lr.right

	t.rewrite(leaf.id, pieces)

	pr := t.rec(parent)
	pos := indexOf(pr.children, leaf.id)
	children := make([]ID, 0, len(pr.children)+len(pieces)-1)
	children = append(children, pr.children[:pos]...)
	children = append(children, pieces...)
	children = append(children, pr.children[pos+1:]...)
	pr.children = children

	prev := left
	for _, id := range pieces {
		r := t.rec(id)
		r.parent = parent
		r.left = prev
		if prev != noID {
			t.rec(prev).right = id
		}
		prev = id
	}
	t.rec(prev).right = right
	if right != noID {
		t.rec(right).left = prev
	}

	lr = t.rec(leaf.id)
	lr.dead = true
	lr.parent = noID
	lr.left = noID
	lr.right = noID

	return Node{t: t, id: innerID}, nil
}

// Group moves run, a contiguous slice of the children of parent in child
// order, under newParent, which takes the run's place among the children.
// newParent must be a detached grouping node without children.
func (t *Tree) Group(parent, newParent Node, run []Node) error {
	if err := t.checkAlive(parent); err != nil {
		return err
	}
	if err := t.checkAlive(newParent); err != nil {
		return err
	}

	gr := t.rec(newParent.id)
	if gr.parent != noID {
		return fault.New(fault.INV100AlreadyParented, "group node %s is already a child of %s", newParent, newParent.Parent())
	}
	if !gr.kind.Grouping() || len(gr.children) != 0 {
		return fault.New(fault.INV120GroupNotContiguous, "%s is not an empty grouping node", newParent)
	}
	if len(run) == 0 {
		return fault.New(fault.INV120GroupNotContiguous, "empty run")
	}

	for _, n := range run {
		if err := t.checkAlive(n); err != nil {
			return err
		}
		if t.rec(n.id).parent != parent.id {
			return fault.New(fault.INV121GroupParentMismatch, "%s is a child of %s, not of %s", n, n.Parent(), parent)
		}
	}

	pr := t.rec(parent.id)
	pos := indexOf(pr.children, run[0].id)
	if pos+len(run) > len(pr.children) {
		return fault.New(fault.INV120GroupNotContiguous, "run of %d nodes from %s overruns %s", len(run), run[0], parent)
	}
	for i, n := range run {
		if pr.children[pos+i] != n.id {
			return fault.New(fault.INV120GroupNotContiguous, "%s is not next to %s in %s", n, run[0], parent)
		}
	}

	ids := make([]ID, len(run))
	for i, n := range run {
		ids[i] = n.id
	}

	children := make([]ID, 0, len(pr.children)-len(run)+1)
	children = append(children, pr.children[:pos]...)
	children = append(children, newParent.id)
	children = append(children, pr.children[pos+len(run):]...)
	pr.children = children

	first, last := t.rec(ids[0]), t.rec(ids[len(ids)-1])
	left, right := first.left, last.right
	first.left = noID
	last.right = noID
	for _, id := range ids {
		t.rec(id).parent = newParent.id
	}

	gr = t.rec(newParent.id)
	gr.children = ids
	gr.parent = parent.id
	gr.left = left
	gr.right = right
	if left != noID {
		t.rec(left).right = newParent.id
	}
	if right != noID {
		t.rec(right).left = newParent.id
	}

	return nil
}

func (t *Tree) checkAlive(n Node) error {
	if n.t != t {
		panic("tree: node of a foreign tree")
	}
	if t.rec(n.id).dead {
		return fault.New(fault.INV101DeadNode, "%s", n)
	}

	return nil
}

func indexOf(ids []ID, id ID) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}

	panic("tree: child is missing from its parent")
}
