package tree

import (
	"fmt"

	"github.com/sirkon/rbtree"
)

// ID identifies a node within its tree.
type ID int32

const noID ID = -1

// Kind is the node kind.
type Kind int

const (
	kindInvalid Kind = iota

	// KindRoot spans the whole method.
	KindRoot

	// KindUnresolved is a leaf covering bytes not decoded yet.
	KindUnresolved

	// KindInstruction is a leaf covering one decoded instruction.
	KindInstruction

	// KindRegion is a node with an intrinsic range that is not a leaf of
	// the offset index.
	KindRegion

	// KindGroup is a plain grouping node.
	KindGroup

	// KindTry holds the guarded node of one try region.
	KindTry

	// KindGuarded wraps the nodes protected by a try region.
	KindGuarded
)

var kindValueMap = map[Kind]string{
	KindRoot:        "root",
	KindUnresolved:  "unresolved",
	KindInstruction: "insn",
	KindRegion:      "region",
	KindGroup:       "group",
	KindTry:         "try",
	KindGuarded:     "guarded",
}

func (k Kind) String() string {
	v, ok := kindValueMap[k]
	if !ok {
		return fmt.Sprintf("invalid(%d)", k)
	}

	return v
}

// Indexed reports whether nodes of the kind are registered in the offset index.
func (k Kind) Indexed() bool {
	return k == KindUnresolved || k == KindInstruction
}

// Grouping reports whether the range of nodes of the kind is computed from
// their children.
func (k Kind) Grouping() bool {
	switch k {
	case KindGroup, KindTry, KindGuarded:
		return true
	default:
		return false
	}
}

type record struct {
	kind    Kind
	lo, hi  uint32
	payload any

	parent   ID
	left     ID
	right    ID
	children []ID

	dead bool
}

// Tree is an arena of nodes with a root and an offset index of its leaves.
type Tree struct {
	nodes    []record
	root     ID
	index    *rbtree.Tree[*span]
	maxSteps int
}

// Option tunes a Tree.
type Option func(t *Tree)

// WithMaxSteps bounds the number of handler calls of a single walk.
// Zero or negative means no bound.
func WithMaxSteps(n int) Option {
	return func(t *Tree) {
		t.maxSteps = n
	}
}

// New creates a tree whose root spans [0, size).
func New(size uint32, opts ...Option) *Tree {
	t := &Tree{
		index: rbtree.New[*span](),
	}
	for _, opt := range opts {
		opt(t)
	}

	t.root = t.alloc(record{
		kind: KindRoot,
		lo:   0,
		hi:   size,
	})

	return t
}

// Root returns the root node.
func (t *Tree) Root() Node {
	return Node{t: t, id: t.root}
}

// NewNode creates a detached node. Offset and size are ignored for grouping
// kinds.
func (t *Tree) NewNode(kind Kind, offset, size uint32, payload any) Node {
	switch {
	case kind == KindRoot:
		panic("tree: a tree has exactly one root")
	case kind == kindInvalid || kindValueMap[kind] == "":
		panic(fmt.Sprintf("tree: invalid node kind %d", kind))
	}

	r := record{
		kind:    kind,
		payload: payload,
	}
	if !kind.Grouping() {
		r.lo = offset
		r.hi = offset + size
	}

	return Node{t: t, id: t.alloc(r)}
}

// NodeAt returns the leaf owning the given offset.
func (t *Tree) NodeAt(offset uint32) (Node, bool) {
	s := t.index.Search(probe(offset))
	if s == nil {
		return Node{}, false
	}

	return Node{t: t, id: s.id}, true
}

func (t *Tree) alloc(r record) ID {
	r.parent = noID
	r.left = noID
	r.right = noID
	t.nodes = append(t.nodes, r)

	return ID(len(t.nodes) - 1)
}

func (t *Tree) rec(id ID) *record {
	return &t.nodes[id]
}

// bounds returns the range of a node, computing it for grouping nodes.
func (t *Tree) bounds(id ID) (lo, hi uint32) {
	r := t.rec(id)
	if !r.kind.Grouping() {
		return r.lo, r.hi
	}
	if len(r.children) == 0 {
		return 0, 0
	}

	lo, _ = t.bounds(r.children[0])
	_, hi = t.bounds(r.children[len(r.children)-1])
	return lo, hi
}

// Node is a handle to a node of a tree. The zero Node refers to nothing.
type Node struct {
	t  *Tree
	id ID
}

// IsZero reports whether n refers to nothing.
func (n Node) IsZero() bool {
	return n.t == nil
}

func (n Node) ID() ID {
	return n.id
}

func (n Node) Tree() *Tree {
	return n.t
}

func (n Node) Kind() Kind {
	return n.t.rec(n.id).kind
}

func (n Node) Payload() any {
	return n.t.rec(n.id).payload
}

func (n Node) Offset() uint32 {
	lo, _ := n.t.bounds(n.id)
	return lo
}

func (n Node) Size() uint32 {
	lo, hi := n.t.bounds(n.id)
	return hi - lo
}

// End returns the offset right past the node range.
func (n Node) End() uint32 {
	_, hi := n.t.bounds(n.id)
	return hi
}

// Contains reports whether the node range contains [offset, offset+size).
func (n Node) Contains(offset, size uint32) bool {
	lo, hi := n.t.bounds(n.id)
	return lo <= offset && offset+size <= hi
}

// Alive reports whether the node was not replaced by a split.
func (n Node) Alive() bool {
	return !n.t.rec(n.id).dead
}

func (n Node) Parent() Node {
	return n.handle(n.t.rec(n.id).parent)
}

func (n Node) Left() Node {
	return n.handle(n.t.rec(n.id).left)
}

func (n Node) Right() Node {
	return n.handle(n.t.rec(n.id).right)
}

func (n Node) IsLeaf() bool {
	return len(n.t.rec(n.id).children) == 0
}

func (n Node) ChildCount() int {
	return len(n.t.rec(n.id).children)
}

func (n Node) Children() []Node {
	ids := n.t.rec(n.id).children
	res := make([]Node, len(ids))
	for i, id := range ids {
		res[i] = Node{t: n.t, id: id}
	}

	return res
}

func (n Node) String() string {
	if n.IsZero() {
		return "<nil>"
	}

	lo, hi := n.t.bounds(n.id)
	return fmt.Sprintf("%s#%d [0x%04x,0x%04x)", n.Kind(), n.id, lo, hi)
}

func (n Node) handle(id ID) Node {
	if id == noID {
		return Node{}
	}

	return Node{t: n.t, id: id}
}

// LessFunc orders siblings for AddChild.
type LessFunc func(a, b Node) bool

// ByOffset orders nodes by their starting offset.
func ByOffset(a, b Node) bool {
	return a.Offset() < b.Offset()
}
