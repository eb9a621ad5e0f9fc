package ast

import (
	"sort"

	"github.com/sirkon/rbtree"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
	"github.com/BlueSkeye/ApkRe-sub000/internal/tree"
)

// regionSpan is a try region of the containment hierarchy together with the
// index of the regions directly nested into it.
type regionSpan struct {
	lo, hi uint32
	region *bytecode.TryRegion

	children *rbtree.Tree[*regionSpan]

	// nested keeps children in insertion order, which is start order.
	nested []*regionSpan
}

// Cmp orders spans as "disjoint by position", overlapping spans compare equal.
func (s *regionSpan) Cmp(other *regionSpan) int {
	if s.hi <= other.lo {
		return -1
	}
	if s.lo >= other.hi {
		return 1
	}
	return 0
}

func (s *regionSpan) contains(other *regionSpan) bool {
	return s.lo <= other.lo && other.hi <= s.hi
}

// attachInto inserts s at the level of parent. Regions come sorted by start
// and then by decreasing end, so an overlapping span already in place either
// contains s, and s goes one level down, or partially overlaps it.
func attachInto(parent, s *regionSpan) error {
	if parent.children == nil {
		parent.children = rbtree.New[*regionSpan]()
	}

	r := parent.children.InsertReturn(s)
	if r == s {
		parent.nested = append(parent.nested, s)
		return nil
	}

	if r.contains(s) {
		return attachInto(r, s)
	}

	return fault.At(
		fault.FMT040TryPartialOverlap,
		s.lo,
		"%s overlaps %s",
		s.region,
		r.region,
	)
}

// BuildHierarchy arranges try regions into a tree of region nodes where a
// region is a descendant of every region containing it. Regions with the
// same range nest in input order. Node payloads are the regions.
func BuildHierarchy(tries []bytecode.TryRegion, codeSize uint32, opts ...Option) (*tree.Tree, error) {
	o := collect(opts)

	spans := make([]*regionSpan, 0, len(tries))
	for i := range tries {
		r := &tries[i]
		if r.Size == 0 {
			return nil, fault.At(fault.FMT041TryBoundary, r.Start, "empty region %s", r)
		}
		if uint64(r.Start)+uint64(r.Size) > uint64(codeSize) {
			return nil, fault.At(fault.FMT041TryBoundary, r.Start, "%s ends past 0x%04x", r, codeSize)
		}
		spans = append(spans, &regionSpan{lo: r.Start, hi: r.End(), region: r})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].lo != spans[j].lo {
			return spans[i].lo < spans[j].lo
		}
		return spans[i].hi > spans[j].hi
	})

	top := &regionSpan{lo: 0, hi: codeSize}
	for _, s := range spans {
		if err := attachInto(top, s); err != nil {
			return nil, err
		}
	}

	h := tree.New(codeSize, tree.WithMaxSteps(o.maxSteps))
	var add func(parent tree.Node, s *regionSpan) error
	add = func(parent tree.Node, s *regionSpan) error {
		for _, c := range s.nested {
			n := h.NewNode(tree.KindRegion, c.lo, c.hi-c.lo, c.region)
			if err := h.AddChild(parent, n, tree.ByOffset); err != nil {
				return err
			}
			if err := add(n, c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(h.Root(), top); err != nil {
		return nil, err
	}

	return h, nil
}
