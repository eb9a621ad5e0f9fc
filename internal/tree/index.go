package tree

import (
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// span is an entry of the offset index: the half open range [lo, hi) owned
// by leaf id.
type span struct {
	lo, hi uint32
	id     ID
}

// Cmp orders spans as "disjoint by position". Overlapping spans compare equal,
// which lets InsertReturn hand back the owner of an already taken byte.
func (s *span) Cmp(other *span) int {
	if s.hi <= other.lo {
		return -1
	}
	if s.lo >= other.hi {
		return 1
	}
	return 0
}

func probe(offset uint32) *span {
	return &span{lo: offset, hi: offset + 1}
}

// register puts a leaf into the offset index.
func (t *Tree) register(id ID) error {
	r := t.rec(id)
	s := &span{lo: r.lo, hi: r.hi, id: id}

	existing := t.index.InsertReturn(s)
	if existing == s {
		return nil
	}

	if existing.lo == s.lo {
		return fault.At(
			fault.FMT020DuplicateOffset,
			s.lo,
			"%s already registered at this offset",
			Node{t: t, id: existing.id},
		)
	}

	return fault.At(
		fault.FMT021OverlappingInstruction,
		s.lo,
		"[0x%04x,0x%04x) overlaps %s",
		s.lo,
		s.hi,
		Node{t: t, id: existing.id},
	)
}

// rewrite replaces the index entry of leaf old with the given leaves, which
// must exactly tile the old range. The entry is mutated in place and the rest
// are inserted next to it.
func (t *Tree) rewrite(old ID, pieces []ID) {
	r := t.rec(old)
	s := t.index.Search(probe(r.lo))
	if s == nil || s.id != old {
		panic("tree: split leaf is missing from the offset index")
	}

	first := t.rec(pieces[0])
	*s = span{lo: first.lo, hi: first.hi, id: pieces[0]}

	for _, id := range pieces[1:] {
		p := t.rec(id)
		ns := &span{lo: p.lo, hi: p.hi, id: id}
		if t.index.InsertReturn(ns) != ns {
			panic("tree: split pieces overlap an indexed leaf")
		}
	}
}
