package flow

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/digraph"
)

// BlockKind tells code blocks from synthetic ones.
type BlockKind int

const (
	blockInvalid BlockKind = iota

	// KindCode holds instructions.
	KindCode

	// KindRoot is the synthetic entry.
	KindRoot

	// KindMerge joins exit candidates.
	KindMerge
)

func (k BlockKind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindRoot:
		return "root"
	case KindMerge:
		return "merge"
	default:
		return fmt.Sprintf("invalid(%d)", int(k))
	}
}

// Block is a basic block.
type Block struct {
	id    int
	kind  BlockKind
	start uint32
	insns []*bytecode.Instruction

	preds []*Block
	succs []*Block

	// Edge membership by block id.
	predSet bitset.BitSet
	succSet bitset.BitSet
}

// ID is the creation rank of the block within its graph.
func (b *Block) ID() int {
	return b.id
}

func (b *Block) Kind() BlockKind {
	return b.kind
}

// Offset returns the offset of the first instruction.
func (b *Block) Offset() uint32 {
	return b.start
}

// Size returns the byte size of the bound instructions.
func (b *Block) Size() uint32 {
	if len(b.insns) == 0 {
		return 0
	}

	return b.insns[len(b.insns)-1].End() - b.start
}

// End returns the offset right past the last instruction.
func (b *Block) End() uint32 {
	return b.start + b.Size()
}

func (b *Block) Instructions() []*bytecode.Instruction {
	return b.insns
}

func (b *Block) Successors() []*Block {
	return b.succs
}

func (b *Block) Predecessors() []*Block {
	return b.preds
}

func (b *Block) IsEntry() bool {
	return digraph.IsEntry(b)
}

func (b *Block) IsExit() bool {
	return digraph.IsExit(b)
}

// HasSuccessor reports whether there is an edge from b to s.
func (b *Block) HasSuccessor(s *Block) bool {
	return b.succSet.Test(uint(s.id))
}

// HasPredecessor reports whether there is an edge from p to b.
func (b *Block) HasPredecessor(p *Block) bool {
	return b.predSet.Test(uint(p.id))
}

// String names the block: the start offset for code blocks.
func (b *Block) String() string {
	switch b.kind {
	case KindCode:
		return fmt.Sprintf("0x%04x", b.start)
	case KindRoot:
		return "root"
	default:
		return fmt.Sprintf("%s%d", b.kind, b.id)
	}
}

func (b *Block) last() *bytecode.Instruction {
	if len(b.insns) == 0 {
		return nil
	}

	return b.insns[len(b.insns)-1]
}

func (b *Block) addSucc(s *Block) {
	b.succs = append(b.succs, s)
	b.succSet.Set(uint(s.id))
	s.preds = append(s.preds, b)
	s.predSet.Set(uint(b.id))
}

func (b *Block) removeSucc(s *Block) {
	b.succs = without(b.succs, s)
	b.succSet.Clear(uint(s.id))
	s.preds = without(s.preds, b)
	s.predSet.Clear(uint(b.id))
}

func without(blocks []*Block, b *Block) []*Block {
	res := blocks[:0]
	for _, v := range blocks {
		if v != b {
			res = append(res, v)
		}
	}

	return res
}
