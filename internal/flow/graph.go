package flow

import (
	"sort"

	"go.uber.org/zap"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/config"
	"github.com/BlueSkeye/ApkRe-sub000/internal/digraph"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Graph is the control-flow graph of one method.
type Graph struct {
	codeSize uint32
	blocks   []*Block
	root     *Block
	exit     *Block

	// insns are the bound instructions in offset order.
	insns []*bytecode.Instruction

	// starts maps block start offsets to their code blocks.
	starts map[uint32]*Block

	// owner maps instruction offsets to the code block holding them.
	owner map[uint32]*Block

	selfLoops config.SelfLoopPolicy
	log       *zap.Logger
}

// CodeSize returns the byte-code length of the method.
func (g *Graph) CodeSize() uint32 {
	return g.codeSize
}

// Blocks returns every block in creation order.
func (g *Graph) Blocks() []*Block {
	return g.blocks
}

// Entry returns the single block without predecessors.
func (g *Graph) Entry() *Block {
	return g.root
}

// Exit returns the single block without successors.
func (g *Graph) Exit() *Block {
	return g.exit
}

// BlockAt returns the code block holding the byte at offset.
func (g *Graph) BlockAt(offset uint32) (*Block, bool) {
	insn, ok := g.instructionAt(offset)
	if !ok {
		return nil, false
	}

	return g.owner[insn.Offset], true
}

// Covering returns the code block whose range contains [offset, offset+size).
func (g *Graph) Covering(offset, size uint32) (*Block, bool) {
	b, ok := g.BlockAt(offset)
	if !ok {
		return nil, false
	}
	if uint64(offset)+uint64(size) > uint64(b.End()) {
		return nil, false
	}

	return b, true
}

// SplitAt makes offset a block boundary and returns the block starting there.
func (g *Graph) SplitAt(offset uint32) (*Block, error) {
	if offset >= g.codeSize {
		return nil, fault.At(fault.FMT010TargetOutOfBounds, offset, "method is 0x%04x bytes long", g.codeSize)
	}
	if b, ok := g.starts[offset]; ok {
		return b, nil
	}

	b, ok := g.owner[offset]
	if !ok {
		return nil, g.missing(offset)
	}

	tail, err := g.split(b, offset)
	if err != nil {
		return nil, err
	}
	if g.exit == b {
		g.exit = tail
	}

	return tail, nil
}

// AdjacencyMatrix returns the boolean adjacency matrix of the blocks,
// numbered in creation order.
func (g *Graph) AdjacencyMatrix() (*digraph.Matrix, *digraph.Index[*Block]) {
	idx := digraph.NewIndex(g.blocks)
	return digraph.NewMatrix(idx), idx
}

// CodeBlocks returns code blocks in offset order.
func (g *Graph) CodeBlocks() []*Block {
	var res []*Block
	for _, b := range g.blocks {
		if b.kind == KindCode {
			res = append(res, b)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].start < res[j].start
	})

	return res
}

func (g *Graph) newBlock(kind BlockKind, start uint32) *Block {
	b := &Block{
		id:    len(g.blocks),
		kind:  kind,
		start: start,
	}
	g.blocks = append(g.blocks, b)
	if kind == KindCode {
		g.starts[start] = b
	}

	g.log.Debug("new block", zap.Stringer("block", b), zap.Stringer("kind", kind))
	return b
}

// link adds an edge from a to b unless it already exists.
func (g *Graph) link(a, b *Block) error {
	if a == b && g.selfLoops != config.SelfLoopsAllow {
		return fault.At(fault.INV110SelfLink, a.start, "block %s links to itself", a)
	}
	if a.HasSuccessor(b) {
		return nil
	}

	a.addSucc(b)
	return nil
}

// split moves the instructions of b from offset on into a new block which
// takes over the successors of b and becomes its only successor.
func (g *Graph) split(b *Block, offset uint32) (*Block, error) {
	i := sort.Search(len(b.insns), func(i int) bool {
		return b.insns[i].Offset >= offset
	})
	if i == 0 || i == len(b.insns) || b.insns[i].Offset != offset {
		return nil, fault.At(fault.FMT031TargetMidInstruction, offset, "in block %s", b)
	}

	tail := g.newBlock(KindCode, offset)
	tail.insns = append(tail.insns, b.insns[i:]...)
	b.insns = b.insns[:i:i]
	for _, insn := range tail.insns {
		g.owner[insn.Offset] = tail
	}

	// A self loop of b now goes from its tail back to its head.
	succs := append([]*Block(nil), b.succs...)
	for _, s := range succs {
		b.removeSucc(s)
		tail.addSucc(s)
	}
	if err := g.link(b, tail); err != nil {
		return nil, err
	}

	g.log.Debug("split block", zap.Stringer("head", b), zap.Stringer("tail", tail))
	return tail, nil
}

// instructionAt finds the bound instruction containing offset.
func (g *Graph) instructionAt(offset uint32) (*bytecode.Instruction, bool) {
	i := sort.Search(len(g.insns), func(i int) bool {
		return g.insns[i].End() > offset
	})
	if i == len(g.insns) || g.insns[i].Offset > offset {
		return nil, false
	}

	return g.insns[i], true
}

// missing explains why no block starts at offset.
func (g *Graph) missing(offset uint32) error {
	if insn, ok := g.instructionAt(offset); ok {
		return fault.At(fault.FMT031TargetMidInstruction, offset, "inside %s at 0x%04x", insn, insn.Offset)
	}

	return fault.At(fault.FMT033MissingInstruction, offset, "no instruction starts here")
}
