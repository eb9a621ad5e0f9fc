package flow

import (
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/zap"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/config"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Option tunes Build.
type Option func(b *builder)

// WithLogger sets the logger block creation and splits are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(b *builder) {
		b.g.log = log
	}
}

// WithSelfLoops sets whether a block may be its own successor, which is the
// shape of a loop made of a single block.
func WithSelfLoops(policy config.SelfLoopPolicy) Option {
	return func(b *builder) {
		b.g.selfLoops = policy
	}
}

type builder struct {
	g    *Graph
	open *Block

	// unreachable holds blocks started after a terminal instruction, which
	// nothing jumped to at the time.
	unreachable mapset.Set[*Block]
}

// Build builds the flow graph of the method.
func Build(m *bytecode.Method, opts ...Option) (*Graph, error) {
	g := &Graph{
		codeSize:  m.CodeSize,
		starts:    map[uint32]*Block{},
		owner:     map[uint32]*Block{},
		selfLoops: config.SelfLoopsAllow,
		log:       zap.NewNop(),
	}
	b := &builder{
		g:           g,
		unreachable: mapset.NewThreadUnsafeSet[*Block](),
	}
	for _, opt := range opts {
		opt(b)
	}
	g.log = g.log.With(zap.String("method", m.Name))

	insns := append([]*bytecode.Instruction(nil), m.Instructions...)
	sort.SliceStable(insns, func(i, j int) bool {
		return insns[i].Offset < insns[j].Offset
	})

	var prev *bytecode.Instruction
	for _, insn := range insns {
		if err := b.instruction(insn, prev); err != nil {
			return nil, err
		}
		prev = insn
	}

	for _, blk := range g.blocks {
		if len(blk.insns) == 0 {
			return nil, b.dangling(blk)
		}
	}

	if err := b.connectRoot(); err != nil {
		return nil, err
	}
	if err := b.normalizeExits(); err != nil {
		return nil, err
	}

	return g, nil
}

func (b *builder) instruction(insn, prev *bytecode.Instruction) error {
	g := b.g
	off := insn.Offset

	if insn.Size == 0 {
		return fault.At(fault.FMT011InstructionOutOfBounds, off, "%s has zero size", insn)
	}
	if uint64(off)+uint64(insn.Size) > uint64(g.codeSize) {
		return fault.At(fault.FMT011InstructionOutOfBounds, off, "%s ends past 0x%04x", insn, g.codeSize)
	}
	if prev != nil {
		if off == prev.Offset {
			return fault.At(fault.FMT020DuplicateOffset, off, "%s and %s", prev, insn)
		}
		if off < prev.End() {
			return fault.At(fault.FMT021OverlappingInstruction, off, "%s overlaps %s at 0x%04x", insn, prev, prev.Offset)
		}
	}

	// Falling into a block some branch already targets.
	if b.open != nil {
		if next, ok := g.starts[off]; ok && next != b.open {
			if err := g.link(b.open, next); err != nil {
				return err
			}
			b.open = nil
		}
	}

	if b.open == nil {
		if blk, ok := g.starts[off]; ok {
			b.open = blk
		} else {
			b.open = g.newBlock(KindCode, off)
			b.unreachable.Add(b.open)
		}
	}

	if err := b.bind(insn); err != nil {
		return err
	}

	targets, err := insn.BranchTargets()
	if err != nil {
		return err
	}
	for _, t := range targets {
		dest, err := b.target(t)
		if err != nil {
			return err
		}
		if err := g.link(b.open, dest); err != nil {
			return err
		}
	}

	if insn.ContinuesInSequence() {
		if insn.End() >= g.codeSize {
			return fault.At(fault.FMT012FallthroughOutOfBounds, off, "%s continues past 0x%04x", insn, g.codeSize)
		}

		if len(targets) > 0 {
			next, err := b.target(insn.End())
			if err != nil {
				return err
			}
			if err := g.link(b.open, next); err != nil {
				return err
			}
		}
	}

	if !insn.ContinuesInSequence() || len(targets) > 0 {
		b.open = nil
	}

	return nil
}

func (b *builder) bind(insn *bytecode.Instruction) error {
	g := b.g
	blk := b.open

	if last := blk.last(); last != nil {
		if last.End() != insn.Offset {
			return fault.At(
				fault.FMT030NonContiguousBind,
				insn.Offset,
				"block %s ends at 0x%04x",
				blk,
				last.End(),
			)
		}
	} else if blk.start != insn.Offset {
		return fault.At(fault.FMT030NonContiguousBind, insn.Offset, "block %s starts at 0x%04x", blk, blk.start)
	}

	blk.insns = append(blk.insns, insn)
	g.owner[insn.Offset] = blk
	g.insns = append(g.insns, insn)
	return nil
}

// target returns the block starting at offset t, creating or splitting
// one when needed.
func (b *builder) target(t uint32) (*Block, error) {
	g := b.g
	if t >= g.codeSize {
		return nil, fault.At(fault.FMT010TargetOutOfBounds, t, "method is 0x%04x bytes long", g.codeSize)
	}

	if blk, ok := g.starts[t]; ok {
		return blk, nil
	}

	if blk, ok := g.owner[t]; ok {
		tail, err := g.split(blk, t)
		if err != nil {
			return nil, err
		}
		if b.open == blk {
			b.open = tail
		}
		return tail, nil
	}

	if n := len(g.insns); n > 0 && t < g.insns[n-1].End() {
		return nil, g.missing(t)
	}

	return g.newBlock(KindCode, t), nil
}

// dangling explains why a target block never received an instruction.
func (b *builder) dangling(blk *Block) error {
	if insn, ok := b.g.instructionAt(blk.start); ok {
		return fault.At(fault.FMT031TargetMidInstruction, blk.start, "inside %s at 0x%04x", insn, insn.Offset)
	}

	return fault.At(fault.FMT032DanglingTarget, blk.start, "no instruction starts here")
}

// connectRoot creates the root and links it to every unreachable block left,
// in creation order.
func (b *builder) connectRoot() error {
	g := b.g
	g.root = g.newBlock(KindRoot, 0)

	visited := mapset.NewThreadUnsafeSet[*Block](g.root)
	for _, blk := range g.blocks {
		if !b.unreachable.Contains(blk) || visited.Contains(blk) {
			continue
		}

		if err := g.link(g.root, blk); err != nil {
			return err
		}
		reach(blk, visited)
	}

	return nil
}

// normalizeExits merges the blocks without successors pairwise until a single
// one remains.
func (b *builder) normalizeExits() error {
	g := b.g

	var candidates []*Block
	for _, blk := range reach(g.root, mapset.NewThreadUnsafeSet[*Block]()) {
		if blk.IsExit() {
			candidates = append(candidates, blk)
		}
	}

	if len(candidates) == 0 {
		exit := g.newBlock(KindMerge, 0)
		if err := g.link(g.root, exit); err != nil {
			return err
		}
		g.exit = exit
		g.log.Debug("method never returns, synthetic exit added")
		return nil
	}

	for len(candidates) > 1 {
		m := g.newBlock(KindMerge, 0)
		if err := g.link(candidates[0], m); err != nil {
			return err
		}
		if err := g.link(candidates[1], m); err != nil {
			return err
		}
		candidates = append(candidates[2:], m)
	}
	g.exit = candidates[0]

	return nil
}

// reach marks every block reachable from start, returning the newly marked
// ones in breadth first order.
func reach(start *Block, visited mapset.Set[*Block]) []*Block {
	visited.Add(start)
	res := []*Block{start}
	for i := 0; i < len(res); i++ {
		for _, s := range res[i].succs {
			if visited.Add(s) {
				res = append(res, s)
			}
		}
	}

	return res
}
