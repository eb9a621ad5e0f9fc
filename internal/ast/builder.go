package ast

import (
	"go.uber.org/zap"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
	"github.com/BlueSkeye/ApkRe-sub000/internal/tree"
)

// Option tunes Build and Reconcile.
type Option func(o *options)

type options struct {
	log      *zap.Logger
	maxSteps int
}

// WithLogger sets the logger decoding and materialization are reported to.
func WithLogger(log *zap.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithMaxWalkSteps bounds every walk over the built trees.
func WithMaxWalkSteps(n int) Option {
	return func(o *options) {
		o.maxSteps = n
	}
}

func collect(opts []Option) options {
	o := options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Build builds the address-range tree of the method: one instruction leaf
// per reachable instruction under the root.
func Build(m *bytecode.Method, opts ...Option) (*tree.Tree, error) {
	o := collect(opts)
	log := o.log.With(zap.String("method", m.Name))

	t := tree.New(m.CodeSize, tree.WithMaxSteps(o.maxSteps))
	if m.CodeSize == 0 {
		return t, nil
	}

	if err := t.AddChild(t.Root(), t.NewNode(tree.KindUnresolved, 0, m.CodeSize, nil), nil); err != nil {
		return nil, err
	}

	byOffset := make(map[uint32]*bytecode.Instruction, len(m.Instructions))
	work := []uint32{0}
	for _, insn := range m.Instructions {
		if insn.Size == 0 || uint64(insn.Offset)+uint64(insn.Size) > uint64(m.CodeSize) {
			return nil, fault.At(fault.FMT011InstructionOutOfBounds, insn.Offset, "%s of size %d", insn, insn.Size)
		}
		if _, ok := byOffset[insn.Offset]; ok {
			return nil, fault.At(fault.FMT020DuplicateOffset, insn.Offset, "%s", insn)
		}
		byOffset[insn.Offset] = insn

		// Data tables are only referenced through operands.
		if insn.Kind == bytecode.KindPayload {
			work = append(work, insn.Offset)
		}
	}
	for i := range m.Tries {
		work = append(work, m.Tries[i].HandlerOffsets()...)
	}

	for len(work) > 0 {
		off := work[len(work)-1]
		work = work[:len(work)-1]

		next, err := decode(t, byOffset, off)
		if err != nil {
			return nil, err
		}
		work = append(work, next...)
	}

	var gap tree.Node
	err := t.Walk(t.Root(), tree.SelfThenChildren, tree.Forward, func(n tree.Node, ev tree.Event) tree.Action {
		if n.Kind() == tree.KindUnresolved {
			gap = n
			return tree.Stop
		}
		return tree.Continue
	})
	if err != nil {
		return nil, err
	}
	if !gap.IsZero() {
		return nil, fault.At(
			fault.FMT050IncompleteCoverage,
			gap.Offset(),
			"[0x%04x,0x%04x) is not decoded",
			gap.Offset(),
			gap.End(),
		)
	}

	log.Debug("tree built", zap.Int("instructions", len(byOffset)))
	return t, nil
}

// decode resolves the instruction at off and returns the offsets control
// can go to from it. Already decoded offsets yield nothing.
func decode(t *tree.Tree, byOffset map[uint32]*bytecode.Instruction, off uint32) ([]uint32, error) {
	leaf, ok := t.NodeAt(off)
	if !ok {
		return nil, fault.At(fault.FMT010TargetOutOfBounds, off, "method is 0x%04x bytes long", t.Root().Size())
	}

	if leaf.Kind() == tree.KindInstruction {
		if leaf.Offset() != off {
			return nil, fault.At(fault.FMT031TargetMidInstruction, off, "inside %s", leaf)
		}
		return nil, nil
	}

	insn, ok := byOffset[off]
	if !ok {
		return nil, fault.At(fault.FMT033MissingInstruction, off, "in %s", leaf)
	}
	if insn.End() > leaf.End() {
		return nil, fault.At(
			fault.FMT021OverlappingInstruction,
			off,
			"%s ends at 0x%04x past the undecoded range ending at 0x%04x",
			insn,
			insn.End(),
			leaf.End(),
		)
	}

	_, err := t.Split(leaf, off, func(offset uint32) (tree.Piece, error) {
		return tree.Piece{
			Size:    insn.Size,
			Kind:    tree.KindInstruction,
			Payload: insn,
		}, nil
	})
	if err != nil {
		return nil, err
	}

	targets, err := insn.BranchTargets()
	if err != nil {
		return nil, err
	}
	next := append([]uint32(nil), targets...)
	if insn.ContinuesInSequence() {
		if insn.End() >= t.Root().End() {
			return nil, fault.At(fault.FMT012FallthroughOutOfBounds, off, "%s continues past the method end", insn)
		}
		next = append(next, insn.End())
	}

	return next, nil
}
