package ast

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
	"github.com/BlueSkeye/ApkRe-sub000/internal/flow"
	"github.com/BlueSkeye/ApkRe-sub000/internal/tree"
)

// Handlers is the payload of try nodes.
type Handlers struct {
	Region *bytecode.TryRegion
}

func (h Handlers) String() string {
	var parts []string
	for _, hd := range h.Region.Handlers {
		parts = append(parts, fmt.Sprintf("catch %s 0x%04x", hd.Type, hd.Offset))
	}
	if h.Region.HasCatchAll {
		parts = append(parts, fmt.Sprintf("catchall 0x%04x", h.Region.CatchAll))
	}

	return strings.Join(parts, " ")
}

// Reconcile materializes the try regions in the address-range tree and
// aligns the flow graph blocks on handler entries.
func Reconcile(t *tree.Tree, g *flow.Graph, tries []bytecode.TryRegion, opts ...Option) error {
	o := collect(opts)

	h, err := BuildHierarchy(tries, t.Root().Size(), opts...)
	if err != nil {
		return errors.Wrap(err, "build try hierarchy")
	}

	r := &reconciler{
		t:   t,
		g:   g,
		log: o.log,
	}
	var failure error
	err = h.Walk(h.Root(), tree.PostThenSelf, tree.Forward, func(n tree.Node, ev tree.Event) tree.Action {
		if n.Kind() != tree.KindRegion {
			return tree.Continue
		}

		if err := r.materialize(n.Payload().(*bytecode.TryRegion)); err != nil {
			failure = err
			return tree.Stop
		}
		return tree.Continue
	})
	if err != nil {
		return errors.Wrap(err, "walk try hierarchy")
	}

	return failure
}

type reconciler struct {
	t   *tree.Tree
	g   *flow.Graph
	log *zap.Logger
}

func (r *reconciler) materialize(region *bytecode.TryRegion) error {
	parent, run, err := r.covered(region)
	if err != nil {
		return err
	}

	guarded := r.t.NewNode(tree.KindGuarded, 0, 0, nil)
	if err := r.t.Group(parent, guarded, run); err != nil {
		return errors.Wrapf(err, "group guarded nodes of %s", region)
	}
	try := r.t.NewNode(tree.KindTry, 0, 0, Handlers{Region: region})
	if err := r.t.Group(parent, try, []tree.Node{guarded}); err != nil {
		return errors.Wrapf(err, "group try node of %s", region)
	}

	r.log.Debug(
		"try region materialized",
		zap.Stringer("region", region),
		zap.Int("nodes", len(run)),
	)

	for _, off := range region.HandlerOffsets() {
		if _, ok := r.g.BlockAt(off); !ok {
			return fault.At(fault.FMT042DanglingHandler, off, "handler of %s", region)
		}

		b, err := r.g.SplitAt(off)
		if err != nil {
			return errors.Wrapf(err, "align handler of %s", region)
		}
		r.log.Debug("handler entry aligned", zap.Stringer("block", b))
	}

	return nil
}

// covered returns the maximal nodes fully covered by the region, which are
// a contiguous run of children of parent.
func (r *reconciler) covered(region *bytecode.TryRegion) (parent tree.Node, run []tree.Node, err error) {
	lo, hi := region.Start, region.End()

	walkErr := r.t.Walk(r.t.Root(), tree.SelfThenChildren, tree.Forward, func(n tree.Node, ev tree.Event) tree.Action {
		if n == r.t.Root() {
			return tree.Continue
		}

		nlo, nhi := n.Offset(), n.End()
		switch {
		case nhi <= lo || nlo >= hi:
			return tree.SkipChildren
		case lo <= nlo && nhi <= hi:
			if len(run) == 0 {
				parent = n.Parent()
			}
			run = append(run, n)
			return tree.SkipChildren
		case n.IsLeaf():
			err = fault.At(
				fault.FMT041TryBoundary,
				lo,
				"%s cuts %s",
				region,
				n,
			)
			return tree.Stop
		default:
			return tree.Continue
		}
	})
	if walkErr != nil {
		return tree.Node{}, nil, walkErr
	}
	if err != nil {
		return tree.Node{}, nil, err
	}

	if len(run) == 0 || run[0].Offset() != lo || run[len(run)-1].End() != hi {
		return tree.Node{}, nil, fault.At(fault.FMT041TryBoundary, lo, "%s is not covered by the tree", region)
	}

	return parent, run, nil
}
