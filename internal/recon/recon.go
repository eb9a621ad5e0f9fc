package recon

import (
	"context"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BlueSkeye/ApkRe-sub000/internal/ast"
	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/circuit"
	"github.com/BlueSkeye/ApkRe-sub000/internal/config"
	"github.com/BlueSkeye/ApkRe-sub000/internal/diag"
	"github.com/BlueSkeye/ApkRe-sub000/internal/flow"
	"github.com/BlueSkeye/ApkRe-sub000/internal/tree"
)

// Result is the reconstruction of a method.
type Result struct {
	Method   *bytecode.Method
	Tree     *tree.Tree
	Graph    *flow.Graph
	Circuits []*circuit.Circuit[*flow.Block]

	// Seq numbers reconstructions of a Reconstructor, starting from 1.
	Seq uint64
}

// Failure is a reconstruction failure tagged with the stage it happened at.
type Failure struct {
	Phase  diag.Phase
	Method string
	Err    error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%s: %s: %v", f.Method, f.Phase, f.Err)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// Reconstructor reconstructs methods under a configuration.
type Reconstructor struct {
	cfg      config.Config
	log      *zap.Logger
	reporter *diag.Reporter
	cache    *lru.Cache
	seq      atomic.Uint64
}

// Option tunes a Reconstructor.
type Option func(r *Reconstructor)

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(r *Reconstructor) {
		r.log = log
	}
}

// WithReporter sets where skipped methods are reported.
func WithReporter(reporter *diag.Reporter) Option {
	return func(r *Reconstructor) {
		r.reporter = reporter
	}
}

// New creates a Reconstructor.
func New(cfg config.Config, opts ...Option) (*Reconstructor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validate config")
	}

	r := &Reconstructor{
		cfg:      cfg,
		log:      zap.NewNop(),
		reporter: &diag.Reporter{},
	}
	for _, opt := range opts {
		opt(r)
	}

	if cfg.Batch.CacheSize > 0 {
		cache, err := lru.New(cfg.Batch.CacheSize)
		if err != nil {
			return nil, errors.Wrap(err, "create result cache")
		}
		r.cache = cache
	}

	return r, nil
}

// Reporter returns where failures are reported.
func (r *Reconstructor) Reporter() *diag.Reporter {
	return r.reporter
}

// Method reconstructs a single method. Failures come as *Failure.
func (r *Reconstructor) Method(ctx context.Context, m *bytecode.Method) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	key := m.Fingerprint()
	if r.cache != nil {
		if v, ok := r.cache.Get(key); ok {
			r.log.Debug("method reconstruction cached", zap.String("method", m.Name))
			return v.(*Result), nil
		}
	}

	log := r.log.With(zap.String("method", m.Name))
	fail := func(phase diag.Phase, err error) error {
		return &Failure{
			Phase:  phase,
			Method: m.Name,
			Err:    err,
		}
	}

	g, err := flow.Build(m, flow.WithLogger(log), flow.WithSelfLoops(r.cfg.Flow.SelfLoops))
	if err != nil {
		return nil, fail(diag.PhaseFlow, err)
	}

	treeOpts := []ast.Option{
		ast.WithLogger(log),
		ast.WithMaxWalkSteps(r.cfg.Tree.MaxWalkSteps),
	}
	t, err := ast.Build(m, treeOpts...)
	if err != nil {
		return nil, fail(diag.PhaseTree, err)
	}
	if err := ast.Reconcile(t, g, m.Tries, treeOpts...); err != nil {
		return nil, fail(diag.PhaseTry, err)
	}

	res := &Result{
		Method: m,
		Tree:   t,
		Graph:  g,
	}
	if r.cfg.Circuits.Enabled {
		res.Circuits, err = circuit.Find(ctx, g.Entry(), circuit.Options{
			MaxCircuits: r.cfg.Circuits.MaxCircuits,
			MaxSteps:    r.cfg.Circuits.MaxSteps,
		})
		if err != nil {
			return nil, fail(diag.PhaseCircuits, err)
		}
	}
	res.Seq = r.seq.Add(1)

	if r.cache != nil {
		r.cache.Add(key, res)
	}
	log.Debug(
		"method reconstructed",
		zap.Uint64("seq", res.Seq),
		zap.Int("blocks", len(g.Blocks())),
		zap.Int("circuits", len(res.Circuits)),
	)

	return res, nil
}
