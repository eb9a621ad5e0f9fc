package recon

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/config"
	"github.com/BlueSkeye/ApkRe-sub000/internal/diag"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
)

// Batch reconstructs methods in parallel. Results are in method order, a
// skipped method has a nil result. Every failure is reported, and the first
// one the stop policy does not allow to skip aborts the batch.
func (r *Reconstructor) Batch(ctx context.Context, methods []*bytecode.Method) ([]*Result, error) {
	results := make([]*Result, len(methods))

	workers := r.cfg.Batch.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, m := range methods {
		eg.Go(func() error {
			res, err := r.Method(ctx, m)
			if err == nil {
				results[i] = res
				return nil
			}

			if isCanceled(err) {
				return err
			}

			r.report(m, err)
			if r.stops(err) {
				return err
			}
			r.log.Warn("method skipped", zap.String("method", m.Name), zap.Error(err))
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

func (r *Reconstructor) report(m *bytecode.Method, err error) {
	phase := diag.PhaseInput
	var f *Failure
	if errors.As(err, &f) {
		phase = f.Phase
		err = f.Err
	}

	r.reporter.Phase(phase).Report(m.Name, err)
}

func (r *Reconstructor) stops(err error) bool {
	switch r.cfg.Batch.StopOn {
	case config.StopOnAny:
		return true
	case config.StopNever:
		return false
	default:
		return errors.Is(err, fault.KindInvariantViolation)
	}
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
