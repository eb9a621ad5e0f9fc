package recon

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/config"
	"github.com/BlueSkeye/ApkRe-sub000/internal/diag"
	"github.com/BlueSkeye/ApkRe-sub000/internal/fault"
	"github.com/BlueSkeye/ApkRe-sub000/internal/tree"
)

const listing = `
.method loop 0x0a
0x0000 2 const/4
0x0002 2 if-eqz -> 0x0008
0x0004 2 nop
0x0006 2 goto -> 0x0002
0x0008 2 return-void
.try 0x0002 0x0004 catchall 0x0008
.end

.method straight 4
0 2 nop
2 2 return-void
.end

.method broken 4
0 2 goto -> 8
2 2 return-void
.end

.method self 6
0 2 nop
2 2 if-eqz -> 0
4 2 return-void
.end
`

func methods(t *testing.T) map[string]*bytecode.Method {
	t.Helper()

	ms, err := bytecode.ParseListing(strings.NewReader(listing))
	require.NoError(t, err)

	res := map[string]*bytecode.Method{}
	for _, m := range ms {
		res[m.Name] = m
	}
	return res
}

func reconstructor(t *testing.T, tune func(cfg *config.Config)) *Reconstructor {
	t.Helper()

	cfg := config.Default()
	if tune != nil {
		tune(&cfg)
	}
	r, err := New(cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return r
}

func TestMethod(t *testing.T) {
	ms := methods(t)
	r := reconstructor(t, nil)

	res, err := r.Method(context.Background(), ms["loop"])
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Seq)
	require.Same(t, ms["loop"], res.Method)
	require.Len(t, res.Circuits, 1)
	require.Equal(t, "0x0002 -> 0x0004 -> 0x0002", res.Circuits[0].String())

	try := res.Tree.Root().Children()[1]
	require.Equal(t, uint32(2), try.Offset())
	require.Equal(t, uint32(6), try.End())

	handler, ok := res.Graph.BlockAt(8)
	require.True(t, ok)
	require.Equal(t, uint32(8), handler.Offset())

	again, err := r.Method(context.Background(), ms["loop"])
	require.NoError(t, err)
	require.Same(t, res, again)

	other, err := r.Method(context.Background(), ms["straight"])
	require.NoError(t, err)
	require.Equal(t, uint64(2), other.Seq)
	require.Empty(t, other.Circuits)
}

func TestMethodWithoutCache(t *testing.T) {
	ms := methods(t)
	r := reconstructor(t, func(cfg *config.Config) {
		cfg.Batch.CacheSize = 0
		cfg.Circuits.Enabled = false
	})

	first, err := r.Method(context.Background(), ms["loop"])
	require.NoError(t, err)
	second, err := r.Method(context.Background(), ms["loop"])
	require.NoError(t, err)

	require.NotSame(t, first, second)
	require.Equal(t, uint64(2), second.Seq)
	require.Nil(t, second.Circuits)
}

func TestMethodFailure(t *testing.T) {
	ms := methods(t)
	r := reconstructor(t, nil)

	_, err := r.Method(context.Background(), ms["broken"])
	var f *Failure
	require.True(t, errors.As(err, &f))
	require.Equal(t, diag.PhaseFlow, f.Phase)
	require.Equal(t, "broken", f.Method)
	code, ok := fault.CodeOf(err)
	require.True(t, ok)
	require.Equal(t, fault.FMT010TargetOutOfBounds, code)
	require.True(t, errors.Is(err, fault.KindFormatInconsistency))
}

func TestMethodCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := reconstructor(t, nil).Method(ctx, methods(t)["loop"])
	require.True(t, errors.Is(err, context.Canceled))
}

func TestBatch(t *testing.T) {
	ms := methods(t)
	input := []*bytecode.Method{ms["loop"], ms["broken"], ms["straight"]}

	tests := []struct {
		name      string
		policy    config.StopPolicy
		selfLoops config.SelfLoopPolicy
		input     []*bytecode.Method
		skipped   []bool
		code      fault.Code
		reports   int
	}{
		{
			name:      "format fault skipped by default",
			policy:    config.StopOnInvariant,
			selfLoops: config.SelfLoopsAllow,
			input:     input,
			skipped:   []bool{false, true, false},
			reports:   1,
		},
		{
			name:      "format fault aborts on any",
			policy:    config.StopOnAny,
			selfLoops: config.SelfLoopsAllow,
			input:     input,
			code:      fault.FMT010TargetOutOfBounds,
			reports:   1,
		},
		{
			name:      "invariant aborts by default",
			policy:    config.StopOnInvariant,
			selfLoops: config.SelfLoopsReject,
			input:     []*bytecode.Method{ms["self"]},
			code:      fault.INV110SelfLink,
			reports:   1,
		},
		{
			name:      "invariant skipped on never",
			policy:    config.StopNever,
			selfLoops: config.SelfLoopsReject,
			input:     []*bytecode.Method{ms["self"], ms["straight"]},
			skipped:   []bool{true, false},
			reports:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reconstructor(t, func(cfg *config.Config) {
				cfg.Batch.StopOn = tt.policy
				cfg.Batch.Workers = 2
				cfg.Flow.SelfLoops = tt.selfLoops
			})

			res, err := r.Batch(context.Background(), tt.input)
			require.Equal(t, tt.reports, r.Reporter().Len())
			if tt.skipped == nil {
				code, ok := fault.CodeOf(err)
				require.True(t, ok, "fault expected, got %v", err)
				require.Equal(t, tt.code, code)
				return
			}

			require.NoError(t, err)
			require.Len(t, res, len(tt.input))
			for i, skipped := range tt.skipped {
				require.Equal(t, skipped, res[i] == nil, "method %s", tt.input[i].Name)
			}
		})
	}
}

func TestBatchReportsPhase(t *testing.T) {
	ms := methods(t)
	var reporter diag.Reporter
	r, err := New(config.Default(), WithReporter(&reporter))
	require.NoError(t, err)

	_, err = r.Batch(context.Background(), []*bytecode.Method{ms["broken"]})
	require.NoError(t, err)

	reps := reporter.Reports()
	require.Len(t, reps, 1)
	require.Equal(t, diag.PhaseFlow, reps[0].Phase)
	require.Equal(t, "broken", reps[0].Method)
	require.True(t, reps[0].HasCode)
	require.Equal(t, fault.FMT010TargetOutOfBounds, reps[0].Code)
	require.Equal(t, uint32(8), reps[0].Offset)
}

func TestMethodCacheKeepsTryTablesApart(t *testing.T) {
	const body = `
.method guarded 0x18
0x0000 4 nop
0x0004 4 nop
0x0008 4 nop
0x000c 4 nop
0x0010 4 nop
0x0014 4 return-void
`
	parse := func(tries string) *bytecode.Method {
		ms, err := bytecode.ParseListing(strings.NewReader(body + tries + ".end\n"))
		require.NoError(t, err)
		return ms[0]
	}
	tryRanges := func(res *Result) []string {
		var ranges []string
		for _, n := range res.Tree.Root().Children() {
			if n.Kind() == tree.KindTry {
				ranges = append(ranges, fmt.Sprintf("[0x%04x,0x%04x)", n.Offset(), n.End()))
			}
		}
		return ranges
	}

	a := parse(".try 0x0000 4 catchall 0x0008\n.try 0x0010 4\n")
	b := parse(".try 0x0000 4\n.try 0x0008 0x0010 catchall 0x0004\n")
	r := reconstructor(t, nil)

	ra, err := r.Method(context.Background(), a)
	require.NoError(t, err)
	rb, err := r.Method(context.Background(), b)
	require.NoError(t, err)

	require.NotSame(t, ra, rb)
	require.Same(t, b, rb.Method)
	require.Equal(t, uint64(2), rb.Seq)
	require.Equal(t, []string{"[0x0000,0x0004)", "[0x0010,0x0014)"}, tryRanges(ra))
	require.Equal(t, []string{"[0x0000,0x0004)", "[0x0008,0x0018)"}, tryRanges(rb))
}
