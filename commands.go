package main

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/BlueSkeye/ApkRe-sub000/internal/bytecode"
	"github.com/BlueSkeye/ApkRe-sub000/internal/config"
	"github.com/BlueSkeye/ApkRe-sub000/internal/diag"
	"github.com/BlueSkeye/ApkRe-sub000/internal/recon"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "YAML configuration `FILE`",
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "log `LEVEL`, overrides the configuration",
	}
	formatFlag = &cli.StringFlag{
		Name:  "format",
		Usage: "output `FORMAT`: text or dot",
		Value: OutputFormatText.String(),
	}
)

var (
	treeCommand = &cli.Command{
		Name:      "tree",
		Usage:     "Print address-range trees with try regions",
		ArgsUsage: "FILE...",
		Action: func(cctx *cli.Context) error {
			return reconstruct(cctx, func(w io.Writer, res *recon.Result) error {
				return res.Tree.Dump(w)
			})
		},
	}

	flowCommand = &cli.Command{
		Name:      "flow",
		Usage:     "Print flow graphs",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			formatFlag,
		},
		Action: flowAction,
	}

	circuitsCommand = &cli.Command{
		Name:      "circuits",
		Usage:     "Print elementary circuits of flow graphs",
		ArgsUsage: "FILE...",
		Action: func(cctx *cli.Context) error {
			return reconstruct(cctx, func(w io.Writer, res *recon.Result) error {
				for _, c := range res.Circuits {
					if _, err := fmt.Fprintf(w, "  %s\n", c); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
)

func flowAction(cctx *cli.Context) error {
	var format OutputFormat
	if err := format.UnmarshalText([]byte(cctx.String(formatFlag.Name))); err != nil {
		return errors.Wrap(err, "parse --format")
	}

	return reconstruct(cctx, func(w io.Writer, res *recon.Result) error {
		if format == OutputFormatDot {
			_, err := io.WriteString(w, res.Graph.Dot(res.Method.Name).String())
			return err
		}

		return res.Graph.Dump(w)
	})
}

type renderFunc func(w io.Writer, res *recon.Result) error

// reconstruct reconstructs every method of the input files and renders the
// successful ones in input order. Failures go to the error output.
func reconstruct(cctx *cli.Context, render renderFunc) error {
	if cctx.NArg() == 0 {
		return errors.New("no input files")
	}

	cfg := config.Default()
	if path := cctx.String(configFlag.Name); path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}
	}
	if level := cctx.String(logLevelFlag.Name); level != "" {
		cfg.Log.Level = level
	}

	log, err := cfg.Log.Build()
	if err != nil {
		return errors.Wrap(err, "setup logging")
	}
	defer func() {
		_ = log.Sync()
	}()

	reporter := &diag.Reporter{}
	r, err := recon.New(cfg, recon.WithLogger(log), recon.WithReporter(reporter))
	if err != nil {
		return errors.Wrap(err, "setup reconstruction")
	}

	var methods []*bytecode.Method
	for _, path := range cctx.Args().Slice() {
		ms, err := bytecode.ReadFile(path)
		if err != nil {
			reporter.Phase(diag.PhaseInput).Report(path, err)
			log.Warn("input skipped", zap.String("path", path), zap.Error(err))
			continue
		}
		methods = append(methods, ms...)
	}

	results, err := r.Batch(cctx.Context, methods)
	if err != nil {
		if serr := reporter.Summary(cctx.App.ErrWriter); serr != nil {
			log.Error("write failure summary", zap.Error(serr))
		}
		return errors.Wrap(err, "reconstruct")
	}

	var buf bytes.Buffer
	for _, res := range results {
		if res == nil {
			continue
		}

		fmt.Fprintf(&buf, "method %s\n", res.Method.Name)
		if err := render(&buf, res); err != nil {
			return errors.Wrapf(err, "render %s", res.Method.Name)
		}
	}
	if _, err := cctx.App.Writer.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "write output")
	}

	if n := reporter.Len(); n > 0 {
		if err := reporter.Summary(cctx.App.ErrWriter); err != nil {
			return errors.Wrap(err, "write failure summary")
		}
		return errors.Errorf("%d failure(s)", n)
	}

	return nil
}
