// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/cardinalhq/databag/config"
	"github.com/cardinalhq/databag/internal/logctx"
	"github.com/cardinalhq/databag/pkg/databag"
)

// runOptions are the flags shared by sort and distinct on top of bagOptions.
type runOptions struct {
	bagOptions
	digest bool
	stats  bool
}

func (o *runOptions) registerOutput(fs *pflag.FlagSet) {
	fs.BoolVar(&o.digest, "digest", false, "Print the xxhash64 of the output to stderr")
	fs.BoolVar(&o.stats, "stats", false, "Log approximate distinct count and record size quantiles of the input")
}

// runResult summarises one command run.
type runResult struct {
	read    int64
	written int64
	spills  int
	digest  uint64
}

var sortOpts runOptions

func init() {
	sortCmd := &cobra.Command{
		Use:   "sort [files...]",
		Short: "Sort, de-duplicate or spool newline-delimited records",
		Long: `Read records from the named files (or stdin) into a data bag and write
them to stdout. In sorted mode (the default) records come out in order; in
distinct mode duplicates are dropped as well; in unordered mode records
come out in input order, spooled through a spill file once the threshold
is reached.`,
		RunE: func(c *cobra.Command, args []string) error {
			return runCommand(c, args, "databag-sort", sortOpts, runSort)
		},
	}
	sortOpts.bagOptions.register(sortCmd.Flags(), true)
	sortOpts.registerOutput(sortCmd.Flags())

	rootCmd.AddCommand(sortCmd)
}

type runFunc func(ctx context.Context, cfg databag.Config, opts runOptions, inputs []io.Reader, out io.Writer) (runResult, error)

// runCommand does the plumbing common to every record command: telemetry,
// configuration, inputs and the digest line.
func runCommand(c *cobra.Command, args []string, servicename string, opts runOptions, run runFunc) error {
	ctx, doneFx, err := setupTelemetry(servicename, c.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	defer func() {
		if err := doneFx(); err != nil {
			slog.Error("Error shutting down telemetry", slog.Any("error", err))
		}
	}()

	cfg, err := config.Load(configFile, envFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	opts.apply(&cfg.Bag, c.Flags())

	inputs, closeInputs, err := openInputs(args, c.InOrStdin())
	if err != nil {
		return err
	}
	defer func() { _ = closeInputs() }()

	start := time.Now()
	res, err := run(ctx, cfg.Bag, opts, inputs, c.OutOrStdout())
	attrs := commandAttrs(c.Name(), opts.mode)
	recordsReadCounter.Add(ctx, res.read, attrs)
	recordsWrittenCounter.Add(ctx, res.written, attrs)
	runDuration.Record(context.WithoutCancel(ctx), time.Since(start).Seconds(), attrs)
	if err != nil {
		return err
	}

	logctx.FromContext(ctx).Debug("Run complete",
		slog.Int64("read", res.read),
		slog.Int64("written", res.written),
		slog.Int("spills", res.spills),
		slog.Duration("elapsed", time.Since(start)))

	if opts.digest {
		fmt.Fprintf(c.ErrOrStderr(), "xxhash64 %016x\n", res.digest)
	}
	return nil
}

// runSort feeds every record into a bag of the configured mode and writes
// the bag's contents to out.
func runSort(ctx context.Context, cfg databag.Config, opts runOptions, inputs []io.Reader, out io.Writer) (res runResult, err error) {
	mode := opts.mode
	if mode == "" {
		mode = modeSorted
	}
	ctx = logctx.With(ctx, slog.String("mode", mode))
	logger := logctx.FromContext(ctx)

	bag, err := newRecordBag(mode, cfg, compareRecords(opts.numeric, opts.reverse), logger)
	if err != nil {
		return res, err
	}
	defer func() {
		if cerr := bag.Close(); cerr != nil {
			err = multierror.Append(err, cerr).ErrorOrNil()
		}
	}()

	var stats *inputStats
	if opts.stats {
		if stats, err = newInputStats(); err != nil {
			return res, err
		}
	}

	err = streamRecords(ctx, inputs, func(rec string) error {
		res.read++
		if stats != nil {
			stats.observe(rec)
		}
		return bag.Add(rec)
	})
	if err != nil {
		return res, err
	}
	if stats != nil {
		stats.log(logger)
	}

	it, err := bag.Iterator()
	if err != nil {
		return res, err
	}
	w := newRecordWriter(out, opts.digest)
	for rec, err := range databag.All(it) {
		if err != nil {
			return res, err
		}
		if err := w.write(rec); err != nil {
			return res, err
		}
	}
	if err := w.flush(); err != nil {
		return res, err
	}

	res.written = w.written
	res.spills = bag.SpillCount()
	res.digest = w.sum()
	return res, nil
}
