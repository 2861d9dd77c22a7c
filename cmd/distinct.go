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
	"io"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/cardinalhq/databag/internal/logctx"
	"github.com/cardinalhq/databag/pkg/databag"
)

const modeDistinctNet = "distinct-net"

var distinctOpts = runOptions{bagOptions: bagOptions{mode: modeDistinctNet}}

func init() {
	distinctCmd := &cobra.Command{
		Use:   "distinct [files...]",
		Short: "Stream the distinct records of the input",
		Long: `Print each record the first time it is seen, as soon as that can be known.
Until the bag first spills every new record is printed immediately; the
records whose novelty could not be decided while streaming are printed in
sorted order once the input ends.`,
		RunE: func(c *cobra.Command, args []string) error {
			return runCommand(c, args, "databag-distinct", distinctOpts, runDistinct)
		},
	}
	distinctOpts.bagOptions.register(distinctCmd.Flags(), false)
	distinctOpts.registerOutput(distinctCmd.Flags())

	rootCmd.AddCommand(distinctCmd)
}

// runDistinct writes every distinct record of inputs exactly once: records
// NetAdd reports as new go out immediately, the rest come from NetIterator.
func runDistinct(ctx context.Context, cfg databag.Config, opts runOptions, inputs []io.Reader, out io.Writer) (res runResult, err error) {
	ctx = logctx.With(ctx, slog.String("mode", modeDistinctNet))
	logger := logctx.FromContext(ctx)

	bag, err := newRecordNetBag(cfg, compareRecords(opts.numeric, opts.reverse), logger)
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

	w := newRecordWriter(out, opts.digest)
	streamed := int64(0)
	err = streamRecords(ctx, inputs, func(rec string) error {
		res.read++
		if stats != nil {
			stats.observe(rec)
		}
		isNew, err := bag.NetAdd(rec)
		if err != nil || !isNew {
			return err
		}
		streamed++
		return w.write(rec)
	})
	if err != nil {
		return res, err
	}
	if stats != nil {
		stats.log(logger)
	}

	it, err := bag.NetIterator()
	if err != nil {
		return res, err
	}
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

	logger.Debug("Distinct records written",
		slog.Int64("streamed", streamed),
		slog.Int64("deferred", w.written-streamed))

	res.written = w.written
	res.spills = bag.SpillCount()
	res.digest = w.sum()
	return res, nil
}
