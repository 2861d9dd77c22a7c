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
	"cmp"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/cardinalhq/databag/pkg/databag"
	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// Bag modes accepted by --mode.
const (
	modeUnordered = "unordered"
	modeSorted    = "sorted"
	modeDistinct  = "distinct"
)

// bagOptions are the command-line overrides shared by every command that
// builds a record bag. Only flags the user actually set replace config values.
type bagOptions struct {
	mode          string
	numeric       bool
	reverse       bool
	thresholdKind string
	threshold     int64
	codec         string
	compression   string
	tmpDir        string
	maxSpillFiles int
}

func (o *bagOptions) register(fs *pflag.FlagSet, withMode bool) {
	if withMode {
		fs.StringVar(&o.mode, "mode", modeSorted, "Bag mode: unordered, sorted or distinct")
	}
	fs.BoolVarP(&o.numeric, "numeric", "n", false, "Compare records as numbers where they parse as one")
	fs.BoolVarP(&o.reverse, "reverse", "r", false, "Reverse the sort order")
	fs.StringVar(&o.thresholdKind, "threshold-kind", "", "Spill threshold: never, count or memory")
	fs.Int64Var(&o.threshold, "threshold", 0, "Spill limit (records for count, bytes for memory)")
	fs.StringVar(&o.codec, "codec", "", "Spill file codec: cbor or gob")
	fs.StringVar(&o.compression, "compression", "", "Spill file compression: none, zstd or lz4")
	fs.StringVar(&o.tmpDir, "tmpdir", "", "Directory for spill files")
	fs.IntVar(&o.maxSpillFiles, "max-spill-files", 0, "Maximum spill files merged at once")
}

// apply copies every flag that was set on the command line into cfg.
func (o *bagOptions) apply(cfg *databag.Config, fs *pflag.FlagSet) {
	if fs.Changed("threshold-kind") {
		cfg.Threshold.Kind = o.thresholdKind
	}
	if fs.Changed("threshold") {
		cfg.Threshold.Limit = o.threshold
	}
	if fs.Changed("codec") {
		cfg.Codec = o.codec
	}
	if fs.Changed("compression") {
		cfg.Compression = o.compression
	}
	if fs.Changed("tmpdir") {
		cfg.TempDir = o.tmpDir
	}
	if fs.Changed("max-spill-files") {
		cfg.MaxSpillFiles = o.maxSpillFiles
	}
}

// compareRecords orders records lexically, or numerically when numeric is
// set. Numbers sort before non-numbers and ties fall back to the raw text,
// so two records compare equal only when they are identical.
func compareRecords(numeric, reverse bool) func(a, b string) int {
	compare := strings.Compare
	if numeric {
		compare = func(a, b string) int {
			fa, aErr := strconv.ParseFloat(strings.TrimSpace(a), 64)
			fb, bErr := strconv.ParseFloat(strings.TrimSpace(b), 64)
			switch {
			case aErr == nil && bErr == nil:
				if c := cmp.Compare(fa, fb); c != 0 {
					return c
				}
			case aErr == nil:
				return -1
			case bErr == nil:
				return 1
			}
			return strings.Compare(a, b)
		}
	}
	if reverse {
		forward := compare
		compare = func(a, b string) int { return forward(b, a) }
	}
	return compare
}

// newRecordBag builds the bag for mode from cfg.
func newRecordBag(mode string, cfg databag.Config, compare func(a, b string) int, logger *slog.Logger) (*databag.Bag[string], error) {
	factory, policy, opts, err := bagParts(cfg, logger)
	if err != nil {
		return nil, err
	}

	switch mode {
	case modeUnordered:
		return databag.NewUnordered(policy, factory, opts...)
	case modeSorted:
		return databag.NewSorted(policy, factory, compare, opts...)
	case modeDistinct:
		return databag.NewDistinct(policy, factory, compare, opts...)
	}
	return nil, fmt.Errorf("unknown mode %q (want unordered, sorted or distinct)", mode)
}

// newRecordNetBag builds a distinct-net bag from cfg.
func newRecordNetBag(cfg databag.Config, compare func(a, b string) int, logger *slog.Logger) (*databag.NetBag[string], error) {
	factory, policy, opts, err := bagParts(cfg, logger)
	if err != nil {
		return nil, err
	}
	return databag.NewDistinctNet(policy, factory, compare, opts...)
}

func bagParts(cfg databag.Config, logger *slog.Logger) (spillcodec.Factory[string], databag.ThresholdPolicy[string], []databag.Option, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	factory, err := spillcodec.ByName[string](cfg.Codec, cfg.Compression)
	if err != nil {
		return nil, nil, nil, err
	}
	policy, err := databag.NewPolicy(cfg.Threshold, factory)
	if err != nil {
		return nil, nil, nil, err
	}
	opts := []databag.Option{
		databag.WithConfig(cfg),
		databag.WithLogger(logger),
	}
	return factory, policy, opts, nil
}
