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
	"log/slog"

	"github.com/DataDog/sketches-go/ddsketch"
	"github.com/axiomhq/hyperloglog"
)

// inputStats estimates the shape of the input in constant memory: how many
// distinct records it holds and how long records are.
type inputStats struct {
	hll   *hyperloglog.Sketch
	sizes *ddsketch.DDSketch
	count int64
	bytes int64
}

func newInputStats() (*inputStats, error) {
	sizes, err := ddsketch.NewDefaultDDSketch(0.01)
	if err != nil {
		return nil, err
	}
	return &inputStats{hll: hyperloglog.New14(), sizes: sizes}, nil
}

func (s *inputStats) observe(rec string) {
	s.count++
	s.bytes += int64(len(rec))
	s.hll.Insert([]byte(rec))
	// Zero-length records are counted but not sketched.
	if len(rec) > 0 {
		_ = s.sizes.Add(float64(len(rec)))
	}
}

func (s *inputStats) distinctEstimate() uint64 {
	return s.hll.Estimate()
}

func (s *inputStats) sizeQuantile(q float64) float64 {
	if s.sizes.IsEmpty() {
		return 0
	}
	v, err := s.sizes.GetValueAtQuantile(q)
	if err != nil {
		return 0
	}
	return v
}

func (s *inputStats) log(logger *slog.Logger) {
	logger.Info("Input statistics",
		slog.Int64("records", s.count),
		slog.Int64("bytes", s.bytes),
		slog.Uint64("approxDistinct", s.distinctEstimate()),
		slog.Float64("p50RecordBytes", s.sizeQuantile(0.5)),
		slog.Float64("p99RecordBytes", s.sizeQuantile(0.99)))
}
