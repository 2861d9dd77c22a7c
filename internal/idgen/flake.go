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

// Package idgen hands out identifiers for command runs.
package idgen

import (
	"errors"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/sony/sonyflake"
)

// epoch is the zero point of every generated ID.
var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// RunIDGenerator produces positive IDs that increase roughly in time order,
// so log lines from consecutive runs sort together.
type RunIDGenerator struct {
	sf *sonyflake.Sonyflake
}

// NewRunIDGenerator creates a generator seeded from the host's private IP.
func NewRunIDGenerator() (*RunIDGenerator, error) {
	sf, err := sonyflake.New(sonyflake.Settings{StartTime: epoch})
	if err != nil {
		return nil, err
	}
	if sf == nil {
		return nil, errors.New("failed to create Sonyflake instance")
	}
	return &RunIDGenerator{sf: sf}, nil
}

// NextID returns the next ID. If the flake clock is exhausted it falls back
// to a random positive value.
func (g *RunIDGenerator) NextID() int64 {
	v, err := g.sf.NextID()
	if err != nil {
		return rand.Int64()
	}
	return int64(v)
}

// NextString returns NextID in base 36.
func (g *RunIDGenerator) NextString() string {
	return strconv.FormatInt(g.NextID(), 36)
}

// NextRunID returns an ID from a throwaway generator, or a random one when
// no generator can be built (for example on hosts without a private IP).
func NextRunID() int64 {
	g, err := NewRunIDGenerator()
	if err != nil {
		return rand.Int64()
	}
	return g.NextID()
}
