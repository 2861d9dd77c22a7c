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

package databag

import (
	"strings"

	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// ThresholdPolicy decides when a bag must move its in-memory items to disk.
//
// Increment is called once for every accepted item. IsThresholdExceeded must
// not change state and is valid before the first Increment. Reset is called
// once after every spill so the policy re-arms for the next batch.
type ThresholdPolicy[E any] interface {
	Increment(item E)
	IsThresholdExceeded() bool
	Reset()
}

type neverPolicy[E any] struct{}

// Never returns a policy that never asks for a spill.
func Never[E any]() ThresholdPolicy[E] {
	return neverPolicy[E]{}
}

func (neverPolicy[E]) Increment(E)               {}
func (neverPolicy[E]) IsThresholdExceeded() bool { return false }
func (neverPolicy[E]) Reset()                    {}

// CountPolicy is exceeded once Limit items have been counted.
type CountPolicy[E any] struct {
	limit int64
	count int64
}

// NewCountPolicy returns a count-based policy. A limit of zero (or less)
// means every add finds the threshold already exceeded.
func NewCountPolicy[E any](limit int64) *CountPolicy[E] {
	if limit < 0 {
		limit = 0
	}
	return &CountPolicy[E]{limit: limit}
}

func (p *CountPolicy[E]) Increment(E) {
	p.count++
}

func (p *CountPolicy[E]) IsThresholdExceeded() bool {
	return p.count >= p.limit
}

func (p *CountPolicy[E]) Reset() {
	p.count = 0
}

// Count returns the number of items counted since the last reset.
func (p *CountPolicy[E]) Count() int64 {
	return p.count
}

// Limit returns the configured limit.
func (p *CountPolicy[E]) Limit() int64 {
	return p.limit
}

// MemoryPolicy sums an estimated byte size per item and is exceeded once the
// total reaches Limit. Estimates are only as good as the estimator.
type MemoryPolicy[E any] struct {
	limit    int64
	size     int64
	estimate func(E) int64
}

// NewMemoryPolicy returns a memory-based policy using estimate for item sizes.
// A nil estimate uses spillcodec.EstimateSize.
func NewMemoryPolicy[E any](limit int64, estimate func(E) int64) *MemoryPolicy[E] {
	if limit < 0 {
		limit = 0
	}
	if estimate == nil {
		estimate = func(item E) int64 { return spillcodec.EstimateSize(item) }
	}
	return &MemoryPolicy[E]{limit: limit, estimate: estimate}
}

// NewMemoryPolicyFor returns a memory-based policy that asks factory for sizes.
func NewMemoryPolicyFor[E any](limit int64, factory spillcodec.Factory[E]) *MemoryPolicy[E] {
	return NewMemoryPolicy(limit, factory.EstimatedMemorySize)
}

func (p *MemoryPolicy[E]) Increment(item E) {
	p.size += p.estimate(item)
}

func (p *MemoryPolicy[E]) IsThresholdExceeded() bool {
	return p.size >= p.limit
}

func (p *MemoryPolicy[E]) Reset() {
	p.size = 0
}

// Size returns the estimated bytes accumulated since the last reset.
func (p *MemoryPolicy[E]) Size() int64 {
	return p.size
}

// NewPolicy builds a policy from configuration. factory is only consulted
// for the memory kind and may be nil otherwise.
func NewPolicy[E any](cfg ThresholdConfig, factory spillcodec.Factory[E]) (ThresholdPolicy[E], error) {
	switch strings.ToLower(cfg.Kind) {
	case "", ThresholdNever:
		return Never[E](), nil
	case ThresholdCount:
		return NewCountPolicy[E](cfg.Limit), nil
	case ThresholdMemory:
		if factory == nil {
			return NewMemoryPolicy[E](cfg.Limit, nil), nil
		}
		return NewMemoryPolicyFor(cfg.Limit, factory), nil
	}
	return nil, &ConfigError{Field: "Threshold.Kind", Message: "unknown kind " + `"` + cfg.Kind + `"`}
}
