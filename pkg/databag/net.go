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
	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// NetBag is a distinct bag that can say, while items are added, whether an
// item is certainly new. Up to the first spill every answer is exact. After
// that NetAdd always answers false and NetIterator later yields exactly the
// items that were not already reported, minus those that turned out to be
// in the first spill file.
type NetBag[E comparable] struct {
	*Bag[E]
}

// NewDistinctNet returns a net-tracking distinct bag.
func NewDistinctNet[E comparable](policy ThresholdPolicy[E], factory spillcodec.Factory[E], compare func(a, b E) int, opts ...Option) (*NetBag[E], error) {
	b, err := NewDistinct(policy, factory, compare, opts...)
	if err != nil {
		return nil, err
	}
	b.netTracking = true
	return &NetBag[E]{Bag: b}, nil
}

// NetAdd adds item and reports whether it is known to be new: true only if
// the bag grew and nothing has ever been spilled.
func (n *NetBag[E]) NetAdd(item E) (bool, error) {
	before := n.size
	if err := n.Add(item); err != nil {
		return false, err
	}
	return n.size > before && !n.spilled, nil
}

// NetIterator ends the write phase and yields the distinct items for which
// NetAdd could not give an answer and which are not in the first spill file.
// It is empty if the bag never spilled.
func (n *NetBag[E]) NetIterator() (Iterator[E], error) {
	if n.closed {
		return nil, ErrClosed
	}
	if !n.spilled {
		n.finishedAdding = true
		return Empty[E](), nil
	}

	// Build the merge first so compaction never runs with the exclusions open.
	rest, err := n.mergedIterator(false)
	if err != nil {
		return nil, err
	}

	exclusions, err := openSpillReader(n.files, n.factory, n.firstSpill)
	if err != nil {
		_ = rest.Close()
		return nil, err
	}

	return track[E](n.iterators, Difference[E](rest, exclusions, n.compare)), nil
}
