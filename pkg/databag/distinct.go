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

// NewDistinct returns a sorted bag that drops duplicates. In memory a hash
// set absorbs repeated items, which are not counted by Size; across spill
// runs the merged output collapses adjacent equal items. Until the first
// spill the iterator yields items in hash order.
func NewDistinct[E comparable](policy ThresholdPolicy[E], factory spillcodec.Factory[E], compare func(a, b E) int, opts ...Option) (*Bag[E], error) {
	b, err := newBag[E](policy, factory, newSetBuffer[E](), opts)
	if err != nil {
		return nil, err
	}
	b.compare = resolveCompare(compare)
	b.equal = func(a, b E) bool { return a == b }
	return b, nil
}

func (b *Bag[E]) distinctIterator() (Iterator[E], error) {
	if !b.spilled {
		// Items in the set are already unique; no need to sort them.
		b.finishedAdding = true
		return newSliceIterator(b.buf.items()), nil
	}
	it, err := b.mergedIterator(b.netTracking)
	if err != nil {
		return nil, err
	}
	return track(b.iterators, it), nil
}
