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
	mapset "github.com/deckarep/golang-set/v2"
)

// buffer is the in-memory part of a bag.
type buffer[E any] interface {
	// add stores item and reports whether it was accepted.
	add(item E) bool
	contains(item E) bool
	len() int
	// items returns the buffered items. For ordered buffers this is the
	// backing slice itself, so sorting it sorts the buffer.
	items() []E
	reset()
}

// sliceBuffer keeps insertion order and accepts duplicates.
type sliceBuffer[E any] struct {
	data []E
}

func (b *sliceBuffer[E]) add(item E) bool {
	b.data = append(b.data, item)
	return true
}

func (b *sliceBuffer[E]) contains(E) bool { return false }
func (b *sliceBuffer[E]) len() int        { return len(b.data) }
func (b *sliceBuffer[E]) items() []E      { return b.data }

// reset drops the backing slice without zeroing it; an iterator handed out
// earlier may still be reading it.
func (b *sliceBuffer[E]) reset() {
	b.data = nil
}

// setBuffer absorbs duplicates. Iteration order is unspecified.
type setBuffer[E comparable] struct {
	set mapset.Set[E]
}

func newSetBuffer[E comparable]() *setBuffer[E] {
	return &setBuffer[E]{set: mapset.NewThreadUnsafeSet[E]()}
}

func (b *setBuffer[E]) add(item E) bool      { return b.set.Add(item) }
func (b *setBuffer[E]) contains(item E) bool { return b.set.Contains(item) }
func (b *setBuffer[E]) len() int             { return b.set.Cardinality() }
func (b *setBuffer[E]) items() []E           { return b.set.ToSlice() }

func (b *setBuffer[E]) reset() {
	b.set = mapset.NewThreadUnsafeSet[E]()
}
