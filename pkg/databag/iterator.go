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
	"errors"
	"io"
	"iter"
)

// Iterator yields items one at a time. Next returns io.EOF once exhausted
// and keeps returning it afterwards. Close releases any file handle behind
// the iterator and may be called more than once.
type Iterator[E any] interface {
	Next() (E, error)
	Close() error
}

type sliceIterator[E any] struct {
	items []E
	pos   int
}

func newSliceIterator[E any](items []E) *sliceIterator[E] {
	return &sliceIterator[E]{items: items}
}

func (it *sliceIterator[E]) Next() (E, error) {
	if it.pos >= len(it.items) {
		var zero E
		return zero, io.EOF
	}
	item := it.items[it.pos]
	it.pos++
	return item, nil
}

func (it *sliceIterator[E]) Close() error {
	it.pos = len(it.items)
	return nil
}

// Empty returns an iterator with nothing in it.
func Empty[E any]() Iterator[E] {
	return newSliceIterator[E](nil)
}

// FromSlice returns an iterator over items. The slice is not copied.
func FromSlice[E any](items []E) Iterator[E] {
	return newSliceIterator(items)
}

// All adapts it to a range-over-func sequence. The iterator is closed when
// the loop ends, whether it ran to completion or not. A non-EOF error is
// yielded once as the final pair.
func All[E any](it Iterator[E]) iter.Seq2[E, error] {
	return func(yield func(E, error) bool) {
		defer it.Close()
		for {
			item, err := it.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				var zero E
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// Collect drains it into a slice and closes it.
func Collect[E any](it Iterator[E]) ([]E, error) {
	var out []E
	for item, err := range All(it) {
		if err != nil {
			return out, err
		}
		out = append(out, item)
	}
	return out, nil
}
