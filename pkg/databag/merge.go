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
	"container/heap"
	"errors"
	"io"

	"github.com/hashicorp/go-multierror"
)

// mergeEntry is the current head of one source.
type mergeEntry[E any] struct {
	item   E
	source int
}

// mergeHeap is a min-heap of source heads ordered by compare.
type mergeHeap[E any] struct {
	entries []mergeEntry[E]
	compare func(a, b E) int
}

func (h *mergeHeap[E]) Len() int { return len(h.entries) }

func (h *mergeHeap[E]) Less(i, j int) bool {
	return h.compare(h.entries[i].item, h.entries[j].item) < 0
}

func (h *mergeHeap[E]) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *mergeHeap[E]) Push(x any) {
	h.entries = append(h.entries, x.(mergeEntry[E]))
}

func (h *mergeHeap[E]) Pop() any {
	n := len(h.entries) - 1
	entry := h.entries[n]
	h.entries = h.entries[:n]
	return entry
}

// MergeIterator merges sorted sources into one sorted stream. Items that
// compare equal may come out in any source order.
type MergeIterator[E any] struct {
	sources []Iterator[E]
	heap    mergeHeap[E]
	err     error
	closed  bool
}

// Merge builds a k-way merge over sources, each of which must already be
// sorted by compare (nil means natural ordering). The merge takes ownership
// of the sources: they are closed by MergeIterator.Close, or immediately if
// priming fails.
func Merge[E any](compare func(a, b E) int, sources ...Iterator[E]) (*MergeIterator[E], error) {
	m := &MergeIterator[E]{
		sources: sources,
		heap: mergeHeap[E]{
			entries: make([]mergeEntry[E], 0, len(sources)),
			compare: resolveCompare(compare),
		},
	}

	for i, src := range sources {
		item, err := src.Next()
		if errors.Is(err, io.EOF) {
			m.release(i)
			continue
		}
		if err != nil {
			_ = m.Close()
			return nil, err
		}
		m.heap.entries = append(m.heap.entries, mergeEntry[E]{item: item, source: i})
	}
	heap.Init(&m.heap)

	return m, nil
}

// Next returns the smallest remaining head and refills from its source.
func (m *MergeIterator[E]) Next() (E, error) {
	var zero E
	if m.err != nil {
		return zero, m.err
	}
	if m.closed || m.heap.Len() == 0 {
		return zero, io.EOF
	}

	top := m.heap.entries[0]
	next, err := m.sources[top.source].Next()
	switch {
	case err == nil:
		m.heap.entries[0].item = next
		heap.Fix(&m.heap, 0)
	case errors.Is(err, io.EOF):
		heap.Pop(&m.heap)
		m.release(top.source)
	default:
		// Hand out the item we already hold; the failure surfaces next call.
		heap.Pop(&m.heap)
		m.err = err
	}

	return top.item, nil
}

// release closes an exhausted source early so its file handle is not held
// for the rest of the merge.
func (m *MergeIterator[E]) release(i int) {
	if m.sources[i] != nil {
		_ = m.sources[i].Close()
		m.sources[i] = nil
	}
}

// Close closes every source that is still open.
func (m *MergeIterator[E]) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true

	var result *multierror.Error
	for i, src := range m.sources {
		if src == nil {
			continue
		}
		if err := src.Close(); err != nil {
			result = multierror.Append(result, err)
		}
		m.sources[i] = nil
	}
	m.heap.entries = nil
	return result.ErrorOrNil()
}
