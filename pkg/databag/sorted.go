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
	"context"
	"log/slog"
	"slices"

	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// NewSorted returns a bag whose iterator yields items ordered by compare.
// Every spill writes a sorted run to its own file; reading merges the runs
// with the items still in memory. A nil compare uses the natural ordering
// of E and panics at comparison time if E has none.
func NewSorted[E any](policy ThresholdPolicy[E], factory spillcodec.Factory[E], compare func(a, b E) int, opts ...Option) (*Bag[E], error) {
	b, err := newBag(policy, factory, &sliceBuffer[E]{}, opts)
	if err != nil {
		return nil, err
	}
	b.compare = resolveCompare(compare)
	return b, nil
}

func (b *Bag[E]) addSorted(item E) error {
	// A duplicate already in memory can be dropped without touching the policy.
	if b.equal != nil && b.buf.contains(item) {
		return nil
	}

	if b.policy.IsThresholdExceeded() {
		if err := b.spill(); err != nil {
			return err
		}
	}

	if b.buf.add(item) {
		b.policy.Increment(item)
		b.size++
	}
	return nil
}

// spill writes the buffer to a new spill file as one sorted run.
func (b *Bag[E]) spill() error {
	if b.buf.len() == 0 {
		return nil
	}

	items := b.buf.items()
	slices.SortFunc(items, b.compare)

	w, err := createSpillWriter(b.files, b.factory)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := w.send(item); err != nil {
			w.discard()
			return err
		}
	}
	if err := w.close(); err != nil {
		w.discard()
		return err
	}
	b.registerSpill(w.path)

	b.spilled = true
	b.spillCount++
	b.policy.Reset()
	b.buf.reset()

	spillCounter.Add(context.Background(), 1)
	spilledItemsCounter.Add(context.Background(), w.count)
	b.logger.Debug("Spilled data bag buffer",
		slog.String("path", w.path),
		slog.Int64("items", w.count),
		slog.Int("spillCount", b.spillCount))
	return nil
}

// compact merges the oldest spill files into one until no more than
// MaxSpillFiles remain, so the final merge never holds more open files
// than that. The buffer joins only the first pass of the first call.
func (b *Bag[E]) compact() error {
	limit := b.config.GetMaxSpillFiles()
	firstPass := true

	for len(b.files.paths) > limit {
		batch := slices.Clone(b.files.paths[:limit])
		withMemory := firstPass && !b.finishedAdding && b.buf.len() > 0

		if err := b.mergeInto(batch, withMemory); err != nil {
			return err
		}
		firstPass = false
	}
	return nil
}

// mergeInto merges the files in batch (and optionally the buffer) into one
// new spill file that takes their place at the front of the list. On failure
// the output is deleted and the batch and buffer are left as they were.
func (b *Bag[E]) mergeInto(batch []string, withMemory bool) error {
	w, err := createSpillWriter(b.files, b.factory)
	if err != nil {
		return err
	}

	sources, err := openSpillReaders(b.files, b.factory, batch)
	if err != nil {
		w.discard()
		return err
	}
	if withMemory {
		items := b.buf.items()
		slices.SortFunc(items, b.compare)
		sources = append(sources, newSliceIterator(items))
	}

	merged, err := Merge(b.compare, sources...)
	if err != nil {
		w.discard()
		return err
	}
	var it Iterator[E] = merged
	if b.equal != nil {
		it = Collapse(it, b.equal)
	}

	for item, err := range All(it) {
		if err == nil {
			err = w.send(item)
		}
		if err != nil {
			w.discard()
			return err
		}
	}
	if err := w.close(); err != nil {
		w.discard()
		return err
	}

	// paths is [batch..., rest...]; make it [output, rest...].
	b.files.paths = append([]string{w.path}, b.files.paths[len(batch):]...)
	if withMemory {
		b.buf.reset()
	}

	removed := 0
	for _, path := range batch {
		if err := removePath(path); err != nil {
			b.logger.Warn("Failed to remove merged spill file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		removed++
	}

	compactionCounter.Add(context.Background(), 1)
	spillFileRemovedCounter.Add(context.Background(), int64(removed))
	b.logger.Debug("Compacted spill files",
		slog.Int("merged", len(batch)),
		slog.Bool("withMemory", withMemory),
		slog.String("path", w.path),
		slog.Int64("items", w.count),
		slog.Int("remaining", len(b.files.paths)))
	return nil
}

// finishWrite ends the write phase, leaving the buffer sorted in resident.
func (b *Bag[E]) finishWrite() {
	if b.finishedAdding {
		return
	}
	b.finishedAdding = true
	b.resident = b.buf.items()
	if len(b.resident) > 1 {
		slices.SortFunc(b.resident, b.compare)
	}
}

func (b *Bag[E]) sortedIterator() (Iterator[E], error) {
	it, err := b.mergedIterator(true)
	if err != nil {
		return nil, err
	}
	if !b.spilled {
		return it, nil
	}
	return track(b.iterators, it), nil
}

// mergedIterator compacts, finishes the write phase and merges every spill
// run with the resident items. The result is not registered. The first
// spill file of a net-tracking bag is included only when includeFirst is set.
func (b *Bag[E]) mergedIterator(includeFirst bool) (Iterator[E], error) {
	if err := b.compact(); err != nil {
		return nil, err
	}
	b.finishWrite()

	if !b.spilled {
		return newSliceIterator(b.resident), nil
	}

	paths := b.files.paths
	if includeFirst && b.firstSpill != "" {
		paths = append([]string{b.firstSpill}, paths...)
	}
	sources, err := openSpillReaders(b.files, b.factory, paths)
	if err != nil {
		return nil, err
	}
	if len(b.resident) > 0 {
		sources = append(sources, newSliceIterator(b.resident))
	}

	merged, err := Merge(b.compare, sources...)
	if err != nil {
		return nil, err
	}
	if b.equal != nil {
		return Collapse[E](merged, b.equal), nil
	}
	return merged, nil
}
