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

	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// NewUnordered returns a bag that keeps items in insertion order. Once the
// policy is first exceeded the buffered items move to a single spill file
// and every later item is streamed straight into it. A nil policy never
// spills.
func NewUnordered[E any](policy ThresholdPolicy[E], factory spillcodec.Factory[E], opts ...Option) (*Bag[E], error) {
	return newBag(policy, factory, &sliceBuffer[E]{}, opts)
}

func (b *Bag[E]) addUnordered(item E) error {
	if b.writer == nil && b.policy.IsThresholdExceeded() {
		if err := b.startStreaming(); err != nil {
			return err
		}
	}

	if b.writer != nil {
		if err := b.writer.send(item); err != nil {
			return err
		}
		spilledItemsCounter.Add(context.Background(), 1)
	} else {
		b.buf.add(item)
	}

	b.policy.Increment(item)
	b.size++
	return nil
}

// startStreaming opens the bag's only spill file and drains the buffer into
// it. The writer stays open until the write phase ends.
func (b *Bag[E]) startStreaming() error {
	w, err := createSpillWriter(b.files, b.factory)
	if err != nil {
		return err
	}

	for _, buffered := range b.buf.items() {
		if err := w.send(buffered); err != nil {
			w.discard()
			return err
		}
	}
	b.registerSpill(w.path)

	drained := b.buf.len()
	b.buf.reset()
	b.writer = w
	b.spilled = true
	b.spillCount++

	spillCounter.Add(context.Background(), 1)
	spilledItemsCounter.Add(context.Background(), int64(drained))
	b.logger.Debug("Data bag started streaming to spill file",
		slog.String("path", w.path),
		slog.Int("bufferedItems", drained))
	return nil
}

// Flush pushes items streamed so far to the spill file without ending the
// write phase. It does nothing before the first spill.
func (b *Bag[E]) Flush() error {
	if b.closed {
		return ErrClosed
	}
	if b.writer == nil {
		return nil
	}
	return b.writer.flush()
}

func (b *Bag[E]) unorderedIterator() (Iterator[E], error) {
	if !b.finishedAdding {
		b.finishedAdding = true
		if b.writer != nil {
			err := b.writer.close()
			b.writer = nil
			if err != nil {
				return nil, err
			}
		}
	}

	if !b.spilled {
		return newSliceIterator(b.buf.items()), nil
	}

	r, err := openSpillReader(b.files, b.factory, b.files.paths[0])
	if err != nil {
		return nil, err
	}
	return track[E](b.iterators, r), nil
}
