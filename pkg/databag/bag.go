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
	"errors"
	"log/slog"

	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// Bag is the single engine behind every bag flavour. The flavour is fixed
// at construction by three strategies: whether spilled runs are sorted,
// whether duplicates are collapsed, and whether the first spill file is
// kept apart for net tracking.
type Bag[E any] struct {
	policy  ThresholdPolicy[E]
	factory spillcodec.Factory[E]
	config  Config
	logger  *slog.Logger

	// compare is nil for unordered bags.
	compare func(a, b E) int
	// equal is non-nil for distinct bags.
	equal func(a, b E) bool
	// netTracking keeps the first spill file out of files.paths.
	netTracking bool

	buf buffer[E]
	// resident is the sorted snapshot of buf taken when a sorted bag
	// finishes its write phase.
	resident []E

	files      *spillFiles
	iterators  *iteratorRegistry
	writer     *spillWriter[E]
	firstSpill string

	size           int64
	spillCount     int
	finishedAdding bool
	spilled        bool
	closed         bool
}

func newBag[E any](policy ThresholdPolicy[E], factory spillcodec.Factory[E], buf buffer[E], opts []Option) (*Bag[E], error) {
	if factory == nil {
		return nil, errors.New("databag: serialization factory is required")
	}
	if policy == nil {
		policy = Never[E]()
	}

	s := settings{logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(&s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}

	return &Bag[E]{
		policy:    policy,
		factory:   factory,
		config:    s.config,
		logger:    s.logger,
		buf:       buf,
		files:     newSpillFiles(s.config.GetTempDir(), s.config.GetBufferSize()),
		iterators: newIteratorRegistry(),
	}, nil
}

// Add puts one item into the bag.
func (b *Bag[E]) Add(item E) error {
	if err := b.checkWritable(); err != nil {
		return err
	}
	if b.compare == nil {
		return b.addUnordered(item)
	}
	return b.addSorted(item)
}

// AddAll adds items in order, stopping at the first error.
func (b *Bag[E]) AddAll(items ...E) error {
	for _, item := range items {
		if err := b.Add(item); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bag[E]) checkWritable() error {
	if b.closed {
		return ErrClosed
	}
	if b.finishedAdding {
		return ErrFinishedAdding
	}
	return nil
}

// Iterator ends the write phase and returns an iterator over every item.
// It may be called repeatedly; each call starts from the beginning.
func (b *Bag[E]) Iterator() (Iterator[E], error) {
	if b.closed {
		return nil, ErrClosed
	}
	switch {
	case b.compare == nil:
		return b.unorderedIterator()
	case b.equal != nil:
		return b.distinctIterator()
	default:
		return b.sortedIterator()
	}
}

// Size is the number of items added, spilled or not. Duplicates absorbed
// by distinct bags are not counted.
func (b *Bag[E]) Size() int64 {
	return b.size
}

// IsEmpty reports whether nothing has been added.
func (b *Bag[E]) IsEmpty() bool {
	return b.size == 0
}

// IsSorted reports whether Iterator yields items in order. A distinct bag
// that never spilled yields them in hash order.
func (b *Bag[E]) IsSorted() bool {
	if b.compare == nil {
		return false
	}
	if b.equal != nil {
		return b.spilled
	}
	return true
}

// IsDistinct reports whether the bag drops duplicates.
func (b *Bag[E]) IsDistinct() bool {
	return b.equal != nil
}

// Spilled reports whether any item has been written to disk.
func (b *Bag[E]) Spilled() bool {
	return b.spilled
}

// SpillCount is the number of spill events so far.
func (b *Bag[E]) SpillCount() int {
	return b.spillCount
}

// registerSpill records a new spill file. For net-tracking bags the very
// first file is kept aside.
func (b *Bag[E]) registerSpill(path string) {
	if b.netTracking && b.firstSpill == "" {
		b.firstSpill = path
		return
	}
	b.files.register(path)
}

// Close ends the bag: the open spill writer and every iterator still open
// are closed, all spill files are deleted and the buffer is released.
// Calling Close again does nothing.
func (b *Bag[E]) Close() error {
	if b.closed {
		return nil
	}
	b.closed = true

	var result *multierror.Error
	if b.writer != nil {
		if err := b.writer.close(); err != nil {
			result = multierror.Append(result, err)
		}
		b.writer = nil
	}

	abandoned := b.iterators.len()
	if err := b.iterators.closeAll(); err != nil {
		result = multierror.Append(result, err)
	}

	removed, err := b.files.removeAll(b.firstSpill)
	if err != nil {
		result = multierror.Append(result, err)
	}
	b.firstSpill = ""
	if removed > 0 {
		spillFileRemovedCounter.Add(context.Background(), int64(removed))
	}

	b.buf.reset()
	b.resident = nil

	if b.spilled || abandoned > 0 {
		b.logger.Debug("Closed data bag",
			slog.Int64("size", b.size),
			slog.Int("spills", b.spillCount),
			slog.Int("removedFiles", removed),
			slog.Int("abandonedIterators", abandoned))
	}

	return result.ErrorOrNil()
}
