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

	"github.com/hashicorp/go-multierror"
)

// iteratorRegistry remembers every resource-holding iterator a bag has
// handed out and not yet seen closed, so Bag.Close can close the ones a
// caller forgot about.
type iteratorRegistry struct {
	nextID uint64
	open   map[uint64]forceCloser
}

type forceCloser interface {
	forceClose() error
}

func newIteratorRegistry() *iteratorRegistry {
	return &iteratorRegistry{open: make(map[uint64]forceCloser)}
}

func (r *iteratorRegistry) add(c forceCloser) uint64 {
	r.nextID++
	r.open[r.nextID] = c
	return r.nextID
}

func (r *iteratorRegistry) release(id uint64) {
	delete(r.open, id)
}

func (r *iteratorRegistry) len() int {
	return len(r.open)
}

// closeAll force-closes every iterator still registered.
func (r *iteratorRegistry) closeAll() error {
	var result *multierror.Error
	for id, c := range r.open {
		if err := c.forceClose(); err != nil {
			result = multierror.Append(result, err)
		}
		delete(r.open, id)
	}
	return result.ErrorOrNil()
}

// trackedIterator deregisters itself when closed or exhausted.
type trackedIterator[E any] struct {
	inner    Iterator[E]
	registry *iteratorRegistry
	id       uint64
	closed   bool
	forced   bool
}

func track[E any](registry *iteratorRegistry, inner Iterator[E]) *trackedIterator[E] {
	t := &trackedIterator[E]{inner: inner, registry: registry}
	t.id = registry.add(t)
	return t
}

func (t *trackedIterator[E]) Next() (E, error) {
	var zero E
	if t.forced {
		return zero, ErrClosed
	}
	if t.closed {
		return zero, io.EOF
	}
	item, err := t.inner.Next()
	if errors.Is(err, io.EOF) {
		// Exhausted: give the file handles back now rather than at Close.
		_ = t.Close()
	}
	return item, err
}

func (t *trackedIterator[E]) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.registry.release(t.id)
	return t.inner.Close()
}

func (t *trackedIterator[E]) forceClose() error {
	t.forced = true
	return t.Close()
}
