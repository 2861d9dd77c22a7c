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
)

// CollapseIterator drops runs of equal items from a sorted stream. Because
// a sorted stream keeps equal items adjacent, the output has no duplicates.
type CollapseIterator[E any] struct {
	src        Iterator[E]
	equal      func(a, b E) bool
	pending    E
	hasPending bool
	err        error
}

// Collapse wraps src, which must be sorted so that equal items are adjacent.
// Closing the result closes src.
func Collapse[E any](src Iterator[E], equal func(a, b E) bool) *CollapseIterator[E] {
	return &CollapseIterator[E]{src: src, equal: equal}
}

// CollapseComparable is Collapse using ==.
func CollapseComparable[E comparable](src Iterator[E]) *CollapseIterator[E] {
	return Collapse(src, func(a, b E) bool { return a == b })
}

func (c *CollapseIterator[E]) Next() (E, error) {
	var current E
	if c.hasPending {
		current = c.pending
		c.hasPending = false
	} else {
		if c.err != nil {
			return current, c.err
		}
		item, err := c.src.Next()
		if err != nil {
			return current, err
		}
		current = item
	}

	// Skip everything equal to current; keep the first different item.
	for c.err == nil {
		item, err := c.src.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.err = err
			} else {
				c.err = io.EOF
			}
			break
		}
		if !c.equal(item, current) {
			c.pending = item
			c.hasPending = true
			break
		}
	}

	return current, nil
}

func (c *CollapseIterator[E]) Close() error {
	c.hasPending = false
	return c.src.Close()
}
