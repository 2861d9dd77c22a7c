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

// DiffIterator yields the items of one sorted, duplicate-free stream that do
// not occur in another, in a single forward pass over both.
type DiffIterator[E any] struct {
	filtered   Iterator[E]
	exclusions Iterator[E]
	compare    func(a, b E) int

	exclusion     E
	haveExclusion bool
	exclusionsEOF bool

	// pending holds a candidate whose check was cut short by an error.
	pending     E
	havePending bool
}

// Difference returns filtered minus exclusions. Both must be sorted by
// compare (nil means natural ordering) and free of duplicates. A nil
// exclusions iterator behaves as the empty set. Closing the result closes
// both inputs.
func Difference[E any](filtered, exclusions Iterator[E], compare func(a, b E) int) *DiffIterator[E] {
	return &DiffIterator[E]{
		filtered:      filtered,
		exclusions:    exclusions,
		compare:       resolveCompare(compare),
		exclusionsEOF: exclusions == nil,
	}
}

func (d *DiffIterator[E]) Next() (E, error) {
candidates:
	for {
		var candidate E
		if d.havePending {
			candidate, d.havePending = d.pending, false
		} else {
			var err error
			if candidate, err = d.filtered.Next(); err != nil {
				return candidate, err
			}
		}

		for !d.exclusionsEOF {
			if !d.haveExclusion {
				ex, err := d.exclusions.Next()
				if errors.Is(err, io.EOF) {
					d.exclusionsEOF = true
					break
				}
				if err != nil {
					d.pending, d.havePending = candidate, true
					var zero E
					return zero, err
				}
				d.exclusion = ex
				d.haveExclusion = true
			}

			c := d.compare(candidate, d.exclusion)
			switch {
			case c < 0:
				return candidate, nil
			case c == 0:
				d.haveExclusion = false
				continue candidates
			default:
				d.haveExclusion = false
			}
		}

		return candidate, nil
	}
}

func (d *DiffIterator[E]) Close() error {
	var result *multierror.Error
	if err := d.filtered.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if d.exclusions != nil {
		if err := d.exclusions.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
