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
	"cmp"
	"fmt"
	"reflect"
	"strings"
)

// Comparer is implemented by types with their own natural ordering.
type Comparer[E any] interface {
	Compare(other E) int
}

// Natural returns the natural ordering for an ordered type.
func Natural[E cmp.Ordered]() func(a, b E) int {
	return cmp.Compare[E]
}

// resolveCompare returns compare, or the natural ordering when it is nil.
func resolveCompare[E any](compare func(a, b E) int) func(a, b E) int {
	if compare != nil {
		return compare
	}
	return compareNatural[E]
}

// compareNatural orders nil before everything else, then defers to Comparer,
// then to the underlying kind for numbers, strings and bools. Any other type
// panics with ErrNoNaturalOrder.
func compareNatural[E any](a, b E) int {
	aNil, bNil := isNil(any(a)), isNil(any(b))
	switch {
	case aNil && bNil:
		return 0
	case aNil:
		return -1
	case bNil:
		return 1
	}

	if c, ok := any(a).(Comparer[E]); ok {
		return c.Compare(b)
	}

	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		panic(fmt.Errorf("%w: cannot compare %T with %T", ErrNoNaturalOrder, any(a), any(b)))
	}

	switch va.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(va.Int(), vb.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(va.Uint(), vb.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(va.Float(), vb.Float())
	case reflect.String:
		return strings.Compare(va.String(), vb.String())
	case reflect.Bool:
		switch {
		case va.Bool() == vb.Bool():
			return 0
		case !va.Bool():
			return -1
		default:
			return 1
		}
	}
	panic(fmt.Errorf("%w: %T", ErrNoNaturalOrder, any(a)))
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
