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
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingIterator yields items, then fails with err.
type failingIterator[E any] struct {
	items  []E
	err    error
	closed bool
}

func (f *failingIterator[E]) Next() (E, error) {
	if len(f.items) == 0 {
		var zero E
		return zero, f.err
	}
	item := f.items[0]
	f.items = f.items[1:]
	return item, nil
}

func (f *failingIterator[E]) Close() error {
	f.closed = true
	return nil
}

func TestMerge_InterleavesSortedSources(t *testing.T) {
	m, err := Merge(cmp.Compare[int],
		FromSlice([]int{1, 4, 7, 10}),
		FromSlice([]int{2, 5, 8}),
		FromSlice([]int{}),
		FromSlice([]int{0, 3, 6, 9, 11}),
	)
	require.NoError(t, err)

	got, err := Collect[int](m)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}, got)
}

func TestMerge_KeepsDuplicatesAcrossSources(t *testing.T) {
	m, err := Merge(cmp.Compare[string],
		FromSlice([]string{"a", "b", "b"}),
		FromSlice([]string{"b", "c"}),
	)
	require.NoError(t, err)

	got, err := Collect[string](m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "b", "b", "c"}, got)
}

func TestMerge_NoSources(t *testing.T) {
	m, err := Merge[int](nil)
	require.NoError(t, err)

	_, err = m.Next()
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, m.Close())
}

func TestMerge_PrimeFailureClosesSources(t *testing.T) {
	boom := errors.New("boom")
	good := &failingIterator[int]{items: []int{1}, err: io.EOF}
	bad := &failingIterator[int]{err: boom}

	_, err := Merge(cmp.Compare[int], good, bad)
	require.ErrorIs(t, err, boom)
	assert.True(t, good.closed)
	assert.True(t, bad.closed)
}

func TestMerge_RefillFailureSurfacesAfterHeldItem(t *testing.T) {
	boom := errors.New("boom")
	m, err := Merge(cmp.Compare[int],
		&failingIterator[int]{items: []int{1}, err: boom},
		FromSlice([]int{5}),
	)
	require.NoError(t, err)

	v, err := m.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = m.Next()
	assert.ErrorIs(t, err, boom)
}

func TestMerge_NilCompareUsesNaturalOrder(t *testing.T) {
	m, err := Merge[string](nil, FromSlice([]string{"b", "d"}), FromSlice([]string{"a", "c"}))
	require.NoError(t, err)
	got, err := Collect[string](m)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d"}, got)
}

func TestCollapse(t *testing.T) {
	got, err := Collect[int](CollapseComparable[int](FromSlice([]int{1, 1, 2, 2, 2, 3, 4, 4})))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4}, got)

	got, err = Collect[int](CollapseComparable[int](FromSlice([]int{})))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCollapse_NilEqualsNil(t *testing.T) {
	x := 1
	got, err := Collect[*int](CollapseComparable[*int](FromSlice([]*int{nil, nil, &x, &x})))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Nil(t, got[0])
	assert.Equal(t, &x, got[1])
}

func TestCollapse_LookaheadErrorIsDeferred(t *testing.T) {
	boom := errors.New("boom")
	c := CollapseComparable[int](&failingIterator[int]{items: []int{7, 7}, err: boom})

	v, err := c.Next()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = c.Next()
	assert.ErrorIs(t, err, boom)
}

func TestDifference(t *testing.T) {
	tests := []struct {
		name       string
		filtered   []int
		exclusions []int
		want       []int
	}{
		{"interleaved", []int{1, 3, 5, 7}, []int{2, 3, 4, 7, 9}, []int{1, 5}},
		{"exclusions exhausted early", []int{1, 2, 8, 9, 10}, []int{2}, []int{1, 8, 9, 10}},
		{"everything excluded", []int{1, 2}, []int{0, 1, 2, 3}, nil},
		{"empty exclusions", []int{4, 5}, nil, []int{4, 5}},
		{"empty filtered", nil, []int{1}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Difference(FromSlice(tt.filtered), FromSlice(tt.exclusions), cmp.Compare[int])
			got, err := Collect[int](d)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDifference_NilExclusions(t *testing.T) {
	d := Difference[int](FromSlice([]int{1, 2, 3}), nil, nil)
	got, err := Collect[int](d)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, got)
}

func TestDifference_NaturalOrderPutsNilFirst(t *testing.T) {
	d := Difference[any](FromSlice([]any{nil, 1, 2}), FromSlice([]any{nil, 2}), nil)
	got, err := Collect[any](d)
	require.NoError(t, err)
	assert.Equal(t, []any{1}, got)
}

type version struct{ major, minor int }

func (v version) Compare(o version) int {
	if c := cmp.Compare(v.major, o.major); c != 0 {
		return c
	}
	return cmp.Compare(v.minor, o.minor)
}

type opaque struct{ v int }

func TestCompareNatural(t *testing.T) {
	assert.Equal(t, -1, compareNatural(1, 2))
	assert.Equal(t, 1, compareNatural("b", "a"))
	assert.Equal(t, 0, compareNatural(2.5, 2.5))
	assert.Equal(t, -1, compareNatural(false, true))
	assert.Equal(t, -1, compareNatural(uint8(1), uint8(9)))
	assert.Equal(t, 1, compareNatural(version{2, 0}, version{1, 9}))

	type celsius float64
	assert.Equal(t, -1, compareNatural(celsius(-3), celsius(4)))

	x := 3
	assert.Equal(t, -1, compareNatural[*int](nil, &x))
	assert.Equal(t, 0, compareNatural[*int](nil, nil))
	assert.Equal(t, -1, compareNatural[any](nil, "a"))

	assert.Panics(t, func() { compareNatural(opaque{1}, opaque{2}) })
	assert.Panics(t, func() { compareNatural[any](1, "a") })
}

// hiccupIterator fails once, just before yielding items[failAt].
type hiccupIterator[E any] struct {
	items  []E
	failAt int
	err    error
	pos    int
	failed bool
}

func (h *hiccupIterator[E]) Next() (E, error) {
	if h.pos == h.failAt && !h.failed {
		h.failed = true
		var zero E
		return zero, h.err
	}
	if h.pos >= len(h.items) {
		var zero E
		return zero, io.EOF
	}
	item := h.items[h.pos]
	h.pos++
	return item, nil
}

func (h *hiccupIterator[E]) Close() error { return nil }

func TestDifference_KeepsCandidateAcrossExclusionError(t *testing.T) {
	boom := errors.New("exclusions unavailable")
	d := Difference[int](
		FromSlice([]int{1, 2, 3, 4}),
		&hiccupIterator[int]{items: []int{2, 3}, failAt: 1, err: boom},
		cmp.Compare[int],
	)

	var got []int
	var errs []error
	for {
		v, err := d.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		got = append(got, v)
	}

	assert.Equal(t, []int{1, 4}, got, "3 is still checked against the exclusions after the error")
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], boom)
}
