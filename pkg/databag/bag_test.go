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
	"math/rand/v2"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// countingPolicy wraps CountPolicy and records how often it was reset,
// which equals the number of spills.
type countingPolicy[E any] struct {
	*CountPolicy[E]
	resets int
}

func (p *countingPolicy[E]) Reset() {
	p.resets++
	p.CountPolicy.Reset()
}

func spillFilesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "databag-") {
			names = append(names, e.Name())
		}
	}
	return names
}

func collectBag[E any](t *testing.T, b interface{ Iterator() (Iterator[E], error) }) []E {
	t.Helper()
	it, err := b.Iterator()
	require.NoError(t, err)
	items, err := Collect(it)
	require.NoError(t, err)
	return items
}

func TestUnorderedBag_KeepsInsertionOrderAcrossSpill(t *testing.T) {
	dir := t.TempDir()
	b, err := NewUnordered[string](NewCountPolicy[string](2), spillcodec.CBOR[string](), WithTempDir(dir))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Add("a"))
	require.NoError(t, b.Add("b"))
	assert.Equal(t, 0, b.SpillCount())
	assert.False(t, b.Spilled())

	require.NoError(t, b.Add("c"))
	assert.Equal(t, 1, b.SpillCount())
	assert.True(t, b.Spilled())
	require.NoError(t, b.Add("d"))
	assert.Equal(t, 1, b.SpillCount(), "an unordered bag spills only once")
	assert.Len(t, spillFilesIn(t, dir), 1)

	assert.Equal(t, int64(4), b.Size())
	assert.False(t, b.IsSorted())
	assert.False(t, b.IsDistinct())
	assert.Equal(t, []string{"a", "b", "c", "d"}, collectBag[string](t, b))
}

func TestUnorderedBag_NeverSpillsWithoutPolicy(t *testing.T) {
	dir := t.TempDir()
	b, err := NewUnordered[int](nil, spillcodec.Gob[int](), WithTempDir(dir))
	require.NoError(t, err)
	defer b.Close()

	for i := range 500 {
		require.NoError(t, b.Add(i))
	}
	assert.False(t, b.Spilled())
	assert.Empty(t, spillFilesIn(t, dir))

	items := collectBag[int](t, b)
	assert.Len(t, items, 500)
	assert.Equal(t, 0, items[0])
	assert.Equal(t, 499, items[499])
}

func TestUnorderedBag_IteratorIsRepeatable(t *testing.T) {
	b, err := NewUnordered[int](NewCountPolicy[int](1), spillcodec.Gob[int](), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(3, 1, 2))
	first := collectBag[int](t, b)
	second := collectBag[int](t, b)
	assert.Equal(t, []int{3, 1, 2}, first)
	assert.Equal(t, first, second)
}

func TestUnorderedBag_ZeroLimitSpillsFirstItem(t *testing.T) {
	b, err := NewUnordered[int](NewCountPolicy[int](0), spillcodec.CBOR[int](), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Add(42))
	assert.True(t, b.Spilled())
	assert.Equal(t, []int{42}, collectBag[int](t, b))
}

func TestUnorderedBag_Flush(t *testing.T) {
	b, err := NewUnordered[string](NewCountPolicy[string](0), spillcodec.CBOR[string](), WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Flush(), "flush before any spill is a no-op")

	require.NoError(t, b.AddAll("x", "y"))
	path := b.files.paths[0]
	require.NoError(t, b.Flush())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	require.NoError(t, b.Add("z"), "flush does not end the write phase")
	assert.Equal(t, []string{"x", "y", "z"}, collectBag[string](t, b))
}

func TestSortedBag_Example(t *testing.T) {
	b, err := NewSorted[int](NewCountPolicy[int](1), spillcodec.CBOR[int](), cmp.Compare[int], WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(5, 3, 8, 1))
	assert.Equal(t, 3, b.SpillCount())
	assert.True(t, b.IsSorted())
	assert.Equal(t, []int{1, 3, 5, 8}, collectBag[int](t, b))
}

func TestSortedBag_ThresholdBoundary(t *testing.T) {
	const limit = 3
	policy := &countingPolicy[int]{CountPolicy: NewCountPolicy[int](limit)}
	b, err := NewSorted[int](policy, spillcodec.Gob[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	for i := range limit {
		require.NoError(t, b.Add(limit-i))
	}
	assert.Equal(t, 0, b.SpillCount())
	assert.Equal(t, 0, policy.resets)

	require.NoError(t, b.Add(0))
	assert.Equal(t, 1, b.SpillCount())
	assert.Equal(t, 1, policy.resets)
	assert.Equal(t, int64(1), policy.Count())

	assert.Equal(t, []int{0, 1, 2, 3}, collectBag[int](t, b))
}

func TestSortedBag_UnspilledSortsInMemory(t *testing.T) {
	dir := t.TempDir()
	b, err := NewSorted[string](nil, spillcodec.CBOR[string](), nil, WithTempDir(dir))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll("pear", "apple", "fig", "apple"))
	assert.Equal(t, []string{"apple", "apple", "fig", "pear"}, collectBag[string](t, b))
	assert.Empty(t, spillFilesIn(t, dir))
	assert.Zero(t, b.iterators.len(), "in-memory iterators are not tracked")
}

func TestSortedBag_Empty(t *testing.T) {
	b, err := NewSorted[int](NewCountPolicy[int](10), spillcodec.CBOR[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	assert.True(t, b.IsEmpty())
	assert.Empty(t, collectBag[int](t, b))
}

func TestSortedBag_RandomInputManySpills(t *testing.T) {
	factories := map[string]spillcodec.Factory[int]{
		"cbor":      spillcodec.CBOR[int](),
		"gob+zstd":  spillcodec.Compressed[int](spillcodec.Gob[int](), spillcodec.CompressionZstd),
		"cbor+lz4":  spillcodec.Compressed[int](spillcodec.CBOR[int](), spillcodec.CompressionLZ4),
		"gob plain": spillcodec.Gob[int](),
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			input := make([]int, 5000)
			for i := range input {
				input[i] = rng.IntN(1000)
			}

			b, err := NewSorted[int](NewCountPolicy[int](97), factory, cmp.Compare[int],
				WithTempDir(t.TempDir()), WithMaxSpillFiles(4))
			require.NoError(t, err)
			defer b.Close()

			require.NoError(t, b.AddAll(input...))
			assert.Equal(t, int64(len(input)), b.Size())

			got := collectBag[int](t, b)
			assert.Equal(t, slices.Sorted(slices.Values(input)), got)
			assert.LessOrEqual(t, b.files.maxOpen, 5)
		})
	}
}

func TestSortedBag_CompactionBoundsOpenFiles(t *testing.T) {
	const maxFiles = 2
	dir := t.TempDir()
	b, err := NewSorted[int](NewCountPolicy[int](1), spillcodec.CBOR[int](), nil,
		WithTempDir(dir), WithMaxSpillFiles(maxFiles))
	require.NoError(t, err)
	defer b.Close()

	input := []int{9, 4, 7, 1, 8, 2, 6, 3, 5, 0}
	require.NoError(t, b.AddAll(input...))
	assert.Equal(t, len(input)-1, b.SpillCount())

	it, err := b.Iterator()
	require.NoError(t, err)
	assert.LessOrEqual(t, len(b.files.paths), maxFiles)
	assert.Len(t, spillFilesIn(t, dir), len(b.files.paths), "merged inputs are deleted")

	got, err := Collect(it)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, got)
	assert.LessOrEqual(t, b.files.maxOpen, maxFiles+1)
	assert.Zero(t, b.files.open, "exhausted iterator releases its files")
	assert.Zero(t, b.iterators.len())
}

func TestSortedBag_CustomComparatorAndRecords(t *testing.T) {
	type record struct {
		Name  string
		Score int
	}
	byScoreDesc := func(a, b record) int { return cmp.Compare(b.Score, a.Score) }

	b, err := NewSorted[record](NewCountPolicy[record](2), spillcodec.Gob[record](), byScoreDesc, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(
		record{"ann", 3},
		record{"bob", 9},
		record{"cat", 1},
		record{"dan", 7},
		record{"eve", 5},
	))

	var names []string
	for r, err := range All(must(b.Iterator())) {
		require.NoError(t, err)
		names = append(names, r.Name)
	}
	assert.Equal(t, []string{"bob", "dan", "eve", "ann", "cat"}, names)
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func TestSortedBag_NoNaturalOrderPanics(t *testing.T) {
	type point struct{ X, Y int }
	b, err := NewSorted[point](nil, spillcodec.Gob[point](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(point{1, 2}, point{0, 0}))
	defer func() {
		err, ok := recover().(error)
		require.True(t, ok, "expected an error panic")
		assert.ErrorIs(t, err, ErrNoNaturalOrder)
	}()
	_, _ = b.Iterator()
	t.Fatal("iterator should have panicked")
}

func TestDistinctBag_Example(t *testing.T) {
	b, err := NewDistinct[int](NewCountPolicy[int](2), spillcodec.CBOR[int](), cmp.Compare[int], WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(3, 1, 3, 2))
	assert.Equal(t, int64(3), b.Size())
	assert.True(t, b.IsDistinct())
	assert.Equal(t, []int{1, 2, 3}, collectBag[int](t, b))
}

func TestDistinctBag_InMemoryIsUniqueButUnordered(t *testing.T) {
	b, err := NewDistinct[string](nil, spillcodec.CBOR[string](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll("b", "a", "b", "c", "a"))
	assert.Equal(t, int64(3), b.Size())
	assert.False(t, b.IsSorted())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, collectBag[string](t, b))
}

func TestDistinctBag_RandomInputManySpills(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	input := make([]int, 4000)
	unique := map[int]struct{}{}
	for i := range input {
		input[i] = rng.IntN(700)
		unique[input[i]] = struct{}{}
	}

	b, err := NewDistinct[int](NewCountPolicy[int](50), spillcodec.CBOR[int](), nil,
		WithTempDir(t.TempDir()), WithMaxSpillFiles(3))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(input...))
	require.True(t, b.Spilled())

	got := collectBag[int](t, b)
	want := make([]int, 0, len(unique))
	for v := range unique {
		want = append(want, v)
	}
	slices.Sort(want)
	assert.Equal(t, want, got)
	assert.LessOrEqual(t, b.files.maxOpen, 4)
}

func TestNetBag_ExactUntilFirstSpill(t *testing.T) {
	b, err := NewDistinctNet[int](NewCountPolicy[int](3), spillcodec.CBOR[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	steps := []struct {
		item int
		want bool
	}{
		{1, true},
		{2, true},
		{3, true},
		{2, false}, // duplicate in memory
		{4, false}, // spills {1,2,3}
		{1, false},
		{5, false},
		{4, false},
		{6, false}, // spills {1,4,5}
		{2, false},
	}
	var reported []int
	for _, s := range steps {
		isNew, err := b.NetAdd(s.item)
		require.NoError(t, err)
		assert.Equal(t, s.want, isNew, "item %d", s.item)
		if isNew {
			reported = append(reported, s.item)
		}
	}
	assert.Equal(t, 2, b.SpillCount())

	net, err := b.NetIterator()
	require.NoError(t, err)
	netItems, err := Collect(net)
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5, 6}, netItems)
	for _, v := range netItems {
		assert.NotContains(t, reported, v)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, collectBag[int](t, b))
}

func TestNetBag_NoSpillMeansEmptyNet(t *testing.T) {
	b, err := NewDistinctNet[string](NewCountPolicy[string](100), spillcodec.CBOR[string](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	for _, s := range []string{"x", "y", "x"} {
		_, err := b.NetAdd(s)
		require.NoError(t, err)
	}
	net, err := b.NetIterator()
	require.NoError(t, err)
	items, err := Collect(net)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = b.NetAdd("z")
	assert.ErrorIs(t, err, ErrFinishedAdding)
}

func TestNetBag_RandomInputIsComplete(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 5))
	b, err := NewDistinctNet[int](NewCountPolicy[int](40), spillcodec.Gob[int](), nil,
		WithTempDir(t.TempDir()), WithMaxSpillFiles(2))
	require.NoError(t, err)
	defer b.Close()

	seen := map[int]struct{}{}
	reported := map[int]struct{}{}
	for range 3000 {
		v := rng.IntN(900)
		seen[v] = struct{}{}
		isNew, err := b.NetAdd(v)
		require.NoError(t, err)
		if isNew {
			_, dup := reported[v]
			require.False(t, dup, "item %d reported new twice", v)
			reported[v] = struct{}{}
		}
	}
	require.True(t, b.Spilled())

	net, err := b.NetIterator()
	require.NoError(t, err)
	netItems, err := Collect(net)
	require.NoError(t, err)
	assert.True(t, slices.IsSorted(netItems))
	assert.LessOrEqual(t, b.files.maxOpen, 3)

	union := map[int]struct{}{}
	for v := range reported {
		union[v] = struct{}{}
	}
	for _, v := range netItems {
		_, dup := union[v]
		require.False(t, dup, "item %d emitted twice", v)
		union[v] = struct{}{}
	}
	assert.Equal(t, seen, union)
}

func TestBag_AddAfterIterator(t *testing.T) {
	b, err := NewSorted[int](nil, spillcodec.CBOR[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Add(1))
	_, err = b.Iterator()
	require.NoError(t, err)

	err = b.Add(2)
	assert.ErrorIs(t, err, ErrFinishedAdding)
	assert.ErrorIs(t, err, ErrIllegalState)
}

func TestBag_OperationsAfterClose(t *testing.T) {
	b, err := NewUnordered[int](nil, spillcodec.CBOR[int](), WithTempDir(t.TempDir()))
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")

	assert.ErrorIs(t, b.Add(1), ErrClosed)
	_, err = b.Iterator()
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, b.Flush(), ErrIllegalState)

	n, err := NewDistinctNet[int](nil, spillcodec.CBOR[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	require.NoError(t, n.Close())
	_, err = n.NetIterator()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = n.NetAdd(1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestBag_CloseRemovesFilesAndClosesAbandonedIterators(t *testing.T) {
	dir := t.TempDir()
	b, err := NewDistinctNet[int](NewCountPolicy[int](2), spillcodec.CBOR[int](), nil, WithTempDir(dir))
	require.NoError(t, err)

	for i := range 20 {
		_, err := b.NetAdd(i % 13)
		require.NoError(t, err)
	}
	require.NotEmpty(t, b.firstSpill)
	paths := append([]string{b.firstSpill}, b.files.paths...)

	it1, err := b.Iterator()
	require.NoError(t, err)
	it2, err := b.NetIterator()
	require.NoError(t, err)
	_, err = it1.Next()
	require.NoError(t, err)
	_, err = it2.Next()
	require.NoError(t, err)
	require.Equal(t, 2, b.iterators.len())
	require.Positive(t, b.files.open)

	require.NoError(t, b.Close())

	assert.Zero(t, b.files.open)
	assert.Zero(t, b.iterators.len())
	assert.Empty(t, spillFilesIn(t, dir))
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, errors.Is(err, os.ErrNotExist), "spill file %s still exists", p)
	}

	_, err = it1.Next()
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, it2.Close())
}

func TestBag_ClosedByCallerIteratorReturnsEOF(t *testing.T) {
	b, err := NewSorted[int](NewCountPolicy[int](1), spillcodec.CBOR[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(2, 1, 3))
	it, err := b.Iterator()
	require.NoError(t, err)
	require.Equal(t, 1, b.iterators.len())

	require.NoError(t, it.Close())
	assert.Zero(t, b.iterators.len())
	assert.Zero(t, b.files.open)
	_, err = it.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestBag_MissingSpillFileIsIOError(t *testing.T) {
	b, err := NewSorted[int](NewCountPolicy[int](1), spillcodec.CBOR[int](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(4, 3, 2, 1))
	require.Len(t, b.files.paths, 3)
	require.NoError(t, os.Remove(b.files.paths[1]))

	_, err = b.Iterator()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, b.files.paths[1], ioErr.Path)
	assert.Zero(t, b.files.open, "readers opened before the failure are closed")

	assert.NoError(t, b.Close(), "close tolerates files that are already gone")
}

func TestBag_MemoryPolicy(t *testing.T) {
	policy := NewMemoryPolicy[string](16, func(s string) int64 { return int64(len(s)) })
	b, err := NewSorted[string](policy, spillcodec.CBOR[string](), nil, WithTempDir(t.TempDir()))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll("aaaaaaaa", "bbbbbbbb"))
	assert.Zero(t, b.SpillCount())
	require.NoError(t, b.Add("c"))
	assert.Equal(t, 1, b.SpillCount())
	assert.Equal(t, []string{"aaaaaaaa", "bbbbbbbb", "c"}, collectBag[string](t, b))
}

func TestBag_RejectsBadConstruction(t *testing.T) {
	_, err := NewSorted[int](nil, nil, nil)
	assert.Error(t, err)

	_, err = NewUnordered[int](nil, spillcodec.CBOR[int](), WithMaxSpillFiles(1))
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	_, err = NewDistinct[int](nil, spillcodec.CBOR[int](), nil, WithConfig(Config{TempDir: "/no/such/dir/for/databag"}))
	assert.ErrorAs(t, err, &cfgErr)
}

var errSinkFull = errors.New("sink full")

// flakyFactory wraps a real codec and fails the failAt-th Send across all of
// its sinks, once. Every other send goes through.
type flakyFactory[E any] struct {
	spillcodec.Factory[E]
	failAt int
	sends  int
}

func (f *flakyFactory[E]) NewSerializer(w io.Writer) (spillcodec.Sink[E], error) {
	sink, err := f.Factory.NewSerializer(w)
	if err != nil {
		return nil, err
	}
	return &flakySink[E]{Sink: sink, factory: f}, nil
}

type flakySink[E any] struct {
	spillcodec.Sink[E]
	factory *flakyFactory[E]
}

func (s *flakySink[E]) Send(item E) error {
	s.factory.sends++
	if s.factory.sends == s.factory.failAt {
		return errSinkFull
	}
	return s.Sink.Send(item)
}

func TestSortedBag_FailedSpillLeavesNoFileAndRetries(t *testing.T) {
	dir := t.TempDir()
	factory := &flakyFactory[int]{Factory: spillcodec.Gob[int](), failAt: 2}
	b, err := NewSorted[int](NewCountPolicy[int](2), factory, nil, WithTempDir(dir))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(1, 2))
	err = b.Add(3)
	require.ErrorIs(t, err, errSinkFull)
	assert.ErrorIs(t, err, ErrIO)

	assert.Empty(t, spillFilesIn(t, dir))
	assert.Empty(t, b.files.paths)
	assert.Zero(t, b.files.open)
	assert.False(t, b.Spilled())
	assert.Zero(t, b.SpillCount())
	assert.Equal(t, int64(2), b.Size())

	require.NoError(t, b.Add(3))
	assert.Equal(t, 1, b.SpillCount())
	assert.Len(t, spillFilesIn(t, dir), 1)
	assert.Equal(t, int64(3), b.Size())
	assert.Equal(t, []int{1, 2, 3}, collectBag[int](t, b))
}

func TestUnorderedBag_FailedStreamingStartLeavesNoFileAndRetries(t *testing.T) {
	dir := t.TempDir()
	factory := &flakyFactory[string]{Factory: spillcodec.CBOR[string](), failAt: 1}
	b, err := NewUnordered[string](NewCountPolicy[string](2), factory, WithTempDir(dir))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll("a", "b"))
	err = b.Add("c")
	require.ErrorIs(t, err, errSinkFull)

	assert.Empty(t, spillFilesIn(t, dir))
	assert.Empty(t, b.files.paths)
	assert.Nil(t, b.writer)
	assert.Zero(t, b.files.open)
	assert.False(t, b.Spilled())
	assert.Equal(t, int64(2), b.Size())

	require.NoError(t, b.AddAll("c", "d"))
	assert.True(t, b.Spilled())
	assert.Len(t, spillFilesIn(t, dir), 1)
	assert.Equal(t, []string{"a", "b", "c", "d"}, collectBag[string](t, b))
}

func TestNetBag_FailedFirstSpillIsNotUsedAsExclusions(t *testing.T) {
	dir := t.TempDir()
	factory := &flakyFactory[int]{Factory: spillcodec.Gob[int](), failAt: 1}
	n, err := NewDistinctNet[int](NewCountPolicy[int](2), factory, nil, WithTempDir(dir))
	require.NoError(t, err)
	defer n.Close()

	for _, v := range []int{1, 2} {
		isNew, err := n.NetAdd(v)
		require.NoError(t, err)
		assert.True(t, isNew)
	}
	_, err = n.NetAdd(3)
	require.ErrorIs(t, err, errSinkFull)
	assert.Empty(t, n.firstSpill)
	assert.Empty(t, spillFilesIn(t, dir))

	for _, v := range []int{3, 4} {
		isNew, err := n.NetAdd(v)
		require.NoError(t, err)
		assert.False(t, isNew)
	}
	assert.NotEmpty(t, n.firstSpill)

	net, err := n.NetIterator()
	require.NoError(t, err)
	got, err := Collect(net)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, got)
	assert.Equal(t, []int{1, 2, 3, 4}, collectBag[int](t, n))
}

func TestSortedBag_FailedCompactionKeepsRunsAndRetries(t *testing.T) {
	dir := t.TempDir()
	// Three one-item spills use sends 1-3; the compaction's second send fails.
	factory := &flakyFactory[int]{Factory: spillcodec.Gob[int](), failAt: 5}
	b, err := NewSorted[int](NewCountPolicy[int](1), factory, nil, WithTempDir(dir), WithMaxSpillFiles(2))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(4, 3, 2, 1))
	require.Len(t, b.files.paths, 3)
	before := slices.Clone(b.files.paths)

	_, err = b.Iterator()
	require.ErrorIs(t, err, errSinkFull)
	assert.Equal(t, before, b.files.paths)
	assert.Len(t, spillFilesIn(t, dir), 3)
	assert.Zero(t, b.files.open)
	assert.Equal(t, 1, b.buf.len(), "buffered item stays in memory")

	assert.Equal(t, []int{1, 2, 3, 4}, collectBag[int](t, b))
	assert.Len(t, b.files.paths, 2)
	assert.Zero(t, b.files.open)
}

func TestSortedBag_CompactionOpenFailureDropsOutput(t *testing.T) {
	dir := t.TempDir()
	b, err := NewSorted[int](NewCountPolicy[int](1), spillcodec.CBOR[int](), nil, WithTempDir(dir), WithMaxSpillFiles(2))
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.AddAll(4, 3, 2, 1))
	require.Len(t, b.files.paths, 3)
	require.NoError(t, os.Remove(b.files.paths[0]))

	_, err = b.Iterator()
	require.ErrorIs(t, err, ErrIO)
	assert.Len(t, b.files.paths, 3, "no compaction output is registered")
	assert.Len(t, spillFilesIn(t, dir), 2, "the empty output file is deleted")
	assert.Zero(t, b.files.open)
}
