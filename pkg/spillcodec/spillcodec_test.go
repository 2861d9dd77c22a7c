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

package spillcodec

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Name  string
	Count int64
	Tags  []string
}

func writeAll[E any](t *testing.T, f Factory[E], items []E) []byte {
	t.Helper()
	var buf bytes.Buffer
	sink, err := f.NewSerializer(&buf)
	require.NoError(t, err)
	for _, item := range items {
		require.NoError(t, sink.Send(item))
	}
	require.NoError(t, sink.Flush())
	require.NoError(t, sink.Close())
	return buf.Bytes()
}

func readAll[E any](t *testing.T, f Factory[E], data []byte) []E {
	t.Helper()
	source, err := f.NewDeserializer(bytes.NewReader(data))
	require.NoError(t, err)
	defer source.Close()

	var out []E
	for {
		item, err := source.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		out = append(out, item)
	}
	return out
}

func TestFactories_PreserveOrderAndValues(t *testing.T) {
	records := []record{
		{Name: "zeta", Count: 3, Tags: []string{"a"}},
		{Name: "alpha", Count: -1},
		{Name: "mid", Count: 1 << 40, Tags: []string{"x", "y"}},
	}

	factories := map[string]Factory[record]{
		"gob":       Gob[record](),
		"cbor":      CBOR[record](),
		"cbor+zstd": Compressed[record](CBOR[record](), CompressionZstd),
		"gob+lz4":   Compressed[record](Gob[record](), CompressionLZ4),
	}

	for name, f := range factories {
		t.Run(name, func(t *testing.T) {
			got := readAll(t, f, writeAll(t, f, records))
			require.Len(t, got, len(records))
			for i := range records {
				assert.Equal(t, records[i].Name, got[i].Name)
				assert.Equal(t, records[i].Count, got[i].Count)
				assert.Equal(t, len(records[i].Tags), len(got[i].Tags))
			}
		})
	}
}

func TestFactories_EmptyStream(t *testing.T) {
	for name, f := range map[string]Factory[string]{
		"gob":       Gob[string](),
		"cbor":      CBOR[string](),
		"cbor+zstd": Compressed[string](CBOR[string](), CompressionZstd),
	} {
		t.Run(name, func(t *testing.T) {
			got := readAll(t, f, writeAll[string](t, f, nil))
			assert.Empty(t, got)
		})
	}
}

func TestSource_StaysExhausted(t *testing.T) {
	f := CBOR[int]()
	data := writeAll(t, f, []int{7})

	source, err := f.NewDeserializer(bytes.NewReader(data))
	require.NoError(t, err)
	defer source.Close()

	v, err := source.Next()
	require.NoError(t, err)
	assert.Equal(t, 7, v)

	_, err = source.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = source.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSink_SendAfterClose(t *testing.T) {
	var buf bytes.Buffer
	sink, err := Gob[int]().NewSerializer(&buf)
	require.NoError(t, err)
	require.NoError(t, sink.Close())
	assert.ErrorIs(t, sink.Send(1), ErrSinkClosed)
}

func TestCBOR_AnyValuesDecodeAsInt64(t *testing.T) {
	f := CBOR[map[string]any]()
	got := readAll(t, f, writeAll(t, f, []map[string]any{{"n": 5, "s": "x"}}))
	require.Len(t, got, 1)
	assert.Equal(t, int64(5), got[0]["n"])
	assert.Equal(t, "x", got[0]["s"])
}

func TestCompressed_ShrinksRepetitiveData(t *testing.T) {
	items := make([]string, 500)
	for i := range items {
		items[i] = "the same fairly long line of text, repeated over and over"
	}
	plain := writeAll(t, CBOR[string](), items)
	zstd := writeAll(t, Compressed[string](CBOR[string](), CompressionZstd), items)
	assert.Less(t, len(zstd), len(plain)/4)
}

func TestByName(t *testing.T) {
	f, err := ByName[string]("", "")
	require.NoError(t, err)
	assert.IsType(t, &CBORFactory[string]{}, f)

	f, err = ByName[string]("GOB", "none")
	require.NoError(t, err)
	assert.IsType(t, &GobFactory[string]{}, f)

	f, err = ByName[string]("cbor", "zstd")
	require.NoError(t, err)
	got := readAll(t, f, writeAll(t, f, []string{"a", "b"}))
	assert.Equal(t, []string{"a", "b"}, got)

	_, err = ByName[string]("json", "")
	var unknown *UnknownError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "codec", unknown.Kind)

	_, err = ByName[string]("cbor", "brotli")
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "compression", unknown.Kind)
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression(" ZSTD ")
	require.NoError(t, err)
	assert.Equal(t, CompressionZstd, c)
	assert.Equal(t, "lz4", CompressionLZ4.String())
}

func TestEstimateSize(t *testing.T) {
	assert.Equal(t, int64(8), EstimateSize(int64(1)))
	assert.Equal(t, int64(16+5), EstimateSize("hello"))
	assert.Equal(t, int64(8), EstimateSize(nil))

	small := EstimateSize(record{Name: "a"})
	large := EstimateSize(record{Name: "a much longer name than before", Tags: []string{"x", "y", "z"}})
	assert.Greater(t, large, small)

	m := EstimateSize(map[string]any{"k": "v"})
	assert.Greater(t, m, int64(48))
}
