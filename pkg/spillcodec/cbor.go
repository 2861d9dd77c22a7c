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
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEncMode cbor.EncMode
	cborDecMode cbor.DecMode
)

func init() {
	var err error
	cborEncMode, err = cbor.EncOptions{
		Sort:          cbor.SortNone,          // preserve map order, spill files are process-local
		ShortestFloat: cbor.ShortestFloatNone, // keep float widths
		BigIntConvert: cbor.BigIntConvertNone,
		Time:          cbor.TimeUnixMicro,
		TimeTag:       cbor.EncTagNone,
	}.EncMode()
	if err != nil {
		panic(fmt.Errorf("failed to create CBOR encoder mode: %w", err))
	}

	cborDecMode, err = cbor.DecOptions{
		BigIntDec:      cbor.BigIntDecodeValue,
		IntDec:         cbor.IntDecConvertSigned,
		DefaultMapType: reflect.TypeOf(map[string]any{}),
		UTF8:           cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		panic(fmt.Errorf("failed to create CBOR decoder mode: %w", err))
	}
}

// CBORFactory encodes items as a sequence of CBOR data items. Integers held
// in any-typed fields come back as int64 and maps as map[string]any.
type CBORFactory[E any] struct{}

// CBOR returns a CBOR-based factory.
func CBOR[E any]() *CBORFactory[E] {
	return &CBORFactory[E]{}
}

func (f *CBORFactory[E]) NewSerializer(w io.Writer) (Sink[E], error) {
	if w == nil {
		return nil, errors.New("spillcodec: nil writer")
	}
	return &cborSink[E]{encoder: cborEncMode.NewEncoder(w)}, nil
}

func (f *CBORFactory[E]) NewDeserializer(r io.Reader) (Source[E], error) {
	if r == nil {
		return nil, errors.New("spillcodec: nil reader")
	}
	return &cborSource[E]{decoder: cborDecMode.NewDecoder(r)}, nil
}

func (f *CBORFactory[E]) EstimatedMemorySize(item E) int64 {
	return EstimateSize(item)
}

type cborSink[E any] struct {
	encoder *cbor.Encoder
	closed  bool
}

func (s *cborSink[E]) Send(item E) error {
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.encoder.Encode(item); err != nil {
		return fmt.Errorf("cbor encode item: %w", err)
	}
	return nil
}

func (s *cborSink[E]) Flush() error {
	return nil
}

func (s *cborSink[E]) Close() error {
	s.closed = true
	return nil
}

type cborSource[E any] struct {
	decoder *cbor.Decoder
	done    bool
}

func (s *cborSource[E]) Next() (E, error) {
	var item E
	if s.done {
		return item, io.EOF
	}
	if err := s.decoder.Decode(&item); err != nil {
		s.done = true
		if errors.Is(err, io.EOF) {
			return item, io.EOF
		}
		return item, fmt.Errorf("cbor decode item: %w", err)
	}
	return item, nil
}

func (s *cborSource[E]) Close() error {
	s.done = true
	return nil
}
