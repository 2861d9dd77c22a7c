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
	"encoding/gob"
	"errors"
	"fmt"
	"io"
)

func init() {
	// Concrete types commonly carried inside any-typed items.
	gob.Register(map[string]any{})
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
	gob.Register([]byte{})
	gob.Register([]int64{})
	gob.Register([]string{})
}

// GobFactory encodes items with encoding/gob. Each sink carries its own type
// information header, so every spill file is self-describing.
type GobFactory[E any] struct{}

// Gob returns a gob-based factory.
func Gob[E any]() *GobFactory[E] {
	return &GobFactory[E]{}
}

func (f *GobFactory[E]) NewSerializer(w io.Writer) (Sink[E], error) {
	if w == nil {
		return nil, errors.New("spillcodec: nil writer")
	}
	return &gobSink[E]{encoder: gob.NewEncoder(w)}, nil
}

func (f *GobFactory[E]) NewDeserializer(r io.Reader) (Source[E], error) {
	if r == nil {
		return nil, errors.New("spillcodec: nil reader")
	}
	return &gobSource[E]{decoder: gob.NewDecoder(r)}, nil
}

func (f *GobFactory[E]) EstimatedMemorySize(item E) int64 {
	return EstimateSize(item)
}

type gobSink[E any] struct {
	encoder *gob.Encoder
	closed  bool
}

func (s *gobSink[E]) Send(item E) error {
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.encoder.Encode(&item); err != nil {
		return fmt.Errorf("gob encode item: %w", err)
	}
	return nil
}

// Flush is a no-op; gob writes each value through as it is encoded.
func (s *gobSink[E]) Flush() error {
	return nil
}

func (s *gobSink[E]) Close() error {
	s.closed = true
	return nil
}

type gobSource[E any] struct {
	decoder *gob.Decoder
	done    bool
}

func (s *gobSource[E]) Next() (E, error) {
	var item E
	if s.done {
		return item, io.EOF
	}
	if err := s.decoder.Decode(&item); err != nil {
		s.done = true
		if errors.Is(err, io.EOF) {
			return item, io.EOF
		}
		return item, fmt.Errorf("gob decode item: %w", err)
	}
	return item, nil
}

func (s *gobSource[E]) Close() error {
	s.done = true
	return nil
}
