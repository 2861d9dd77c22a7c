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
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression selects a stream compressor wrapped around a codec.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionZstd
	CompressionLZ4
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionZstd:
		return "zstd"
	case CompressionLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("compression(%d)", int(c))
	}
}

// ParseCompression maps a configuration string to a Compression.
// The empty string means no compression.
func ParseCompression(name string) (Compression, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return CompressionNone, nil
	case "zstd":
		return CompressionZstd, nil
	case "lz4":
		return CompressionLZ4, nil
	}
	return CompressionNone, &UnknownError{Kind: "compression", Name: name}
}

// Compressed wraps inner so that every spill stream is compressed.
// CompressionNone returns inner unchanged.
func Compressed[E any](inner Factory[E], c Compression) Factory[E] {
	if c == CompressionNone {
		return inner
	}
	return &compressedFactory[E]{inner: inner, compression: c}
}

type compressedFactory[E any] struct {
	inner       Factory[E]
	compression Compression
}

// flushWriteCloser is what both zstd and lz4 writers look like.
type flushWriteCloser interface {
	io.WriteCloser
	Flush() error
}

func (f *compressedFactory[E]) NewSerializer(w io.Writer) (Sink[E], error) {
	var cw flushWriteCloser
	switch f.compression {
	case CompressionZstd:
		enc, err := zstd.NewWriter(w,
			zstd.WithEncoderLevel(zstd.SpeedFastest),
			zstd.WithZeroFrames(true),
		)
		if err != nil {
			return nil, fmt.Errorf("create zstd writer: %w", err)
		}
		cw = enc
	case CompressionLZ4:
		cw = lz4.NewWriter(w)
	default:
		return nil, &UnknownError{Kind: "compression", Name: f.compression.String()}
	}

	sink, err := f.inner.NewSerializer(cw)
	if err != nil {
		_ = cw.Close()
		return nil, err
	}
	return &compressedSink[E]{Sink: sink, cw: cw}, nil
}

func (f *compressedFactory[E]) NewDeserializer(r io.Reader) (Source[E], error) {
	var (
		cr      io.Reader
		release func()
	)
	switch f.compression {
	case CompressionZstd:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("create zstd reader: %w", err)
		}
		cr = dec
		release = dec.Close
	case CompressionLZ4:
		cr = lz4.NewReader(r)
	default:
		return nil, &UnknownError{Kind: "compression", Name: f.compression.String()}
	}

	source, err := f.inner.NewDeserializer(cr)
	if err != nil {
		if release != nil {
			release()
		}
		return nil, err
	}
	return &compressedSource[E]{Source: source, release: release}, nil
}

func (f *compressedFactory[E]) EstimatedMemorySize(item E) int64 {
	return f.inner.EstimatedMemorySize(item)
}

type compressedSink[E any] struct {
	Sink[E]
	cw flushWriteCloser
}

func (s *compressedSink[E]) Flush() error {
	if err := s.Sink.Flush(); err != nil {
		return err
	}
	return s.cw.Flush()
}

func (s *compressedSink[E]) Close() error {
	sinkErr := s.Sink.Close()
	// Closing the compressor writes the trailing frame but leaves w open.
	if err := s.cw.Close(); err != nil {
		return fmt.Errorf("close compressor: %w", err)
	}
	return sinkErr
}

type compressedSource[E any] struct {
	Source[E]
	release func()
}

func (s *compressedSource[E]) Close() error {
	err := s.Source.Close()
	if s.release != nil {
		s.release()
		s.release = nil
	}
	return err
}
