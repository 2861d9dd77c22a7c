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

// Package spillcodec turns streams of items into bytes for spill files and
// back again. The databag engine never looks at the bytes itself; any
// Factory can be plugged in.
package spillcodec

import "io"

// Sink serializes items onto one open output stream.
type Sink[E any] interface {
	// Send writes one item.
	Send(item E) error

	// Flush pushes any encoder-internal state to the underlying writer.
	Flush() error

	// Close finishes the stream. It does not close the underlying writer;
	// whoever opened the stream owns it.
	Close() error
}

// Source reads items back from one open input stream.
type Source[E any] interface {
	// Next returns the next item, or io.EOF when the stream is exhausted.
	Next() (E, error)

	// Close releases decoder resources. It does not close the underlying reader.
	Close() error
}

// Factory produces sinks and sources bound to a stream.
type Factory[E any] interface {
	NewSerializer(w io.Writer) (Sink[E], error)
	NewDeserializer(r io.Reader) (Source[E], error)

	// EstimatedMemorySize is a rough in-memory footprint for item, used by
	// memory-based threshold policies.
	EstimatedMemorySize(item E) int64
}
