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

package cmd

import (
	"bufio"
	"io"

	"github.com/cespare/xxhash/v2"
)

// recordWriter writes one record per line and optionally hashes the bytes
// it writes, so two runs can be compared without keeping their output.
type recordWriter struct {
	bw      *bufio.Writer
	digest  *xxhash.Digest
	written int64
}

func newRecordWriter(w io.Writer, withDigest bool) *recordWriter {
	rw := &recordWriter{}
	if withDigest {
		rw.digest = xxhash.New()
		w = io.MultiWriter(w, rw.digest)
	}
	rw.bw = bufio.NewWriter(w)
	return rw
}

func (w *recordWriter) write(rec string) error {
	if _, err := w.bw.WriteString(rec); err != nil {
		return err
	}
	if err := w.bw.WriteByte('\n'); err != nil {
		return err
	}
	w.written++
	return nil
}

func (w *recordWriter) flush() error {
	return w.bw.Flush()
}

// sum returns the xxhash64 of everything flushed so far, or zero when
// hashing is off.
func (w *recordWriter) sum() uint64 {
	if w.digest == nil {
		return 0
	}
	return w.digest.Sum64()
}
