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
	"bufio"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/cardinalhq/databag/pkg/spillcodec"
)

// spillFiles owns the temporary files of one bag, in creation order, and
// counts open spill streams so a merge's fan-in can be checked.
type spillFiles struct {
	dir        string
	bufferSize int
	paths      []string

	open    int
	maxOpen int
}

func newSpillFiles(dir string, bufferSize int) *spillFiles {
	return &spillFiles{dir: dir, bufferSize: bufferSize}
}

// newPath returns a unique path in dir. The file is not created.
func (s *spillFiles) newPath() string {
	return filepath.Join(s.dir, "databag-"+uuid.NewString()+".spill")
}

func (s *spillFiles) register(path string) {
	s.paths = append(s.paths, path)
}

func (s *spillFiles) opened() {
	s.open++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
}

func (s *spillFiles) released() {
	s.open--
}

// removePath deletes one file, ignoring files that are already gone.
func removePath(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &IOError{Op: "remove spill file", Path: path, Err: err}
	}
	return nil
}

// removeAll deletes every registered file plus any extras and forgets them.
func (s *spillFiles) removeAll(extra ...string) (int, error) {
	var result *multierror.Error
	removed := 0
	for _, path := range append(s.paths, extra...) {
		if path == "" {
			continue
		}
		if err := removePath(path); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		removed++
	}
	s.paths = nil
	return removed, result.ErrorOrNil()
}

// spillWriter streams items into one new spill file.
type spillWriter[E any] struct {
	path   string
	file   *os.File
	bw     *bufio.Writer
	sink   spillcodec.Sink[E]
	files  *spillFiles
	count  int64
	closed bool
}

func createSpillWriter[E any](files *spillFiles, factory spillcodec.Factory[E]) (*spillWriter[E], error) {
	path := files.newPath()
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, &IOError{Op: "create spill file", Path: path, Err: err}
	}

	bw := bufio.NewWriterSize(file, files.bufferSize)
	sink, err := factory.NewSerializer(bw)
	if err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return nil, &IOError{Op: "create serializer", Path: path, Err: err}
	}

	files.opened()
	return &spillWriter[E]{path: path, file: file, bw: bw, sink: sink, files: files}, nil
}

func (w *spillWriter[E]) send(item E) error {
	if err := w.sink.Send(item); err != nil {
		return &IOError{Op: "write spill file", Path: w.path, Err: err}
	}
	w.count++
	return nil
}

// flush makes everything sent so far visible in the file without ending it.
func (w *spillWriter[E]) flush() error {
	if err := w.sink.Flush(); err != nil {
		return &IOError{Op: "flush spill file", Path: w.path, Err: err}
	}
	if err := w.bw.Flush(); err != nil {
		return &IOError{Op: "flush spill file", Path: w.path, Err: err}
	}
	return nil
}

func (w *spillWriter[E]) close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	w.files.released()

	var result *multierror.Error
	if err := w.sink.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.bw.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := w.file.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := result.ErrorOrNil(); err != nil {
		return &IOError{Op: "close spill file", Path: w.path, Err: err}
	}
	return nil
}

// discard closes the writer and deletes its file. It is used when a spill
// fails part way, so a partial file is never read back.
func (w *spillWriter[E]) discard() {
	_ = w.close()
	_ = removePath(w.path)
}

// spillReader replays one spill file and owns its file handle.
type spillReader[E any] struct {
	path   string
	file   *os.File
	source spillcodec.Source[E]
	files  *spillFiles
	closed bool
}

func openSpillReader[E any](files *spillFiles, factory spillcodec.Factory[E], path string) (*spillReader[E], error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &IOError{Op: "open spill file", Path: path, Err: err}
	}

	source, err := factory.NewDeserializer(bufio.NewReaderSize(file, files.bufferSize))
	if err != nil {
		_ = file.Close()
		return nil, &IOError{Op: "create deserializer", Path: path, Err: err}
	}

	files.opened()
	return &spillReader[E]{path: path, file: file, source: source, files: files}, nil
}

func (r *spillReader[E]) Next() (E, error) {
	if r.closed {
		var zero E
		return zero, io.EOF
	}
	item, err := r.source.Next()
	if err != nil && !errors.Is(err, io.EOF) {
		return item, &IOError{Op: "read spill file", Path: r.path, Err: err}
	}
	return item, err
}

func (r *spillReader[E]) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.files.released()

	sourceErr := r.source.Close()
	if err := r.file.Close(); err != nil {
		return &IOError{Op: "close spill file", Path: r.path, Err: err}
	}
	return sourceErr
}

// openSpillReaders opens one reader per path. If any open fails, the readers
// already opened are closed before the error is returned.
func openSpillReaders[E any](files *spillFiles, factory spillcodec.Factory[E], paths []string) ([]Iterator[E], error) {
	sources := make([]Iterator[E], 0, len(paths)+1)
	for _, path := range paths {
		r, err := openSpillReader(files, factory, path)
		if err != nil {
			for _, src := range sources {
				_ = src.Close()
			}
			return nil, err
		}
		sources = append(sources, r)
	}
	return sources, nil
}
