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
	"context"
	"fmt"
	"io"
	"os"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

const (
	maxRecordSize   = 16 * 1024 * 1024
	recordQueueSize = 1024
)

// openInputs opens every named file, or uses stdin when there are none.
// "-" also means stdin. The returned function closes whatever was opened.
func openInputs(names []string, stdin io.Reader) ([]io.Reader, func() error, error) {
	if len(names) == 0 {
		return []io.Reader{stdin}, func() error { return nil }, nil
	}

	var (
		readers []io.Reader
		files   []*os.File
	)
	closeAll := func() error {
		var result *multierror.Error
		for _, f := range files {
			if err := f.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
		return result.ErrorOrNil()
	}

	for _, name := range names {
		if name == "-" {
			readers = append(readers, stdin)
			continue
		}
		f, err := os.Open(name)
		if err != nil {
			_ = closeAll()
			return nil, nil, fmt.Errorf("open input: %w", err)
		}
		files = append(files, f)
		readers = append(readers, f)
	}
	return readers, closeAll, nil
}

// streamRecords reads newline-delimited records from inputs, in order, and
// hands each to add on a single goroutine. Reading stops early when ctx is
// cancelled or add fails.
func streamRecords(ctx context.Context, inputs []io.Reader, add func(string) error) error {
	g, gctx := errgroup.WithContext(ctx)
	records := make(chan string, recordQueueSize)

	g.Go(func() error {
		defer close(records)
		for _, in := range inputs {
			sc := bufio.NewScanner(in)
			sc.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
			for sc.Scan() {
				select {
				case records <- sc.Text():
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			if err := sc.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		for rec := range records {
			if err := add(rec); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
