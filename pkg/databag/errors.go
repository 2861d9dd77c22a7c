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
	"errors"
	"fmt"
)

var (
	// ErrIllegalState is matched by every misuse of the bag lifecycle.
	ErrIllegalState = errors.New("databag: illegal state")

	// ErrClosed is returned by any operation on a closed bag.
	ErrClosed = fmt.Errorf("%w: bag is closed", ErrIllegalState)

	// ErrFinishedAdding is returned by Add once an iterator has been requested.
	ErrFinishedAdding = fmt.Errorf("%w: cannot add items after the write phase is complete", ErrIllegalState)

	// ErrIO is matched by every *IOError.
	ErrIO = errors.New("databag: i/o failure")

	// ErrNoNaturalOrder is the panic value used when a nil comparator is
	// given for a type that cannot be ordered.
	ErrNoNaturalOrder = errors.New("databag: type has no natural ordering")
)

// IOError wraps a failure creating, writing, reading or deleting a spill file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("databag: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("databag: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() []error {
	return []error{ErrIO, e.Err}
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "databag config: " + e.Field + " " + e.Message
}
