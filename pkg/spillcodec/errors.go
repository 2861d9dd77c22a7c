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

import "errors"

// ErrSinkClosed is returned by Send after the sink has been closed.
var ErrSinkClosed = errors.New("spillcodec: sink is closed")

// UnknownError reports an unrecognised codec or compression name.
type UnknownError struct {
	Kind string
	Name string
}

func (e *UnknownError) Error() string {
	return "spillcodec: unknown " + e.Kind + " " + `"` + e.Name + `"`
}
