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

import "strings"

// ByName builds a factory from configuration strings: codec is "cbor"
// (the default) or "gob", compression is anything ParseCompression accepts.
func ByName[E any](codec, compression string) (Factory[E], error) {
	var base Factory[E]
	switch strings.ToLower(strings.TrimSpace(codec)) {
	case "", "cbor":
		base = CBOR[E]()
	case "gob":
		base = Gob[E]()
	default:
		return nil, &UnknownError{Kind: "codec", Name: codec}
	}

	c, err := ParseCompression(compression)
	if err != nil {
		return nil, err
	}
	return Compressed(base, c), nil
}
