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
	"reflect"
)

// EstimateSize returns a rough in-memory size in bytes for v. Basic kinds are
// sized directly; containers and structs are walked field by field.
func EstimateSize(v any) int64 {
	if v == nil {
		return 8
	}
	switch x := v.(type) {
	case string:
		return int64(len(x)) + 16
	case []byte:
		return int64(len(x)) + 24
	case bool, int8, uint8:
		return 1
	case int16, uint16:
		return 2
	case int32, uint32, float32:
		return 4
	case int, int64, uint, uint64, float64, uintptr:
		return 8
	case map[string]any:
		size := int64(48)
		for k, val := range x {
			size += int64(len(k)) + 16 + EstimateSize(val)
		}
		return size
	}
	return estimateReflect(reflect.ValueOf(v))
}

func estimateReflect(rv reflect.Value) int64 {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return 8
		}
		return 8 + estimateReflect(rv.Elem())
	case reflect.String:
		return int64(rv.Len()) + 16
	case reflect.Slice, reflect.Array:
		size := int64(24)
		for i := 0; i < rv.Len(); i++ {
			size += estimateReflect(rv.Index(i))
		}
		return size
	case reflect.Map:
		size := int64(48)
		iter := rv.MapRange()
		for iter.Next() {
			size += estimateReflect(iter.Key()) + estimateReflect(iter.Value())
		}
		return size
	case reflect.Struct:
		var size int64
		for i := 0; i < rv.NumField(); i++ {
			size += estimateReflect(rv.Field(i))
		}
		return size
	case reflect.Invalid:
		return 8
	}
	return int64(rv.Type().Size())
}
