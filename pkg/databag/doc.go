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

// Package databag provides bounded-memory containers ("bags") that collect
// items, spill them to temporary files once a ThresholdPolicy says memory is
// full, and replay everything afterwards.
//
// A bag has two phases. During the write phase items are added with Add.
// The first call to Iterator ends the write phase for good; from then on the
// bag can only be read, any number of times, until Close deletes its spill
// files and closes every iterator that is still open.
//
// Four flavours share one engine:
//
//   - NewUnordered keeps insertion order and streams into a single spill file.
//   - NewSorted sorts each spilled run and merges runs with a k-way merge.
//   - NewDistinct additionally drops duplicates, in memory with a hash set and
//     across runs by collapsing adjacent equal items in the merged output.
//   - NewDistinctNet reports at insertion time whether an item is known to be
//     new, and later yields only the items it could not vouch for.
//
// Bags are not safe for concurrent use. Always defer Close:
//
//	bag, err := databag.NewSorted(databag.NewCountPolicy[int](10000), spillcodec.CBOR[int](), cmp.Compare[int])
//	if err != nil { ... }
//	defer bag.Close()
package databag
