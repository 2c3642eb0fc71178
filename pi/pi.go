// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package pi implements the sort key used by the shuffle repartitioner
// to group rows by output partition.
package pi

// PI is the triple (partition_id, hash, row_index) that the freeze
// pipeline sorts to group a batch's rows by output partition.
//
// Index is carried along for the eventual take() but deliberately
// excluded from ordering: two rows with equal PartitionID and Hash may
// come out in either order.
type PI struct {
	PartitionID uint32
	Hash        uint32
	Index       uint32
}

// Key returns the 64-bit composite sort key (partition_id << 32 | hash).
// Sorting PIs by Key groups them by PartitionID first and by Hash second,
// which is all the ordering the freeze pipeline requires.
func (p PI) Key() uint64 {
	return uint64(p.PartitionID)<<32 | uint64(p.Hash)
}

// Build constructs one PI per row from parallel hash/partition arrays
// produced by a partition-key deriver. len(hashes) must equal
// len(partitionIDs); Index is the row's position in the source batch.
func Build(hashes, partitionIDs []uint32) []PI {
	out := make([]PI, len(hashes))
	for i := range out {
		out[i] = PI{
			PartitionID: partitionIDs[i],
			Hash:        hashes[i],
			Index:       uint32(i),
		}
	}
	return out
}
