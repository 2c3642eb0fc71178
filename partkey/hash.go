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

// Package partkey derives per-row hashes and output partition ids from
// a batch's partitioning key columns. It is the default implementation
// of the hash-partitioning expression evaluator collaborator, treated
// as external to the repartitioner core.
package partkey

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// Descriptor names the columns a batch is partitioned by and the
// number of output partitions. It is supplied by the planner/caller,
// not derived by this package.
type Descriptor struct {
	// Columns returns the key-column byte encodings for one row. The
	// slice and its elements are only read for the duration of the
	// call. Callers that already have a columnar batch representation
	// are expected to produce this view cheaply (e.g. the raw encoded
	// bytes of each key column's value for that row).
	Columns func(row int) [][]byte
	// Rows is the number of rows in the batch.
	Rows int
	// NumPartitions is N, the number of output partitions.
	NumPartitions uint32
}

// siphash key for partitioning hashes. Fixed across calls so that the
// same batch and descriptor always produce the same arrays. The key
// need not be secret: this hash selects a partition, it does not
// authenticate anything.
const (
	k0 = 0x5d1ec810febed702
	k1 = 0x40fd7fee17262f71
)

// Evaluate computes, for every row described by d, a hash and its
// corresponding partition id. The two returned slices are parallel and
// have length d.Rows. partitionID[i] == hash[i] % NumPartitions, except
// when NumPartitions is 1, in which case partitionID is uniformly zero
// but hash is still computed in full - some callers use the hash for
// purposes other than bucket selection.
func Evaluate(d Descriptor) (hash, partitionID []uint32) {
	hash = make([]uint32, d.Rows)
	partitionID = make([]uint32, d.Rows)
	var tmp []byte
	for i := 0; i < d.Rows; i++ {
		tmp = tmp[:0]
		for _, col := range d.Columns(i) {
			tmp = binary.LittleEndian.AppendUint32(tmp, uint32(len(col)))
			tmp = append(tmp, col...)
		}
		h := siphash.Hash(k0, k1, tmp)
		hash[i] = uint32(h) ^ uint32(h>>32)
		if d.NumPartitions > 1 {
			partitionID[i] = hash[i] % d.NumPartitions
		}
	}
	return hash, partitionID
}
