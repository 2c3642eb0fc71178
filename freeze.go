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

package shuffle

import (
	"bytes"
	"context"
	"fmt"

	"github.com/SnellerInc/shuffle/batchio"
	"github.com/SnellerInc/shuffle/pi"
	"github.com/SnellerInc/shuffle/spilltier"
)

// spillBufferedToL1 implements the freeze pipeline: it takes bufferedMu
// itself, concatenates and sorts every buffered batch by
// (partition_id, hash), and emits one L1 ShuffleSpill whose offset
// table has exactly numPartitions+1 entries.
//
// It returns a nil spill (and zero freedBuffered) when the buffer is
// empty, so callers can distinguish "nothing to freeze" from a zero-row
// freeze of batches that happen to contain no rows.
func (r *Repartitioner) spillBufferedToL1(ctx context.Context) (spill *spilltier.ShuffleSpill, freedBuffered int64, err error) {
	r.bufferedMu.Lock()
	defer r.bufferedMu.Unlock()

	if len(r.bufferedBatches) == 0 {
		return nil, 0, nil
	}

	batches := r.bufferedBatches
	r.bufferedBatches = nil
	freedBuffered = r.bufferedMemSize.Swap(0)

	totalRows := 0
	for _, b := range batches {
		totalRows += b.Rows
	}
	concatenated, err := batchio.ConcatBatches(r.schema, batches, totalRows)
	if err != nil {
		return nil, freedBuffered, fmt.Errorf("shuffle: freezing buffer: concatenating batches: %w", err)
	}

	hash, partitionID, err := r.partitioner.Evaluate(concatenated, r.numPartitions)
	if err != nil {
		return nil, freedBuffered, fmt.Errorf("shuffle: freezing buffer: deriving partition keys: %w", err)
	}
	pis := pi.Build(hash, partitionID)
	pi.Sort(pis)

	var buf bytes.Buffer
	offsets := make([]int64, 1, r.numPartitions+1) // offsets[0] == 0

	curPartition := uint32(0)
	for len(pis) > 0 && curPartition < pis[0].PartitionID {
		offsets = append(offsets, int64(buf.Len()))
		curPartition++
	}

	windowStart := 0
	for i := 0; i < len(pis); i++ {
		windowLen := i - windowStart + 1
		atBatchLimit := windowLen >= r.batchSize
		isLast := i == len(pis)-1
		partitionChanges := !isLast && pis[i+1].PartitionID != pis[i].PartitionID

		if !atBatchLimit && !partitionChanges && !isLast {
			continue
		}

		if err := r.emitSubBatch(&buf, concatenated, pis[windowStart:i+1]); err != nil {
			return nil, freedBuffered, fmt.Errorf("shuffle: freezing buffer: emitting sub-batch: %w", err)
		}
		windowStart = i + 1

		if partitionChanges {
			next := pis[i+1].PartitionID
			for curPartition < next {
				offsets = append(offsets, int64(buf.Len()))
				curPartition++
			}
		}
	}
	// Extend to N+1 entries: any partitions above the highest one seen
	// (including all of them, if every row fell in the buffer's only
	// partition, or there were no rows at all) get the final stream
	// position.
	for uint32(len(offsets)) < r.numPartitions+1 {
		offsets = append(offsets, int64(buf.Len()))
	}

	l1 := spilltier.NewL1(buf.Bytes())
	return &spilltier.ShuffleSpill{Tier: l1, Offsets: offsets}, freedBuffered, nil
}

// emitSubBatch selects window's rows (by original row index) out of
// src and appends the framed, compressed encoding to buf.
func (r *Repartitioner) emitSubBatch(buf *bytes.Buffer, src *batchio.Batch, window []pi.PI) error {
	indices := make([]uint32, len(window))
	for i, p := range window {
		indices[i] = p.Index
	}
	sub := batchio.TakeBatch(src, indices)
	return batchio.WriteOneBatch(sub, buf, true, r.codec)
}
