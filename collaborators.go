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
	"fmt"
	"sync/atomic"

	"github.com/SnellerInc/shuffle/batchio"
	"github.com/SnellerInc/shuffle/partkey"
)

// HashPartitioner is the "hash-partitioning expression evaluator"
// collaborator: it derives a hash and an output partition id for every
// row of a batch. The default implementation, KeyColumnPartitioner,
// wraps package partkey; embedders with their own expression evaluator
// can supply any other implementation.
type HashPartitioner interface {
	Evaluate(batch *batchio.Batch, numPartitions uint32) (hash, partitionID []uint32, err error)
}

// KeyColumnPartitioner derives hashes from a fixed set of column
// indices within the batch, in order, using the SipHash-based
// implementation in package partkey.
type KeyColumnPartitioner struct {
	// KeyColumns names the batch columns (by index) that participate in
	// the partitioning hash, in order.
	KeyColumns []int
}

func (p KeyColumnPartitioner) Evaluate(batch *batchio.Batch, numPartitions uint32) (hash, partitionID []uint32, err error) {
	for _, ci := range p.KeyColumns {
		if ci < 0 || ci >= len(batch.Cols) {
			return nil, nil, fmt.Errorf("shuffle: key column index %d out of range for %d-column batch", ci, len(batch.Cols))
		}
	}
	scratch := make([][]byte, len(p.KeyColumns))
	d := partkey.Descriptor{
		Rows:          batch.Rows,
		NumPartitions: numPartitions,
		Columns: func(row int) [][]byte {
			for i, ci := range p.KeyColumns {
				scratch[i] = batch.Cols[ci][row]
			}
			return scratch
		},
	}
	hash, partitionID = partkey.Evaluate(d)
	return hash, partitionID, nil
}

// Metrics is the externally-owned metrics collaborator: current memory
// usage and spill volume, both tracked as separate externally visible
// counters.
type Metrics interface {
	MemUsed() int64
	AddMemUsed(delta int64)
	SetMemUsed(v int64)
	SpilledBytes() int64
	AddSpilledBytes(n int64)
	SpillCount() int64
	IncSpillCount()
}

// DefaultMetrics is an in-process Metrics implementation backed by
// atomic counters, suitable when the caller has no external metrics
// sink to wire in.
type DefaultMetrics struct {
	memUsed      atomic.Int64
	spilledBytes atomic.Int64
	spillCount   atomic.Int64
}

func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) MemUsed() int64          { return m.memUsed.Load() }
func (m *DefaultMetrics) AddMemUsed(delta int64)  { m.memUsed.Add(delta) }
func (m *DefaultMetrics) SetMemUsed(v int64)      { m.memUsed.Store(v) }
func (m *DefaultMetrics) SpilledBytes() int64     { return m.spilledBytes.Load() }
func (m *DefaultMetrics) AddSpilledBytes(n int64) { m.spilledBytes.Add(n) }
func (m *DefaultMetrics) SpillCount() int64       { return m.spillCount.Load() }
func (m *DefaultMetrics) IncSpillCount()          { m.spillCount.Add(1) }
