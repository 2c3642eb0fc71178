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
	"log"
	"sync"
	"sync/atomic"

	"github.com/SnellerInc/shuffle/batchio"
	"github.com/SnellerInc/shuffle/diskmgr"
	"github.com/SnellerInc/shuffle/memmgr"
	"github.com/SnellerInc/shuffle/spilltier"
)

// defaultBatchSize bounds the peak allocation of a single take() during
// the freeze pipeline when a partition is heavily skewed.
const defaultBatchSize = 4096

// opState tracks the operator's lifecycle. Spilling is not tracked as a
// distinct value here: it is represented implicitly by holding
// bufferedMu or spillsMu, and never changes the outer Open/Finalizing/
// Closed state a caller can observe.
type opState int32

const (
	stateOpen opState = iota
	stateFinalizing
	stateClosed
)

// Config carries the construction inputs for a Repartitioner: the
// diagnostic partition id, the two output paths, the schema and
// partitioning descriptor, and the task-context collaborators (memory
// manager, disk manager, external L2 spill store).
type Config struct {
	// PartitionID is a diagnostic label only; it plays no role in the
	// repartitioning itself (this operator instance may be one of many
	// running against disjoint input shards).
	PartitionID int

	DataPath  string
	IndexPath string

	Schema        *batchio.Schema
	NumPartitions uint32
	// Partitioner derives hash/partition-id arrays per batch. If nil,
	// KeyColumnPartitioner with no key columns is used, which hashes an
	// empty key for every row and so assigns every row the same
	// partition (that hash mod NumPartitions) - callers that care about
	// actual distribution must set this.
	Partitioner HashPartitioner

	// BatchSize caps the row count of any one sub-batch emitted during
	// a freeze. Defaults to defaultBatchSize.
	BatchSize int

	MemoryManager *memmgr.Manager
	DiskManager   *diskmgr.Manager
	// SpillStore backs the L2 tier. Defaults to an unbounded
	// offheap-backed store via spilltier.NewOffheapSpillStore(0).
	SpillStore spilltier.SpillStore

	// Codec compresses framed sub-batches. Defaults to the s2 codec.
	Codec batchio.Compressor

	// Metrics receives mem_used/spilled_bytes/spill_count updates.
	// Defaults to a fresh DefaultMetrics.
	Metrics Metrics

	// Logger receives an informational line each time Spill pushes a
	// spill down to disk. A nil Logger disables logging.
	Logger *log.Logger
}

// Repartitioner is the sort-based shuffle repartitioner core: it owns
// buffered input batches, a list of finalized spills, and the
// memory-accounting counter, and implements insert_batch, the external
// spill() entry point, and the terminal shuffle_write.
//
// A Repartitioner must not be copied after first use.
type Repartitioner struct {
	id            int
	dataPath      string
	indexPath     string
	schema        *batchio.Schema
	numPartitions uint32
	batchSize     int
	partitioner   HashPartitioner
	codec         batchio.Compressor

	mm   *memmgr.Manager
	mmID memmgr.RequesterID
	dm   *diskmgr.Manager
	store spilltier.SpillStore

	metrics Metrics
	logger  *log.Logger

	bufferedMu      sync.Mutex
	bufferedBatches []*batchio.Batch
	bufferedMemSize atomic.Int64

	spillsMu sync.Mutex
	spills   []*spilltier.ShuffleSpill

	state     atomic.Int32
	closeOnce sync.Once
}

// New constructs a Repartitioner and registers it with the memory
// manager as a spill-capable consumer.
func New(cfg Config) (*Repartitioner, error) {
	if cfg.DataPath == "" || cfg.IndexPath == "" {
		return nil, fmt.Errorf("shuffle: DataPath and IndexPath are required")
	}
	if cfg.Schema == nil {
		return nil, fmt.Errorf("shuffle: Schema is required")
	}
	if cfg.NumPartitions == 0 {
		return nil, fmt.Errorf("shuffle: NumPartitions must be > 0")
	}
	if cfg.MemoryManager == nil {
		return nil, fmt.Errorf("shuffle: MemoryManager is required")
	}
	if cfg.DiskManager == nil {
		return nil, fmt.Errorf("shuffle: DiskManager is required")
	}

	r := &Repartitioner{
		id:            cfg.PartitionID,
		dataPath:      cfg.DataPath,
		indexPath:     cfg.IndexPath,
		schema:        cfg.Schema,
		numPartitions: cfg.NumPartitions,
		batchSize:     cfg.BatchSize,
		partitioner:   cfg.Partitioner,
		codec:         cfg.Codec,
		mm:            cfg.MemoryManager,
		dm:            cfg.DiskManager,
		store:         cfg.SpillStore,
		metrics:       cfg.Metrics,
		logger:        cfg.Logger,
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.partitioner == nil {
		r.partitioner = KeyColumnPartitioner{}
	}
	if r.store == nil {
		r.store = spilltier.NewOffheapSpillStore(0)
	}
	if r.metrics == nil {
		r.metrics = NewDefaultMetrics()
	}
	if r.codec == nil {
		codec, _, err := batchio.Codec("s2")
		if err != nil {
			return nil, fmt.Errorf("shuffle: resolving default codec: %w", err)
		}
		r.codec = codec
	}

	r.mmID = r.mm.RegisterRequester(r)
	return r, nil
}

// Name identifies this operator kind for logging/metrics labeling.
func (r *Repartitioner) Name() string { return "sort repartitioner" }

// String renders a one-line diagnostic summary.
func (r *Repartitioner) String() string {
	return fmt.Sprintf("%s[%d]{mem_used=%d spilled_bytes=%d spill_count=%d spills=%d}",
		r.Name(), r.id, r.metrics.MemUsed(), r.metrics.SpilledBytes(), r.metrics.SpillCount(), len(r.spills))
}

// MemUsed implements memmgr.Consumer.
func (r *Repartitioner) MemUsed() int64 { return r.metrics.MemUsed() }

func (r *Repartitioner) logf(format string, args ...interface{}) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}

// Close releases any resources still owned by the operator (unconsumed
// spill tiers) and informs the memory manager of the residual usage.
// Safe to call multiple times and safe to call after a completed
// ShuffleWrite.
func (r *Repartitioner) Close() error {
	r.state.CompareAndSwap(int32(stateOpen), int32(stateClosed))

	r.spillsMu.Lock()
	spills := r.spills
	r.spills = nil
	r.spillsMu.Unlock()

	var firstErr error
	for _, s := range spills {
		if err := s.Tier.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("shuffle: closing spill tier on Close: %w", err)
		}
	}

	r.deregister()
	return firstErr
}

// deregister zeroes the accounted memory usage and informs the memory
// manager, exactly once regardless of whether it is triggered by a
// completed ShuffleWrite or an early Close.
func (r *Repartitioner) deregister() {
	r.closeOnce.Do(func() {
		residual := r.metrics.MemUsed()
		r.metrics.SetMemUsed(0)
		r.mm.DropConsumer(r.mmID, residual)
	})
}
