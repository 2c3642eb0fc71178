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

package main

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"
)

// Workload describes one end-to-end run of the repartitioner: how much
// data to generate, how it should be shaped, and when to inject
// explicit spills, so a run can be reproduced from a checked-in file
// instead of a pile of flags.
type Workload struct {
	// Rows is the total row count generated across all batches.
	Rows int `json:"rows"`
	// BatchRows is the row count of each InsertBatch call.
	BatchRows int `json:"batch_rows"`
	// Columns gives the byte width of each generated column; the
	// columns named by KeyColumns (by default, just column 0) are used
	// as the partitioning key.
	Columns []int `json:"columns"`
	// KeyColumns names the partitioning key columns by index. Defaults
	// to []int{0} if empty.
	KeyColumns []int `json:"key_columns,omitempty"`
	// NumPartitions is N, the number of output partitions.
	NumPartitions uint32 `json:"num_partitions"`
	// BatchSize caps the row count of a sub-batch emitted during a
	// freeze. Zero uses the repartitioner's default.
	BatchSize int `json:"batch_size,omitempty"`
	// MemoryLimitBytes bounds the shared memory budget. Zero means
	// unbounded, so spills only happen at the explicit points below.
	MemoryLimitBytes int64 `json:"memory_limit_bytes,omitempty"`
	// L2BudgetBytes bounds the off-heap store backing the L2 tier. Zero
	// means unbounded.
	L2BudgetBytes int64 `json:"l2_budget_bytes,omitempty"`
	// SpillEveryBatches calls Spill explicitly after every N inserted
	// batches, in addition to whatever the memory manager solicits on
	// its own. Zero disables explicit spilling.
	SpillEveryBatches int `json:"spill_every_batches,omitempty"`
	// Seed drives the deterministic pseudo-random column generator.
	Seed int64 `json:"seed,omitempty"`
}

func loadWorkload(path string) (*Workload, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workload file: %w", err)
	}
	var w Workload
	if err := yaml.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("parsing workload file: %w", err)
	}
	if w.Rows <= 0 {
		return nil, fmt.Errorf("workload: rows must be positive")
	}
	if w.BatchRows <= 0 {
		return nil, fmt.Errorf("workload: batch_rows must be positive")
	}
	if len(w.Columns) == 0 {
		return nil, fmt.Errorf("workload: columns must name at least one column width")
	}
	if w.Columns[0] < 8 {
		return nil, fmt.Errorf("workload: column 0 must be at least 8 bytes wide to carry the row id")
	}
	if w.NumPartitions == 0 {
		return nil, fmt.Errorf("workload: num_partitions must be positive")
	}
	if len(w.KeyColumns) == 0 {
		w.KeyColumns = []int{0}
	}
	return &w, nil
}
