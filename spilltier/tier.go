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

// Package spilltier implements a three-level spill storage hierarchy:
// an in-heap byte blob (L1), an off-heap managed buffer (L2), and a
// disk file (L3), plus the ShuffleSpill that pairs a tier with its
// partition offset table.
package spilltier

import (
	"fmt"
	"io"
)

// Tier is a frozen run of serialized sub-batches held in one of the
// three storage levels.
type Tier interface {
	// OffheapMemSize returns the number of bytes this tier counts
	// against the process heap budget: the blob length for L1, the
	// exact buffer size for L2, and 0 for L3.
	OffheapMemSize() int64
	// Reader returns a single-pass byte source over the tier's
	// contents in original write order. It may only be called once per
	// tier instance.
	Reader() (io.Reader, error)
	// Close releases any resources the tier owns (off-heap buffers,
	// temp files). Safe to call multiple times.
	Close() error
}

// ShuffleSpill is one frozen run together with the byte offset of
// every partition's data within it.
type ShuffleSpill struct {
	Tier Tier
	// Offsets has N+1 entries; Offsets[p+1]-Offsets[p] is the byte
	// size of partition p within this spill.
	Offsets []int64
}

// OffheapMemSize delegates to the underlying tier.
func (s *ShuffleSpill) OffheapMemSize() int64 { return s.Tier.OffheapMemSize() }

// ValidateOffsets checks the invariants a spill's offset table must
// hold: N+1 entries, non-decreasing. The last entry is not compared
// with the tier's stream length.
func (s *ShuffleSpill) ValidateOffsets(numPartitions int) error {
	if len(s.Offsets) != numPartitions+1 {
		return fmt.Errorf("spilltier: offsets has %d entries, want %d", len(s.Offsets), numPartitions+1)
	}
	for i := 1; i < len(s.Offsets); i++ {
		if s.Offsets[i] < s.Offsets[i-1] {
			return fmt.Errorf("spilltier: offsets not monotonic at index %d: %d < %d", i, s.Offsets[i], s.Offsets[i-1])
		}
	}
	return nil
}
