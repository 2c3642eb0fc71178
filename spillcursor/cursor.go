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

// Package spillcursor implements the per-spill read cursor the
// terminal merge advances one partition at a time.
package spillcursor

import (
	"io"

	"github.com/SnellerInc/shuffle/spilltier"
)

// Cursor tracks the current partition being read out of one spill.
type Cursor struct {
	Cur     int
	Reader  io.Reader
	Offsets []int64
}

// New opens spill for reading and positions the cursor at partition 0.
func New(spill *spilltier.ShuffleSpill) (*Cursor, error) {
	r, err := spill.Tier.Reader()
	if err != nil {
		return nil, err
	}
	return &Cursor{Cur: 0, Reader: r, Offsets: spill.Offsets}, nil
}

// Finished reports whether the cursor has advanced past the last
// partition.
func (c *Cursor) Finished() bool {
	return c.Cur+1 >= len(c.Offsets)
}

// SkipEmptyPartitions advances Cur past any partitions that contain no
// bytes in this spill: empty intermediate partitions receive equal
// offsets. It stops at the first non-empty partition or once the
// cursor is finished.
func (c *Cursor) SkipEmptyPartitions() {
	for !c.Finished() && c.Offsets[c.Cur+1] == c.Offsets[c.Cur] {
		c.Cur++
	}
}

// Len returns the byte length of the partition the cursor currently
// points at.
func (c *Cursor) Len() int64 {
	return c.Offsets[c.Cur+1] - c.Offsets[c.Cur]
}

// Less implements the ordering the loser tree's comparator requires:
// finished cursors always sort last, otherwise the cursor pointing at
// the lower partition id sorts first.
func Less(a, b *Cursor) bool {
	switch {
	case a.Finished():
		return false
	case b.Finished():
		return true
	default:
		return a.Cur < b.Cur
	}
}
