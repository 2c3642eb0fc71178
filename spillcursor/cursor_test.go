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

package spillcursor

import (
	"testing"

	"github.com/SnellerInc/shuffle/spilltier"
)

func TestNewAndFinished(t *testing.T) {
	spill := &spilltier.ShuffleSpill{
		Tier:    spilltier.NewL1([]byte("abcdefgh")),
		Offsets: []int64{0, 3, 3, 8},
	}
	c, err := New(spill)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.Finished() {
		t.Fatalf("freshly opened cursor should not be finished")
	}
	if c.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", c.Len())
	}
	c.Cur++
	if c.Len() != 0 {
		t.Fatalf("Len() = %d, want 0 for empty partition", c.Len())
	}
	c.SkipEmptyPartitions()
	if c.Cur != 2 {
		t.Fatalf("Cur = %d, want 2 after skipping empty partition", c.Cur)
	}
	c.Cur++
	if !c.Finished() {
		t.Fatalf("cursor should be finished after advancing past the last partition")
	}
}

func TestSkipEmptyPartitionsAtConstruction(t *testing.T) {
	spill := &spilltier.ShuffleSpill{
		Tier:    spilltier.NewL1([]byte("xyz")),
		Offsets: []int64{0, 0, 0, 3},
	}
	c, err := New(spill)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.SkipEmptyPartitions()
	if c.Cur != 2 {
		t.Fatalf("Cur = %d, want 2", c.Cur)
	}
}

func TestLessOrdersFinishedLast(t *testing.T) {
	unfinished := &Cursor{Cur: 1, Offsets: []int64{0, 1, 2}}
	finished := &Cursor{Cur: 2, Offsets: []int64{0, 1, 2}}
	if !finished.Finished() {
		t.Fatalf("expected finished cursor to report Finished()")
	}
	if !Less(unfinished, finished) {
		t.Fatalf("unfinished cursor should sort before finished cursor")
	}
	if Less(finished, unfinished) {
		t.Fatalf("finished cursor must not sort before unfinished cursor")
	}
}

func TestLessOrdersByCur(t *testing.T) {
	a := &Cursor{Cur: 1, Offsets: []int64{0, 1, 2, 3}}
	b := &Cursor{Cur: 2, Offsets: []int64{0, 1, 2, 3}}
	if !Less(a, b) {
		t.Fatalf("cursor at lower partition should sort first")
	}
	if Less(b, a) {
		t.Fatalf("cursor at higher partition must not sort before lower")
	}
}
