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

package losertree

import (
	"math/rand"
	"testing"
)

func TestTreeDrainsInOrder(t *testing.T) {
	cursors := []int{5, 3, 8, 1, 9, 2}
	tree := New(cursors, func(a, b int) bool { return a < b })

	var out []int
	for i := 0; i < tree.Len(); i++ {
		h := tree.Peek()
		out = append(out, *h.Value())
		*h.Value() = 1 << 30 // simulate "finished": sorts to the end
		h.Release()
	}

	for i := 1; i < len(out); i++ {
		if out[i-1] > out[i] {
			t.Fatalf("not drained in ascending order: %v", out)
		}
	}
}

// finishableCursor mimics a spill cursor: it advances through a fixed
// set of values and reports itself finished once exhausted, so a
// comparator can sort finished cursors last.
type finishableCursor struct {
	values []int
	pos    int
}

func (c *finishableCursor) finished() bool { return c.pos >= len(c.values) }
func (c *finishableCursor) cur() int       { return c.values[c.pos] }

func cursorLess(a, b *finishableCursor) bool {
	if a.finished() {
		return false
	}
	if b.finished() {
		return true
	}
	return a.cur() < b.cur()
}

func TestTreeMergesMultipleFinishingCursors(t *testing.T) {
	cursors := []*finishableCursor{
		{values: []int{1, 4, 7}},
		{values: []int{2, 2, 9}},
		{values: []int{}},
		{values: []int{0, 10}},
	}
	tree := New(cursors, cursorLess)

	var merged []int
	for {
		h := tree.Peek()
		c := *h.Value()
		if c.finished() {
			h.Release()
			break
		}
		merged = append(merged, c.cur())
		c.pos++
		h.Release()
	}

	want := []int{0, 1, 2, 2, 4, 7, 9, 10}
	if len(merged) != len(want) {
		t.Fatalf("got %v, want %v", merged, want)
	}
	for i := range want {
		if merged[i] != want[i] {
			t.Fatalf("got %v, want %v", merged, want)
		}
	}
}

func TestTreeRandomMerge(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	const numCursors = 20
	cursors := make([]*finishableCursor, numCursors)
	total := 0
	for i := range cursors {
		n := rnd.Intn(50)
		vals := make([]int, n)
		v := 0
		for j := range vals {
			v += rnd.Intn(5)
			vals[j] = v
		}
		cursors[i] = &finishableCursor{values: vals}
		total += n
	}

	tree := New(cursors, cursorLess)
	var merged []int
	for {
		h := tree.Peek()
		c := *h.Value()
		if c.finished() {
			h.Release()
			break
		}
		merged = append(merged, c.cur())
		c.pos++
		h.Release()
	}

	if len(merged) != total {
		t.Fatalf("expected %d merged values, got %d", total, len(merged))
	}
	for i := 1; i < len(merged); i++ {
		if merged[i-1] > merged[i] {
			t.Fatalf("merge output not sorted at %d: %v", i, merged)
		}
	}
}
