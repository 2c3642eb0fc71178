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

package pi

import (
	"math/rand"
	"testing"
)

func TestKeyOrdersByPartitionThenHash(t *testing.T) {
	a := PI{PartitionID: 1, Hash: 100, Index: 9}
	b := PI{PartitionID: 2, Hash: 0, Index: 0}
	if !(a.Key() < b.Key()) {
		t.Fatalf("expected partition 1 to sort before partition 2 regardless of hash")
	}

	c := PI{PartitionID: 1, Hash: 50, Index: 3}
	d := PI{PartitionID: 1, Hash: 200, Index: 1}
	if !(c.Key() < d.Key()) {
		t.Fatalf("expected lower hash to sort first within the same partition")
	}
}

func TestBuild(t *testing.T) {
	hashes := []uint32{5, 6, 7}
	parts := []uint32{0, 1, 0}
	got := Build(hashes, parts)
	want := []PI{
		{PartitionID: 0, Hash: 5, Index: 0},
		{PartitionID: 1, Hash: 6, Index: 1},
		{PartitionID: 0, Hash: 7, Index: 2},
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Build()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSortEmptyAndSingle(t *testing.T) {
	Sort(nil)
	single := []PI{{PartitionID: 3, Hash: 4, Index: 5}}
	Sort(single)
	if single[0].PartitionID != 3 {
		t.Fatalf("sorting a single element must not mutate it")
	}
}

func TestSortIsGroupedByPartitionAndSortedByHash(t *testing.T) {
	for _, n := range []int{2, 10, 255, 256, 257, 10000} {
		pis := randomPIs(n, 8)
		Sort(pis)
		assertSorted(t, pis)
	}
}

func TestSortPreservesMultiset(t *testing.T) {
	pis := randomPIs(5000, 16)
	orig := make(map[PI]int, len(pis))
	for _, p := range pis {
		orig[p]++
	}
	Sort(pis)
	got := make(map[PI]int, len(pis))
	for _, p := range pis {
		got[p]++
	}
	if len(orig) != len(got) {
		t.Fatalf("sort changed distinct element count")
	}
	for k, v := range orig {
		if got[k] != v {
			t.Fatalf("sort lost or duplicated element %+v: want %d got %d", k, v, got[k])
		}
	}
}

func randomPIs(n int, numPartitions uint32) []PI {
	rnd := rand.New(rand.NewSource(int64(n) * 7919))
	pis := make([]PI, n)
	for i := range pis {
		pis[i] = PI{
			PartitionID: uint32(rnd.Intn(int(numPartitions))),
			Hash:        rnd.Uint32(),
			Index:       uint32(i),
		}
	}
	return pis
}

func assertSorted(t *testing.T, pis []PI) {
	t.Helper()
	for i := 1; i < len(pis); i++ {
		if pis[i-1].Key() > pis[i].Key() {
			t.Fatalf("not sorted at index %d: %+v > %+v", i, pis[i-1], pis[i])
		}
	}
}
