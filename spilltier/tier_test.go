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

package spilltier

import (
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"

	"github.com/SnellerInc/shuffle/diskmgr"
)

func readAll(t *testing.T, tier Tier) []byte {
	t.Helper()
	r, err := tier.Reader()
	if err != nil {
		t.Fatalf("Reader: %v", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return data
}

func TestL1ReaderReturnsOriginalBytes(t *testing.T) {
	l1 := NewL1([]byte("hello world"))
	if l1.OffheapMemSize() != 11 {
		t.Fatalf("OffheapMemSize() = %d, want 11", l1.OffheapMemSize())
	}
	got := readAll(t, l1)
	if string(got) != "hello world" {
		t.Fatalf("got %q", got)
	}
}

func TestL1PromoteToL2RoundTrips(t *testing.T) {
	data := make([]byte, 3<<20) // exceed a single chunk to exercise multi-chunk writes
	for i := range data {
		data[i] = byte(i)
	}
	l1 := NewL1(data)
	store := NewOffheapSpillStore(0)
	l2, err := l1.PromoteToL2(store)
	if err != nil {
		t.Fatalf("PromoteToL2: %v", err)
	}
	if l2.OffheapMemSize() != int64(len(data)) {
		t.Fatalf("OffheapMemSize() = %d, want %d", l2.OffheapMemSize(), len(data))
	}
	got := readAll(t, l2)
	if len(got) != len(data) {
		t.Fatalf("got %d bytes, want %d", len(got), len(data))
	}
	for i := range data {
		if got[i] != data[i] {
			t.Fatalf("byte %d mismatch: got %d want %d", i, got[i], data[i])
		}
	}
	if err := l2.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestL1PromoteToL2ExhaustedFallsBackToL3(t *testing.T) {
	data := []byte("spill-me")
	l1 := NewL1(data)
	store := NewOffheapSpillStore(4) // smaller than len(data)

	_, err := l1.PromoteToL2(store)
	if !errors.Is(err, ErrL2Exhausted) {
		t.Fatalf("expected ErrL2Exhausted, got %v", err)
	}

	dm, err := diskmgr.New("")
	if err != nil {
		t.Fatalf("diskmgr.New: %v", err)
	}
	defer dm.Close()

	l3, err := l1.PromoteToL3(dm)
	if err != nil {
		t.Fatalf("PromoteToL3: %v", err)
	}
	defer l3.Close()
	if l3.OffheapMemSize() != 0 {
		t.Fatalf("L3 OffheapMemSize() = %d, want 0", l3.OffheapMemSize())
	}
	got := readAll(t, l3)
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestL2PromoteToL3(t *testing.T) {
	data := []byte("promote me twice")
	l1 := NewL1(data)
	store := NewOffheapSpillStore(0)
	l2, err := l1.PromoteToL2(store)
	if err != nil {
		t.Fatalf("PromoteToL2: %v", err)
	}

	dm, err := diskmgr.New("")
	if err != nil {
		t.Fatalf("diskmgr.New: %v", err)
	}
	defer dm.Close()

	l3, err := l2.PromoteToL3(dm)
	if err != nil {
		t.Fatalf("PromoteToL3: %v", err)
	}
	defer l3.Close()
	got := readAll(t, l3)
	if string(got) != string(data) {
		t.Fatalf("got %q, want %q", got, data)
	}
}

func TestShuffleSpillValidateOffsets(t *testing.T) {
	s := &ShuffleSpill{Tier: NewL1(nil), Offsets: []int64{0, 4, 4, 10}}
	if err := s.ValidateOffsets(3); err != nil {
		t.Fatalf("expected valid offsets, got %v", err)
	}
	if err := s.ValidateOffsets(4); err == nil {
		t.Fatalf("expected error for wrong partition count")
	}
	bad := &ShuffleSpill{Tier: NewL1(nil), Offsets: []int64{0, 4, 2}}
	if err := bad.ValidateOffsets(2); err == nil {
		t.Fatalf("expected error for non-monotonic offsets")
	}
}

func TestOffheapSpillStoreUnknownID(t *testing.T) {
	store := NewOffheapSpillStore(0)
	if _, err := store.Write(uuid.New(), []byte("x")); err == nil {
		t.Fatalf("expected error writing to unknown id")
	}
}
