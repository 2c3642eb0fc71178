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

package offheap

import "testing"

func TestAllocWriteReadFree(t *testing.T) {
	buf, err := Alloc(4096)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if buf.Len() != 4096 {
		t.Fatalf("Len() = %d, want 4096", buf.Len())
	}
	data := buf.Bytes()
	for i := range data {
		data[i] = byte(i)
	}
	for i := range data {
		if data[i] != byte(i) {
			t.Fatalf("byte %d corrupted: got %d", i, data[i])
		}
	}
	if err := Free(buf); err != nil {
		t.Fatalf("Free: %v", err)
	}
}

func TestAllocZero(t *testing.T) {
	buf, err := Alloc(0)
	if err != nil {
		t.Fatalf("Alloc(0): %v", err)
	}
	if buf.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", buf.Len())
	}
	if err := Free(buf); err != nil {
		t.Fatalf("Free: %v", err)
	}
}
