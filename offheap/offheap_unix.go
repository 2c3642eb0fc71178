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

//go:build linux || darwin

package offheap

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Alloc reserves size bytes of anonymous memory via mmap, outside the
// Go runtime's heap and therefore invisible to GC accounting - the
// same property vm/malloc_linux.go relies on for its vmm region.
func Alloc(size int) (*Buffer, error) {
	if size == 0 {
		return &Buffer{data: []byte{}}, nil
	}
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("offheap: mmap %d bytes: %w", size, err)
	}
	return &Buffer{data: data}, nil
}

// Free releases a buffer obtained from Alloc.
func Free(b *Buffer) error {
	if len(b.data) == 0 {
		return nil
	}
	return unix.Munmap(b.data)
}
