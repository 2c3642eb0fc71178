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

// Package offheap provides anonymous, non-GC-tracked memory regions
// backing the L2 spill tier's externally managed off-heap buffer. The
// allocation itself is OS-specific (see offheap_unix.go and
// offheap_windows.go).
package offheap

import "errors"

// ErrExhausted names the off-heap resource-exhausted condition. Alloc
// does not return it: an mmap or VirtualAlloc failure is returned as
// a wrapped OS error. The default L2 spill store reports any Alloc
// failure as spilltier.ErrL2Exhausted, which triggers the L3 fallback.
var ErrExhausted = errors.New("offheap: resource exhausted")

// Buffer is a fixed-size region of memory outside the Go heap.
type Buffer struct {
	data []byte
}

// Bytes returns the buffer's backing slice. The slice is valid until
// Free is called.
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the size of the buffer in bytes.
func (b *Buffer) Len() int { return len(b.data) }
