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
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/SnellerInc/shuffle/diskmgr"
)

// L1 is a spill held as a contiguous byte blob in the process heap.
type L1 struct {
	data []byte
}

// NewL1 wraps a byte blob produced by the freeze pipeline as an L1 tier.
func NewL1(data []byte) *L1 { return &L1{data: data} }

func (l *L1) OffheapMemSize() int64 { return int64(len(l.data)) }

func (l *L1) Reader() (io.Reader, error) { return bytes.NewReader(l.data), nil }

func (l *L1) Close() error { l.data = nil; return nil }

// PromoteToL2 moves this blob's bytes into an externally managed
// off-heap buffer, writing in fixed-size chunks. If store reports it
// has no remaining off-heap capacity, the returned error wraps
// ErrL2Exhausted and the caller must fall back to PromoteToL3.
func (l *L1) PromoteToL2(store SpillStore) (*L2, error) {
	id := uuid.New()
	size := int64(len(l.data))
	if err := store.Alloc(id, size); err != nil {
		return nil, err
	}

	const chunkSize = 1 << 20
	for off := 0; off < len(l.data); off += chunkSize {
		end := off + chunkSize
		if end > len(l.data) {
			end = len(l.data)
		}
		if _, err := store.Write(id, l.data[off:end]); err != nil {
			_ = store.Release(id)
			return nil, fmt.Errorf("spilltier: writing L2 chunk: %w", err)
		}
	}
	if err := store.Complete(id); err != nil {
		_ = store.Release(id)
		return nil, fmt.Errorf("spilltier: completing L2 spill: %w", err)
	}
	return &L2{store: store, id: id, size: size}, nil
}

// PromoteToL3 streams this blob's bytes into a fresh temp file managed
// by dm. This must not fail except for true I/O errors.
func (l *L1) PromoteToL3(dm *diskmgr.Manager) (*L3, error) {
	f, err := dm.CreateTemp("l3-spill-*.bin")
	if err != nil {
		return nil, fmt.Errorf("spilltier: allocating L3 temp file: %w", err)
	}
	if _, err := f.Write(l.data); err != nil {
		f.Close()
		return nil, fmt.Errorf("spilltier: writing L3 temp file: %w", err)
	}
	return newL3FromOpenFile(f, int64(len(l.data)))
}
