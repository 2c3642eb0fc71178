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
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/SnellerInc/shuffle/diskmgr"
	"github.com/SnellerInc/shuffle/offheap"
)

// ErrL2Exhausted is the resource-exhausted condition L1->L2 promotion
// surfaces so the caller can retry with L3. The default store's Alloc
// errors wrap it; when the offheap allocation itself fails, that
// error's text is included but it is not wrapped.
var ErrL2Exhausted = errors.New("spilltier: L2 store exhausted")

// SpillStore is the "external spill manager" collaborator for the L2
// tier: allocate a spill id, append bytes in chunks, finalize, read
// back, and release. Implementations are free to back this with
// off-heap memory (the default, see NewOffheapSpillStore), RDMA, or
// any other externally-managed byte store.
type SpillStore interface {
	Alloc(id uuid.UUID, size int64) error
	Write(id uuid.UUID, chunk []byte) (int, error)
	Complete(id uuid.UUID) error
	Open(id uuid.UUID) (io.ReadCloser, error)
	Release(id uuid.UUID) error
}

// L2 is a spill whose bytes live in an externally managed off-heap
// buffer identified by id.
type L2 struct {
	store SpillStore
	id    uuid.UUID
	size  int64
}

func (l *L2) OffheapMemSize() int64 { return l.size }

func (l *L2) Reader() (io.Reader, error) { return l.store.Open(l.id) }

func (l *L2) Close() error { return l.store.Release(l.id) }

// PromoteToL3 reads this spill back from the off-heap store and
// streams it into a fresh temp file managed by dm, then releases the
// off-heap buffer.
func (l *L2) PromoteToL3(dm *diskmgr.Manager) (*L3, error) {
	r, err := l.store.Open(l.id)
	if err != nil {
		return nil, fmt.Errorf("spilltier: reopening L2 spill for L3 promotion: %w", err)
	}
	defer r.Close()

	f, err := dm.CreateTemp("l3-spill-*.bin")
	if err != nil {
		return nil, fmt.Errorf("spilltier: allocating L3 temp file: %w", err)
	}
	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("spilltier: copying L2 spill to L3: %w", err)
	}
	if err := l.store.Release(l.id); err != nil {
		f.Close()
		return nil, fmt.Errorf("spilltier: releasing L2 spill after L3 promotion: %w", err)
	}
	return newL3FromOpenFile(f, n)
}

// offheapSpillStore is the default SpillStore: a fixed-budget pool of
// anonymous memory regions, one per in-flight spill id.
type offheapSpillStore struct {
	budget int64

	mu      sync.Mutex
	used    int64
	entries map[uuid.UUID]*offheapEntry
}

type offheapEntry struct {
	buf      *offheap.Buffer
	pos      int64
	complete bool
}

// NewOffheapSpillStore creates a SpillStore backed by anonymous
// off-heap memory, capped at budget total bytes across all in-flight
// spills. A budget of 0 means unbounded (every Alloc succeeds subject
// only to the host OS).
func NewOffheapSpillStore(budget int64) SpillStore {
	return &offheapSpillStore{budget: budget, entries: make(map[uuid.UUID]*offheapEntry)}
}

func (s *offheapSpillStore) Alloc(id uuid.UUID, size int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.budget != 0 && s.used+size > s.budget {
		return fmt.Errorf("%w: need %d more bytes, %d of %d already in use", ErrL2Exhausted, size, s.used, s.budget)
	}
	buf, err := offheap.Alloc(int(size))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrL2Exhausted, err)
	}
	s.entries[id] = &offheapEntry{buf: buf}
	s.used += size
	return nil
}

func (s *offheapSpillStore) Write(id uuid.UUID, chunk []byte) (int, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return 0, fmt.Errorf("spilltier: write to unknown spill id %s", id)
	}
	n := copy(e.buf.Bytes()[e.pos:], chunk)
	e.pos += int64(n)
	if n != len(chunk) {
		return n, fmt.Errorf("spilltier: wrote %d of %d bytes: buffer undersized", n, len(chunk))
	}
	return n, nil
}

func (s *offheapSpillStore) Complete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok {
		return fmt.Errorf("spilltier: complete on unknown spill id %s", id)
	}
	e.complete = true
	return nil
}

func (s *offheapSpillStore) Open(id uuid.UUID) (io.ReadCloser, error) {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("spilltier: open on unknown spill id %s", id)
	}
	return io.NopCloser(bytes.NewReader(e.buf.Bytes()[:e.pos])), nil
}

func (s *offheapSpillStore) Release(id uuid.UUID) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		delete(s.entries, id)
		s.used -= int64(e.buf.Len()) // full reservation, not just bytes written
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return offheap.Free(e.buf)
}
