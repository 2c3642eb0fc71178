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

// Package memmgr provides a shared memory budget that consumers grow
// against, soliciting Spill from registered peers (including, possibly,
// the requester itself) when growth would exceed the budget.
package memmgr

import (
	"context"
	"fmt"
	"sync"
)

// Consumer is implemented by anything that can free memory on demand.
// The shuffle repartitioner's external Spill entry point satisfies
// this interface.
type Consumer interface {
	// Spill frees as much memory as practical and returns the number
	// of bytes freed.
	Spill(ctx context.Context) (freedBytes int64, err error)
	// MemUsed reports the consumer's current accounted usage, used to
	// pick which peer to solicit first.
	MemUsed() int64
}

// RequesterID identifies a registered consumer.
type RequesterID uint64

// Manager enforces a shared memory budget across registered consumers.
type Manager struct {
	limit int64

	mu        sync.Mutex
	used      int64
	nextID    RequesterID
	consumers map[RequesterID]Consumer
}

// New creates a Manager with the given byte budget. A limit of 0 means
// unbounded.
func New(limit int64) *Manager {
	return &Manager{limit: limit, consumers: make(map[RequesterID]Consumer)}
}

// RegisterRequester registers a consumer that may later be solicited
// for Spill when the budget is under pressure. It returns the id the
// consumer must present to TryGrow and DropConsumer.
func (m *Manager) RegisterRequester(c Consumer) RequesterID {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	id := m.nextID
	m.consumers[id] = c
	return id
}

// DropConsumer unregisters a consumer and reclaims its residual
// accounted usage from the shared budget.
func (m *Manager) DropConsumer(id RequesterID, residual int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.consumers, id)
	m.used -= residual
	if m.used < 0 {
		m.used = 0
	}
}

// ErrMemoryExhausted is the terminal failure TryGrow returns when the
// budget cannot be satisfied even after soliciting every registered
// consumer for a spill.
type ErrMemoryExhausted struct {
	Requested, Limit, Used int64
}

func (e *ErrMemoryExhausted) Error() string {
	return fmt.Sprintf("memmgr: cannot grow by %d bytes (used %d of %d limit)", e.Requested, e.Used, e.Limit)
}

// TryGrow attempts to reserve bytes against the shared budget on
// behalf of id. If the budget is already exhausted, TryGrow solicits
// Spill from every registered consumer (including, possibly, id
// itself) before giving up.
func (m *Manager) TryGrow(ctx context.Context, id RequesterID, bytes int64) error {
	m.mu.Lock()
	if m.limit == 0 || m.used+bytes <= m.limit {
		m.used += bytes
		m.mu.Unlock()
		return nil
	}
	peers := make([]Consumer, 0, len(m.consumers))
	for _, c := range m.consumers {
		peers = append(peers, c)
	}
	m.mu.Unlock()

	// Solicit the consumers holding the most memory first.
	for i := 1; i < len(peers); i++ {
		for j := i; j > 0 && peers[j].MemUsed() > peers[j-1].MemUsed(); j-- {
			peers[j], peers[j-1] = peers[j-1], peers[j]
		}
	}

	for _, c := range peers {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		freed, err := c.Spill(ctx)
		if err != nil {
			return fmt.Errorf("memmgr: peer spill failed while growing: %w", err)
		}
		m.mu.Lock()
		m.used -= freed
		if m.used < 0 {
			m.used = 0
		}
		ok := m.used+bytes <= m.limit
		if ok {
			m.used += bytes
		}
		m.mu.Unlock()
		if ok {
			return nil
		}
	}

	m.mu.Lock()
	used := m.used
	m.mu.Unlock()
	return &ErrMemoryExhausted{Requested: bytes, Limit: m.limit, Used: used}
}

// Used returns the manager's current accounted usage.
func (m *Manager) Used() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}
