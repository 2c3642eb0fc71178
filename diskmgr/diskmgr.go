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

// Package diskmgr provides the reference "disk manager" collaborator:
// a managed temp-file directory for L3 spill tiers, cleaned up in one
// shot when the owning task completes.
package diskmgr

import (
	"fmt"
	"os"
	"sync"
)

// Manager hands out temp files under a single managed directory and
// removes the whole directory on Close, so a task never needs to track
// individual spill files for cleanup.
type Manager struct {
	dir string

	mu     sync.Mutex
	files  []string
	closed bool
}

// New creates a managed temp directory under parent (os.TempDir() if
// parent is empty).
func New(parent string) (*Manager, error) {
	dir, err := os.MkdirTemp(parent, "shuffle-spill-*")
	if err != nil {
		return nil, fmt.Errorf("diskmgr: creating managed dir: %w", err)
	}
	return &Manager{dir: dir}, nil
}

// CreateTemp allocates a new temp file under the managed directory.
// The caller owns the returned file and is responsible for closing it;
// the Manager still owns deleting it on Close.
func (m *Manager) CreateTemp(pattern string) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("diskmgr: CreateTemp called after Close")
	}
	f, err := os.CreateTemp(m.dir, pattern)
	if err != nil {
		return nil, fmt.Errorf("diskmgr: creating temp file: %w", err)
	}
	m.files = append(m.files, f.Name())
	return f, nil
}

// Dir returns the managed directory path.
func (m *Manager) Dir() string { return m.dir }

// Close removes the managed directory and every file created under it.
// Safe to call multiple times.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return os.RemoveAll(m.dir)
}
