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
	"fmt"
	"io"
	"os"
)

// L3 is a spill held as a byte range of a file on disk, allocated
// under the runtime's managed temp directory.
type L3 struct {
	f    *os.File
	size int64
}

func newL3FromOpenFile(f *os.File, size int64) (*L3, error) {
	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("spilltier: syncing L3 temp file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("spilltier: rewinding L3 temp file: %w", err)
	}
	return &L3{f: f, size: size}, nil
}

// OffheapMemSize is always 0 for L3: its bytes live entirely on disk.
func (l *L3) OffheapMemSize() int64 { return 0 }

func (l *L3) Reader() (io.Reader, error) {
	if _, err := l.f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("spilltier: rewinding L3 file: %w", err)
	}
	return l.f, nil
}

func (l *L3) Close() error {
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil
	return f.Close()
}
