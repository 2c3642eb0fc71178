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

package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeWorkload(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "workload.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadWorkloadDefaultsKeyColumns(t *testing.T) {
	path := writeWorkload(t, `
rows: 1000
batch_rows: 100
columns: [8, 16]
num_partitions: 4
`)
	w, err := loadWorkload(path)
	if err != nil {
		t.Fatalf("loadWorkload: %v", err)
	}
	if len(w.KeyColumns) != 1 || w.KeyColumns[0] != 0 {
		t.Fatalf("got KeyColumns %v, want [0]", w.KeyColumns)
	}
}

func TestLoadWorkloadRejectsMissingFields(t *testing.T) {
	for _, td := range []struct {
		name string
		yaml string
	}{
		{"zero rows", "rows: 0\nbatch_rows: 1\ncolumns: [8]\nnum_partitions: 1\n"},
		{"zero batch_rows", "rows: 1\nbatch_rows: 0\ncolumns: [8]\nnum_partitions: 1\n"},
		{"no columns", "rows: 1\nbatch_rows: 1\nnum_partitions: 1\n"},
		{"narrow key column", "rows: 1\nbatch_rows: 1\ncolumns: [4]\nnum_partitions: 1\n"},
		{"zero num_partitions", "rows: 1\nbatch_rows: 1\ncolumns: [8]\n"},
	} {
		t.Run(td.name, func(t *testing.T) {
			path := writeWorkload(t, td.yaml)
			if _, err := loadWorkload(path); err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestRowGeneratorTagsDistinctIDs(t *testing.T) {
	schema := buildSchema([]int{8, 16})
	gen := newRowGenerator(schema, []int{8, 16}, 1)

	b := gen.next(50)
	if b.Rows != 50 {
		t.Fatalf("got %d rows, want 50", b.Rows)
	}
	seen := make(map[uint64]bool, 50)
	for r := 0; r < b.Rows; r++ {
		id := decodeID(b.Cols[0][r])
		if seen[id] {
			t.Fatalf("duplicate row id at row %d", r)
		}
		seen[id] = true
	}
	if len(seen) != 50 {
		t.Fatalf("got %d distinct ids, want 50", len(seen))
	}
}
