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

// Package batchio provides the reference implementation of the
// columnar batch/schema/IO layer collaborator, treated as external to
// the repartitioner core: batch concatenation, row-level take,
// in-memory footprint accounting, and a framed batch serializer.
//
// The repartitioner core calls the concrete types and functions of
// this package directly; there is no interface layer in between.
package batchio

import "fmt"

// Schema names the columns every Batch built from it must carry, in
// order.
type Schema struct {
	Columns []string
}

// Batch is a minimal columnar record batch: one []byte-per-row slice
// per column plus a row count. The byte encoding of values is
// opaque to this package - only identity, length, and Take order
// matter for the repartitioner's purposes.
type Batch struct {
	Schema *Schema
	Rows   int
	Cols   [][][]byte // Cols[column][row]
}

// NewBatch validates that every column has exactly rows entries and
// that the column count matches schema, returning a *Batch on success.
func NewBatch(schema *Schema, cols [][][]byte, rows int) (*Batch, error) {
	if len(cols) != len(schema.Columns) {
		return nil, fmt.Errorf("batchio: batch has %d columns, schema has %d", len(cols), len(schema.Columns))
	}
	for i, c := range cols {
		if len(c) != rows {
			return nil, fmt.Errorf("batchio: column %q has %d rows, expected %d", schema.Columns[i], len(c), rows)
		}
	}
	return &Batch{Schema: schema, Rows: rows, Cols: cols}, nil
}

// ArrayMemorySize approximates the batch's resident heap footprint:
// the sum of every value's byte length plus a fixed per-value slice
// header overhead. This is the quantity InsertBatch doubles to
// reserve headroom for the freeze step.
func (b *Batch) ArrayMemorySize() int64 {
	const sliceHeaderOverhead = 24 // len/cap/ptr, matching runtime.SliceHeader on 64-bit
	var size int64
	for _, col := range b.Cols {
		for _, v := range col {
			size += int64(len(v)) + sliceHeaderOverhead
		}
	}
	return size
}

// ConcatBatches concatenates batches (which must all share schema)
// into a single batch of totalRows rows, in the order given.
func ConcatBatches(schema *Schema, batches []*Batch, totalRows int) (*Batch, error) {
	cols := make([][][]byte, len(schema.Columns))
	for i := range cols {
		cols[i] = make([][]byte, 0, totalRows)
	}
	for _, b := range batches {
		if len(b.Cols) != len(schema.Columns) {
			return nil, fmt.Errorf("batchio: concat: batch has %d columns, schema has %d", len(b.Cols), len(schema.Columns))
		}
		for i, col := range b.Cols {
			cols[i] = append(cols[i], col...)
		}
	}
	rows := 0
	if len(cols) > 0 {
		rows = len(cols[0])
	}
	if rows != totalRows {
		return nil, fmt.Errorf("batchio: concat: got %d rows, expected %d", rows, totalRows)
	}
	return &Batch{Schema: schema, Rows: rows, Cols: cols}, nil
}

// Take builds a new column by selecting rows from col at the given
// indices, in order. Indices are not bounds-checked beyond the normal
// slice-index panic: callers who cannot prove indices lie within
// [0, len(col)) statically should keep bounds checks on, which
// indexing into a Go slice does for free.
func Take(col [][]byte, indices []uint32) [][]byte {
	out := make([][]byte, len(indices))
	for i, idx := range indices {
		out[i] = col[idx]
	}
	return out
}

// TakeBatch applies Take to every column of b, producing a new batch
// with the same schema containing only the selected rows.
func TakeBatch(b *Batch, indices []uint32) *Batch {
	cols := make([][][]byte, len(b.Cols))
	for i, col := range b.Cols {
		cols[i] = Take(col, indices)
	}
	return &Batch{Schema: b.Schema, Rows: len(indices), Cols: cols}
}
