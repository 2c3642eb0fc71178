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
	"encoding/binary"
	"math/rand"

	"github.com/SnellerInc/shuffle/batchio"
)

// rowGenerator produces schema.Columns-shaped batches of random bytes,
// tagging every row with a monotonically increasing id (packed into
// the low bytes of column 0) so a run's output can be checked for row
// conservation without tracking the generated payloads themselves.
type rowGenerator struct {
	schema  *batchio.Schema
	widths  []int
	rng     *rand.Rand
	nextRow uint64
}

func newRowGenerator(schema *batchio.Schema, widths []int, seed int64) *rowGenerator {
	return &rowGenerator{schema: schema, widths: widths, rng: rand.New(rand.NewSource(seed))}
}

func (g *rowGenerator) next(rows int) *batchio.Batch {
	cols := make([][][]byte, len(g.widths))
	for c, width := range g.widths {
		col := make([][]byte, rows)
		for r := 0; r < rows; r++ {
			v := make([]byte, width)
			if c == 0 {
				binary.LittleEndian.PutUint64(v, g.nextRow)
				g.nextRow++
				g.rng.Read(v[8:])
			} else {
				g.rng.Read(v)
			}
			col[r] = v
		}
		cols[c] = col
	}
	b, err := batchio.NewBatch(g.schema, cols, rows)
	if err != nil {
		// Columns are built to the schema's exact shape above; a
		// mismatch here means newRowGenerator was misconfigured.
		panic(err)
	}
	return b
}

func decodeID(col []byte) uint64 {
	return binary.LittleEndian.Uint64(col[:8])
}

func buildSchema(widths []int) *batchio.Schema {
	names := make([]string, len(widths))
	for i := range widths {
		names[i] = columnName(i)
	}
	return &batchio.Schema{Columns: names}
}

func columnName(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	if i < len(letters) {
		return string(letters[i])
	}
	return string(letters[i%len(letters)]) + itoa(i/len(letters))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
