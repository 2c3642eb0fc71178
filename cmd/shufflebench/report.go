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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/SnellerInc/shuffle/batchio"
	"github.com/SnellerInc/shuffle/partkey"
)

// report walks the output file pair and checks the testable properties
// a shuffle run must hold: every row appears exactly once, every row
// landed in the partition its own key hashes to, and the index file's
// offsets cover the data file end to end with no gaps or overlaps.
func report(dataPath, indexPath string, schema *batchio.Schema, keyColumns []int, numPartitions uint32, rows int) error {
	_, dec, err := batchio.Codec("")
	if err != nil {
		return fmt.Errorf("report: %w", err)
	}
	offsets, err := readIndex(indexPath, numPartitions)
	if err != nil {
		return err
	}
	if offsets[0] != 0 {
		return fmt.Errorf("report: index[0] = %d, want 0", offsets[0])
	}

	data, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("report: opening data file: %w", err)
	}
	defer data.Close()
	info, err := data.Stat()
	if err != nil {
		return fmt.Errorf("report: stat data file: %w", err)
	}
	if offsets[numPartitions] != info.Size() {
		return fmt.Errorf("report: index[N] = %d, data file size = %d", offsets[numPartitions], info.Size())
	}

	seen := make(map[uint64]bool, rows)
	misplaced := 0
	for p := uint32(0); p < numPartitions; p++ {
		start, end := offsets[p], offsets[p+1]
		if end < start {
			return fmt.Errorf("report: index[%d]=%d > index[%d]=%d", p, start, p+1, end)
		}
		sr := io.NewSectionReader(data, start, end-start)
		for {
			b, err := batchio.ReadOneBatch(sr, schema, dec)
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("report: decoding partition %d: %w", p, err)
			}
			for r := 0; r < b.Rows; r++ {
				id := decodeID(b.Cols[0][r])
				if seen[id] {
					return fmt.Errorf("report: row id %d appears more than once", id)
				}
				seen[id] = true

				keys := make([][]byte, len(keyColumns))
				for i, ci := range keyColumns {
					keys[i] = b.Cols[ci][r]
				}
				_, partitionID := partkey.Evaluate(partkey.Descriptor{
					Rows:          1,
					NumPartitions: numPartitions,
					Columns:       func(int) [][]byte { return keys },
				})
				if partitionID[0] != p {
					misplaced++
				}
			}
		}
	}
	if len(seen) != rows {
		return fmt.Errorf("report: decoded %d distinct rows, want %d", len(seen), rows)
	}
	if misplaced != 0 {
		return fmt.Errorf("report: %d rows landed outside their hashed partition", misplaced)
	}
	fmt.Printf("report: %d rows, %d partitions, %d data bytes: OK\n", rows, numPartitions, info.Size())
	return nil
}

func readIndex(path string, numPartitions uint32) ([]int64, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("report: reading index file: %w", err)
	}
	want := int(numPartitions+1) * 8
	if len(raw) != want {
		return nil, fmt.Errorf("report: index file is %d bytes, want %d", len(raw), want)
	}
	offsets := make([]int64, numPartitions+1)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return offsets, nil
}
