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

package shuffle

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/SnellerInc/shuffle/losertree"
	"github.com/SnellerInc/shuffle/spillcursor"
)

// ShuffleWrite is the terminal merge: it flushes any remaining buffer,
// opens every spill as a cursor, and performs a partition-ordered
// k-way merge into the output data file, recording byte offsets into
// the index file.
func (r *Repartitioner) ShuffleWrite(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(stateOpen), int32(stateFinalizing)) {
		if opState(r.state.Load()) == stateOpen {
			return ErrClosed
		}
		return ErrAlreadyFinalized
	}
	defer r.state.Store(int32(stateClosed))

	r.spillsMu.Lock()
	defer r.spillsMu.Unlock()

	frozen, _, err := r.spillBufferedToL1(ctx)
	if err != nil {
		return fmt.Errorf("shuffle: shuffle_write: freezing final buffer: %w", err)
	}
	if frozen != nil {
		r.spills = append(r.spills, frozen)
	}

	cursors := make([]*spillcursor.Cursor, 0, len(r.spills))
	for _, s := range r.spills {
		c, err := spillcursor.New(s)
		if err != nil {
			return fmt.Errorf("shuffle: shuffle_write: opening spill cursor: %w", err)
		}
		c.SkipEmptyPartitions()
		if c.Finished() {
			continue
		}
		cursors = append(cursors, c)
	}

	dataFile, err := os.Create(r.dataPath)
	if err != nil {
		return fmt.Errorf("shuffle: shuffle_write: creating data file: %w", err)
	}
	defer dataFile.Close()

	offsetsOut := make([]int64, 1, r.numPartitions+1) // offsetsOut[0] == 0
	var streamPos int64
	curPartition := uint32(0)

	if len(cursors) > 0 {
		tree := losertree.New(cursors, spillcursor.Less)
		for {
			h := tree.Peek()
			cur := *h.Value()
			if cur.Finished() {
				h.Release()
				break
			}

			for curPartition < uint32(cur.Cur) {
				offsetsOut = append(offsetsOut, streamPos)
				curPartition++
			}

			n, copyErr := io.CopyN(dataFile, cur.Reader, cur.Len())
			streamPos += n
			if copyErr != nil {
				h.Release()
				return fmt.Errorf("shuffle: shuffle_write: copying partition %d bytes: %w", cur.Cur, copyErr)
			}
			cur.Cur++
			cur.SkipEmptyPartitions()
			h.Release()
		}
	}

	if err := dataFile.Sync(); err != nil {
		return fmt.Errorf("shuffle: shuffle_write: flushing data file: %w", err)
	}
	for uint32(len(offsetsOut)) < r.numPartitions+1 {
		offsetsOut = append(offsetsOut, streamPos)
	}

	indexFile, err := os.Create(r.indexPath)
	if err != nil {
		return fmt.Errorf("shuffle: shuffle_write: creating index file: %w", err)
	}
	defer indexFile.Close()

	buf := make([]byte, 8*len(offsetsOut))
	for i, off := range offsetsOut {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(off))
	}
	if _, err := indexFile.Write(buf); err != nil {
		return fmt.Errorf("shuffle: shuffle_write: writing index file: %w", err)
	}
	if err := indexFile.Sync(); err != nil {
		return fmt.Errorf("shuffle: shuffle_write: flushing index file: %w", err)
	}

	r.deregister()
	return nil
}
