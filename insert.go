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
	"fmt"

	"github.com/SnellerInc/shuffle/batchio"
)

// InsertBatch appends batch to the buffer and accounts for its memory.
// The doubled mem_increase reserves headroom for the freeze step,
// during which both the original batch and its compressed, serialized
// output live in the heap budget simultaneously.
func (r *Repartitioner) InsertBatch(ctx context.Context, batch *batchio.Batch) error {
	switch opState(r.state.Load()) {
	case stateFinalizing, stateClosed:
		return ErrInsertAfterFinalize
	}

	memIncrease := 2 * batch.ArrayMemorySize()
	if err := r.mm.TryGrow(ctx, r.mmID, memIncrease); err != nil {
		return fmt.Errorf("shuffle: insert_batch: %w", err)
	}

	r.metrics.AddMemUsed(memIncrease)
	r.bufferedMu.Lock()
	r.bufferedBatches = append(r.bufferedBatches, batch)
	r.bufferedMemSize.Add(memIncrease)
	r.bufferedMu.Unlock()
	return nil
}
