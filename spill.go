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
	"errors"
	"fmt"

	"github.com/SnellerInc/shuffle/spilltier"
)

// Spill is the external spill() entry point the memory manager invokes
// when pressure rises. It implements memmgr.Consumer.
//
// Only an L1->L2 or L2->L3 promotion that actually reduces the
// process's accounted footprint counts toward the "freed" total: an L2
// buffer is externally managed but still counts fully against the
// shared budget (offheap_mem_size reports its exact size), so a spill
// resting at L2 makes no accounting progress until it is pushed down to
// L3. To guarantee the loop below terminates even when every remaining
// spill is already fully demoted, it stops once the largest remaining
// spill reports an OffheapMemSize of 0.
func (r *Repartitioner) Spill(ctx context.Context) (int64, error) {
	currentUsed := r.metrics.MemUsed()

	r.spillsMu.Lock()
	defer r.spillsMu.Unlock()

	var freed int64

	frozen, freedBuffered, err := r.spillBufferedToL1(ctx)
	if err != nil {
		return 0, fmt.Errorf("shuffle: spill: freezing buffer: %w", err)
	}
	if frozen != nil {
		freed += freedBuffered - frozen.OffheapMemSize()
		r.spills = append(r.spills, frozen)
	}

	target := currentUsed / 2
	for freed < target {
		idx := r.largestSpillIndex()
		if idx < 0 {
			break
		}
		victim := r.spills[idx]
		oldSize := victim.OffheapMemSize()
		if oldSize == 0 {
			break
		}
		r.spills = append(r.spills[:idx], r.spills[idx+1:]...)

		promoted, wentToDisk, err := r.promoteSpill(victim)
		if err != nil {
			r.spills = append(r.spills, victim)
			return freed, fmt.Errorf("shuffle: spill: promoting tier: %w", err)
		}
		if wentToDisk {
			r.metrics.AddSpilledBytes(oldSize)
			r.metrics.IncSpillCount()
			r.logf("shuffle[%d]: spilled %d bytes to disk", r.id, oldSize)
		}
		freed += oldSize - promoted.OffheapMemSize()
		r.spills = append(r.spills, promoted)
	}

	r.metrics.AddMemUsed(-freed)
	return freed, nil
}

func (r *Repartitioner) largestSpillIndex() int {
	best := -1
	var bestSize int64 = -1
	for i, s := range r.spills {
		if sz := s.OffheapMemSize(); sz > bestSize {
			bestSize = sz
			best = i
		}
	}
	return best
}

// promoteSpill moves s one tier down: L1->L2 (falling back to L3 on
// resource exhaustion) or L2->L3. It reports wentToDisk so the caller
// can record the externally visible spilled-bytes metric without
// surfacing the recovered L2 exhaustion error.
func (r *Repartitioner) promoteSpill(s *spilltier.ShuffleSpill) (promoted *spilltier.ShuffleSpill, wentToDisk bool, err error) {
	switch tier := s.Tier.(type) {
	case *spilltier.L1:
		l2, err := tier.PromoteToL2(r.store)
		if err == nil {
			return &spilltier.ShuffleSpill{Tier: l2, Offsets: s.Offsets}, false, nil
		}
		if !errors.Is(err, spilltier.ErrL2Exhausted) {
			return nil, false, err
		}
		l3, err := tier.PromoteToL3(r.dm)
		if err != nil {
			return nil, false, err
		}
		return &spilltier.ShuffleSpill{Tier: l3, Offsets: s.Offsets}, true, nil
	case *spilltier.L2:
		l3, err := tier.PromoteToL3(r.dm)
		if err != nil {
			return nil, false, err
		}
		return &spilltier.ShuffleSpill{Tier: l3, Offsets: s.Offsets}, true, nil
	default:
		return s, false, nil
	}
}
