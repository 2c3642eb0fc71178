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

package pi

import "golang.org/x/exp/slices"

// radixPasses is the number of 8-bit LSD radix passes needed to cover
// the 64-bit composite key (partition_id << 32 | hash).
const radixPasses = 8

// smallSortThreshold is the slice length below which a single
// comparison sort outperforms the fixed eight-pass radix sort (the
// counting-sort buckets have constant overhead per pass regardless of
// input size, so tiny windows are cheaper sorted directly - the same
// tradeoff internal/sort's counting-sort routines are built around).
const smallSortThreshold = 256

// Sort orders pis by Key() in place. It is a least-significant-digit
// radix sort over the 64-bit composite key, chosen for its linear
// behavior on the millions-of-rows freezes this package is built for;
// Index never participates in the comparison, so rows that tie on
// (PartitionID, Hash) may end up in either relative order.
func Sort(pis []PI) {
	if len(pis) < 2 {
		return
	}
	if len(pis) < smallSortThreshold {
		slices.SortFunc(pis, func(a, b PI) bool { return a.Key() < b.Key() })
		return
	}

	src := pis
	dst := make([]PI, len(pis))
	var counts [256]int

	for pass := 0; pass < radixPasses; pass++ {
		shift := uint(pass * 8)

		counts = [256]int{}
		for _, p := range src {
			b := byte(p.Key() >> shift)
			counts[b]++
		}

		sum := 0
		for b := 0; b < 256; b++ {
			c := counts[b]
			counts[b] = sum
			sum += c
		}

		for _, p := range src {
			b := byte(p.Key() >> shift)
			dst[counts[b]] = p
			counts[b]++
		}

		src, dst = dst, src
	}

	// radixPasses is even, so src and dst have swapped back to their
	// starting assignment and the sorted data is already in pis.
}
