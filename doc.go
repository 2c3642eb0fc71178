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

// Package shuffle implements a memory-bounded, sort-based shuffle
// repartitioner: an operator that consumes a stream of record batches,
// assigns each row to one of N output partitions by hashing a subset
// of its columns, and produces a data file (rows grouped contiguously
// by partition) plus an index file (the byte offset of each
// partition), so a downstream reader can extract any one partition
// with a single seek and a single contiguous read.
//
// The repartitioner buffers incoming batches in memory and, whenever
// the shared memory manager solicits a spill, freezes the buffer into
// a sorted, partition-ordered run ("spill") held in one of three
// storage tiers (package spilltier). At the end of input, ShuffleWrite
// merges every accumulated spill with a tournament tree (package
// losertree) into the final contiguous data file and index file.
package shuffle
