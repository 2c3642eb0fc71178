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

import "errors"

// Contract-violation sentinels. These represent programming errors, not
// data or I/O failures: the caller invoked an operation outside the
// state machine's linear Open -> Finalizing -> Closed progression.
var (
	// ErrInsertAfterFinalize is returned by InsertBatch once ShuffleWrite
	// has been called (or has completed).
	ErrInsertAfterFinalize = errors.New("shuffle: insert_batch called after shuffle_write")
	// ErrAlreadyFinalized is returned by ShuffleWrite if called more than
	// once on the same Repartitioner.
	ErrAlreadyFinalized = errors.New("shuffle: shuffle_write called more than once")
	// ErrClosed names an operation on a closed operator. Close and a
	// completed ShuffleWrite leave the same Closed state, so a call
	// after Close is reported as ErrInsertAfterFinalize by InsertBatch
	// and as ErrAlreadyFinalized by ShuffleWrite; Spill does not check
	// the state.
	ErrClosed = errors.New("shuffle: operator closed")
)
