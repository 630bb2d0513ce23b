// Copyright 2025 BINARY Members
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package journal

import (
	"errors"
	"fmt"
)

var (
	// ErrRcBelowGenesis is returned by Insert for an rc at or below the
	// journal's configured initial value.
	ErrRcBelowGenesis = errors.New("journal: request counter is below the journal's genesis value")
	// ErrCommitBeforeRequest is returned by Terminate when commitTs is
	// less than the stored requestTs.
	ErrCommitBeforeRequest = errors.New("journal: commit timestamp precedes request timestamp")
	// ErrNotFound is returned by Transit/Terminate for an rc that was
	// never inserted.
	ErrNotFound = errors.New("journal: request counter not found")
	// ErrDuplicateRequest is returned by Insert when rc already has a
	// row in the journal.
	ErrDuplicateRequest = errors.New("journal: request counter already inserted")
)

// ConcurrentModificationError is returned by transit/terminate when the
// stored state is not the declared predecessor, meaning another caller
// raced this one.
type ConcurrentModificationError struct {
	Rc       int64
	Expected State
	Actual   State
}

func (e *ConcurrentModificationError) Error() string {
	return fmt.Sprintf("journal: rc %d expected state %s but found %s", e.Rc, e.Expected, e.Actual)
}

// InconsistentTimestampsError is returned when a transit/terminate call's
// requestTimestamp does not match the value recorded at insertion.
type InconsistentTimestampsError struct {
	Rc       int64
	Stored   int64
	Provided int64
}

func (e *InconsistentTimestampsError) Error() string {
	return fmt.Sprintf("journal: rc %d has requestTs %d, call provided %d", e.Rc, e.Stored, e.Provided)
}
