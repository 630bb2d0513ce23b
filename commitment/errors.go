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

package commitment

import (
	"errors"
	"fmt"
)

// ErrConflictingComputed is returned by StoreComputed when a different
// commitment already exists for the same (peer, period).
type ErrConflictingComputed struct {
	Peer     string
	Period   Period
	Existing []byte
}

func (e *ErrConflictingComputed) Error() string {
	return fmt.Sprintf("commitment: conflicting computed commitment for peer=%s period=%v", e.Peer, e.Period)
}

// ErrShutdown reports that a commitment operation was aborted by
// shutdown. No Engine method takes a context or returns it.
var ErrShutdown = errors.New("commitment: aborted due to shutdown")

// Discrepancy is a non-fatal mismatch surfaced to higher layers when a
// received commitment disagrees with the one computed locally.
type Discrepancy struct {
	Peer     string
	Period   Period
	Local    []byte
	Received []byte
}

func (d Discrepancy) Error() string {
	return fmt.Sprintf("commitment: mismatch with %s over period %v", d.Peer, d.Period)
}
