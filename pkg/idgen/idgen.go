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

// Package idgen mints the two kinds of identifier the sequencer store
// needs: a per-process instance discriminator used to fence payload
// writers, and dense integer member ids handed out on first
// registration.
package idgen

import (
	"sync"

	"github.com/google/uuid"
)

// Discriminator identifies one writer process lifetime. A writer that
// restarts gets a fresh one; payload conflict detection compares this
// value, never a wall-clock or PID, since those can be reused.
type Discriminator = uuid.UUID

// NewDiscriminator mints a fresh per-process instance discriminator.
func NewDiscriminator() Discriminator {
	return uuid.New()
}

// MemberId is a dense integer assigned on first registration; stable
// for the member's lifetime.
type MemberId uint64

// MemberRegistry hands out dense, stable MemberIds by name. It is the
// in-process allocator backing sequencer.Store.registerMember; the
// durable mapping itself lives in storage, this just owns the
// monotonic counter and in-memory name index used to make
// registerMember idempotent without a round trip for the common case.
type MemberRegistry struct {
	mu      sync.Mutex
	byName  map[string]MemberId
	nextID  MemberId
}

func NewMemberRegistry() *MemberRegistry {
	return &MemberRegistry{byName: make(map[string]MemberId)}
}

// Resolve returns the existing id for name, or allocates the next dense
// id and reports that it was newly assigned.
func (r *MemberRegistry) Resolve(name string) (id MemberId, assigned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, ok := r.byName[name]; ok {
		return id, false
	}

	id = r.nextID
	r.nextID++
	r.byName[name] = id
	return id, true
}

// Adopt records an id recovered from durable storage so the in-memory
// allocator stays consistent with it across restarts.
func (r *MemberRegistry) Adopt(name string, id MemberId) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.byName[name] = id
	if id >= r.nextID {
		r.nextID = id + 1
	}
}
