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

package idgen

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDiscriminatorIsUnique(t *testing.T) {
	a := NewDiscriminator()
	b := NewDiscriminator()
	assert.NotEqual(t, a, b)
}

func TestMemberRegistryIdempotent(t *testing.T) {
	r := NewMemberRegistry()

	id1, assigned1 := r.Resolve("alice")
	assert.True(t, assigned1)

	id2, assigned2 := r.Resolve("alice")
	assert.False(t, assigned2)
	assert.Equal(t, id1, id2)

	id3, assigned3 := r.Resolve("bob")
	assert.True(t, assigned3)
	assert.NotEqual(t, id1, id3)
}

func TestMemberRegistryAdopt(t *testing.T) {
	r := NewMemberRegistry()
	r.Adopt("carol", MemberId(41))

	id, assigned := r.Resolve("carol")
	assert.False(t, assigned)
	assert.Equal(t, MemberId(41), id)

	next, assigned := r.Resolve("dave")
	assert.True(t, assigned)
	assert.Equal(t, MemberId(42), next)
}
