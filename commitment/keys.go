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
	"fmt"

	"github.com/spaolacci/murmur3"
)

const (
	prefixOutstanding = "cm/out/"
	prefixTick        = "cm/tick/"
	prefixComputed    = "cm/cp/"
	prefixReceived    = "cm/rv/"
)

func orderedInt64(n int64) string {
	biased := uint64(n) ^ (1 << 63)
	return fmt.Sprintf("%020d", biased)
}

func unbiasOrderedInt64(s string) int64 {
	var biased uint64
	fmt.Sscanf(s, "%020d", &biased)
	return int64(biased ^ (1 << 63))
}

func outstandingPrefix(peer string) string {
	return fmt.Sprintf("%s%s/", prefixOutstanding, peer)
}

func outstandingKey(peer string, p Period) string {
	return fmt.Sprintf("%s%s/%s", outstandingPrefix(peer), orderedInt64(p.FromExclusive), orderedInt64(p.ToInclusive))
}

func tickKey(ts int64) string {
	return prefixTick + orderedInt64(ts)
}

func computedKey(peer string, p Period) string {
	return fmt.Sprintf("%s%s/%s/%s", prefixComputed, peer, orderedInt64(p.FromExclusive), orderedInt64(p.ToInclusive))
}

func computedPrefix(peer string) string {
	return fmt.Sprintf("%s%s/", prefixComputed, peer)
}

// contentHash identifies a candidate commitment payload, so repeated
// storeReceived calls with identical bytes land on the same key
// (idempotent) while differing bytes for the same (peer, period) are
// kept as distinct candidates.
func contentHash(b []byte) uint32 {
	h := murmur3.New32()
	h.Write(b)
	return h.Sum32()
}

func receivedKey(peer string, p Period, bytes []byte) string {
	return fmt.Sprintf("%s%s/%s/%s/%08x", prefixReceived, peer, orderedInt64(p.FromExclusive), orderedInt64(p.ToInclusive), contentHash(bytes))
}

func receivedPrefix(peer string, p Period) string {
	return fmt.Sprintf("%s%s/%s/%s/", prefixReceived, peer, orderedInt64(p.FromExclusive), orderedInt64(p.ToInclusive))
}
