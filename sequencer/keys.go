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

package sequencer

import (
	"fmt"

	"github.com/domainledger/sequencer/pkg/idgen"
)

// Key prefixes partition the one flat keyspace the Driver exposes into
// the sequencer store's logical tables.
const (
	prefixMemberByName = "sq/mbr/n/"
	prefixMemberByID   = "sq/mbr/i/"
	prefixPayload      = "sq/pl/"
	prefixEvent        = "sq/ev/"
	prefixWatermark    = "sq/wm/"
	prefixCheckpoint   = "sq/cc/"
	prefixAck          = "sq/ack/"
	keyLowerBound      = "sq/lb"
)

// orderedInt64 zero-pads the bias-shifted representation of n so that
// lexicographic key order agrees with signed numeric order, including
// negative timestamps (the journal's GenesisRc-style sentinels).
func orderedInt64(n int64) string {
	biased := uint64(n) ^ (1 << 63)
	return fmt.Sprintf("%020d", biased)
}

func orderedUint64(n uint64) string {
	return fmt.Sprintf("%020d", n)
}

func memberByNameKey(name string) string {
	return prefixMemberByName + name
}

func memberByIDKey(id idgen.MemberId) string {
	return prefixMemberByID + orderedUint64(uint64(id))
}

func payloadKey(payloadID int64) string {
	return prefixPayload + orderedInt64(payloadID)
}

func eventKey(writerIndex int, ts int64) string {
	return fmt.Sprintf("%s%020d/%s", prefixEvent, writerIndex, orderedInt64(ts))
}

func eventPrefixForWriter(writerIndex int) string {
	return fmt.Sprintf("%s%020d/", prefixEvent, writerIndex)
}

func watermarkKey(writerIndex int) string {
	return fmt.Sprintf("%s%020d", prefixWatermark, writerIndex)
}

func checkpointKey(member idgen.MemberId, counter uint64) string {
	return fmt.Sprintf("%s%020d/%s", prefixCheckpoint, uint64(member), orderedUint64(counter))
}

func checkpointPrefixForMember(member idgen.MemberId) string {
	return fmt.Sprintf("%s%020d/", prefixCheckpoint, uint64(member))
}

func ackKey(member idgen.MemberId) string {
	return prefixAck + orderedUint64(uint64(member))
}
