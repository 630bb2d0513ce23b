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
	"errors"
	"fmt"

	"github.com/domainledger/sequencer/pkg/idgen"
)

var (
	// ErrNonIncreasingTs is returned by saveEvents when an event's
	// timestamp does not strictly exceed the writer's prior event.
	ErrNonIncreasingTs = errors.New("sequencer: event timestamps for a writer must be strictly increasing")
	// ErrLowerBoundRegressed is returned by saveLowerBound for a value
	// at or below the current lower bound.
	ErrLowerBoundRegressed = errors.New("sequencer: lower bound must advance monotonically")
	// ErrUnknownWriter names a writer index that has never called
	// goOnline. No Store method returns it; SaveWatermark on a new
	// writer index writes an online watermark for it.
	ErrUnknownWriter = errors.New("sequencer: unknown writer index")
)

// ConflictingPayloadIDError is returned by savePayloads when a payload
// id already holds content written under a different instance
// discriminator: a genuine content conflict, not a retry of the same
// writer's own submission.
type ConflictingPayloadIDError struct {
	PayloadID                int64
	ConflictingDiscriminator idgen.Discriminator
}

func (e *ConflictingPayloadIDError) Error() string {
	return fmt.Sprintf("sequencer: payload %d already has content from another writer instance (discriminator %v)", e.PayloadID, e.ConflictingDiscriminator)
}

// WatermarkUnexpectedlyChangedError is returned by saveWatermark when
// the value read back after the write does not match what was written,
// meaning a second writer holds the same writer index.
type WatermarkUnexpectedlyChangedError struct {
	WriterIndex  int
	Expected     int64
	ActualTs     int64
}

func (e *WatermarkUnexpectedlyChangedError) Error() string {
	return fmt.Sprintf("sequencer: watermark for writer %d unexpectedly changed: wrote %d, read back %d",
		e.WriterIndex, e.Expected, e.ActualTs)
}

// WatermarkFlaggedOfflineError is returned by saveWatermark when the
// writer's own watermark was flagged offline by another process
// between write and readback.
type WatermarkFlaggedOfflineError struct {
	WriterIndex int
}

func (e *WatermarkFlaggedOfflineError) Error() string {
	return fmt.Sprintf("sequencer: writer %d was flagged offline concurrently with its watermark write", e.WriterIndex)
}

// CounterCheckpointInconsistentError is returned by saveCounterCheckpoint
// when a row already exists at (member, counter) with different values.
type CounterCheckpointInconsistentError struct {
	Member   idgen.MemberId
	Counter  uint64
	StoredTs int64
	StoredLatestTopologyClientTs int64
	HasStoredLatestTopologyClientTs bool
}

func (e *CounterCheckpointInconsistentError) Error() string {
	return fmt.Sprintf("sequencer: counter checkpoint (%d, %d) already recorded with ts=%d",
		e.Member, e.Counter, e.StoredTs)
}
