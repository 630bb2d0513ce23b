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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/storage"
)

func newTestEngine(t *testing.T) *Engine {
	dir := t.TempDir()
	db, err := storage.Open(dir, storage.Config{
		SkipListMaxLevel:       4,
		SkipListP:              0.5,
		L0TargetNum:            4,
		LevelRatio:             10,
		DataBlockByteThreshold: 4096,
		MemtableByteThreshold:  1024,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return NewEngine(storage.NewEngine(db), config.DefaultCommitmentConfig)
}

// TestNoOutstandingCommitmentsScenarioS1 reproduces scenario S1.
func TestNoOutstandingCommitmentsScenarioS1(t *testing.T) {
	e := newTestEngine(t)

	require.NoError(t, e.MarkOutstanding(Period{0, 2}, nil))
	require.NoError(t, e.MarkComputedAndSent(Period{0, 2}))
	require.NoError(t, e.MarkOutstanding(Period{2, 4}, []string{"A", "B"}))
	require.NoError(t, e.MarkComputedAndSent(Period{2, 4}))
	require.NoError(t, e.MarkSafe("A", Period{2, 3}))
	require.NoError(t, e.MarkSafe("B", Period{3, 4}))

	ts, err := e.NoOutstandingCommitments(20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), ts)

	require.NoError(t, e.MarkSafe("B", Period{2, 3}))
	require.NoError(t, e.MarkSafe("A", Period{3, 4}))

	ts, err = e.NoOutstandingCommitments(20)
	require.NoError(t, err)
	assert.Equal(t, int64(4), ts)
}

func TestOutstandingEnumeratesOpenPairs(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.MarkOutstanding(Period{2, 4}, []string{"A", "B"}))
	require.NoError(t, e.MarkSafe("A", Period{2, 3}))

	entries, err := e.Outstanding(0, 10, "")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	entries, err = e.Outstanding(0, 10, "A")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Period{3, 4}, entries[0].Period)
}

func TestStoreComputedIdempotentThenConflict(t *testing.T) {
	e := newTestEngine(t)
	p := Period{0, 5}

	require.NoError(t, e.StoreComputed("A", p, []byte("hash-1")))
	require.NoError(t, e.StoreComputed("A", p, []byte("hash-1")))

	err := e.StoreComputed("A", p, []byte("hash-2"))
	require.Error(t, err)
	var conflict *ErrConflictingComputed
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, []byte("hash-1"), conflict.Existing)
}

func TestReconcileMatchesMarksSafe(t *testing.T) {
	e := newTestEngine(t)
	p := Period{0, 5}

	require.NoError(t, e.MarkOutstanding(p, []string{"A"}))
	require.NoError(t, e.StoreComputed("A", p, []byte("hash-1")))
	require.NoError(t, e.StoreReceived("A", p, []byte("hash-1")))

	mismatches, err := e.Reconcile("A", p)
	require.NoError(t, err)
	assert.Empty(t, mismatches)

	entries, err := e.Outstanding(0, 10, "A")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReconcileMismatchSurfacesDiscrepancy(t *testing.T) {
	e := newTestEngine(t)
	p := Period{0, 5}

	require.NoError(t, e.MarkOutstanding(p, []string{"A"}))
	require.NoError(t, e.StoreComputed("A", p, []byte("hash-1")))
	require.NoError(t, e.StoreReceived("A", p, []byte("hash-rogue")))

	mismatches, err := e.Reconcile("A", p)
	require.NoError(t, err)
	require.Len(t, mismatches, 1)
	assert.Equal(t, []byte("hash-rogue"), mismatches[0].Received)

	entries, err := e.Outstanding(0, 10, "A")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestQueueOrdersByToInclusiveAndDedups(t *testing.T) {
	e := newTestEngine(t)
	e.Enqueue(SignedCommitment{Commitment: Commitment{Peer: "A", Period: Period{0, 10}, Bytes: []byte("x")}})
	e.Enqueue(SignedCommitment{Commitment: Commitment{Peer: "A", Period: Period{0, 5}, Bytes: []byte("y")}})
	e.Enqueue(SignedCommitment{Commitment: Commitment{Peer: "A", Period: Period{0, 5}, Bytes: []byte("y")}})

	due := e.PeekThrough(5)
	require.Len(t, due, 1)
	assert.Equal(t, int64(5), due[0].Period.ToInclusive)

	e.DeleteThrough(5)
	due = e.PeekThrough(10)
	require.Len(t, due, 1)
	assert.Equal(t, int64(10), due[0].Period.ToInclusive)
}

func TestSnapshotUpdateMonotonic(t *testing.T) {
	e := newTestEngine(t)
	require.NoError(t, e.UpdateSnapshot(RecordTime{Ts: 5}, map[string][]byte{"A-B": {0x01, 0x02}}, nil))
	assert.Equal(t, []byte{0x01, 0x02}, e.SnapshotCommitment("A-B"))

	require.NoError(t, e.UpdateSnapshot(RecordTime{Ts: 10}, nil, map[string][]byte{"A-B": {0x01, 0x02}}))
	assert.Equal(t, []byte{0x00, 0x00}, e.SnapshotCommitment("A-B"))

	err := e.UpdateSnapshot(RecordTime{Ts: 10}, nil, nil)
	require.Error(t, err)
	var nonMonotonic *ErrNonMonotonicUpdate
	require.ErrorAs(t, err, &nonMonotonic)
}
