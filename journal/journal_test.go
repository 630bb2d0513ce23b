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
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/storage"
)

func newTestStore(t *testing.T) *Store {
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

	s, err := NewStore(storage.NewEngine(db), config.DefaultJournalConfig)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestInsertBelowGenesisFails(t *testing.T) {
	s := newTestStore(t)
	err := s.Insert(config.DefaultJournalConfig.GenesisRc, 10)
	assert.ErrorIs(t, err, ErrRcBelowGenesis)
}

func TestInsertDuplicateRcFails(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(1, 10))
	err := s.Insert(1, 20)
	assert.ErrorIs(t, err, ErrDuplicateRequest)
}

func TestFullLifecycleAdvancesPreheads(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, s.Insert(0, 100))
	require.NoError(t, s.WaitForPendingPrehead(ctx, 0))
	assert.Equal(t, int64(0), s.PendingPrehead())
	assert.Equal(t, int64(-1), s.CleanPrehead())

	require.NoError(t, s.Transit(0, 100))
	require.NoError(t, s.Terminate(0, 100, 150, nil))
	require.NoError(t, s.WaitForCleanPrehead(ctx, 0))
	assert.Equal(t, int64(0), s.CleanPrehead())

	_, state, commitTs, found, err := s.Get(0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Clean, state)
	require.NotNil(t, commitTs)
	assert.Equal(t, int64(150), *commitTs)
}

func TestTransitConcurrentModification(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(0, 100))
	require.NoError(t, s.Transit(0, 100))

	err := s.Transit(0, 100)
	var cme *ConcurrentModificationError
	require.ErrorAs(t, err, &cme)
	assert.Equal(t, Confirmed, cme.Actual)
}

func TestTransitInconsistentTimestamps(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(0, 100))

	err := s.Transit(0, 999)
	var ite *InconsistentTimestampsError
	require.ErrorAs(t, err, &ite)
	assert.Equal(t, int64(100), ite.Stored)
}

func TestTerminateRejectsCommitBeforeRequest(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(0, 100))
	require.NoError(t, s.Transit(0, 100))

	err := s.Terminate(0, 100, 50, nil)
	assert.ErrorIs(t, err, ErrCommitBeforeRequest)
}

func TestCleanPreheadStallsOnGap(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Insert(0, 100))
	require.NoError(t, s.Insert(1, 110))
	require.NoError(t, s.Transit(0, 100))
	require.NoError(t, s.Transit(1, 110))

	// clean rc 1 before rc 0: prehead must not advance past the gap
	require.NoError(t, s.Terminate(1, 110, 200, nil))
	assert.Equal(t, int64(-1), s.CleanPrehead())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	assert.Error(t, s.WaitForCleanPrehead(ctx, 1))

	require.NoError(t, s.Terminate(0, 100, 150, nil))
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	assert.NoError(t, s.WaitForCleanPrehead(ctx2, 1))
	assert.Equal(t, int64(1), s.CleanPrehead())
}

func TestDirtyRequestCount(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Insert(0, 100))
	require.NoError(t, s.Insert(1, 110))
	require.NoError(t, s.Insert(2, 120))
	assert.Equal(t, int64(3), s.DirtyRequestCount())

	require.NoError(t, s.Transit(0, 100))
	require.NoError(t, s.Terminate(0, 100, 150, nil))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.WaitForCleanPrehead(ctx, 0))
	assert.Equal(t, int64(2), s.DirtyRequestCount())
}

func TestRepairContextRecorded(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.Insert(0, 100))
	require.NoError(t, s.Transit(0, 100))

	repair := "repair-token-1"
	require.NoError(t, s.Terminate(0, 100, 100, &repair))

	_, state, _, found, err := s.Get(0)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, Clean, state)

	recs, err := s.ScanFrom(0, 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NotNil(t, recs[0].RepairContext)
	assert.Equal(t, repair, *recs[0].RepairContext)
}
