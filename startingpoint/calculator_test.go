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

package startingpoint

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/journal"
	"github.com/domainledger/sequencer/storage"
)

func newTestJournal(t *testing.T) *journal.Store {
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

	s, err := journal.NewStore(storage.NewEngine(db), config.DefaultJournalConfig)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestCalculateNoCleanRequestUsesGenesisDefaults(t *testing.T) {
	j := newTestJournal(t)
	idx := NewScTimeline(16)

	res, err := Calculate(j, idx, config.DefaultStartingPointConfig, config.DefaultJournalConfig)
	require.NoError(t, err)

	assert.Equal(t, Cursor{Rc: -1, Sc: 0, Ts: MinValue}, res.CleanReplay)
	assert.Equal(t, Cursor{Rc: -1, Sc: 0, Ts: MinValue}, res.Processing)
	assert.Equal(t, ScPrehead{Sc: 0, Ts: MinValue}, res.RewoundScPrehead)
}

// TestCalculateScenarioS2 reproduces the worked example: clean prehead
// rc=0 at ts=0 with commitTs=5, an in-flight rc=1 at ts=0, and a
// sequencer-counter prehead timeline of (sc=10, ts=0), (sc=11, ts=1).
func TestCalculateScenarioS2(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.Insert(0, 0))
	require.NoError(t, j.Transit(0, 0))
	require.NoError(t, j.Terminate(0, 0, 5, nil))
	require.NoError(t, j.Insert(1, 0))
	require.NoError(t, j.Transit(1, 0))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.WaitForCleanPrehead(ctx, 0))

	idx := NewScTimeline(16)
	idx.Record(10, 0)
	idx.Record(11, 1)

	res, err := Calculate(j, idx, config.DefaultStartingPointConfig, config.DefaultJournalConfig)
	require.NoError(t, err)

	assert.Equal(t, Cursor{Rc: 0, Sc: 10, Ts: 0, Predecessor: true}, res.CleanReplay)
	assert.Equal(t, Cursor{Rc: 1, Sc: 11, Ts: 0}, res.Processing)
	assert.Equal(t, ScPrehead{Sc: 10, Ts: 0}, res.RewoundScPrehead)
}

func TestCalculateSkipsCleanRequestWhenNextAlreadyPastCommit(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.Insert(0, 0))
	require.NoError(t, j.Transit(0, 0))
	require.NoError(t, j.Terminate(0, 0, 5, nil))
	require.NoError(t, j.Insert(1, 9))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.WaitForCleanPrehead(ctx, 0))

	idx := NewScTimeline(16)
	idx.Record(10, 0)
	idx.Record(12, 9)

	res, err := Calculate(j, idx, config.DefaultStartingPointConfig, config.DefaultJournalConfig)
	require.NoError(t, err)

	assert.Equal(t, res.CleanReplay, res.Processing)
	assert.Equal(t, int64(1), res.Processing.Rc)
	assert.Equal(t, int64(9), res.Processing.Ts)
}

func TestCalculateRule3EarliestInFlightWins(t *testing.T) {
	j := newTestJournal(t)
	require.NoError(t, j.Insert(0, 5))
	require.NoError(t, j.Transit(0, 5))
	require.NoError(t, j.Terminate(0, 5, 10, nil))
	require.NoError(t, j.Insert(1, 3))
	require.NoError(t, j.Insert(2, 2))
	require.NoError(t, j.Transit(1, 3))
	require.NoError(t, j.Transit(2, 2))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, j.WaitForCleanPrehead(ctx, 0))

	idx := NewScTimeline(16)
	idx.Record(10, 5)
	idx.Record(11, 6)

	res, err := Calculate(j, idx, config.DefaultStartingPointConfig, config.DefaultJournalConfig)
	require.NoError(t, err)

	// rc=1 (ts=3) and rc=2 (ts=2) are both still in flight below the
	// next clean request; the earliest of the two, not cleanRc's own
	// ts=5, defines the replay start.
	assert.Equal(t, int64(2), res.CleanReplay.Ts)
}
