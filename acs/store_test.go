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

package acs

import (
	"testing"

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

	s, err := NewStore(storage.NewEngine(db), config.DefaultAcsConfig)
	require.NoError(t, err)
	return s
}

// TestSnapshotMixedOperations reproduces scenario S3: create, transfer
// out, transfer in, archive, checking snapshot at each toc.
func TestSnapshotMixedOperations(t *testing.T) {
	s := newTestStore(t)

	checked := s.CreateContracts([]string{"c1"}, 10, 1)
	require.NoError(t, checked.Err)
	assert.Empty(t, checked.Warnings)

	checked = s.TransferOutContracts([]string{"c1"}, "domainB", 20, 2)
	require.NoError(t, checked.Err)

	checked = s.TransferInContracts([]string{"c1"}, "domainB", 30, 3)
	require.NoError(t, checked.Err)

	checked = s.ArchiveContracts([]string{"c1"}, 40, 4)
	require.NoError(t, checked.Err)

	snap, err := s.Snapshot(10)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, snap)

	snap, err = s.Snapshot(20)
	require.NoError(t, err)
	assert.Empty(t, snap)

	snap, err = s.Snapshot(30)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, snap)

	snap, err = s.Snapshot(40)
	require.NoError(t, err)
	assert.Empty(t, snap)
}

func TestDoubleContractCreationWarning(t *testing.T) {
	s := newTestStore(t)
	checked := s.CreateContracts([]string{"c1"}, 10, 1)
	require.NoError(t, checked.Err)

	checked = s.CreateContracts([]string{"c1"}, 20, 2)
	require.NoError(t, checked.Err)
	require.Len(t, checked.Warnings, 1)
	assert.Equal(t, DoubleContractCreation, checked.Warnings[0].Kind)
}

func TestChangeAfterArchivalWarning(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.ArchiveContracts([]string{"c1"}, 20, 1).Err)

	// The archival arrives before any creation, so the later creation has
	// no earlier creation toc to clash with: DoubleContractCreation cannot
	// fire, isolating ChangeAfterArchival as the only warning (disjunct
	// per design note).
	checked := s.CreateContracts([]string{"c1"}, 30, 2)
	require.NoError(t, checked.Err)
	require.Len(t, checked.Warnings, 1)
	assert.Equal(t, ChangeAfterArchival, checked.Warnings[0].Kind)
}

func TestFetchStatesAndPackageUsage(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateContracts([]string{"c1", "c2"}, 10, 1).Err)
	require.NoError(t, s.ArchiveContracts([]string{"c2"}, 20, 2).Err)

	states, err := s.FetchStates([]string{"c1", "c2", "missing"})
	require.NoError(t, err)
	require.Len(t, states, 2)

	cid, found, err := s.PackageUsage("pkg-a", map[string]string{"c1": "pkg-a", "c2": "pkg-a"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "c1", cid)

	_, found, err = s.PackageUsage("pkg-b", map[string]string{"c1": "pkg-a"})
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChangesBetween(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateContracts([]string{"c1"}, 10, 1).Err)
	require.NoError(t, s.CreateContracts([]string{"c2"}, 20, 2).Err)
	require.NoError(t, s.ArchiveContracts([]string{"c1"}, 30, 3).Err)

	changes, err := s.ChangesBetween(0, 30)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, int64(10), changes[0].Toc)
	assert.Equal(t, []string{"c1"}, changes[0].Activations)
	assert.Equal(t, int64(30), changes[2].Toc)
	assert.Equal(t, []string{"c1"}, changes[2].Deactivations)
}

func TestDoPruneAndDeleteSince(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.CreateContracts([]string{"c1"}, 10, 1).Err)
	require.NoError(t, s.ArchiveContracts([]string{"c1"}, 20, 2).Err)
	require.NoError(t, s.CreateContracts([]string{"c2"}, 15, 3).Err)

	pruned, err := s.DoPrune(20)
	require.NoError(t, err)
	assert.Equal(t, 1, pruned)

	states, err := s.FetchStates([]string{"c1"})
	require.NoError(t, err)
	assert.Empty(t, states)

	deleted, err := s.DeleteSince(3)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
}
