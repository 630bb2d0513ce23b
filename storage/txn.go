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

package storage

import (
	"errors"
	"slices"
	"strings"

	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/sstenc"
)

var (
	ErrReadOnlyTxn  = errors.New("transaction is read-only")
	ErrDiscardedTxn = errors.New("transaction has been discarded")
	ErrEmptyKey     = errors.New("key is empty")
	ErrConflictTxn  = errors.New("transaction conflicts with another concurrent transaction")
)

type Txn struct {
	readOnly  bool
	discarded bool
	doneRead  bool

	db *DB

	readTs   uint64
	commitTs uint64

	readsFp  []uint64
	writesFp map[uint64]struct{}

	pendingWrites map[kvtypes.Key]kvtypes.Entry
}

type TxnFunc func(*Txn) error

// Commit assigns the transaction a commit timestamp, checks it against
// every transaction committed since readTs for a read/write conflict, and
// if clean, writes its pending entries. A no-op write transaction commits
// for free without consuming a timestamp.
func (t *Txn) Commit() error {
	if t.discarded {
		return ErrDiscardedTxn
	}
	if t.readOnly {
		return ErrReadOnlyTxn
	}

	if len(t.pendingWrites) == 0 {
		t.Discard()
		return nil
	}

	orc := t.db.oracle
	orc.writeLock.Lock()
	defer orc.writeLock.Unlock()

	commitTs, conflict := orc.newCommitTs(t)
	if conflict {
		return ErrConflictTxn
	}
	t.commitTs = commitTs

	t.db.mu.Lock()
	for key, entry := range t.pendingWrites {
		entry.Version = commitTs
		entry.Key = kvtypes.KeyWithTs(key, commitTs)
		t.db.rawset(entry)
	}
	t.db.mu.Unlock()

	orc.doneCommit(commitTs)
	t.Discard()
	return nil
}

// Discard releases the transaction's read mark. It is always safe to call,
// including after Commit or a failed Commit; subsequent calls are no-ops.
func (t *Txn) Discard() {
	if t.discarded {
		return
	}
	t.discarded = true
	t.db.oracle.doneRead(t)
}

// Get returns the value visible to this transaction's snapshot: its own
// pending write if any, otherwise the newest committed version at or
// before readTs.
func (t *Txn) Get(key string) ([]byte, bool) {
	if t.discarded {
		return nil, false
	}

	if !t.readOnly {
		if e, ok := t.pendingWrites[key]; ok {
			if e.Tombstone {
				return nil, false
			}
			return e.Value, true
		}
	}

	t.readsFp = append(t.readsFp, sstenc.Hash(key))
	return t.db.get(key, t.readTs)
}

// Scan returns every visible key in [start, end) at the engine's current
// committed view (not at readTs), merging in its own uncommitted writes.
// Unlike Get, a scan is not fingerprinted for conflict detection; range
// scans read at the engine's current committed view the way the
// teacher's non-transactional Scan does.
func (t *Txn) Scan(start, end string) []kvtypes.KV {
	committed := t.db.Scan(start, end)
	if t.readOnly || len(t.pendingWrites) == 0 {
		return committed
	}

	merged := make(map[string][]byte, len(committed))
	for _, kv := range committed {
		merged[kv.K] = kv.V
	}
	for key, entry := range t.pendingWrites {
		if key < start || key >= end {
			continue
		}
		if entry.Tombstone {
			delete(merged, key)
			continue
		}
		merged[key] = entry.Value
	}

	res := make([]kvtypes.KV, 0, len(merged))
	for k, v := range merged {
		res = append(res, kvtypes.KV{K: k, V: v})
	}
	slices.SortFunc(res, func(a, b kvtypes.KV) int { return strings.Compare(a.K, b.K) })
	return res
}

func (t *Txn) Set(key string, value []byte) error {
	return t.SetEntry(kvtypes.Entry{
		Key:   key,
		Value: value,
	})
}

func (t *Txn) Delete(key string) error {
	return t.SetEntry(kvtypes.Entry{
		Key:       key,
		Value:     []byte{},
		Tombstone: true,
	})
}

func (t *Txn) SetEntry(e kvtypes.Entry) error {
	return t.modify(e)
}

func (t *Txn) modify(e kvtypes.Entry) error {
	switch {
	case t.readOnly:
		return ErrReadOnlyTxn
	case t.discarded:
		return ErrDiscardedTxn
	case e.Key == "":
		return ErrEmptyKey
	}

	// record key fingerprint
	t.writesFp[sstenc.Hash(e.Key)] = struct{}{}
	// memory storage writer buffer
	t.pendingWrites[e.Key] = e
	return nil
}
