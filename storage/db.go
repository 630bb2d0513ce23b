// Copyright 2024 BINARY Members
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
	"container/list"
	"errors"
	"os"
	"slices"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/kway"
	"github.com/domainledger/sequencer/pkg/logger"
)

var errMkDir = errors.New("failed to create db dir")

type DB struct {
	mu sync.RWMutex

	config Config
	logger logger.Logger
	dir    string
	state  uint32

	memtable   *memtable
	immutables *list.List
	flushC     chan *list.Element

	manager *levelManager
	oracle  *oracle

	closed chan struct{}
	closeC chan struct{}
}

type State uint32

const (
	_ State = iota
	StateInitialize
	StateOpened
	StateClosed
)

func Open(dir string, config Config) (*DB, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errMkDir
	}

	db := &DB{
		config:     config,
		dir:        dir,
		logger:     logger.GetLogger(),
		immutables: list.New(),
		flushC:     make(chan *list.Element, config.ImmutableBuffer),
		closeC:     make(chan struct{}),
		closed:     make(chan struct{}),
	}

	atomic.StoreUint32(&db.state, uint32(StateInitialize))

	// recover from exist wal
	mt := newMemtable(dir, config.SkipListMaxLevel, config.SkipListP)
	mt.recover()

	// recover from exist db
	lm := newLevelManager(db)
	lm.recover()

	db.memtable = mt
	db.manager = lm
	db.oracle = newOracle()

	go db.run()
	return db, nil
}

func (db *DB) Close() {
	defer atomic.StoreUint32(&db.state, uint32(StateClosed))
	db.closeC <- struct{}{}

	mt := db.memtable
	mt.freeze()
	if mt.size() > 0 {
		db.flushImmutable(mt)
	} else {
		if err := mt.wal.Delete(); err != nil {
			db.logger.Panicf("failed to delete immutable wal file: %v", err)
		}
	}

	<-db.closed
	db.oracle.Stop()
}

// View runs fn in a read-only transaction. The transaction observes a
// consistent snapshot as of the moment View is called.
func (db *DB) View(fn TxnFunc) error {
	txn := db.Begin(false)
	defer txn.Discard()
	return fn(txn)
}

// Update runs fn in a read-write transaction and commits it on success.
// If fn returns an error, or the transaction conflicts with another
// transaction committed meanwhile, no writes are applied.
func (db *DB) Update(fn TxnFunc) error {
	txn := db.Begin(true)
	defer txn.Discard()

	if err := fn(txn); err != nil {
		return err
	}
	return txn.Commit()
}

// Begin starts a new transaction. write controls whether it may call Set/
// Delete; callers must Discard (or Commit, for write transactions) it.
func (db *DB) Begin(write bool) *Txn {
	txn := &Txn{
		readOnly: !write,
		db:       db,
		readTs:   db.oracle.readTs(),
	}
	if write {
		txn.writesFp = make(map[uint64]struct{})
		txn.pendingWrites = make(map[kvtypes.Key]kvtypes.Entry)
	}
	return txn
}

func (db *DB) State() State {
	return State(atomic.LoadUint32(&db.state))
}

func (db *DB) Set(key string, value []byte) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.rawset(kvtypes.Entry{
		Key:       key,
		Value:     value,
		Tombstone: false,
	})
}

func (db *DB) Delete(key string) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.rawset(kvtypes.Entry{
		Key:       key,
		Value:     []byte{},
		Tombstone: true,
	})
}

func (db *DB) Get(key string) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	// search memtable
	mtEntry, ok := db.memtable.get(key)
	if ok {
		return value(mtEntry)
	}

	// search immutables
	for e := db.immutables.Back(); e != nil; e = e.Prev() {
		imt := e.Value.(*memtable)
		imtEntry, ok := imt.get(key)
		if ok {
			return value(imtEntry)
		}
	}

	// search sstables
	sstEntry, ok := db.manager.searchLowerBound(key)
	if ok {
		return value(sstEntry)
	}
	return nil, false
}

// Scan [start, end)
func (db *DB) Scan(start, end string) []kvtypes.KV {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var scan [][]kvtypes.Entry

	// scan memtable
	scan = append(scan, db.memtable.scan(start, end))

	// scan immutables
	for e := db.immutables.Back(); e != nil; e = e.Prev() {
		imt := e.Value.(*memtable)
		scan = append(scan, imt.scan(start, end))
	}

	// scan sstables
	scan = append(scan, db.manager.scan(start, end))

	slices.Reverse(scan)
	// merge result
	return kvs(kway.Merge(scan...))
}

// get resolves key as of readTs, walking memtable, immutables and sstables
// newest-first the way Get does, but through the versioned probe key so
// committed writes after readTs stay invisible.
func (db *DB) get(key string, readTs uint64) ([]byte, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	probe := kvtypes.KeyWithTs(key, readTs)

	if e, ok := db.memtable.getVersioned(probe); ok {
		return value(e)
	}

	for e := db.immutables.Back(); e != nil; e = e.Prev() {
		imt := e.Value.(*memtable)
		if ie, ok := imt.getVersioned(probe); ok {
			return value(ie)
		}
	}

	if se, ok := db.manager.searchLowerBound(probe); ok {
		return value(se)
	}
	return nil, false
}

func (db *DB) rawset(entry kvtypes.Entry) {
	db.memtable.set(entry)

	if db.memtable.size() >= db.config.MemtableByteThreshold {
		db.memtable.freeze()
		imt := db.memtable

		el := db.immutables.PushBack(imt)
		db.flushC <- el

		db.memtable = db.memtable.reset()
	}
}

func (db *DB) flushImmutable(imt *memtable) {
	// flush immutable memtable to L0
	if err := db.manager.flushToL0(imt.all()); err != nil {
		db.logger.Panicf("failed to flush immutable memtable: %v", err)
	}
	// delete wal file
	if err := imt.wal.Delete(); err != nil {
		db.logger.Panicf("failed to delete immutable wal file: %v", err)
	}
}

// run drains flushC and flushes immutable memtables to L0. Elements that
// arrive while a batch is already being flushed are picked up together on
// the next iteration and flushed concurrently through an errgroup, rather
// than one at a time, so a burst of writers filling several memtables back
// to back doesn't serialize behind a single flush+compaction pass.
//
// Each flushC entry is the *list.Element PushBack returned when the
// memtable was frozen, not the bare memtable: since flushC delivery order
// is FIFO but compaction and batching can let several flushes land out of
// their relative push order, removing by captured element avoids ever
// having to assume the oldest pending flush sits at a particular end of
// db.immutables.
func (db *DB) run() {
	atomic.StoreUint32(&db.state, uint32(StateOpened))
	var closed bool
LOOP:
	for {
		select {
		case el := <-db.flushC:
			batch := []*list.Element{el}
		drain:
			for {
				select {
				case more := <-db.flushC:
					batch = append(batch, more)
				default:
					break drain
				}
			}

			var g errgroup.Group
			for _, el := range batch {
				el := el
				g.Go(func() error {
					db.flushImmutable(el.Value.(*memtable))
					return nil
				})
			}
			_ = g.Wait()

			db.manager.checkAndCompact()

			db.mu.Lock()
			for _, el := range batch {
				db.immutables.Remove(el)
			}
			db.mu.Unlock()

			if closed && len(db.flushC) == 0 {
				break LOOP
			}
		case <-db.closeC:
			closed = true
			if len(db.flushC) > 0 {
				continue
			}
			break LOOP
		}
	}
	close(db.closed)
}

func value(entry kvtypes.Entry) ([]byte, bool) {
	if entry.Tombstone {
		return nil, false
	}
	return entry.Value, true
}

func kvs(entries []kvtypes.Entry) []kvtypes.KV {
	var res []kvtypes.KV
	for _, entry := range entries {
		if entry.Tombstone {
			continue
		}
		res = append(res, kvtypes.KV{
			K: entry.Key,
			V: entry.Value,
		})
	}
	return res
}
