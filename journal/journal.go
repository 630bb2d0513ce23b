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

// Package journal is the per-request state machine with monotonic
// cursor preheads that determines the exact recovery point after a
// crash: every request counter moves Pending -> Confirmed -> Clean,
// and the Pending/Clean preheads track the largest gap-free prefix of
// request counters in each of those states.
package journal

import (
	"context"
	"fmt"
	"sync"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/pkg/watermark"
	"github.com/domainledger/sequencer/storage"
)

const prefixRequest = "jn/rq/"

func requestKey(rc int64) string {
	return fmt.Sprintf("%s%s", prefixRequest, orderedInt64(rc))
}

func orderedInt64(n int64) string {
	biased := uint64(n) ^ (1 << 63)
	return fmt.Sprintf("%020d", biased)
}

func biasRc(rc int64) uint64 {
	return uint64(rc) ^ (1 << 63)
}

func unbiasRc(biased uint64) int64 {
	return int64(biased ^ (1 << 63))
}

// Store is the Request Journal.
type Store struct {
	driver storage.Driver
	cfg    config.JournalConfig

	pendingWm *watermark.WaterMark
	cleanWm   *watermark.WaterMark

	mu              sync.Mutex
	highestInserted int64
	haveInserted    bool
}

// NewStore opens a Store over driver, replaying the durable request
// table to rebuild the in-memory prehead trackers and the
// highest-inserted-rc counter.
func NewStore(driver storage.Driver, cfg config.JournalConfig) (*Store, error) {
	s := &Store{
		driver:          driver,
		cfg:             cfg,
		pendingWm:       watermark.New(),
		cleanWm:         watermark.New(),
		highestInserted: cfg.GenesisRc,
	}

	err := driver.View(func(r storage.Reader) error {
		rows := r.Scan(prefixRequest, prefixRequest+"\xff")
		for _, kv := range rows {
			d := decodeRequestData(kv.V)
			ts := biasRc(d.Rc)
			s.pendingWm.Begin(ts)
			s.pendingWm.Done(ts)
			s.cleanWm.Begin(ts)
			if d.State == Clean {
				s.cleanWm.Done(ts)
			}
			if d.Rc > s.highestInserted {
				s.highestInserted = d.Rc
				s.haveInserted = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Insert records a new request at rc, Pending, with the given request
// timestamp. rc must exceed the journal's genesis value. It also
// reserves rc's slot on the clean prehead tracker, since every inserted
// request is now known to eventually need a Terminate call before the
// clean prehead can pass it. Insert returns once the row is durable;
// callers wanting the cursor-future guarantee that the pending prehead
// has actually passed rc call WaitForPendingPrehead afterwards.
func (s *Store) Insert(rc int64, requestTs int64) error {
	if rc <= s.cfg.GenesisRc {
		return ErrRcBelowGenesis
	}

	ts := biasRc(rc)
	s.pendingWm.Begin(ts)
	s.cleanWm.Begin(ts)
	err := s.driver.Update(func(w storage.Writer) error {
		key := requestKey(rc)
		if _, ok := w.Get(key); ok {
			return ErrDuplicateRequest
		}
		return w.Set(key, encodeRequestData(requestData{Rc: rc, State: Pending, RequestTs: requestTs}))
	})
	s.pendingWm.Done(ts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if rc > s.highestInserted || !s.haveInserted {
		s.highestInserted = rc
		s.haveInserted = true
	}
	s.mu.Unlock()

	return nil
}

// WaitForPendingPrehead blocks until the pending prehead has advanced
// past rc, i.e. rc and everything below it is durably at least Pending.
func (s *Store) WaitForPendingPrehead(ctx context.Context, rc int64) error {
	return s.pendingWm.WaitForMark(ctx, biasRc(rc))
}

// WaitForCleanPrehead blocks until the clean prehead has advanced past
// rc, i.e. rc and everything below it is durably Clean.
func (s *Store) WaitForCleanPrehead(ctx context.Context, rc int64) error {
	return s.cleanWm.WaitForMark(ctx, biasRc(rc))
}

// Transit moves rc from Pending to Confirmed. requestTs must match the
// value recorded at Insert.
func (s *Store) Transit(rc int64, requestTs int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		key := requestKey(rc)
		raw, ok := w.Get(key)
		if !ok {
			return ErrNotFound
		}
		d := decodeRequestData(raw)
		if d.RequestTs != requestTs {
			return &InconsistentTimestampsError{Rc: rc, Stored: d.RequestTs, Provided: requestTs}
		}
		if d.State != Pending {
			return &ConcurrentModificationError{Rc: rc, Expected: Pending, Actual: d.State}
		}
		d.State = Confirmed
		return w.Set(key, encodeRequestData(d))
	})
}

// Terminate moves rc from Confirmed to Clean at commitTs, optionally
// tagging it with a repair context. commitTs must be at least
// requestTs. Terminate returns once the row is durable; callers
// wanting the cursor-future guarantee call WaitForCleanPrehead
// afterwards.
func (s *Store) Terminate(rc int64, requestTs int64, commitTs int64, repairContext *string) error {
	if commitTs < requestTs {
		return ErrCommitBeforeRequest
	}

	ts := biasRc(rc)
	err := s.driver.Update(func(w storage.Writer) error {
		key := requestKey(rc)
		raw, ok := w.Get(key)
		if !ok {
			return ErrNotFound
		}
		d := decodeRequestData(raw)
		if d.RequestTs != requestTs {
			return &InconsistentTimestampsError{Rc: rc, Stored: d.RequestTs, Provided: requestTs}
		}
		if d.State != Confirmed {
			return &ConcurrentModificationError{Rc: rc, Expected: Confirmed, Actual: d.State}
		}
		d.State = Clean
		d.HasCommitTs = true
		d.CommitTs = commitTs
		if repairContext != nil {
			d.HasRepairContext = true
			d.RepairContext = *repairContext
		}
		return w.Set(key, encodeRequestData(d))
	})
	if err != nil {
		// rc's clean-prehead slot stays reserved and un-Done: the
		// prehead correctly never advances past an rc that failed to
		// terminate, until a later successful Terminate call closes it.
		return err
	}
	s.cleanWm.Done(ts)
	return nil
}

// Get returns the persisted request data for rc, if any.
func (s *Store) Get(rc int64) (requestTs int64, state State, commitTs *int64, found bool, err error) {
	err = s.driver.View(func(r storage.Reader) error {
		raw, ok := r.Get(requestKey(rc))
		if !ok {
			return nil
		}
		d := decodeRequestData(raw)
		requestTs = d.RequestTs
		state = d.State
		if d.HasCommitTs {
			v := d.CommitTs
			commitTs = &v
		}
		found = true
		return nil
	})
	return
}

// Record is one persisted journal row, exported for callers (the
// starting-point calculator) that need to walk a range of requests
// rather than look one up by rc.
type Record struct {
	Rc            int64
	RequestTs     int64
	State         State
	CommitTs      *int64
	RepairContext *string
}

// ScanFrom returns, in increasing rc order, every persisted request
// with rc >= fromRc, stopping once limit rows have been collected (0
// means unbounded).
func (s *Store) ScanFrom(fromRc int64, limit int) ([]Record, error) {
	var out []Record
	err := s.driver.View(func(r storage.Reader) error {
		rows := r.Scan(requestKey(fromRc), prefixRequest+"\xff")
		for _, kv := range rows {
			d := decodeRequestData(kv.V)
			rec := Record{Rc: d.Rc, RequestTs: d.RequestTs, State: d.State}
			if d.HasCommitTs {
				v := d.CommitTs
				rec.CommitTs = &v
			}
			if d.HasRepairContext {
				v := d.RepairContext
				rec.RepairContext = &v
			}
			out = append(out, rec)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// PendingPrehead returns the largest rc whose state is at least Pending
// with no gap below it, or the genesis value if none has been inserted.
// Only inserted request counters are tracked: an rc that has never been
// passed to Insert does not hold the prehead back.
// DoneUntil()==0 is treated as "nothing done yet" rather than a real
// biased rc; the only rc that biases to 0 is math.MinInt64, which no
// configured genesis value leaves room for.
func (s *Store) PendingPrehead() int64 {
	done := s.pendingWm.DoneUntil()
	if done == 0 {
		return s.cfg.GenesisRc
	}
	return unbiasRc(done)
}

// CleanPrehead returns the largest rc whose state is Clean with no gap
// below it, or the genesis value if none has reached Clean. As with
// PendingPrehead, an rc that has never been inserted is not a gap.
func (s *Store) CleanPrehead() int64 {
	done := s.cleanWm.DoneUntil()
	if done == 0 {
		return s.cfg.GenesisRc
	}
	return unbiasRc(done)
}

// HighestInsertedRc returns the largest rc ever inserted, or the
// genesis value if none has.
func (s *Store) HighestInsertedRc() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.highestInserted
}

// DirtyRequestCount is highestInsertedRc - cleanPrehead.
func (s *Store) DirtyRequestCount() int64 {
	return s.HighestInsertedRc() - s.CleanPrehead()
}

// Close releases the watermark goroutines.
func (s *Store) Close() {
	s.pendingWm.Stop()
	s.cleanWm.Stop()
}
