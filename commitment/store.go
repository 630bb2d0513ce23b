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
	"bytes"
	"strings"
	"sync"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/storage"
)

// Engine is the ACS Commitment Engine: outstanding/matched tracking,
// the computed/received commitment stores, an in-memory priority
// queue and the incremental snapshot accumulator.
type Engine struct {
	driver storage.Driver
	cfg    config.CommitmentConfig

	queueMu sync.Mutex
	queue   *Queue

	snapMu   sync.Mutex
	snapshot *SnapshotStore
}

// NewEngine opens an Engine over driver.
func NewEngine(driver storage.Driver, cfg config.CommitmentConfig) *Engine {
	return &Engine{
		driver:   driver,
		cfg:      cfg,
		queue:    NewQueue(),
		snapshot: NewSnapshotStore(),
	}
}

// MarkOutstanding declares period outstanding against every peer.
func (e *Engine) MarkOutstanding(period Period, peers []string) error {
	return e.markOutstanding(period, peers)
}

// MarkComputedAndSent records that period was locally computed and
// sent, independent of whether any peer was ever marked outstanding.
func (e *Engine) MarkComputedAndSent(period Period) error {
	return e.markComputedAndSent(period)
}

// MarkSafe reconciles sub as resolved against peer's outstanding set.
func (e *Engine) MarkSafe(peer string, sub Period) error {
	return e.markSafe(peer, sub)
}

// Outstanding enumerates open (period, peer) pairs intersecting
// [tsLow, tsHigh]; peer == "" matches every peer.
func (e *Engine) Outstanding(tsLow, tsHigh int64, peer string) ([]OutstandingEntry, error) {
	return e.outstanding(tsLow, tsHigh, peer)
}

// NoOutstandingCommitments returns the largest known tick <= endOfTime
// with every outstanding period at or below it resolved.
func (e *Engine) NoOutstandingCommitments(endOfTime int64) (int64, error) {
	return e.noOutstandingCommitments(endOfTime)
}

// StoreComputed records a locally computed commitment. Idempotent for
// an identical (peer, period, commitment) triple; returns
// ErrConflictingComputed if a different commitment is already stored
// for the same (peer, period).
func (e *Engine) StoreComputed(peer string, period Period, commitmentBytes []byte) error {
	return e.driver.Update(func(w storage.Writer) error {
		key := computedKey(peer, period)
		if existing, ok := w.Get(key); ok {
			if bytes.Equal(existing, commitmentBytes) {
				return nil
			}
			return &ErrConflictingComputed{Peer: peer, Period: period, Existing: existing}
		}
		return w.Set(key, commitmentBytes)
	})
}

// GetComputed returns the locally computed commitment for (peer,
// period), if any.
func (e *Engine) GetComputed(peer string, period Period) ([]byte, bool, error) {
	var val []byte
	var ok bool
	err := e.driver.View(func(r storage.Reader) error {
		val, ok = r.Get(computedKey(peer, period))
		return nil
	})
	return val, ok, err
}

// SearchComputedBetween returns every locally computed commitment for
// peer whose period has ToInclusive >= tsLow and FromExclusive <= tsHigh.
func (e *Engine) SearchComputedBetween(peer string, tsLow, tsHigh int64) ([]Commitment, error) {
	var out []Commitment
	prefix := computedPrefix(peer)
	err := e.driver.View(func(r storage.Reader) error {
		for _, kv := range r.Scan(prefix, prefix+"\xff") {
			p, ok := parseComputedKey(prefix, kv.K)
			if !ok || p.ToInclusive < tsLow || p.FromExclusive > tsHigh {
				continue
			}
			out = append(out, Commitment{Peer: peer, Period: p, Bytes: kv.V})
		}
		return nil
	})
	return out, err
}

// StoreReceived records a commitment received from peer for period.
// Identical payloads are idempotent; a differing payload for the same
// (peer, period) is kept as a distinct candidate, since the source may
// disagree and reconciliation must compare both.
func (e *Engine) StoreReceived(peer string, period Period, commitmentBytes []byte) error {
	return e.driver.Update(func(w storage.Writer) error {
		return w.Set(receivedKey(peer, period, commitmentBytes), commitmentBytes)
	})
}

// SearchReceivedBetween returns every candidate commitment received
// from peer whose period has ToInclusive >= tsLow and FromExclusive <= tsHigh.
func (e *Engine) SearchReceivedBetween(peer string, tsLow, tsHigh int64) ([]Commitment, error) {
	var out []Commitment
	prefix := prefixReceived + peer + "/"
	err := e.driver.View(func(r storage.Reader) error {
		for _, kv := range r.Scan(prefix, prefix+"\xff") {
			p, ok := parseReceivedKey(prefix, kv.K)
			if !ok || p.ToInclusive < tsLow || p.FromExclusive > tsHigh {
				continue
			}
			out = append(out, Commitment{Peer: peer, Period: p, Bytes: kv.V})
		}
		return nil
	})
	return out, err
}

// Reconcile compares every received candidate for (peer, period)
// against the locally computed commitment. A match marks the period
// safe against peer; otherwise every non-matching candidate is
// returned as a Discrepancy for the caller to surface.
func (e *Engine) Reconcile(peer string, period Period) ([]Discrepancy, error) {
	local, ok, err := e.GetComputed(peer, period)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	received, err := e.SearchReceivedBetween(peer, period.FromExclusive+1, period.ToInclusive)
	if err != nil {
		return nil, err
	}
	var mismatches []Discrepancy
	matched := false
	for _, c := range received {
		if c.Period != period {
			continue
		}
		if bytes.Equal(c.Bytes, local) {
			matched = true
			continue
		}
		mismatches = append(mismatches, Discrepancy{Peer: peer, Period: period, Local: local, Received: c.Bytes})
	}
	if matched {
		if err := e.MarkSafe(peer, period); err != nil {
			return nil, err
		}
	}
	return mismatches, nil
}

// Enqueue adds a signed commitment to the outbound queue.
func (e *Engine) Enqueue(m SignedCommitment) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	e.queue.Enqueue(m)
}

// PeekThrough returns every queued message due through ts.
func (e *Engine) PeekThrough(ts int64) []SignedCommitment {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	return e.queue.PeekThrough(ts)
}

// DeleteThrough removes every queued message due through ts.
func (e *Engine) DeleteThrough(ts int64) {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()
	e.queue.DeleteThrough(ts)
}

// UpdateSnapshot advances the incremental snapshot accumulator.
func (e *Engine) UpdateSnapshot(rt RecordTime, upserts, deletes map[string][]byte) error {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.snapshot.Update(rt, upserts, deletes)
}

// SnapshotCommitment returns the current accumulated commitment bytes
// for a stakeholder pair.
func (e *Engine) SnapshotCommitment(pair string) []byte {
	e.snapMu.Lock()
	defer e.snapMu.Unlock()
	return e.snapshot.Commitment(pair)
}

func parseComputedKey(prefix, key string) (Period, bool) {
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return Period{}, false
	}
	return Period{FromExclusive: unbiasOrderedInt64(parts[0]), ToInclusive: unbiasOrderedInt64(parts[1])}, true
}

func parseReceivedKey(prefix, key string) (Period, bool) {
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return Period{}, false
	}
	return Period{FromExclusive: unbiasOrderedInt64(parts[0]), ToInclusive: unbiasOrderedInt64(parts[1])}, true
}
