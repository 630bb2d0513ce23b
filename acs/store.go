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

// Package acs is the Active Contract Store: per-contract lifecycle
// (Active / Archived / TransferredAway), a total order over changes by
// (toc, rc, isDeactivation), and the point-in-time and incremental
// queries built on top of it.
package acs

import (
	"sort"
	"strings"
	"sync"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/pkg/filter"
	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/kway"
	"github.com/domainledger/sequencer/storage"
)

// Store is the Active Contract Store.
type Store struct {
	driver storage.Driver
	cfg    config.AcsConfig

	// mu excludes deleteSince from running alongside any other
	// operation, matching "must not be concurrent with writers".
	mu sync.RWMutex

	activeMu     sync.Mutex
	activeFilter *filter.Filter
}

// NewStore opens a Store over driver, rebuilding the active-set bloom
// filter from the persisted latest-state table.
func NewStore(driver storage.Driver, cfg config.AcsConfig) (*Store, error) {
	s := &Store{driver: driver, cfg: cfg}
	if err := s.rebuildActiveFilter(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) rebuildActiveFilter() error {
	var entries []kvtypes.Entry
	err := s.driver.View(func(r storage.Reader) error {
		for _, kv := range r.Scan(prefixState, prefixState+"\xff") {
			rec := decodeContractRecord(kv.V)
			if rec.Status == Active {
				entries = append(entries, kvtypes.Entry{Key: rec.Cid})
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		entries = append(entries, kvtypes.Entry{Key: ""})
	}
	s.activeMu.Lock()
	s.activeFilter = filter.Build(entries)
	s.activeMu.Unlock()
	return nil
}

func (s *Store) markActive(cid string) {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	s.activeFilter.Add(cid)
}

// maybeActive is a fast, false-positive-only probe: false means
// definitely not active, true means "check the durable record".
func (s *Store) maybeActive(cid string) bool {
	s.activeMu.Lock()
	defer s.activeMu.Unlock()
	return s.activeFilter.Contains(cid)
}

func (s *Store) get(r storage.Reader, cid string) (contractRecord, bool) {
	raw, ok := r.Get(stateKey(cid))
	if !ok {
		return contractRecord{}, false
	}
	return decodeContractRecord(raw), true
}

// applyChange is the shared transition logic behind createContracts,
// archiveContracts, transferInContracts and transferOutContracts: it
// loads cid's current record, computes the warnings the new change
// produces against it, applies the change if the new toc dominates
// (or updates in place for a same-toc event already seen), and
// appends a change-log row.
func (s *Store) applyChange(cids []string, toc int64, rc int64, kind Kind, origin, target string) Checked {
	var checked Checked
	err := s.driver.Update(func(w storage.Writer) error {
		for _, cid := range cids {
			prev, existed := s.get(w, cid)
			warnings := classify(prev, existed, cid, toc, kind, origin, target)
			checked.Warnings = append(checked.Warnings, warnings...)

			rec := prev
			rec.Cid = cid
			rec.Toc = toc
			rec.Rc = rc
			rec.Kind = kind
			rec.HasOrigin = kind == KindTransferIn
			if rec.HasOrigin {
				rec.Origin = origin
			}
			rec.HasTarget = kind == KindTransferOut
			if rec.HasTarget {
				rec.Target = target
			}
			switch kind {
			case KindCreation, KindTransferIn:
				rec.Status = Active
				if !existed || !prev.HasCreationToc || toc < prev.CreationToc {
					rec.HasCreationToc = true
					rec.CreationToc = toc
				}
			case KindArchival, KindTransferOut:
				rec.Status = Archived
				if kind == KindTransferOut {
					rec.Status = TransferredAway
				}
				if !existed || !prev.HasArchivalToc || toc > prev.ArchivalToc {
					rec.HasArchivalToc = true
					rec.ArchivalToc = toc
				}
			}

			if err := w.Set(stateKey(cid), encodeContractRecord(rec)); err != nil {
				return err
			}
			ck := changeRecord{Cid: cid, Toc: toc, Rc: rc, Kind: kind, Origin: origin, Target: target}
			if err := w.Set(changeKey(toc, rc, kind.isDeactivation())+"/"+cid, encodeChangeRecord(ck)); err != nil {
				return err
			}
			if kind == KindCreation || kind == KindTransferIn {
				s.markActive(cid)
			}
		}
		return nil
	})
	checked.Err = err
	return checked
}

// classify computes the non-fatal warnings a new change produces
// against a cid's prior record, per the store's documented rules.
func classify(prev contractRecord, existed bool, cid string, toc int64, kind Kind, origin, target string) []Warning {
	var out []Warning
	if !existed {
		return out
	}

	// Each branch below emits at most one warning: DoubleContractCreation
	// and ChangeAfterArchival (respectively DoubleContractArchival and
	// ChangeBeforeCreation) are kept disjunct for the same change.
	switch kind {
	case KindCreation, KindTransferIn:
		switch {
		case prev.HasCreationToc && prev.CreationToc != toc:
			out = append(out, Warning{Kind: DoubleContractCreation, Cid: cid, TocA: prev.CreationToc, TocB: toc})
		case kind == KindTransferIn && prev.HasCreationToc && prev.HasOrigin && prev.Origin != origin:
			out = append(out, Warning{Kind: SimultaneousActivation, Cid: cid, TocA: toc, TocB: toc})
		case prev.HasArchivalToc && toc > prev.ArchivalToc:
			out = append(out, Warning{Kind: ChangeAfterArchival, Cid: cid, TocA: prev.ArchivalToc, TocB: toc})
		}
	case KindArchival, KindTransferOut:
		switch {
		case prev.HasArchivalToc && prev.ArchivalToc != toc:
			out = append(out, Warning{Kind: DoubleContractArchival, Cid: cid, TocA: prev.ArchivalToc, TocB: toc})
		case kind == KindTransferOut && prev.HasArchivalToc && prev.HasTarget && prev.Target != target:
			out = append(out, Warning{Kind: SimultaneousDeactivation, Cid: cid, TocA: toc, TocB: toc})
		case prev.HasCreationToc && toc < prev.CreationToc:
			out = append(out, Warning{Kind: ChangeBeforeCreation, Cid: cid, TocA: prev.CreationToc, TocB: toc})
		}
	}
	return out
}

// CreateContracts transitions cids to Active at toc.
func (s *Store) CreateContracts(cids []string, toc int64, rc int64) Checked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applyChange(cids, toc, rc, KindCreation, "", "")
}

// ArchiveContracts transitions cids to Archived at toc.
func (s *Store) ArchiveContracts(cids []string, toc int64, rc int64) Checked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applyChange(cids, toc, rc, KindArchival, "", "")
}

// TransferInContracts transitions cids to Active, recording origin.
func (s *Store) TransferInContracts(cids []string, originDomain string, toc int64, rc int64) Checked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applyChange(cids, toc, rc, KindTransferIn, originDomain, "")
}

// TransferOutContracts transitions cids to TransferredAway(target).
func (s *Store) TransferOutContracts(cids []string, targetDomain string, toc int64, rc int64) Checked {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.applyChange(cids, toc, rc, KindTransferOut, "", targetDomain)
}

// ContractState is the latest known (status, toc) pair for one cid.
type ContractState struct {
	Cid    string
	Status Status
	Toc    int64
}

// FetchStates returns the latest (status, toc) for each existing cid
// in cids; cids with no record are omitted.
func (s *Store) FetchStates(cids []string) ([]ContractState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ContractState
	err := s.driver.View(func(r storage.Reader) error {
		for _, cid := range cids {
			rec, ok := s.get(r, cid)
			if !ok {
				continue
			}
			out = append(out, ContractState{Cid: cid, Status: rec.Status, Toc: rec.Toc})
		}
		return nil
	})
	return out, err
}

// Snapshot returns the set of Active contracts at ts: every cid whose
// latest change at or before ts leaves it Active.
func (s *Store) Snapshot(ts int64) ([]string, error) {
	return s.snapshotFiltered(ts, nil)
}

// ContractSnapshot restricts Snapshot to a given cid set.
func (s *Store) ContractSnapshot(cids []string, ts int64) ([]string, error) {
	want := make(map[string]bool, len(cids))
	for _, c := range cids {
		want[c] = true
	}
	return s.snapshotFiltered(ts, want)
}

func (s *Store) snapshotFiltered(ts int64, want map[string]bool) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Change-log keys sort by (toc, rc, isDeactivation), so the last row
	// seen for a cid is its latest change at or before ts.
	active := make(map[string]bool)
	err := s.driver.View(func(r storage.Reader) error {
		for _, kv := range r.Scan(prefixChange, changePrefixUpTo(ts)) {
			c := decodeChangeRecord(0, 0, kv.V)
			if want != nil && !want[c.Cid] {
				continue
			}
			active[c.Cid] = !c.Kind.isDeactivation()
		}
		return nil
	})
	var out []string
	for cid, ok := range active {
		if ok {
			out = append(out, cid)
		}
	}
	sort.Strings(out)
	return out, err
}

// ChangeSetAt is one point in the changesBetween sequence: every
// activation and deactivation that landed at the same toc.
type ChangeSetAt struct {
	Toc           int64
	Activations   []string
	Deactivations []string
}

// ChangesBetween returns, in toc order, every change with
// fromExclusive < toc <= toInclusive, grouped by toc.
func (s *Store) ChangesBetween(fromExclusive, toInclusive int64) ([]ChangeSetAt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []kvtypes.KV
	err := s.driver.View(func(r storage.Reader) error {
		rows = r.Scan(changePrefixAfter(fromExclusive+1), changePrefixUpTo(toInclusive))
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Change-log rows are append-only and never overwritten, so this
	// merge is degenerate (one source) today; it reuses the same
	// k-way merge the storage layer's own compaction runs, so a
	// future partitioned change log (e.g. sharded by writer) slots in
	// without changing this call site.
	entries := make([]kvtypes.Entry, len(rows))
	for i, kv := range rows {
		entries[i] = kvtypes.Entry{Key: kv.K, Value: kv.V}
	}
	merged := kway.Merge(entries)

	var out []ChangeSetAt
	var cur *ChangeSetAt
	for _, e := range merged {
		parts := strings.SplitN(e.Key[len(prefixChange):], "/", 3)
		if len(parts) != 3 {
			continue
		}
		toc := unbiasOrderedInt64(parts[0])
		rc := unbiasOrderedInt64(parts[1])
		c := decodeChangeRecord(toc, rc, e.Value)
		if c.Toc <= fromExclusive || c.Toc > toInclusive {
			continue
		}
		if cur == nil || cur.Toc != c.Toc {
			if cur != nil {
				out = append(out, *cur)
			}
			cur = &ChangeSetAt{Toc: c.Toc}
		}
		if c.Kind.isDeactivation() {
			cur.Deactivations = append(cur.Deactivations, c.Cid)
		} else {
			cur.Activations = append(cur.Activations, c.Cid)
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out, nil
}

// PackageUsage reports whether any Active cid in contractStore maps to
// packageId, returning one such cid or false.
func (s *Store) PackageUsage(packageId string, contractStore map[string]string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found string
	var ok bool
	err := s.driver.View(func(r storage.Reader) error {
		for cid, pkg := range contractStore {
			if pkg != packageId {
				continue
			}
			if !s.maybeActive(cid) {
				continue
			}
			rec, exists := s.get(r, cid)
			if exists && rec.Status == Active {
				found, ok = cid, true
				return nil
			}
		}
		return nil
	})
	return found, ok, err
}

// DoPrune deletes latest-state rows whose status is terminal
// (Archived or TransferredAway) and whose last change is at or before
// beforeAndIncluding.
func (s *Store) DoPrune(beforeAndIncluding int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pruned := 0
	err := s.driver.Update(func(w storage.Writer) error {
		rows := w.Scan(prefixState, prefixState+"\xff")
		for _, kv := range rows {
			rec := decodeContractRecord(kv.V)
			if rec.Status == Active {
				continue
			}
			if rec.Toc > beforeAndIncluding {
				continue
			}
			if err := w.Delete(kv.K); err != nil {
				return err
			}
			pruned++
			if pruned >= s.cfg.PruningBatchSize {
				break
			}
		}
		return nil
	})
	return pruned, err
}

// DeleteSince bulk-deletes every change with rc >= bound from the
// change log. Callers must not invoke any other Store method
// concurrently; this call holds the exclusive lock for its duration.
func (s *Store) DeleteSince(rc int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	err := s.driver.Update(func(w storage.Writer) error {
		rows := w.Scan(prefixChange, prefixChange+"\xff")
		for _, kv := range rows {
			parts := strings.SplitN(kv.K[len(prefixChange):], "/", 3)
			if len(parts) != 3 || unbiasOrderedInt64(parts[1]) < rc {
				continue
			}
			if err := w.Delete(kv.K); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return deleted, err
	}
	return deleted, s.rebuildActiveFilter()
}
