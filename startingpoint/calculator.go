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

// Package startingpoint derives, from the request journal and the
// sequencer-counter prehead timeline, the four values a node needs on
// startup to know where to resume: the request to replay from, the
// request after which new work is admitted, the next local offset to
// publish, and a possibly-rewound sequencer-counter prehead.
package startingpoint

import (
	"math"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/journal"
)

// MinValue is the distinguished sentinel timestamp used when no real
// request has ever gone clean.
const MinValue int64 = math.MinInt64

// Cursor is a (requestCounter, sequencerCounter, timestamp) triple.
// Predecessor marks a cursor whose Ts denotes the instant immediately
// before the named timestamp rather than the timestamp itself (the
// spec's "ts⁻" notation), used when replay must re-process a request
// without having already consumed its effects.
type Cursor struct {
	Rc          int64
	Sc          uint64
	Ts          int64
	Predecessor bool
}

// Result is the four values the calculator derives.
type Result struct {
	CleanReplay                    Cursor
	Processing                     Cursor
	EventPublishingNextLocalOffset int64
	RewoundScPrehead               ScPrehead
}

// JournalView is the subset of *journal.Store the calculator reads.
type JournalView interface {
	CleanPrehead() int64
	Get(rc int64) (requestTs int64, state journal.State, commitTs *int64, found bool, err error)
	ScanFrom(fromRc int64, limit int) ([]journal.Record, error)
}

// Calculate derives the starting point from j (the request journal)
// and idx (the sequencer-counter prehead timeline), per cfg's genesis
// values.
func Calculate(j JournalView, idx *ScTimeline, cfg config.StartingPointConfig, jcfg config.JournalConfig) (Result, error) {
	cleanRc := j.CleanPrehead()

	// Rule 1: no clean request yet.
	if cleanRc == jcfg.GenesisRc {
		genesis := Cursor{Rc: jcfg.GenesisRc, Sc: cfg.GenesisSc, Ts: MinValue}
		return Result{
			CleanReplay:                    genesis,
			Processing:                     genesis,
			EventPublishingNextLocalOffset: 0,
			RewoundScPrehead:               ScPrehead{Sc: cfg.GenesisSc, Ts: MinValue},
		}, nil
	}

	// A clean prehead always names a request that reached Clean with a
	// recorded commit time, by the journal's own invariant.
	reqTs, _, commitTsPtr, _, err := j.Get(cleanRc)
	if err != nil {
		return Result{}, err
	}
	commitTs := *commitTsPtr

	current, hasCurrent := idx.Current()

	// Rule 4: consecutive clean repair requests share a tombstone
	// timestamp and never force a rewind. Detect the chain by checking
	// that cleanRc and the single row right after it are both
	// repair-tagged and that this next row is Clean with cleanRc's commit
	// timestamp; rows further on are not examined.
	rows, err := j.ScanFrom(cleanRc, 0)
	if err != nil {
		return Result{}, err
	}
	if inRepairChain(rows, cleanRc, commitTs) {
		next := nextRow(rows, cleanRc)
		if next != nil {
			point := Cursor{Rc: next.Rc, Sc: current.Sc, Ts: next.RequestTs}
			rewound := current
			if !hasCurrent {
				rewound = ScPrehead{Sc: cfg.GenesisSc, Ts: MinValue}
			}
			return Result{
				CleanReplay:                    point,
				Processing:                     point,
				EventPublishingNextLocalOffset: point.Sc1Offset(),
				RewoundScPrehead:               rewound,
			}, nil
		}
	}

	if hasCurrent && current.Ts < commitTs {
		// Rule 2, first branch: the sc prehead lags the clean request's
		// commit time, so replay must start at the clean request itself
		// and the sc prehead rewinds one step, to the entry immediately
		// preceding the current one (which is, by construction, <=
		// commitTs since it precedes an entry already < commitTs).
		rewound, ok := idx.Before(current.Ts)
		if !ok {
			rewound = ScPrehead{Sc: cfg.GenesisSc, Ts: MinValue}
		}

		// Rule 3: if more than one in-flight (non-clean) request sits
		// between cleanRc and the next clean/confirmed one, the
		// earliest such request's timestamp defines the replay start.
		replayTs := reqTs
		if earliest, ok := earliestInFlightTs(rows, cleanRc); ok && earliest < replayTs {
			replayTs = earliest
		}

		cleanReplay := Cursor{Rc: cleanRc, Sc: rewound.Sc, Ts: replayTs, Predecessor: true}
		processing := Cursor{Rc: cleanRc + 1, Sc: current.Sc, Ts: reqTs}
		return Result{
			CleanReplay:                    cleanReplay,
			Processing:                     processing,
			EventPublishingNextLocalOffset: processing.Sc1Offset(),
			RewoundScPrehead:               rewound,
		}, nil
	}

	// Rule 2, second branch: the next request already carries a
	// timestamp past commitTs, so replay can skip the clean request
	// entirely.
	if nxt := nextRow(rows, cleanRc); nxt != nil && nxt.RequestTs > commitTs {
		nextSc := cfg.GenesisSc
		nextTs := nxt.RequestTs
		if after, ok := idx.After(commitTs); ok {
			nextSc = after.Sc
		}
		point := Cursor{Rc: nxt.Rc, Sc: nextSc, Ts: nextTs}
		rewound := current
		if !hasCurrent {
			rewound = ScPrehead{Sc: cfg.GenesisSc, Ts: MinValue}
		}
		return Result{
			CleanReplay:                    point,
			Processing:                     point,
			EventPublishingNextLocalOffset: point.Sc1Offset(),
			RewoundScPrehead:               rewound,
		}, nil
	}

	// No next request yet: processing resumes right after the clean
	// one, nothing to replay past it.
	point := Cursor{Rc: cleanRc, Sc: cfg.GenesisSc, Ts: reqTs}
	if hasCurrent {
		point.Sc = current.Sc
	}
	rewound := current
	if !hasCurrent {
		rewound = ScPrehead{Sc: cfg.GenesisSc, Ts: MinValue}
	}
	return Result{
		CleanReplay:                    point,
		Processing:                     point,
		EventPublishingNextLocalOffset: point.Sc1Offset(),
		RewoundScPrehead:               rewound,
	}, nil
}

// Sc1Offset is the local-offset convention eventPublishingNextLocalOffset
// follows: the sequencer counter itself, since offsets and sequencer
// counters share the same namespace in the multi-log publisher.
func (c Cursor) Sc1Offset() int64 {
	return int64(c.Sc)
}

func nextRow(rows []journal.Record, afterRc int64) *journal.Record {
	for i := range rows {
		if rows[i].Rc > afterRc {
			r := rows[i]
			return &r
		}
	}
	return nil
}

// earliestInFlightTs returns the smallest requestTs among non-Clean
// rows strictly after cleanRc, up to the first row whose state is
// Clean (the next settled point). Used by rule 3 to force the replay
// start back to the earliest still-in-flight request.
func earliestInFlightTs(rows []journal.Record, cleanRc int64) (int64, bool) {
	var earliest int64
	found := false
	for _, r := range rows {
		if r.Rc <= cleanRc {
			continue
		}
		if r.State == journal.Clean {
			break
		}
		if !found || r.RequestTs < earliest {
			earliest = r.RequestTs
			found = true
		}
	}
	return earliest, found
}

// inRepairChain reports whether cleanRc is part of a consecutive run
// of clean, repair-tagged requests sharing the same commit (repair
// tombstone) timestamp as the row right after it.
func inRepairChain(rows []journal.Record, cleanRc int64, commitTs int64) bool {
	cur := recordFor(rows, cleanRc)
	if cur == nil || cur.RepairContext == nil {
		return false
	}
	next := nextRow(rows, cleanRc)
	if next == nil || next.State != journal.Clean || next.RepairContext == nil {
		return false
	}
	return next.CommitTs != nil && *next.CommitTs == commitTs
}

func recordFor(rows []journal.Record, rc int64) *journal.Record {
	for i := range rows {
		if rows[i].Rc == rc {
			return &rows[i]
		}
	}
	return nil
}
