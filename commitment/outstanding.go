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
	"sort"
	"strings"

	"github.com/domainledger/sequencer/storage"
)

// markOutstanding declares period outstanding against every peer in
// peers: we owe, or expect, a commitment with each of them for it.
func (e *Engine) markOutstanding(period Period, peers []string) error {
	return e.driver.Update(func(w storage.Writer) error {
		for _, peer := range peers {
			if err := w.Set(outstandingKey(peer, period), nil); err != nil {
				return err
			}
		}
		if err := w.Set(tickKey(period.ToInclusive), nil); err != nil {
			return err
		}
		return nil
	})
}

// markComputedAndSent records that the period was locally computed and
// sent, advancing the set of known ticks noOutstandingCommitments scans
// over. It does not by itself resolve any peer's outstanding entry;
// that happens through markSafe once reconciliation confirms it.
func (e *Engine) markComputedAndSent(period Period) error {
	return e.driver.Update(func(w storage.Writer) error {
		return w.Set(tickKey(period.ToInclusive), nil)
	})
}

// markSafe reconciles sub as safe against peer's outstanding set,
// splitting any overlapping outstanding period into its remaining,
// still-unresolved pieces (the symmetric set-difference).
func (e *Engine) markSafe(peer string, sub Period) error {
	return e.driver.Update(func(w storage.Writer) error {
		prefix := outstandingPrefix(peer)
		rows := w.Scan(prefix, prefix+"\xff")
		for _, kv := range rows {
			p, ok := parseOutstandingKey(prefix, kv.K)
			if !ok || !p.overlaps(sub) {
				continue
			}
			if err := w.Delete(kv.K); err != nil {
				return err
			}
			for _, remainder := range p.subtract(sub) {
				if err := w.Set(outstandingKey(peer, remainder), nil); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// OutstandingEntry is one open (period, peer) pair.
type OutstandingEntry struct {
	Peer   string
	Period Period
}

// outstanding enumerates open (period, peer) pairs intersecting
// [tsLow, tsHigh]; peer == "" matches every peer.
func (e *Engine) outstanding(tsLow, tsHigh int64, peer string) ([]OutstandingEntry, error) {
	var out []OutstandingEntry
	window := Period{FromExclusive: tsLow - 1, ToInclusive: tsHigh}
	err := e.driver.View(func(r storage.Reader) error {
		scanPrefix := prefixOutstanding
		if peer != "" {
			scanPrefix = outstandingPrefix(peer)
		}
		rows := r.Scan(scanPrefix, scanPrefix+"\xff")
		for _, kv := range rows {
			p, pr, ok := parseAnyOutstandingKey(kv.K)
			if !ok {
				continue
			}
			if peer != "" && pr != peer {
				continue
			}
			if !p.overlaps(window) {
				continue
			}
			out = append(out, OutstandingEntry{Peer: pr, Period: p})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Peer != out[j].Peer {
			return out[i].Peer < out[j].Peer
		}
		return out[i].Period.ToInclusive < out[j].Period.ToInclusive
	})
	return out, err
}

// parseOutstandingKey parses a key known to be under prefix (a single
// peer's outstandingPrefix).
func parseOutstandingKey(prefix, key string) (Period, bool) {
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return Period{}, false
	}
	return Period{FromExclusive: unbiasOrderedInt64(parts[0]), ToInclusive: unbiasOrderedInt64(parts[1])}, true
}

// parseAnyOutstandingKey parses a key under the global prefixOutstanding,
// also recovering the peer name.
func parseAnyOutstandingKey(key string) (Period, string, bool) {
	rest := strings.TrimPrefix(key, prefixOutstanding)
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) != 3 {
		return Period{}, "", false
	}
	return Period{FromExclusive: unbiasOrderedInt64(parts[1]), ToInclusive: unbiasOrderedInt64(parts[2])}, parts[0], true
}

// noOutstandingCommitments returns the largest known tick <= endOfTime
// such that every outstanding period with toInclusive <= that tick is
// either not outstanding or has been marked safe. A "known tick" is any
// toInclusive ever passed to markOutstanding or markComputedAndSent;
// ticks never referenced carry no information and cannot be returned.
func (e *Engine) noOutstandingCommitments(endOfTime int64) (int64, error) {
	var ticks []int64
	var firstUnresolved = endOfTime + 1
	haveUnresolved := false

	err := e.driver.View(func(r storage.Reader) error {
		for _, kv := range r.Scan(prefixTick, prefixTick+"\xff") {
			ts := unbiasOrderedInt64(strings.TrimPrefix(kv.K, prefixTick))
			ticks = append(ticks, ts)
		}
		for _, kv := range r.Scan(prefixOutstanding, prefixOutstanding+"\xff") {
			p, _, ok := parseAnyOutstandingKey(kv.K)
			if !ok {
				continue
			}
			if !haveUnresolved || p.ToInclusive < firstUnresolved {
				firstUnresolved = p.ToInclusive
				haveUnresolved = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	sort.Slice(ticks, func(i, j int) bool { return ticks[i] < ticks[j] })
	best := MinValue
	for _, t := range ticks {
		if t > endOfTime {
			break
		}
		if haveUnresolved && t >= firstUnresolved {
			break
		}
		best = t
	}
	return best, nil
}
