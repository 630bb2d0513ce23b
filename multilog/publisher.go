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

// Package multilog fans per-domain local offset streams in to a
// single global, gap-free offset stream. Each domain publishes its
// own entries in increasing localOffset order (with possible gaps
// that later fill in); the Publisher buffers out-of-order arrivals
// per domain and, once a domain's next entry is gap-free, merges it
// into the shared stream alongside whatever other domains have
// entries ready at the same time.
package multilog

import (
	"container/heap"
	"sort"
	"strconv"
	"sync"
)

// Entry is one published record from a single domain's local log.
type Entry struct {
	DomainID    string
	LocalOffset int64
	Payload     []byte
}

// GlobalEntry is an Entry after it has been assigned a position in
// the merged global stream.
type GlobalEntry struct {
	GlobalOffset int64
	Entry
}

// readyHeap orders entries that have already cleared their domain's
// gap-free check, the same Len/Less/Swap/Push/Pop shape pkg/kway's
// merge heap uses, generalized from a single string key to the
// (localOffset, domainId) pair.
type readyHeap []Entry

func (h readyHeap) Len() int { return len(h) }
func (h readyHeap) Less(i, j int) bool {
	if h[i].LocalOffset != h[j].LocalOffset {
		return h[i].LocalOffset < h[j].LocalOffset
	}
	return h[i].DomainID < h[j].DomainID
}
func (h readyHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *readyHeap) Push(x any)   { *h = append(*h, x.(Entry)) }
func (h *readyHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Publisher is the multi-log fan-in: Publish feeds it per-domain
// entries in any arrival order; NextGlobalOffset/Stream expose the
// merged, gap-free, globally-ordered result.
type Publisher struct {
	mu sync.Mutex

	nextExpected map[string]int64
	pending      map[string][]Entry
	seen         map[string]bool

	ready readyHeap

	nextGlobal int64
	published  []GlobalEntry
}

// NewPublisher returns an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{
		nextExpected: make(map[string]int64),
		pending:      make(map[string][]Entry),
		seen:         make(map[string]bool),
	}
}

// Publish records one (domainId, localOffset) entry. Idempotent for
// an already-seen (domainId, localOffset) pair. Entries from the same
// domain may arrive out of order; they are held back until every
// lower localOffset for that domain has been published.
func (p *Publisher) Publish(domainID string, localOffset int64, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := domainKey(domainID, localOffset)
	if p.seen[key] {
		return
	}
	p.seen[key] = true

	p.pending[domainID] = append(p.pending[domainID], Entry{DomainID: domainID, LocalOffset: localOffset, Payload: payload})
	sort.Slice(p.pending[domainID], func(i, j int) bool {
		return p.pending[domainID][i].LocalOffset < p.pending[domainID][j].LocalOffset
	})

	p.promoteReady(domainID)
}

// promoteReady moves every contiguous, gap-free-ready entry at the
// head of domainID's pending buffer into the cross-domain ready heap.
func (p *Publisher) promoteReady(domainID string) {
	buf := p.pending[domainID]
	i := 0
	for i < len(buf) && buf[i].LocalOffset == p.nextExpected[domainID] {
		heap.Push(&p.ready, buf[i])
		p.nextExpected[domainID]++
		i++
	}
	p.pending[domainID] = buf[i:]
}

// drainReady assigns sequential global offsets to every entry
// currently in the ready heap, in (localOffset, domainId) order. It
// runs lazily, on read, so that entries from several domains that
// became ready between reads get a chance to interleave correctly
// instead of each being drained the instant its own domain unblocks.
func (p *Publisher) drainReady() {
	for p.ready.Len() > 0 {
		e := heap.Pop(&p.ready).(Entry)
		p.published = append(p.published, GlobalEntry{GlobalOffset: p.nextGlobal, Entry: e})
		p.nextGlobal++
	}
}

// NextGlobalOffset returns the next global offset that will be
// assigned to a newly-ready entry.
func (p *Publisher) NextGlobalOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainReady()
	return p.nextGlobal
}

// Stream returns every globally-ordered entry published so far.
func (p *Publisher) Stream() []GlobalEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drainReady()
	out := make([]GlobalEntry, len(p.published))
	copy(out, p.published)
	return out
}

func domainKey(domainID string, localOffset int64) string {
	return domainID + "/" + strconv.FormatInt(localOffset, 10)
}
