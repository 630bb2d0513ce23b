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
	"encoding/binary"
	"fmt"
	"sort"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/skiplist"
)

// ScPrehead is one point on the sequencer-counter prehead timeline: the
// sequencer counter the engine had reached as of ts.
type ScPrehead struct {
	Sc uint64
	Ts int64
}

func scPreheadKey(ts int64) string {
	biased := uint64(ts) ^ (1 << 63)
	return fmt.Sprintf("%020d", biased)
}

func encodeSc(sc uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, sc)
	return b
}

func decodeSc(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// ScTimeline is the append-mostly, in-memory record of sequencer-counter
// preheads over time that Calculate reads from. It is not durable: a
// new timeline starts empty and holds only what Record has been given;
// nothing in this module rebuilds it from the sequencer store.
type ScTimeline struct {
	mu   sync.Mutex
	sl   *skiplist.SkipList
	befC *lru.Cache[int64, *ScPrehead]
}

// NewScTimeline returns an empty timeline with a bounded lookup cache
// of the given size.
func NewScTimeline(cacheSize int) *ScTimeline {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, _ := lru.New[int64, *ScPrehead](cacheSize)
	return &ScTimeline{
		sl:   skiplist.New(16, 0.5),
		befC: c,
	}
}

// Record appends a new (sc, ts) observation. Callers are expected to
// call this in increasing ts order, mirroring how the sequencer store
// itself advances.
func (t *ScTimeline) Record(sc uint64, ts int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sl.Set(kvtypes.Entry{Key: scPreheadKey(ts), Value: encodeSc(sc)})
	t.befC.Purge()
}

func (t *ScTimeline) entries() []ScPrehead {
	all := t.sl.All()
	out := make([]ScPrehead, 0, len(all))
	for _, e := range all {
		if e.Tombstone {
			continue
		}
		ts := int64(unbiasTs(e.Key))
		out = append(out, ScPrehead{Sc: decodeSc(e.Value), Ts: ts})
	}
	return out
}

func unbiasTs(key string) uint64 {
	var biased uint64
	fmt.Sscanf(key, "%020d", &biased)
	return biased ^ (1 << 63)
}

// Current returns the latest recorded prehead, if any.
func (t *ScTimeline) Current() (ScPrehead, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	es := t.entries()
	if len(es) == 0 {
		return ScPrehead{}, false
	}
	return es[len(es)-1], true
}

// Before returns the latest recorded prehead with Ts strictly less
// than bound.
func (t *ScTimeline) Before(bound int64) (ScPrehead, bool) {
	t.mu.Lock()
	if cached, ok := t.befC.Get(bound); ok {
		t.mu.Unlock()
		if cached == nil {
			return ScPrehead{}, false
		}
		return *cached, true
	}
	es := t.entries()
	t.mu.Unlock()

	idx := sort.Search(len(es), func(i int) bool { return es[i].Ts >= bound })
	t.mu.Lock()
	defer t.mu.Unlock()
	if idx == 0 {
		t.befC.Add(bound, nil)
		return ScPrehead{}, false
	}
	found := es[idx-1]
	t.befC.Add(bound, &found)
	return found, true
}

// After returns the earliest recorded prehead with Ts strictly
// greater than bound.
func (t *ScTimeline) After(bound int64) (ScPrehead, bool) {
	t.mu.Lock()
	es := t.entries()
	t.mu.Unlock()

	idx := sort.Search(len(es), func(i int) bool { return es[i].Ts > bound })
	if idx == len(es) {
		return ScPrehead{}, false
	}
	return es[idx], true
}
