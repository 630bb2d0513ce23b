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
	"container/heap"
	"fmt"
)

// queueHeap orders SignedCommitment messages by period.ToInclusive
// ascending, the same container/heap.Interface shape the storage
// engine's own k-way merge heap uses.
type queueHeap []SignedCommitment

func (h queueHeap) Len() int { return len(h) }
func (h queueHeap) Less(i, j int) bool {
	return h[i].Period.ToInclusive < h[j].Period.ToInclusive
}
func (h queueHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *queueHeap) Push(x any)   { *h = append(*h, x.(SignedCommitment)) }
func (h *queueHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is the in-memory commitment queue: messages waiting to be
// sent, dequeued in ascending period.ToInclusive order.
type Queue struct {
	h    queueHeap
	seen map[string]bool
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	return &Queue{seen: make(map[string]bool)}
}

func queueDedupKey(m SignedCommitment) string {
	return fmt.Sprintf("%s|%d|%d|%x|%x", m.Peer, m.Period.FromExclusive, m.Period.ToInclusive, m.Bytes, m.Signature)
}

// Enqueue adds m to the queue. Idempotent: an identical message
// (same peer, period, commitment bytes and signature) already queued
// is a no-op.
func (q *Queue) Enqueue(m SignedCommitment) {
	key := queueDedupKey(m)
	if q.seen[key] {
		return
	}
	q.seen[key] = true
	heap.Push(&q.h, m)
}

// PeekThrough returns every queued message with period.ToInclusive <=
// ts, in ascending order, without removing them.
func (q *Queue) PeekThrough(ts int64) []SignedCommitment {
	var out []SignedCommitment
	for _, m := range q.h {
		if m.Period.ToInclusive <= ts {
			out = append(out, m)
		}
	}
	sortSignedCommitments(out)
	return out
}

// DeleteThrough removes every queued message with period.ToInclusive
// <= ts.
func (q *Queue) DeleteThrough(ts int64) {
	var rest queueHeap
	for _, m := range q.h {
		if m.Period.ToInclusive <= ts {
			delete(q.seen, queueDedupKey(m))
			continue
		}
		rest = append(rest, m)
	}
	q.h = rest
	heap.Init(&q.h)
}

func sortSignedCommitments(ms []SignedCommitment) {
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].Period.ToInclusive < ms[j-1].Period.ToInclusive; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}
}
