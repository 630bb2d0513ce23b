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

// Package sequencer is the durable, multi-writer event log: member
// registration, payload deduplication, watermark-disciplined event
// ingestion and delivery, per-member counter checkpoints,
// acknowledgements and pruning. It is built entirely against
// storage.Driver, never the concrete LSM engine, so a different
// persistence backend can be dropped in without this package changing.
package sequencer

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/pkg/idgen"
	"github.com/domainledger/sequencer/pkg/logger"
	"github.com/domainledger/sequencer/pkg/wire"
	"github.com/domainledger/sequencer/storage"
)

const memberCacheSize = 4096

// Store is the Sequencer Store. All durable state lives behind the
// Driver it is constructed with.
type Store struct {
	driver storage.Driver
	cfg    config.SequencerConfig

	members     *idgen.MemberRegistry
	memberCache *lru.Cache[string, idgen.MemberId]

	limiterMu sync.Mutex
	limiters  map[idgen.MemberId]*rate.Limiter
}

// NewStore opens a Store over driver, replaying the durable member
// table into the in-process registry so registerMember stays idempotent
// across restarts.
func NewStore(driver storage.Driver, cfg config.SequencerConfig) (*Store, error) {
	cache, err := lru.New[string, idgen.MemberId](memberCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		driver:      driver,
		cfg:         cfg,
		members:     idgen.NewMemberRegistry(),
		memberCache: cache,
		limiters:    make(map[idgen.MemberId]*rate.Limiter),
	}

	err = driver.View(func(r storage.Reader) error {
		rows := r.Scan(prefixMemberByName, prefixEnd(prefixMemberByName))
		for _, kv := range rows {
			name := strings.TrimPrefix(kv.K, prefixMemberByName)
			m := decodeMember(kv.V)
			s.members.Adopt(name, m.ID)
			s.memberCache.Add(name, m.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func prefixEnd(prefix string) string {
	return prefix + "\xff"
}

// RegisterMember idempotently assigns name a dense MemberId. A second
// call with a different ts still returns the original id and does not
// touch the stored registration timestamp.
func (s *Store) RegisterMember(name string, ts int64) (idgen.MemberId, error) {
	if id, ok := s.memberCache.Get(name); ok {
		return id, nil
	}

	var assigned idgen.MemberId
	err := s.driver.Update(func(w storage.Writer) error {
		if raw, ok := w.Get(memberByNameKey(name)); ok {
			assigned = decodeMember(raw).ID
			return nil
		}
		id, _ := s.members.Resolve(name)
		m := member{ID: id, RegisteredAt: ts, Enabled: true}
		if err := w.Set(memberByNameKey(name), encodeMember(m)); err != nil {
			return err
		}
		if err := w.Set(memberByIDKey(id), []byte(name)); err != nil {
			return err
		}
		assigned = id
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.memberCache.Add(name, assigned)
	return assigned, nil
}

// IsEnabled reports whether member is registered and not disabled. An
// unregistered member is treated as disabled.
func (s *Store) IsEnabled(id idgen.MemberId) (bool, error) {
	enabled := false
	err := s.driver.View(func(r storage.Reader) error {
		raw, ok := r.Get(memberByIDKey(id))
		if !ok {
			return nil
		}
		name := string(raw)
		raw, ok = r.Get(memberByNameKey(name))
		if !ok {
			return nil
		}
		enabled = decodeMember(raw).Enabled
		return nil
	})
	return enabled, err
}

// SavePayloads persists each (payloadID, bytes) under discriminator.
// Existing content under the same discriminator is treated as a retry
// and left untouched; content under a different discriminator is a
// ConflictingPayloadIDError. The whole batch commits in one driver
// transaction, collapsing what would otherwise be a per-id retry loop
// into a single pass since the Driver already gives the batch atomicity.
func (s *Store) SavePayloads(payloads map[int64][]byte, discriminator idgen.Discriminator) error {
	if len(payloads) == 0 {
		return nil
	}

	var conflict error
	err := s.driver.Update(func(w storage.Writer) error {
		for id, content := range payloads {
			key := payloadKey(id)
			if raw, ok := w.Get(key); ok {
				existing := decodePayload(raw)
				if existing.Discriminator == discriminator {
					continue
				}
				if conflict == nil {
					conflict = &ConflictingPayloadIDError{PayloadID: id, ConflictingDiscriminator: existing.Discriminator}
				}
				continue
			}
			if err := w.Set(key, encodePayload(payload{Bytes: content, Discriminator: discriminator})); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return conflict
}

// SaveEvents bulk-inserts events for writerIndex, keyed by timestamp.
// Re-inserting an already-present (writerIndex, ts) row is a no-op;
// any new timestamp not strictly greater than the writer's last saved
// timestamp is ErrNonIncreasingTs.
func (s *Store) SaveEvents(writerIndex int, events []wire.SequencedEvent) error {
	if len(events) == 0 {
		return nil
	}
	sorted := slices.Clone(events)
	slices.SortFunc(sorted, func(a, b wire.SequencedEvent) int {
		return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
	})

	return s.driver.Update(func(w storage.Writer) error {
		last := int64(math.MinInt64)
		if raw, ok := w.Get(lastEventTsKey(writerIndex)); ok {
			last = decodeAck(raw)
		}
		for _, e := range sorted {
			ts := e.Timestamp.UnixNano()
			key := eventKey(writerIndex, ts)
			if _, ok := w.Get(key); ok {
				continue
			}
			if ts <= last {
				return ErrNonIncreasingTs
			}
			data, err := wire.EncodeSequencedEvent(e)
			if err != nil {
				return err
			}
			if err := w.Set(key, data); err != nil {
				return err
			}
			last = ts
		}
		return w.Set(lastEventTsKey(writerIndex), encodeAck(last))
	})
}

func lastEventTsKey(writerIndex int) string {
	return "sq/evmax/" + orderedUint64(uint64(writerIndex))
}

// SaveWatermark upserts writerIndex's watermark, advancing it only if
// currently online, then reads it back to detect a concurrent writer
// holding the same index.
func (s *Store) SaveWatermark(writerIndex int, ts int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		key := watermarkKey(writerIndex)
		next := watermark{Ts: ts, Online: true}

		if raw, ok := w.Get(key); ok {
			existing := decodeWatermark(raw)
			if !existing.Online {
				return &WatermarkFlaggedOfflineError{WriterIndex: writerIndex}
			}
			if ts <= existing.Ts {
				next = existing
			}
		}

		if err := w.Set(key, encodeWatermark(next)); err != nil {
			return err
		}

		raw, _ := w.Get(key)
		verify := decodeWatermark(raw)
		if !verify.Online {
			return &WatermarkFlaggedOfflineError{WriterIndex: writerIndex}
		}
		if verify.Ts != next.Ts {
			return &WatermarkUnexpectedlyChangedError{WriterIndex: writerIndex, Expected: next.Ts, ActualTs: verify.Ts}
		}
		return nil
	})
}

// GoOnline brings writerIndex online at max(globalMaxWatermark, now)
// under one serialisable transaction, returning the chosen effective
// timestamp.
func (s *Store) GoOnline(writerIndex int, now int64) (int64, error) {
	var effective int64
	err := s.driver.Update(func(w storage.Writer) error {
		globalMax := int64(math.MinInt64)
		for _, kv := range w.Scan(prefixWatermark, prefixEnd(prefixWatermark)) {
			if wm := decodeWatermark(kv.V); wm.Ts > globalMax {
				globalMax = wm.Ts
			}
		}
		effective = now
		if globalMax > effective {
			effective = globalMax
		}
		return w.Set(watermarkKey(writerIndex), encodeWatermark(watermark{Ts: effective, Online: true}))
	})
	return effective, err
}

// GoOffline flags writerIndex offline.
func (s *Store) GoOffline(writerIndex int) error {
	return s.driver.Update(func(w storage.Writer) error {
		key := watermarkKey(writerIndex)
		wm := watermark{}
		if raw, ok := w.Get(key); ok {
			wm = decodeWatermark(raw)
		}
		wm.Online = false
		return w.Set(key, encodeWatermark(wm))
	})
}

// MarkLaggingSequencersOffline flips every online writer whose
// watermark is at or before cutoff to offline, as a crash-detection
// sweep driven by an external timer.
func (s *Store) MarkLaggingSequencersOffline(cutoff int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		for _, kv := range w.Scan(prefixWatermark, prefixEnd(prefixWatermark)) {
			wm := decodeWatermark(kv.V)
			if wm.Online && wm.Ts <= cutoff {
				wm.Online = false
				if err := w.Set(kv.K, encodeWatermark(wm)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteEventsPastWatermark removes every event of writerIndex strictly
// newer than its own watermark, for use on recovery after an unclean
// shutdown left events beyond the last confirmed watermark.
func (s *Store) DeleteEventsPastWatermark(writerIndex int) error {
	return s.driver.Update(func(w storage.Writer) error {
		raw, ok := w.Get(watermarkKey(writerIndex))
		if !ok {
			return nil
		}
		wm := decodeWatermark(raw)
		prefix := eventPrefixForWriter(writerIndex)
		for _, kv := range w.Scan(prefix, prefixEnd(prefix)) {
			ev, err := wire.DecodeSequencedEvent(kv.V)
			if err != nil {
				return err
			}
			if ev.Timestamp.UnixNano() > wm.Ts {
				if err := w.Delete(kv.K); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writerIndexFromEventKey(key string) int {
	rest := strings.TrimPrefix(key, prefixEvent)
	idx := strings.Index(rest, "/")
	n, _ := strconv.Atoi(rest[:idx])
	return n
}

func writerIndexFromWatermarkKey(key string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(key, prefixWatermark))
	return n
}

// ReadEvents returns up to limit events visible to member in ts order,
// applying the visibility rule (an event is visible only once it is at
// or before every online watermark, and either its own writer is still
// online or the event is at or before that writer's watermark) and the
// static per-participant rate limit. fromTsExclusive, if set, excludes
// events at or before it; callers wanting an inclusive lower bound pass
// one nanosecond less.
func (s *Store) ReadEvents(ctx context.Context, member idgen.MemberId, fromTsExclusive *int64, limit int) ([]wire.SequencedEvent, error) {
	if limit <= 0 {
		limit = s.cfg.ReadEventsLimitDefault
	}
	if err := s.limiterFor(member).WaitN(ctx, 1); err != nil {
		return nil, err
	}

	var result []wire.SequencedEvent
	err := s.driver.View(func(r storage.Reader) error {
		watermarks := make(map[int]watermark)
		anyOnline := false
		minOnline := int64(math.MaxInt64)
		for _, kv := range r.Scan(prefixWatermark, prefixEnd(prefixWatermark)) {
			wm := decodeWatermark(kv.V)
			watermarks[writerIndexFromWatermarkKey(kv.K)] = wm
			if wm.Online {
				anyOnline = true
				if wm.Ts < minOnline {
					minOnline = wm.Ts
				}
			}
		}
		if !anyOnline {
			minOnline = math.MinInt64
		}

		var candidates []wire.SequencedEvent
		for _, kv := range r.Scan(prefixEvent, prefixEnd(prefixEvent)) {
			ev, err := wire.DecodeSequencedEvent(kv.V)
			if err != nil {
				return err
			}
			ts := ev.Timestamp.UnixNano()
			if fromTsExclusive != nil && ts <= *fromTsExclusive {
				continue
			}
			wm, known := watermarks[writerIndexFromEventKey(kv.K)]
			if !known {
				continue
			}
			visible := ts <= minOnline && (wm.Online || ts <= wm.Ts)
			if !visible {
				continue
			}
			candidates = append(candidates, ev)
		}
		slices.SortFunc(candidates, func(a, b wire.SequencedEvent) int {
			return cmp.Compare(a.Timestamp.UnixNano(), b.Timestamp.UnixNano())
		})
		if len(candidates) > limit {
			candidates = candidates[:limit]
		}
		result = candidates
		return nil
	})
	return result, err
}

func (s *Store) limiterFor(member idgen.MemberId) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[member]
	if !ok {
		burst := int(s.cfg.MaxRatePerParticipant)
		if burst < 1 {
			burst = 1
		}
		l = rate.NewLimiter(rate.Limit(s.cfg.MaxRatePerParticipant), burst)
		s.limiters[member] = l
	}
	return l
}

// SaveCounterCheckpoint is idempotent for equal (ts, latestTopologyClientTs)
// at (member, counter); a differing value is CounterCheckpointInconsistentError.
func (s *Store) SaveCounterCheckpoint(member idgen.MemberId, counter uint64, ts int64, latestTopologyClientTs *int64) error {
	next := checkpoint{Ts: ts}
	if latestTopologyClientTs != nil {
		next.HasTopologyClientTs = true
		next.LatestTopologyClientTs = *latestTopologyClientTs
	}

	return s.driver.Update(func(w storage.Writer) error {
		key := checkpointKey(member, counter)
		if raw, ok := w.Get(key); ok {
			existing := decodeCheckpoint(raw)
			if existing == next {
				return nil
			}
			return &CounterCheckpointInconsistentError{
				Member:                           member,
				Counter:                          counter,
				StoredTs:                         existing.Ts,
				StoredLatestTopologyClientTs:     existing.LatestTopologyClientTs,
				HasStoredLatestTopologyClientTs:  existing.HasTopologyClientTs,
			}
		}
		return w.Set(key, encodeCheckpoint(next))
	})
}

// FetchClosestCheckpointBefore returns the highest (counter' < counter)
// row for member, if any.
func (s *Store) FetchClosestCheckpointBefore(member idgen.MemberId, counter uint64) (foundCounter uint64, ts int64, latestTopologyClientTs *int64, found bool, err error) {
	prefix := checkpointPrefixForMember(member)
	err = s.driver.View(func(r storage.Reader) error {
		rows := r.Scan(prefix, checkpointKey(member, counter))
		if len(rows) == 0 {
			return nil
		}
		last := rows[len(rows)-1]
		n, perr := strconv.ParseUint(strings.TrimPrefix(last.K, prefix), 10, 64)
		if perr != nil {
			return perr
		}
		cp := decodeCheckpoint(last.V)
		foundCounter = n
		ts = cp.Ts
		if cp.HasTopologyClientTs {
			v := cp.LatestTopologyClientTs
			latestTopologyClientTs = &v
		}
		found = true
		return nil
	})
	return
}

// Acknowledge upserts member's acknowledgement timestamp to
// max(existing, ts).
func (s *Store) Acknowledge(member idgen.MemberId, ts int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		key := ackKey(member)
		final := ts
		if raw, ok := w.Get(key); ok {
			if existing := decodeAck(raw); existing > final {
				final = existing
			}
		}
		return w.Set(key, encodeAck(final))
	})
}

// SaveLowerBound advances the pruning lower bound; it rejects a value at
// or below the current one.
func (s *Store) SaveLowerBound(ts int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		if raw, ok := w.Get(keyLowerBound); ok {
			if ts <= decodeAck(raw) {
				return ErrLowerBoundRegressed
			}
		}
		return w.Set(keyLowerBound, encodeAck(ts))
	})
}

// AdjustPruningTimestampForCounterCheckpoints returns, for every enabled
// member not in disabled, max(that member's latest checkpoint ts below
// ts, member.RegisteredAt), and the minimum of those across members. It
// returns nil if there are no enabled members.
func (s *Store) AdjustPruningTimestampForCounterCheckpoints(ts int64, disabled map[idgen.MemberId]bool) (*int64, error) {
	var result *int64
	err := s.driver.View(func(r storage.Reader) error {
		for _, kv := range r.Scan(prefixMemberByName, prefixEnd(prefixMemberByName)) {
			m := decodeMember(kv.V)
			if !m.Enabled || disabled[m.ID] {
				continue
			}
			bound := m.RegisteredAt
			for _, cpRow := range r.Scan(checkpointPrefixForMember(m.ID), prefixEnd(checkpointPrefixForMember(m.ID))) {
				cp := decodeCheckpoint(cpRow.V)
				if cp.Ts < ts && cp.Ts > bound {
					bound = cp.Ts
				}
			}
			if result == nil || bound < *result {
				v := bound
				result = &v
			}
		}
		return nil
	})
	return result, err
}

// PruneEvents deletes every event strictly before beforeTs.
func (s *Store) PruneEvents(beforeTs int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		for _, kv := range w.Scan(prefixEvent, prefixEnd(prefixEvent)) {
			ev, err := wire.DecodeSequencedEvent(kv.V)
			if err != nil {
				return err
			}
			if ev.Timestamp.UnixNano() < beforeTs {
				if err := w.Delete(kv.K); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// PrunePayloads deletes every payload whose id (itself a timestamp) is
// strictly below beforeTs. Payload keys are ordered by id, so this is a
// direct range scan rather than a decode-every-row sweep.
func (s *Store) PrunePayloads(beforeTs int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		for _, kv := range w.Scan(prefixPayload, payloadKey(beforeTs)) {
			if err := w.Delete(kv.K); err != nil {
				return err
			}
		}
		return nil
	})
}

// PruneCheckpoints deletes every counter checkpoint strictly before beforeTs.
func (s *Store) PruneCheckpoints(beforeTs int64) error {
	return s.driver.Update(func(w storage.Writer) error {
		for _, kv := range w.Scan(prefixCheckpoint, prefixEnd(prefixCheckpoint)) {
			cp := decodeCheckpoint(kv.V)
			if cp.Ts < beforeTs {
				if err := w.Delete(kv.K); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// ValidateCommitMode is a best-effort, driver-specific check: it logs a
// warning rather than failing hard when the observed commit mode does
// not match what was requested, treating the mismatch as advisory
// rather than fatal.
func (s *Store) ValidateCommitMode(expected, observed string) error {
	if expected != "" && expected != observed {
		logger.GetLogger().Warnf("sequencer: requested commit mode %q but driver reports %q", expected, observed)
	}
	return nil
}
