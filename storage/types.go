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

import "github.com/domainledger/sequencer/pkg/kvtypes"

// Key is a user-visible key, without the MVCC timestamp suffix.
type Key = kvtypes.Key

// Entry is the unit the LSM engine stores: a (possibly versioned) key,
// its value and whether it represents a tombstone.
type Entry = kvtypes.Entry

type KV = kvtypes.KV

func KVs(entries []Entry) []KV { return kvtypes.KVs(entries) }

// KeyWithTs renders the versioned on-disk key for ts.
func KeyWithTs(key string, ts uint64) string { return kvtypes.KeyWithTs(key, ts) }

// ParseKey strips the MVCC timestamp suffix off a versioned key.
func ParseKey(key string) string { return kvtypes.ParseKey(key) }

// ParseTs extracts the MVCC timestamp suffix from a versioned key.
func ParseTs(key string) uint64 { return kvtypes.ParseTs(key) }

func IsSameKey(key1, key2 string) bool { return kvtypes.IsSameKey(key1, key2) }

// CompareKeys orders versioned keys by logical key ascending, then by
// timestamp descending, so the newest version of a key is seen first by
// a forward scan.
func CompareKeys(key1, key2 string) int { return kvtypes.CompareKeys(key1, key2) }
