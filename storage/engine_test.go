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

package storage

import (
	"testing"

	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) *Engine {
	dir := t.TempDir()
	db, err := Open(dir, Config{
		SkipListMaxLevel:       4,
		SkipListP:              0.5,
		L0TargetNum:            4,
		LevelRatio:             10,
		DataBlockByteThreshold: 4096,
		MemtableByteThreshold:  1024,
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return NewEngine(db)
}

func TestEngineViewAndUpdate(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.Update(func(w Writer) error {
		return w.Set("k1", []byte("v1"))
	})
	require.NoError(t, err)

	err = eng.View(func(r Reader) error {
		v, ok := r.Get("k1")
		assert.True(t, ok)
		assert.Equal(t, []byte("v1"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineViewScan(t *testing.T) {
	eng := newTestEngine(t)

	require.NoError(t, eng.Update(func(w Writer) error {
		_ = w.Set("a", []byte("1"))
		_ = w.Set("b", []byte("2"))
		_ = w.Set("c", []byte("3"))
		return nil
	}))

	err := eng.View(func(r Reader) error {
		kvs := r.Scan("a", "c")
		assert.Equal(t, []kvtypes.KV{{K: "a", V: []byte("1")}, {K: "b", V: []byte("2")}}, kvs)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineBulkInsert(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.BulkInsert([]kvtypes.KV{
		{K: "a", V: []byte("1")},
		{K: "b", V: []byte("2")},
	})
	require.NoError(t, err)

	err = eng.View(func(r Reader) error {
		v, ok := r.Get("a")
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestEngineBulkInsertPartialFailure(t *testing.T) {
	eng := newTestEngine(t)

	err := eng.BulkInsert([]kvtypes.KV{
		{K: "a", V: []byte("1")},
		{K: "", V: []byte("bad")},
		{K: "c", V: []byte("3")},
	})
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Contains(t, batchErr.Failed, 1)
	assert.NotContains(t, batchErr.Failed, 0)
	assert.NotContains(t, batchErr.Failed, 2)

	err = eng.View(func(r Reader) error {
		_, ok := r.Get("a")
		assert.True(t, ok)
		_, ok = r.Get("c")
		assert.True(t, ok)
		return nil
	})
	require.NoError(t, err)
}
