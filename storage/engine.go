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
	"context"
	"errors"
	"time"

	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/retry"
)

const (
	defaultRetryBase       = 10 * time.Millisecond
	defaultRetryCap        = 2 * time.Second
	defaultRetryMaxAttempts = 5
)

// Reader is the read surface a transaction exposes, abstract enough
// that a domain engine's read-only queries don't care whether they run
// inside a View or an Update.
type Reader interface {
	Get(key string) ([]byte, bool)
	Scan(start, end string) []kvtypes.KV
}

// Writer is the write surface a read-write transaction exposes.
type Writer interface {
	Reader
	Set(key string, value []byte) error
	Delete(key string) error
}

// Driver is the persistence abstraction the four domain engines depend
// on instead of a concrete storage backend: transactional read,
// transactional read-write, and a bulk-insert primitive with the "update count >= 1 means success, partial failure
// raises a batch error" contract. The adapted teacher LSM engine (DB)
// is the reference implementation; a different Driver could sit behind
// the same interface without the domain packages changing.
type Driver interface {
	View(fn func(Reader) error) error
	Update(fn func(Writer) error) error
	// BulkInsert writes every kv in one logical batch. A returned
	// BatchError reports which indices failed; indices it does not
	// mention succeeded.
	BulkInsert(kvs []kvtypes.KV) error
	Close()
}

// BatchError reports the indices of a BulkInsert call that failed,
// alongside the underlying error for each. Indices absent from Failed
// succeeded.
type BatchError struct {
	Failed map[int]error
}

func (e *BatchError) Error() string {
	return "bulk insert: partial failure"
}

var _ Driver = (*Engine)(nil)

// Engine adapts DB to the Driver interface. Txn already satisfies both
// Reader and Writer (Txn.Set/Delete return error, matching Writer).
type Engine struct {
	db *DB
}

// NewEngine wraps an opened DB as a Driver.
func NewEngine(db *DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) View(fn func(Reader) error) error {
	return e.db.View(func(txn *Txn) error {
		return fn(txn)
	})
}

func (e *Engine) Update(fn func(Writer) error) error {
	return e.db.Update(func(txn *Txn) error {
		return fn(txn)
	})
}

// BulkInsert writes each kv as its own Set within a single transaction.
// A Set that fails (only possible today for an empty key) is recorded
// against its index; the rest still commit, matching the "update
// counts >= 1 indicate success, partial failure raises a batch error"
// contract — the batch as a whole still commits the successful subset.
func (e *Engine) BulkInsert(kvs []kvtypes.KV) error {
	failed := make(map[int]error)

	err := e.db.Update(func(txn *Txn) error {
		for i, kv := range kvs {
			if err := txn.Set(kv.K, kv.V); err != nil {
				failed[i] = err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (e *Engine) Close() {
	e.db.Close()
}

// RetryableDriverError marks errors a Driver implementation considers
// transient (connection hiccups, lock timeouts); retry.Do's classify
// callback checks for this to decide whether to retry a persistence
// call, per the backoff-retry contract of §4.1.
type RetryableDriverError struct {
	Err error
}

func (e *RetryableDriverError) Error() string { return e.Err.Error() }
func (e *RetryableDriverError) Unwrap() error { return e.Err }

// ClassifyDriverError is the retry.Classify that WithRetry passes to
// retry.Do.
func ClassifyDriverError(err error) bool {
	var retryable *RetryableDriverError
	return errors.As(err, &retryable)
}

// WithRetry runs fn under jittered-exponential backoff, retrying the
// errors ClassifyDriverError accepts. No code in this module calls it.
func WithRetry(ctx context.Context, fn func(context.Context) error) error {
	strategy := retry.JitteredExponential(defaultRetryBase, defaultRetryCap, defaultRetryMaxAttempts)
	return retry.Do(ctx, strategy, ClassifyDriverError, fn)
}
