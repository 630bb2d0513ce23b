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

package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func classifyTransient(err error) bool {
	return errors.Is(err, errTransient)
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Constant(time.Millisecond, 5), classifyTransient, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTransient
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestDoStopsOnFatalError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Constant(time.Millisecond, 5), classifyTransient, func(context.Context) error {
		attempts++
		return errFatal
	})
	assert.ErrorIs(t, err, errFatal)
	assert.Equal(t, 1, attempts)
}

func TestDoExhaustsAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), Constant(time.Millisecond, 3), classifyTransient, func(context.Context) error {
		attempts++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 3, attempts)
}

func TestDoCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, Constant(time.Millisecond, 5), classifyTransient, func(context.Context) error {
		return errTransient
	})
	assert.ErrorIs(t, err, ErrAbortedDueToShutdown)
}

func TestOneShotAllowsExactlyOneRetry(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), OneShot(), classifyTransient, func(context.Context) error {
		attempts++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 2, attempts)
}

func TestRetryUntilTrue(t *testing.T) {
	calls := 0
	err := RetryUntilTrue(context.Background(), time.Now().Add(time.Second), func() bool {
		calls++
		return calls >= 2
	})
	assert.NoError(t, err)
}

func TestRetryUntilTrueDeadline(t *testing.T) {
	err := RetryUntilTrue(context.Background(), time.Now().Add(-time.Second), func() bool {
		return false
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
