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

import (
	"time"

	"github.com/domainledger/sequencer/pkg/logger"
	"github.com/domainledger/sequencer/pkg/sstenc"
)

type ErrorWriter = sstenc.ErrorWriter
type ErrorReader = sstenc.ErrorReader

var (
	NewErrorWriter = sstenc.NewErrorWriter
	NewErrorReader = sstenc.NewErrorReader
	LCP            = sstenc.LCP
	Pow            = sstenc.Pow
	Compress       = sstenc.Compress
	Decompress     = sstenc.Decompress
	Magic          = sstenc.Magic
)

func Elapsed(now time.Time, log logger.Logger, msg string) {
	log.Infof("%s elapsed: %s", msg, time.Since(now))
}
