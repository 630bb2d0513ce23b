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

// Package config is the single plain-struct-plus-Validate ambient
// configuration surface for the whole subsystem, following the
// teacher's Config/validate idiom one level up: one sub-struct per
// domain engine, each with its own defaults.
package config

import (
	"time"

	"github.com/domainledger/sequencer/storage"
)

// SequencerConfig tunes the sequencer store.
type SequencerConfig struct {
	// ReadEventsLimitDefault bounds readEvents when the caller does
	// not specify a limit.
	ReadEventsLimitDefault int
	// LaggingCutoff is a lag bound that validate defaults; no code reads
	// it. MarkLaggingSequencersOffline takes an explicit cutoff timestamp.
	LaggingCutoff time.Duration
	// MaxRatePerParticipant enforces the static domain parameter at
	// the readEvents boundary.
	MaxRatePerParticipant float64
}

var DefaultSequencerConfig = SequencerConfig{
	ReadEventsLimitDefault: 1000,
	LaggingCutoff:          30 * time.Second,
	MaxRatePerParticipant:  100,
}

func (c *SequencerConfig) validate() {
	if c.ReadEventsLimitDefault <= 0 {
		c.ReadEventsLimitDefault = DefaultSequencerConfig.ReadEventsLimitDefault
	}
	if c.LaggingCutoff <= 0 {
		c.LaggingCutoff = DefaultSequencerConfig.LaggingCutoff
	}
	if c.MaxRatePerParticipant <= 0 {
		c.MaxRatePerParticipant = DefaultSequencerConfig.MaxRatePerParticipant
	}
}

// JournalConfig tunes the request journal.
type JournalConfig struct {
	// GenesisRc is the request counter a fresh journal starts before.
	GenesisRc int64
}

var DefaultJournalConfig = JournalConfig{GenesisRc: -1}

func (c *JournalConfig) validate() {}

// StartingPointConfig tunes the starting-point calculator.
type StartingPointConfig struct {
	// GenesisSc is the sequencer counter a fresh journal starts before,
	// mirroring JournalConfig.GenesisRc on the sequencer-counter axis.
	GenesisSc uint64
}

var DefaultStartingPointConfig = StartingPointConfig{GenesisSc: 0}

func (c *StartingPointConfig) validate() {}

// AcsConfig tunes the active contract store.
type AcsConfig struct {
	// PruningBatchSize bounds how many rows doPrune deletes per call.
	PruningBatchSize int
}

var DefaultAcsConfig = AcsConfig{PruningBatchSize: 1000}

func (c *AcsConfig) validate() {
	if c.PruningBatchSize <= 0 {
		c.PruningBatchSize = DefaultAcsConfig.PruningBatchSize
	}
}

// CommitmentConfig tunes the ACS commitment engine.
type CommitmentConfig struct {
	// IntervalSeconds is the commitment tick interval.
	IntervalSeconds int64
}

var DefaultCommitmentConfig = CommitmentConfig{IntervalSeconds: 5}

func (c *CommitmentConfig) validate() {
	if c.IntervalSeconds <= 0 {
		c.IntervalSeconds = DefaultCommitmentConfig.IntervalSeconds
	}
}

// Config is the top-level configuration for a wired-up node: the
// storage engine plus the four domain engines' tuning knobs.
type Config struct {
	Storage       storage.Config
	Sequencer     SequencerConfig
	Journal       JournalConfig
	StartingPoint StartingPointConfig
	Acs           AcsConfig
	Commitment    CommitmentConfig
}

// Validate fills in defaults for zero-valued sequencer, ACS and
// commitment fields, mirroring the teacher's Config.validate() idiom one
// level up. Storage, Journal and StartingPoint are used as given; a
// zero Journal.GenesisRc stays 0 rather than DefaultJournalConfig's -1.
func (c *Config) Validate() error {
	c.Sequencer.validate()
	c.Journal.validate()
	c.StartingPoint.validate()
	c.Acs.validate()
	c.Commitment.validate()
	return nil
}
