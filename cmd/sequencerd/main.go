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

// Command sequencerd wires storage plus the four domain engines into a
// single process and keeps it alive until interrupted. It exposes no
// network surface of its own; a transport would sit in front of these
// engines and is out of scope here.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/domainledger/sequencer/acs"
	"github.com/domainledger/sequencer/commitment"
	"github.com/domainledger/sequencer/config"
	"github.com/domainledger/sequencer/journal"
	"github.com/domainledger/sequencer/multilog"
	"github.com/domainledger/sequencer/pkg/crypto"
	"github.com/domainledger/sequencer/pkg/logger"
	"github.com/domainledger/sequencer/sequencer"
	"github.com/domainledger/sequencer/startingpoint"
	"github.com/domainledger/sequencer/storage"
)

func main() {
	dir := flag.String("data-dir", "./data", "directory the storage engine keeps its tables and WALs under")
	scCacheSize := flag.Int("sc-cache-size", 4096, "entry capacity of the sequencer-counter prehead timeline cache")
	flag.Parse()

	log := logger.GetLogger()

	cfg := config.Config{Storage: storage.DefaultConfig}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	node, err := start(*dir, *scCacheSize, cfg)
	if err != nil {
		log.Fatalf("failed to start node: %v", err)
	}
	defer node.Close()

	sp, err := node.startingPoint(cfg)
	if err != nil {
		log.Fatalf("failed to recover starting point: %v", err)
	}
	log.Infof("sequencerd ready, data dir %s, clean replay rc=%d sc=%d", *dir, sp.CleanReplay.Rc, sp.CleanReplay.Sc)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Infof("sequencerd shutting down")
}

// node holds every wired-up engine a deployment needs; main only opens
// and closes it, all request handling lives behind the individual
// engines' own APIs.
type node struct {
	engine     *storage.Engine
	sequencer  *sequencer.Store
	journal    *journal.Store
	scTimeline *startingpoint.ScTimeline
	acs        *acs.Store
	commitment *commitment.Engine
	publisher  *multilog.Publisher
	signer     *crypto.Ed25519Provider
}

func start(dir string, scCacheSize int, cfg config.Config) (*node, error) {
	db, err := storage.Open(dir, cfg.Storage)
	if err != nil {
		return nil, err
	}
	driver := storage.NewEngine(db)

	seqStore, err := sequencer.NewStore(driver, cfg.Sequencer)
	if err != nil {
		driver.Close()
		return nil, err
	}

	journalStore, err := journal.NewStore(driver, cfg.Journal)
	if err != nil {
		driver.Close()
		return nil, err
	}

	acsStore, err := acs.NewStore(driver, cfg.Acs)
	if err != nil {
		driver.Close()
		return nil, err
	}

	signer, err := crypto.NewEd25519Provider()
	if err != nil {
		driver.Close()
		return nil, err
	}

	return &node{
		engine:     driver,
		sequencer:  seqStore,
		journal:    journalStore,
		scTimeline: startingpoint.NewScTimeline(scCacheSize),
		acs:        acsStore,
		commitment: commitment.NewEngine(driver, cfg.Commitment),
		publisher:  multilog.NewPublisher(),
		signer:     signer,
	}, nil
}

// startingPoint derives the current sequencer starting point from the
// request journal and the sc-prehead timeline, the recovery path a
// restarting writer runs before it resumes issuing sequencer counters.
func (n *node) startingPoint(cfg config.Config) (startingpoint.Result, error) {
	return startingpoint.Calculate(n.journal, n.scTimeline, cfg.StartingPoint, cfg.Journal)
}

func (n *node) Close() {
	n.journal.Close()
	n.engine.Close()
}
