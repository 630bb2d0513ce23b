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

// Package wal is the write-ahead log a memtable replays on recovery. Each
// log file holds the entries written to one memtable generation; once that
// generation is flushed to an sstable the log file is deleted.
package wal

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/sstenc"
)

const _ext = ".log"

type WAL struct {
	path    string
	fd      *os.File
	version uint64
}

// Create opens a new log file in dir, named after a monotonically
// increasing version so Version/CompareVersion can order recovered files.
func Create(dir string) (*WAL, error) {
	version := uint64(time.Now().UnixNano())
	p := filepath.Join(dir, fileName(version))

	fd, err := os.OpenFile(p, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}

	return &WAL{path: p, fd: fd, version: version}, nil
}

// Open reopens an existing log file found on disk, recovering its version
// from the file name.
func Open(path string) (*WAL, error) {
	fd, err := os.OpenFile(path, os.O_RDWR, 0600)
	if err != nil {
		return nil, err
	}
	return &WAL{path: path, fd: fd, version: ParseVersion(filepath.Base(path))}, nil
}

func (w *WAL) Version() uint64 {
	return w.version
}

// Write appends entries to the log, length-prefixed, and fsyncs before
// returning so a crash after Write never loses an acknowledged write.
func (w *WAL) Write(entries ...kvtypes.Entry) error {
	buf := new(bytes.Buffer)
	ew := sstenc.NewErrorWriter(buf)

	for _, entry := range entries {
		ew.Write(binary.LittleEndian, uint16(len(entry.Key)))
		ew.Write(binary.LittleEndian, []byte(entry.Key))
		ew.Write(binary.LittleEndian, uint32(len(entry.Value)))
		ew.Write(binary.LittleEndian, entry.Value)

		tombstone := uint8(0)
		if entry.Tombstone {
			tombstone = 1
		}
		ew.Write(binary.LittleEndian, tombstone)
		ew.Write(binary.LittleEndian, entry.Version)
	}
	if ew.Error() != nil {
		return ew.Error()
	}

	if _, err := w.fd.Write(buf.Bytes()); err != nil {
		return err
	}
	return w.fd.Sync()
}

// Read replays every entry written so far, in write order.
func (w *WAL) Read() ([]kvtypes.Entry, error) {
	if _, err := w.fd.Seek(0, 0); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return nil, err
	}

	reader := bytes.NewReader(data)
	er := sstenc.NewErrorReader(reader)

	var entries []kvtypes.Entry
	for reader.Len() > 0 {
		var keyLen uint16
		er.Read(binary.LittleEndian, &keyLen)
		key := make([]byte, keyLen)
		er.Read(binary.LittleEndian, &key)

		var valueLen uint32
		er.Read(binary.LittleEndian, &valueLen)
		value := make([]byte, valueLen)
		er.Read(binary.LittleEndian, &value)

		var tombstone uint8
		er.Read(binary.LittleEndian, &tombstone)

		var version uint64
		er.Read(binary.LittleEndian, &version)

		if er.Error() != nil {
			return nil, er.Error()
		}

		entries = append(entries, kvtypes.Entry{
			Key:       string(key),
			Value:     value,
			Tombstone: tombstone == 1,
			Version:   version,
		})
	}
	return entries, nil
}

func (w *WAL) Close() error {
	return w.fd.Close()
}

func (w *WAL) Delete() error {
	if err := w.fd.Close(); err != nil && !isClosedErr(err) {
		return err
	}
	return os.Remove(w.path)
}

// Reset closes and deletes the current log, returning a fresh one in the
// same directory for the next memtable generation.
func (w *WAL) Reset() (*WAL, error) {
	dir := filepath.Dir(w.path)
	if err := w.Delete(); err != nil {
		return nil, err
	}
	return Create(dir)
}

func fileName(version uint64) string {
	return fmt.Sprintf("%020d%s", version, _ext)
}

// ParseVersion extracts the ordering version out of a log file name.
func ParseVersion(name string) uint64 {
	base := strings.TrimSuffix(filepath.Base(name), _ext)
	version, err := strconv.ParseUint(base, 10, 64)
	if err != nil {
		return 0
	}
	return version
}

func CompareVersion(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func isClosedErr(err error) bool {
	return err != nil && strings.Contains(err.Error(), "file already closed")
}
