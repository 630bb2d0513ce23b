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

package acs

import (
	"bytes"
	"encoding/binary"

	"github.com/domainledger/sequencer/pkg/sstenc"
)

// Status is a contract's current lifecycle state.
type Status uint8

const (
	None Status = iota
	Active
	Archived
	TransferredAway
)

// Kind identifies the change that produced a contractRecord's current
// status, used to compute the store's total order and to classify
// warnings.
type Kind uint8

const (
	KindCreation Kind = iota
	KindArchival
	KindTransferIn
	KindTransferOut
)

func (k Kind) isDeactivation() bool {
	return k == KindArchival || k == KindTransferOut
}

// contractRecord is the durable per-cid latest-state row.
type contractRecord struct {
	Cid    string
	Status Status
	Toc    int64
	Rc     int64
	Kind   Kind

	HasOrigin bool
	Origin    string
	HasTarget bool
	Target    string

	HasCreationToc bool
	CreationToc    int64
	HasArchivalToc bool
	ArchivalToc    int64
}

func encodeContractRecord(r contractRecord) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	writeString(w, r.Cid)
	w.Write(binary.LittleEndian, uint8(r.Status))
	w.Write(binary.LittleEndian, r.Toc)
	w.Write(binary.LittleEndian, r.Rc)
	w.Write(binary.LittleEndian, uint8(r.Kind))
	w.Write(binary.LittleEndian, r.HasOrigin)
	if r.HasOrigin {
		writeString(w, r.Origin)
	}
	w.Write(binary.LittleEndian, r.HasTarget)
	if r.HasTarget {
		writeString(w, r.Target)
	}
	w.Write(binary.LittleEndian, r.HasCreationToc)
	if r.HasCreationToc {
		w.Write(binary.LittleEndian, r.CreationToc)
	}
	w.Write(binary.LittleEndian, r.HasArchivalToc)
	if r.HasArchivalToc {
		w.Write(binary.LittleEndian, r.ArchivalToc)
	}
	return buf.Bytes()
}

func decodeContractRecord(data []byte) contractRecord {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var rec contractRecord
	rec.Cid = readString(r)
	var status uint8
	r.Read(binary.LittleEndian, &status)
	rec.Status = Status(status)
	r.Read(binary.LittleEndian, &rec.Toc)
	r.Read(binary.LittleEndian, &rec.Rc)
	var kind uint8
	r.Read(binary.LittleEndian, &kind)
	rec.Kind = Kind(kind)
	r.Read(binary.LittleEndian, &rec.HasOrigin)
	if rec.HasOrigin {
		rec.Origin = readString(r)
	}
	r.Read(binary.LittleEndian, &rec.HasTarget)
	if rec.HasTarget {
		rec.Target = readString(r)
	}
	r.Read(binary.LittleEndian, &rec.HasCreationToc)
	if rec.HasCreationToc {
		r.Read(binary.LittleEndian, &rec.CreationToc)
	}
	r.Read(binary.LittleEndian, &rec.HasArchivalToc)
	if rec.HasArchivalToc {
		r.Read(binary.LittleEndian, &rec.ArchivalToc)
	}
	return rec
}

// changeRecord is the durable change-log row, one per applied change,
// used by changesBetween to reconstruct activation/deactivation sets
// without re-reading the latest-state table.
type changeRecord struct {
	Cid    string
	Toc    int64
	Rc     int64
	Kind   Kind
	Origin string
	Target string
}

func encodeChangeRecord(c changeRecord) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	writeString(w, c.Cid)
	w.Write(binary.LittleEndian, uint8(c.Kind))
	writeString(w, c.Origin)
	writeString(w, c.Target)
	return buf.Bytes()
}

func decodeChangeRecord(toc, rc int64, data []byte) changeRecord {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var c changeRecord
	c.Toc = toc
	c.Rc = rc
	c.Cid = readString(r)
	var kind uint8
	r.Read(binary.LittleEndian, &kind)
	c.Kind = Kind(kind)
	c.Origin = readString(r)
	c.Target = readString(r)
	return c
}

func writeString(w *sstenc.ErrorWriter, s string) {
	w.Write(binary.LittleEndian, uint32(len(s)))
	w.Write(binary.LittleEndian, []byte(s))
}

func readString(r *sstenc.ErrorReader) string {
	var n uint32
	r.Read(binary.LittleEndian, &n)
	b := make([]byte, n)
	r.Read(binary.LittleEndian, &b)
	return string(b)
}
