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

package sequencer

import (
	"bytes"
	"encoding/binary"

	"github.com/domainledger/sequencer/pkg/idgen"
	"github.com/domainledger/sequencer/pkg/sstenc"
)

// member is the durable row behind registerMember: a dense id, stable
// name, registration timestamp and soft-disable flag.
type member struct {
	ID           idgen.MemberId
	RegisteredAt int64
	Enabled      bool
}

func encodeMember(m member) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	w.Write(binary.LittleEndian, uint64(m.ID))
	w.Write(binary.LittleEndian, m.RegisteredAt)
	w.Write(binary.LittleEndian, m.Enabled)
	return buf.Bytes()
}

func decodeMember(data []byte) member {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var m member
	var id uint64
	r.Read(binary.LittleEndian, &id)
	m.ID = idgen.MemberId(id)
	r.Read(binary.LittleEndian, &m.RegisteredAt)
	r.Read(binary.LittleEndian, &m.Enabled)
	return m
}

// payload is the durable row behind savePayloads: the content plus the
// writer instance discriminator it was first written under.
type payload struct {
	Bytes         []byte
	Discriminator idgen.Discriminator
}

func encodePayload(p payload) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	discBytes, _ := p.Discriminator.MarshalBinary()
	w.Write(binary.LittleEndian, uint32(len(discBytes)))
	w.Write(binary.LittleEndian, discBytes)
	w.Write(binary.LittleEndian, uint32(len(p.Bytes)))
	w.Write(binary.LittleEndian, p.Bytes)
	return buf.Bytes()
}

func decodePayload(data []byte) payload {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var p payload
	var n uint32
	r.Read(binary.LittleEndian, &n)
	discBytes := make([]byte, n)
	r.Read(binary.LittleEndian, &discBytes)
	_ = p.Discriminator.UnmarshalBinary(discBytes)
	r.Read(binary.LittleEndian, &n)
	p.Bytes = make([]byte, n)
	r.Read(binary.LittleEndian, &p.Bytes)
	return p
}

// watermark is the durable row behind saveWatermark/goOnline/goOffline.
type watermark struct {
	Ts     int64
	Online bool
}

func encodeWatermark(w watermark) []byte {
	buf := new(bytes.Buffer)
	ew := sstenc.NewErrorWriter(buf)
	ew.Write(binary.LittleEndian, w.Ts)
	ew.Write(binary.LittleEndian, w.Online)
	return buf.Bytes()
}

func decodeWatermark(data []byte) watermark {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var w watermark
	r.Read(binary.LittleEndian, &w.Ts)
	r.Read(binary.LittleEndian, &w.Online)
	return w
}

// checkpoint is the durable row behind saveCounterCheckpoint.
type checkpoint struct {
	Ts                    int64
	HasTopologyClientTs   bool
	LatestTopologyClientTs int64
}

func encodeCheckpoint(c checkpoint) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	w.Write(binary.LittleEndian, c.Ts)
	w.Write(binary.LittleEndian, c.HasTopologyClientTs)
	if c.HasTopologyClientTs {
		w.Write(binary.LittleEndian, c.LatestTopologyClientTs)
	}
	return buf.Bytes()
}

func decodeCheckpoint(data []byte) checkpoint {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var c checkpoint
	r.Read(binary.LittleEndian, &c.Ts)
	r.Read(binary.LittleEndian, &c.HasTopologyClientTs)
	if c.HasTopologyClientTs {
		r.Read(binary.LittleEndian, &c.LatestTopologyClientTs)
	}
	return c
}

func encodeAck(ts int64) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	w.Write(binary.LittleEndian, ts)
	return buf.Bytes()
}

func decodeAck(data []byte) int64 {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var ts int64
	r.Read(binary.LittleEndian, &ts)
	return ts
}
