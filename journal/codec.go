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

package journal

import (
	"bytes"
	"encoding/binary"

	"github.com/domainledger/sequencer/pkg/sstenc"
)

// State is a request's place in the Pending -> Confirmed -> Clean
// state machine. The zero value is Pending.
type State uint8

const (
	Pending State = iota
	Confirmed
	Clean
)

func (s State) String() string {
	switch s {
	case Pending:
		return "Pending"
	case Confirmed:
		return "Confirmed"
	case Clean:
		return "Clean"
	default:
		return "Unknown"
	}
}

// requestData is the durable row for one request counter.
type requestData struct {
	Rc               int64
	State            State
	RequestTs        int64
	HasCommitTs      bool
	CommitTs         int64
	HasRepairContext bool
	RepairContext    string
}

func encodeRequestData(d requestData) []byte {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)
	w.Write(binary.LittleEndian, d.Rc)
	w.Write(binary.LittleEndian, uint8(d.State))
	w.Write(binary.LittleEndian, d.RequestTs)
	w.Write(binary.LittleEndian, d.HasCommitTs)
	if d.HasCommitTs {
		w.Write(binary.LittleEndian, d.CommitTs)
	}
	w.Write(binary.LittleEndian, d.HasRepairContext)
	if d.HasRepairContext {
		w.Write(binary.LittleEndian, uint32(len(d.RepairContext)))
		w.Write(binary.LittleEndian, []byte(d.RepairContext))
	}
	return buf.Bytes()
}

func decodeRequestData(data []byte) requestData {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var d requestData
	r.Read(binary.LittleEndian, &d.Rc)
	var state uint8
	r.Read(binary.LittleEndian, &state)
	d.State = State(state)
	r.Read(binary.LittleEndian, &d.RequestTs)
	r.Read(binary.LittleEndian, &d.HasCommitTs)
	if d.HasCommitTs {
		r.Read(binary.LittleEndian, &d.CommitTs)
	}
	r.Read(binary.LittleEndian, &d.HasRepairContext)
	if d.HasRepairContext {
		var n uint32
		r.Read(binary.LittleEndian, &n)
		b := make([]byte, n)
		r.Read(binary.LittleEndian, &b)
		d.RepairContext = string(b)
	}
	return d
}
