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

package table

import (
	"bytes"
	"encoding/binary"

	"github.com/domainledger/sequencer/pkg/bufferpool"
	"github.com/domainledger/sequencer/pkg/kvtypes"
	"github.com/domainledger/sequencer/pkg/sstenc"
)

// Data Block
type Data struct {
	Entries []kvtypes.Entry
}

func (d *Data) Search(key kvtypes.Key) (kvtypes.Entry, bool) {
	low, high := 0, len(d.Entries)-1
	for low <= high {
		mid := low + ((high - low) >> 1)
		if d.Entries[mid].Key < key {
			low = mid + 1
		} else if d.Entries[mid].Key > key {
			high = mid - 1
		} else {
			return d.Entries[mid], true
		}
	}
	return kvtypes.Entry{}, false
}

// LowerBound returns the newest version of the logical key encoded in key
// (a "logicalKey@ts" probe) whose version is <= the probed ts. Entries for
// the same logical key are stored ts-ascending, so this is the rightmost
// matching entry.
func (d *Data) LowerBound(key kvtypes.Key) (kvtypes.Entry, bool) {
	targetKey := kvtypes.ParseKey(key)
	targetTs := kvtypes.ParseTs(key)

	low, high := 0, len(d.Entries)-1
	first := -1
	for low <= high {
		mid := low + ((high - low) >> 1)
		ek := kvtypes.ParseKey(d.Entries[mid].Key)
		switch {
		case ek < targetKey:
			low = mid + 1
		case ek > targetKey:
			high = mid - 1
		default:
			first = mid
			high = mid - 1
		}
	}
	if first == -1 {
		return kvtypes.Entry{}, false
	}

	var best kvtypes.Entry
	var found bool
	for i := first; i < len(d.Entries) && kvtypes.ParseKey(d.Entries[i].Key) == targetKey; i++ {
		ts := kvtypes.ParseTs(d.Entries[i].Key)
		if ts <= targetTs {
			best = d.Entries[i]
			found = true
		}
	}
	return best, found
}

func (d *Data) Scan(start, end kvtypes.Key) []kvtypes.Entry {
	var res []kvtypes.Entry
	var found bool
	low, high := 0, len(d.Entries)-1

	// find the first key >= start
	var mid int
	for low <= high {
		mid = low + ((high - low) >> 1)
		if d.Entries[mid].Key >= start {
			if mid == 0 || d.Entries[mid-1].Key < start {
				// used as return
				found = true
				break
			}
			high = mid - 1
		} else {
			low = mid + 1
		}
	}

	for i := mid; i < len(d.Entries) && d.Entries[i].Key < end && found; i++ {
		res = append(res, d.Entries[i])
	}

	return res
}

func (d *Data) Encode() ([]byte, error) {
	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	var prevKey string
	for _, entry := range d.Entries {
		lcp := sstenc.LCP(entry.Key, prevKey)
		suffix := entry.Key[lcp:]

		// lcp
		if err := binary.Write(buf, binary.LittleEndian, uint16(lcp)); err != nil {
			return nil, err
		}

		// suffix length
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(suffix))); err != nil {
			return nil, err
		}
		// suffix
		if err := binary.Write(buf, binary.LittleEndian, []byte(suffix)); err != nil {
			return nil, err
		}

		// value length
		if err := binary.Write(buf, binary.LittleEndian, uint16(len(entry.Value))); err != nil {
			return nil, err
		}
		// value
		if err := binary.Write(buf, binary.LittleEndian, entry.Value); err != nil {
			return nil, err
		}

		// tombstone
		tombstone := uint8(0)
		if entry.Tombstone {
			tombstone = 1
		}
		if err := binary.Write(buf, binary.LittleEndian, tombstone); err != nil {
			return nil, err
		}

		// version
		if err := binary.Write(buf, binary.LittleEndian, entry.Version); err != nil {
			return nil, err
		}

		prevKey = entry.Key
	}

	compressed := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(compressed)

	if err := sstenc.Compress(buf, compressed); err != nil {
		return nil, err
	}
	return compressed.Bytes(), nil
}

func (d *Data) Decode(data []byte) error {
	buf := bufferpool.Pool.Get()
	defer bufferpool.Pool.Put(buf)

	if err := sstenc.Decompress(bytes.NewReader(data), buf); err != nil {
		return err
	}

	reader := bytes.NewReader(buf.Bytes())
	var prevKey string
	for reader.Len() > 0 {
		// lcp
		var lcp uint16
		if err := binary.Read(reader, binary.LittleEndian, &lcp); err != nil {
			return err
		}

		// suffix length
		var suffixLen uint16
		if err := binary.Read(reader, binary.LittleEndian, &suffixLen); err != nil {
			return err
		}
		// suffix
		suffix := make([]byte, suffixLen)
		if err := binary.Read(reader, binary.LittleEndian, &suffix); err != nil {
			return err
		}

		// value length
		var valueLen uint16
		if err := binary.Read(reader, binary.LittleEndian, &valueLen); err != nil {
			return err
		}
		// value
		value := make([]byte, valueLen)
		if err := binary.Read(reader, binary.LittleEndian, &value); err != nil {
			return err
		}

		var tombstone uint8
		if err := binary.Read(reader, binary.LittleEndian, &tombstone); err != nil {
			return err
		}

		var version uint64
		if err := binary.Read(reader, binary.LittleEndian, &version); err != nil {
			return err
		}

		key := prevKey[:lcp] + string(suffix)
		d.Entries = append(d.Entries, kvtypes.Entry{
			Key:       key,
			Value:     value,
			Tombstone: tombstone == 1,
			Version:   version,
		})

		prevKey = key
	}
	return nil
}
