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

// Package wire holds the external, length-delimited message types the
// core exposes or consumes: sequenced events streamed to subscribers,
// ACS commitments exchanged between participants, and the handshake
// used to negotiate a protocol version. Encoding follows the same
// length-prefixed encoding/binary style the storage engine's sstable
// blocks use, except for SignedContent which rides a hand-written
// Apache Thrift TBinaryProtocol codec.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"

	"github.com/domainledger/sequencer/pkg/sstenc"
)

// BatchAlgorithm is the compression algorithm a CompressedBatch was
// encoded with.
type BatchAlgorithm uint8

const (
	AlgorithmNone BatchAlgorithm = iota
	AlgorithmGzip
)

// CompressedBatch carries a batch of envelopes compressed under one of
// the negotiated algorithms.
type CompressedBatch struct {
	Algorithm BatchAlgorithm
	Bytes     []byte
}

// EventKind distinguishes a delivered batch from a delivery error.
type EventKind uint8

const (
	KindDeliver EventKind = iota
	KindError
)

// SequencedEvent is one row of the event wire format described by the
// external interface: a delivery or an error, addressed by counter and
// timestamp, optionally carrying a compressed batch.
type SequencedEvent struct {
	Counter      int64
	Timestamp    time.Time
	DomainID     string
	MessageID    string // empty means unset
	HasMessageID bool
	Kind         EventKind
	Batch        *CompressedBatch // present for KindDeliver
	ErrorMessage string           // present for KindError
}

// RecipientsTree is a node in the recipient addressing tree: a set of
// recipient group members plus nested sub-trees for per-group fan-out.
type RecipientsTree struct {
	Recipients []string
	Children   []RecipientsTree
}

// Envelope wraps opaque content together with the recipient trees it
// must be delivered to.
type Envelope struct {
	Content    []byte
	Recipients []RecipientsTree
}

// AcsCommitment is the commitment wire message exchanged between a
// sending participant and one counterparty for a single period.
type AcsCommitment struct {
	DomainID            string
	SendingParticipant  string
	CounterParticipant  string
	FromExclusive       time.Time
	ToInclusive         time.Time
	Commitment          []byte
}

// HandshakeRequest is sent by a client connecting to a domain.
type HandshakeRequest struct {
	ClientProtocolVersions []string
	MinimumProtocolVersion string // empty means unset
}

// HandshakeResponse is either a Success or a Failure; exactly one of
// ServerVersion/Reason is populated, selected by Success.
type HandshakeResponse struct {
	Success       bool
	ServerVersion string
	Reason        string
}

// ErrNoCompatibleVersion is returned by Negotiate when no version in
// clientVersions is acceptable to the server.
var ErrNoCompatibleVersion = errors.New("no compatible protocol version")

// Negotiate picks the protocol version both sides agree on: the
// highest-priority client version (first match wins, clientVersions is
// assumed ordered most-preferred first) that both appears in
// serverVersions and is not below minVersion, if minVersion is set.
// Version negotiation failure is fatal and non-retryable, per the
// handshake contract.
func Negotiate(clientVersions []string, minVersion string, serverVersions []string) (string, error) {
	serverSet := make(map[string]struct{}, len(serverVersions))
	for _, v := range serverVersions {
		serverSet[v] = struct{}{}
	}

	for _, v := range clientVersions {
		if minVersion != "" && v < minVersion {
			continue
		}
		if _, ok := serverSet[v]; ok {
			return v, nil
		}
	}
	return "", ErrNoCompatibleVersion
}

// StaticDomainParameters are fixed for the lifetime of a domain.
type StaticDomainParameters struct {
	ReconciliationIntervalSeconds int64
	MaxRatePerParticipant         float64
	MaxInboundMessageSize         int64
	UniqueContractKeys            bool
	RequiredCryptoSchemes         []string
	ProtocolVersion               string
}

// --- length-prefixed encoding, mirroring storage/table's data block codec ---

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

func writeBytes(w *sstenc.ErrorWriter, b []byte) {
	w.Write(binary.LittleEndian, uint32(len(b)))
	w.Write(binary.LittleEndian, b)
}

func readBytes(r *sstenc.ErrorReader) []byte {
	var n uint32
	r.Read(binary.LittleEndian, &n)
	b := make([]byte, n)
	r.Read(binary.LittleEndian, &b)
	return b
}

func writeTime(w *sstenc.ErrorWriter, t time.Time) {
	w.Write(binary.LittleEndian, t.UnixNano())
}

func readTime(r *sstenc.ErrorReader) time.Time {
	var nanos int64
	r.Read(binary.LittleEndian, &nanos)
	return time.Unix(0, nanos).UTC()
}

// EncodeSequencedEvent renders e as a length-prefixed record.
func EncodeSequencedEvent(e SequencedEvent) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)

	w.Write(binary.LittleEndian, e.Counter)
	writeTime(w, e.Timestamp)
	writeString(w, e.DomainID)
	w.Write(binary.LittleEndian, e.HasMessageID)
	if e.HasMessageID {
		writeString(w, e.MessageID)
	}
	w.Write(binary.LittleEndian, uint8(e.Kind))

	switch e.Kind {
	case KindDeliver:
		hasBatch := e.Batch != nil
		w.Write(binary.LittleEndian, hasBatch)
		if hasBatch {
			w.Write(binary.LittleEndian, uint8(e.Batch.Algorithm))
			writeBytes(w, e.Batch.Bytes)
		}
	case KindError:
		writeString(w, e.ErrorMessage)
	}

	if w.Error() != nil {
		return nil, w.Error()
	}
	return buf.Bytes(), nil
}

// DecodeSequencedEvent parses the output of EncodeSequencedEvent.
func DecodeSequencedEvent(data []byte) (SequencedEvent, error) {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var e SequencedEvent

	r.Read(binary.LittleEndian, &e.Counter)
	e.Timestamp = readTime(r)
	e.DomainID = readString(r)
	r.Read(binary.LittleEndian, &e.HasMessageID)
	if e.HasMessageID {
		e.MessageID = readString(r)
	}
	var kind uint8
	r.Read(binary.LittleEndian, &kind)
	e.Kind = EventKind(kind)

	switch e.Kind {
	case KindDeliver:
		var hasBatch bool
		r.Read(binary.LittleEndian, &hasBatch)
		if hasBatch {
			var algo uint8
			r.Read(binary.LittleEndian, &algo)
			e.Batch = &CompressedBatch{Algorithm: BatchAlgorithm(algo), Bytes: readBytes(r)}
		}
	case KindError:
		e.ErrorMessage = readString(r)
	}

	if r.Error() != nil {
		return SequencedEvent{}, r.Error()
	}
	return e, nil
}

func encodeRecipientsTree(w *sstenc.ErrorWriter, t RecipientsTree) {
	w.Write(binary.LittleEndian, uint32(len(t.Recipients)))
	for _, rcp := range t.Recipients {
		writeString(w, rcp)
	}
	w.Write(binary.LittleEndian, uint32(len(t.Children)))
	for _, c := range t.Children {
		encodeRecipientsTree(w, c)
	}
}

func decodeRecipientsTree(r *sstenc.ErrorReader) RecipientsTree {
	var t RecipientsTree
	var nRecipients uint32
	r.Read(binary.LittleEndian, &nRecipients)
	t.Recipients = make([]string, nRecipients)
	for i := range t.Recipients {
		t.Recipients[i] = readString(r)
	}
	var nChildren uint32
	r.Read(binary.LittleEndian, &nChildren)
	if nChildren > 0 {
		t.Children = make([]RecipientsTree, nChildren)
		for i := range t.Children {
			t.Children[i] = decodeRecipientsTree(r)
		}
	}
	return t
}

// EncodeEnvelope renders e as a length-prefixed record.
func EncodeEnvelope(e Envelope) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)

	writeBytes(w, e.Content)
	w.Write(binary.LittleEndian, uint32(len(e.Recipients)))
	for _, t := range e.Recipients {
		encodeRecipientsTree(w, t)
	}

	if w.Error() != nil {
		return nil, w.Error()
	}
	return buf.Bytes(), nil
}

// DecodeEnvelope parses the output of EncodeEnvelope.
func DecodeEnvelope(data []byte) (Envelope, error) {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var e Envelope

	e.Content = readBytes(r)
	var n uint32
	r.Read(binary.LittleEndian, &n)
	e.Recipients = make([]RecipientsTree, n)
	for i := range e.Recipients {
		e.Recipients[i] = decodeRecipientsTree(r)
	}

	if r.Error() != nil {
		return Envelope{}, r.Error()
	}
	return e, nil
}

// EncodeAcsCommitment renders c as a length-prefixed record.
func EncodeAcsCommitment(c AcsCommitment) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)

	writeString(w, c.DomainID)
	writeString(w, c.SendingParticipant)
	writeString(w, c.CounterParticipant)
	writeTime(w, c.FromExclusive)
	writeTime(w, c.ToInclusive)
	writeBytes(w, c.Commitment)

	if w.Error() != nil {
		return nil, w.Error()
	}
	return buf.Bytes(), nil
}

// DecodeAcsCommitment parses the output of EncodeAcsCommitment.
func DecodeAcsCommitment(data []byte) (AcsCommitment, error) {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var c AcsCommitment

	c.DomainID = readString(r)
	c.SendingParticipant = readString(r)
	c.CounterParticipant = readString(r)
	c.FromExclusive = readTime(r)
	c.ToInclusive = readTime(r)
	c.Commitment = readBytes(r)

	if r.Error() != nil {
		return AcsCommitment{}, r.Error()
	}
	return c, nil
}

// EncodeHandshakeRequest renders req as a length-prefixed record.
func EncodeHandshakeRequest(req HandshakeRequest) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)

	w.Write(binary.LittleEndian, uint32(len(req.ClientProtocolVersions)))
	for _, v := range req.ClientProtocolVersions {
		writeString(w, v)
	}
	hasMin := req.MinimumProtocolVersion != ""
	w.Write(binary.LittleEndian, hasMin)
	if hasMin {
		writeString(w, req.MinimumProtocolVersion)
	}

	if w.Error() != nil {
		return nil, w.Error()
	}
	return buf.Bytes(), nil
}

// DecodeHandshakeRequest parses the output of EncodeHandshakeRequest.
func DecodeHandshakeRequest(data []byte) (HandshakeRequest, error) {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var req HandshakeRequest

	var n uint32
	r.Read(binary.LittleEndian, &n)
	req.ClientProtocolVersions = make([]string, n)
	for i := range req.ClientProtocolVersions {
		req.ClientProtocolVersions[i] = readString(r)
	}
	var hasMin bool
	r.Read(binary.LittleEndian, &hasMin)
	if hasMin {
		req.MinimumProtocolVersion = readString(r)
	}

	if r.Error() != nil {
		return HandshakeRequest{}, r.Error()
	}
	return req, nil
}

// EncodeHandshakeResponse renders resp as a length-prefixed record.
func EncodeHandshakeResponse(resp HandshakeResponse) ([]byte, error) {
	buf := new(bytes.Buffer)
	w := sstenc.NewErrorWriter(buf)

	w.Write(binary.LittleEndian, resp.Success)
	if resp.Success {
		writeString(w, resp.ServerVersion)
	} else {
		writeString(w, resp.Reason)
	}

	if w.Error() != nil {
		return nil, w.Error()
	}
	return buf.Bytes(), nil
}

// DecodeHandshakeResponse parses the output of EncodeHandshakeResponse.
func DecodeHandshakeResponse(data []byte) (HandshakeResponse, error) {
	r := sstenc.NewErrorReader(bytes.NewReader(data))
	var resp HandshakeResponse

	r.Read(binary.LittleEndian, &resp.Success)
	if resp.Success {
		resp.ServerVersion = readString(r)
	} else {
		resp.Reason = readString(r)
	}

	if r.Error() != nil {
		return HandshakeResponse{}, r.Error()
	}
	return resp, nil
}
