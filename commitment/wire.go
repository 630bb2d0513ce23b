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

package commitment

import (
	"time"

	"github.com/domainledger/sequencer/pkg/crypto"
	"github.com/domainledger/sequencer/pkg/wire"
)

// ToWire renders c as the wire message sent to counterParticipant,
// periods expressed as epoch seconds per the domain's data model.
func ToWire(domainID, sender, counterParticipant string, c Commitment) wire.AcsCommitment {
	return wire.AcsCommitment{
		DomainID:           domainID,
		SendingParticipant: sender,
		CounterParticipant: counterParticipant,
		FromExclusive:      time.Unix(c.Period.FromExclusive, 0).UTC(),
		ToInclusive:        time.Unix(c.Period.ToInclusive, 0).UTC(),
		Commitment:         c.Bytes,
	}
}

// SignAndEncode encodes m and signs the encoded bytes, the payload a
// SignedCommitment carries over the wire.
func SignAndEncode(m wire.AcsCommitment, signer crypto.Signer) ([]byte, []byte, error) {
	encoded, err := wire.EncodeAcsCommitment(m)
	if err != nil {
		return nil, nil, err
	}
	sig, err := signer.Sign(encoded)
	if err != nil {
		return nil, nil, err
	}
	return encoded, sig, nil
}

// DecodeAndVerify decodes encoded and verifies signature was produced
// by the peer verifier identifies.
func DecodeAndVerify(encoded, signature []byte, verifier crypto.Verifier) (wire.AcsCommitment, error) {
	if err := verifier.Verify(encoded, signature); err != nil {
		return wire.AcsCommitment{}, err
	}
	return wire.DecodeAcsCommitment(encoded)
}

// FromWire converts a received wire message back to the engine's
// period representation (epoch seconds), for StoreReceived.
func FromWire(m wire.AcsCommitment) (peer string, period Period, payload []byte) {
	return m.SendingParticipant, Period{
		FromExclusive: m.FromExclusive.Unix(),
		ToInclusive:   m.ToInclusive.Unix(),
	}, m.Commitment
}
