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

// Package crypto is the abstract signing/verification seam the
// commitment engine and the wire layer sign SignedContent and
// AcsCommitment messages through. Concrete production provider
// plumbing (HSM integration, key rotation, scheme negotiation) is out
// of scope; this package exposes the interface plus one reference
// implementation.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
)

// ErrInvalidSignature is returned by Verify when the signature does not
// match the content under the given public key.
var ErrInvalidSignature = errors.New("invalid signature")

// Signer signs content with a key the caller does not see directly.
type Signer interface {
	Sign(content []byte) (signature []byte, err error)
	PublicKey() []byte
}

// Verifier checks a signature produced by the counterpart Signer.
type Verifier interface {
	Verify(content, signature []byte) error
}

// Ed25519Provider is the reference Signer/Verifier implementation.
// Production deployments plug in whatever scheme the domain's static
// parameters negotiate; this one is enough to exercise the signing
// contract end to end.
type Ed25519Provider struct {
	public  ed25519.PublicKey
	private ed25519.PrivateKey
}

var _ Signer = (*Ed25519Provider)(nil)
var _ Verifier = (*Ed25519Provider)(nil)

// NewEd25519Provider generates a fresh keypair.
func NewEd25519Provider() (*Ed25519Provider, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Ed25519Provider{public: pub, private: priv}, nil
}

// NewEd25519ProviderFromSeed reconstructs a provider from a fixed seed,
// for tests and for recovering a provider's identity across restarts.
func NewEd25519ProviderFromSeed(seed []byte) *Ed25519Provider {
	priv := ed25519.NewKeyFromSeed(seed)
	return &Ed25519Provider{public: priv.Public().(ed25519.PublicKey), private: priv}
}

func (p *Ed25519Provider) Sign(content []byte) ([]byte, error) {
	return ed25519.Sign(p.private, content), nil
}

func (p *Ed25519Provider) PublicKey() []byte {
	return []byte(p.public)
}

// Verify checks signature against content using this provider's own
// public key. A Verifier for a remote peer is constructed with
// NewEd25519Verifier(peerPublicKey) instead.
func (p *Ed25519Provider) Verify(content, signature []byte) error {
	if !ed25519.Verify(p.public, content, signature) {
		return ErrInvalidSignature
	}
	return nil
}

// Ed25519Verifier verifies signatures from a known peer public key,
// without holding any private key material.
type Ed25519Verifier struct {
	public ed25519.PublicKey
}

var _ Verifier = (*Ed25519Verifier)(nil)

func NewEd25519Verifier(publicKey []byte) *Ed25519Verifier {
	return &Ed25519Verifier{public: ed25519.PublicKey(publicKey)}
}

func (v *Ed25519Verifier) Verify(content, signature []byte) error {
	if !ed25519.Verify(v.public, content, signature) {
		return ErrInvalidSignature
	}
	return nil
}
