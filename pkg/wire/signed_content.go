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

package wire

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
)

// SignedContent pairs arbitrary content with a signature over it and,
// optionally, the timestamp of the signing key used. It is the one
// message in this package carried over Apache Thrift's binary protocol
// rather than the package's own length-prefixed codec, since signed
// envelopes cross into systems that already standardize on Thrift for
// their transport framing.
type SignedContent struct {
	Content             []byte
	Signature           []byte
	HasTimestampOfKey   bool
	TimestampOfSigningKey int64 // unix nanos, valid iff HasTimestampOfKey
}

var _ thrift.TStruct = (*SignedContent)(nil)

const (
	fieldContent   int16 = 1
	fieldSignature int16 = 2
	fieldTsOfKey   int16 = 3
)

func (s *SignedContent) Write(ctx context.Context, oprot thrift.TProtocol) error {
	if err := oprot.WriteStructBegin(ctx, "SignedContent"); err != nil {
		return err
	}

	if err := oprot.WriteFieldBegin(ctx, "content", thrift.STRING, fieldContent); err != nil {
		return err
	}
	if err := oprot.WriteBinary(ctx, s.Content); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(ctx); err != nil {
		return err
	}

	if err := oprot.WriteFieldBegin(ctx, "signature", thrift.STRING, fieldSignature); err != nil {
		return err
	}
	if err := oprot.WriteBinary(ctx, s.Signature); err != nil {
		return err
	}
	if err := oprot.WriteFieldEnd(ctx); err != nil {
		return err
	}

	if s.HasTimestampOfKey {
		if err := oprot.WriteFieldBegin(ctx, "timestampOfSigningKey", thrift.I64, fieldTsOfKey); err != nil {
			return err
		}
		if err := oprot.WriteI64(ctx, s.TimestampOfSigningKey); err != nil {
			return err
		}
		if err := oprot.WriteFieldEnd(ctx); err != nil {
			return err
		}
	}

	if err := oprot.WriteFieldStop(ctx); err != nil {
		return err
	}
	return oprot.WriteStructEnd(ctx)
}

func (s *SignedContent) Read(ctx context.Context, iprot thrift.TProtocol) error {
	if _, err := iprot.ReadStructBegin(ctx); err != nil {
		return err
	}

	for {
		_, fieldType, fieldID, err := iprot.ReadFieldBegin(ctx)
		if err != nil {
			return err
		}
		if fieldType == thrift.STOP {
			break
		}

		switch fieldID {
		case fieldContent:
			if s.Content, err = iprot.ReadBinary(ctx); err != nil {
				return err
			}
		case fieldSignature:
			if s.Signature, err = iprot.ReadBinary(ctx); err != nil {
				return err
			}
		case fieldTsOfKey:
			if s.TimestampOfSigningKey, err = iprot.ReadI64(ctx); err != nil {
				return err
			}
			s.HasTimestampOfKey = true
		default:
			if err := iprot.Skip(ctx, fieldType); err != nil {
				return err
			}
		}

		if err := iprot.ReadFieldEnd(ctx); err != nil {
			return err
		}
	}

	return iprot.ReadStructEnd(ctx)
}

// MarshalSignedContent encodes s with Thrift's binary protocol over an
// in-memory transport.
func MarshalSignedContent(s *SignedContent) ([]byte, error) {
	transport := thrift.NewTMemoryBuffer()
	protocol := thrift.NewTBinaryProtocolTransport(transport)

	ctx := context.Background()
	if err := s.Write(ctx, protocol); err != nil {
		return nil, err
	}
	return transport.Bytes(), nil
}

// UnmarshalSignedContent decodes the output of MarshalSignedContent.
func UnmarshalSignedContent(data []byte) (*SignedContent, error) {
	transport := thrift.NewTMemoryBuffer()
	if _, err := transport.Write(data); err != nil {
		return nil, err
	}
	protocol := thrift.NewTBinaryProtocolTransport(transport)

	s := &SignedContent{}
	if err := s.Read(context.Background(), protocol); err != nil {
		return nil, err
	}
	return s, nil
}
