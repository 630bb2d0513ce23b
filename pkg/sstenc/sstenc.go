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

// Package sstenc holds the small binary-encoding helpers shared by the
// storage engine and its sstable sub-package, kept separate from both so
// neither has to import the other just to encode a block.
package sstenc

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"io"

	"github.com/klauspost/compress/s2"
	"github.com/spaolacci/murmur3"
)

// ErrorWriter accumulates the first error across a sequence of binary
// writes so callers don't have to check every intermediate Write call.
type ErrorWriter struct {
	buf *bytes.Buffer
	err error
}

func NewErrorWriter(buf *bytes.Buffer) *ErrorWriter {
	return &ErrorWriter{buf: buf}
}

func (w *ErrorWriter) Write(order binary.ByteOrder, data any) {
	if w.err != nil {
		return
	}
	w.err = binary.Write(w.buf, order, data)
}

func (w *ErrorWriter) Error() error {
	return w.err
}

// ErrorReader is the read-side counterpart of ErrorWriter.
type ErrorReader struct {
	r   io.Reader
	err error
}

func NewErrorReader(r io.Reader) *ErrorReader {
	return &ErrorReader{r: r}
}

func (r *ErrorReader) Read(order binary.ByteOrder, data any) {
	if r.err != nil {
		return
	}
	r.err = binary.Read(r.r, order, data)
}

func (r *ErrorReader) Error() error {
	return r.err
}

// LCP returns the length of the longest common prefix of a and b, used
// by data-block prefix compression.
func LCP(a, b string) int {
	n := min(len(a), len(b))
	var i int
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

func Pow(x, n int) int {
	res := 1
	for range n {
		res *= x
	}
	return res
}

// Compress/Decompress back the internal sstable data blocks with s2.
func Compress(src io.Reader, dst io.Writer) error {
	enc := s2.NewWriter(dst)
	if _, err := io.Copy(enc, src); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func Decompress(src io.Reader, dst io.Writer) error {
	dec := s2.NewReader(src)
	_, err := io.Copy(dst, dec)
	return err
}

func Magic(input string) uint64 {
	hash := sha1.Sum([]byte(input))
	return binary.BigEndian.Uint64(hash[:8])
}

// Hash fingerprints a key for MVCC write-conflict detection, reusing the
// same hash family the bloom filter is built on.
func Hash(key string) uint64 {
	return murmur3.Sum64([]byte(key))
}
