// Copyright 2015 Google Inc. All Rights Reserved.
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

package buffer

import (
	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

// We size out messages to be large enough to hold anything the kernel will
// accept in reply to a request read with a minimum-sized buffer.
const outMessageSize = fusekernel.MinReadBuffer

// OutMessage provides a mechanism for constructing a single contiguous fuse
// message from multiple segments, where the first segment is always a
// fusekernel.OutHeader message.
//
// Must be initialized with Reset.
type OutMessage struct {
	header  fusekernel.OutHeader
	offset  int
	storage [outMessageSize]byte
}

// Reset the message so that it is ready to be used again. Afterward, the
// contents are solely a zeroed header.
func (m *OutMessage) Reset() {
	m.header = fusekernel.OutHeader{}
	m.offset = fusekernel.OutHeaderSize
}

// Set the errno reported by the header. Pass a positive errno; the kernel
// expects it negated on the wire.
func (m *OutMessage) SetError(errno int32) {
	m.header.Error = -errno
}

// Set the unique ID of the request being answered.
func (m *OutMessage) SetUnique(unique uint64) {
	m.header.Unique = unique
}

// Grow the buffer by the supplied number of bytes, returning the new segment,
// which is zeroed. If there is no space left, return nil.
func (m *OutMessage) Grow(n int) (p []byte) {
	if m.offset+n > len(m.storage) {
		return
	}

	p = m.storage[m.offset : m.offset+n]
	for i := range p {
		p[i] = 0
	}

	m.offset += n
	return
}

// Equivalent to growing by the length of p, then copying p over the new
// segment. Panics if there is not enough room available.
func (m *OutMessage) Append(p []byte) {
	if m.offset+len(p) > len(m.storage) {
		panic("OutMessage: out of space")
	}

	m.offset += copy(m.storage[m.offset:], p)
}

// Equivalent to growing by the length of s, then copying s over the new
// segment. Panics if there is not enough room available.
func (m *OutMessage) AppendString(s string) {
	if m.offset+len(s) > len(m.storage) {
		panic("OutMessage: out of space")
	}

	m.offset += copy(m.storage[m.offset:], s)
}

// Return the current size of the message.
func (m *OutMessage) Len() int {
	return m.offset
}

// Return a reference to the current contents of the message, with the header
// length field set to the current size.
func (m *OutMessage) Bytes() []byte {
	m.header.Len = uint32(m.offset)
	m.header.Encode(m.storage[:fusekernel.OutHeaderSize])
	return m.storage[:m.offset]
}
