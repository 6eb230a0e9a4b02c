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
	"bytes"
	"fmt"
	"io"

	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

// An incoming message from the kernel, including leading fusekernel.InHeader
// struct. Provides storage for messages and convenient access to their
// contents.
type InMessage struct {
	header    fusekernel.InHeader
	remaining []byte
	storage   [fusekernel.MinReadBuffer]byte
	size      int
}

// Initialize with the data read by a single call to r.Read. The first call to
// Consume will consume the bytes directly after the fusekernel.InHeader
// struct.
//
// r.Read returning zero bytes is reported as io.EOF.
func (m *InMessage) Init(r io.Reader) (err error) {
	n, err := r.Read(m.storage[:])
	if err != nil {
		return
	}

	if n == 0 {
		err = io.EOF
		return
	}

	m.size = n
	if err = m.header.Decode(m.storage[:n]); err != nil {
		err = fmt.Errorf("unexpectedly read only %d bytes: %w", n, err)
		return
	}

	m.remaining = m.storage[fusekernel.InHeaderSize:n]
	return
}

// Return a reference to the header read in the most recent call to Init.
func (m *InMessage) Header() *fusekernel.InHeader {
	return &m.header
}

// Return the number of bytes left to consume.
func (m *InMessage) Len() uintptr {
	return uintptr(len(m.remaining))
}

// Consume the next n bytes from the message, returning nil if there are fewer
// than n bytes available.
func (m *InMessage) Consume(n uintptr) (p []byte) {
	if m.Len() < n {
		return
	}

	p = m.remaining[:n]
	m.remaining = m.remaining[n:]
	return
}

// Consume a NUL-terminated string. If there is no terminator, the rest of the
// message is taken as the string.
func (m *InMessage) ConsumeCString() string {
	i := bytes.IndexByte(m.remaining, 0)
	if i < 0 {
		s := string(m.remaining)
		m.remaining = nil
		return s
	}

	s := string(m.remaining[:i])
	m.remaining = m.remaining[i+1:]
	return s
}

// Return the whole message as read, header included.
func (m *InMessage) Bytes() []byte {
	return m.storage[:m.size]
}
