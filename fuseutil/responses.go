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

// Package fuseutil contains helpers for building the replies a test stages on
// the fake server.
//
// Every builder returns a complete reply, header included, with a zero unique
// ID. The server stamps the ID of the request it answers before writing the
// reply to the kernel.
package fuseutil

import (
	"syscall"

	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/fakefuse/internal/buffer"
	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

// Return a successful reply carrying the concatenation of the supplied
// payload segments. Panics if the reply would not fit in a minimum-sized
// kernel read buffer.
func NewResponse(payload ...[]byte) []byte {
	var m buffer.OutMessage
	m.Reset()
	for _, p := range payload {
		m.Append(p)
	}

	return clone(m.Bytes())
}

// Return a reply carrying only the supplied error.
func NewErrorResponse(errno syscall.Errno) []byte {
	var m buffer.OutMessage
	m.Reset()
	m.SetError(int32(errno))

	return clone(m.Bytes())
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Reply to LOOKUP, MKDIR, MKNOD, SYMLINK or LINK.
func NewEntryResponse(e fuseops.EntryOut) []byte {
	return NewResponse(EncodeEntryOut(&e))
}

// Reply to GETATTR or SETATTR.
func NewAttrResponse(a fuseops.AttrOut) []byte {
	return NewResponse(EncodeAttrOut(&a))
}

// Reply to OPEN or OPENDIR.
func NewOpenResponse(o fuseops.OpenOut) []byte {
	return NewResponse(EncodeOpenOut(&o))
}

// Reply to WRITE.
func NewWriteResponse(size uint32) []byte {
	w := fuseops.WriteOut{Size: size}
	return NewResponse(EncodeWriteOut(&w))
}

// Reply to READ, carrying the file contents verbatim.
func NewReadResponse(data []byte) []byte {
	return NewResponse(data)
}

// Reply to READDIR, carrying the supplied entries.
func NewReadDirResponse(entries ...Dirent) []byte {
	var payload []byte
	for _, d := range entries {
		payload = AppendDirent(payload, d)
	}

	return NewResponse(payload)
}

func EncodeEntryOut(e *fuseops.EntryOut) []byte {
	b := make([]byte, fusekernel.EntryOutSize)
	e.Encode(b)
	return b
}

func EncodeAttrOut(a *fuseops.AttrOut) []byte {
	b := make([]byte, fusekernel.AttrOutSize)
	a.Encode(b)
	return b
}

func EncodeOpenOut(o *fuseops.OpenOut) []byte {
	b := make([]byte, fusekernel.OpenOutSize)
	o.Encode(b)
	return b
}

func EncodeWriteOut(w *fuseops.WriteOut) []byte {
	b := make([]byte, fusekernel.WriteOutSize)
	w.Encode(b)
	return b
}
