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

package fuseops

import (
	"bytes"
	"fmt"
	"syscall"

	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

// The header the kernel puts in front of every request.
type RequestHeader struct {
	Len    uint32
	Opcode OpCode
	Unique uint64
	NodeID uint64
	UID    uint32
	GID    uint32
	PID    uint32
}

// A request as read by the server from the kernel.
type Request struct {
	Header RequestHeader

	// Everything following the header, bounded by the bytes actually read.
	Body []byte
}

// Decode a request as returned by GetServerActualRequest. b may be longer
// than the request; the header's length field bounds the body.
func ParseRequest(b []byte) (r Request, err error) {
	var h fusekernel.InHeader
	if err = h.Decode(b); err != nil {
		return
	}

	if int(h.Len) < fusekernel.InHeaderSize || int(h.Len) > len(b) {
		err = fmt.Errorf("request header claims %d bytes, have %d", h.Len, len(b))
		return
	}

	r.Header = RequestHeader{
		Len:    h.Len,
		Opcode: OpCode(h.Opcode),
		Unique: h.Unique,
		NodeID: h.NodeID,
		UID:    h.UID,
		GID:    h.GID,
		PID:    h.PID,
	}

	r.Body = b[fusekernel.InHeaderSize:h.Len]
	return
}

// Encode the request in the form the kernel sends it. The length field is
// computed from the body.
func (r *Request) Bytes() []byte {
	b := make([]byte, fusekernel.InHeaderSize+len(r.Body))
	h := fusekernel.InHeader{
		Len:    uint32(len(b)),
		Opcode: uint32(r.Header.Opcode),
		Unique: r.Header.Unique,
		NodeID: r.Header.NodeID,
		UID:    r.Header.UID,
		GID:    r.Header.GID,
		PID:    r.Header.PID,
	}

	h.Encode(b)
	copy(b[fusekernel.InHeaderSize:], r.Body)
	return b
}

// Return the NUL-terminated name at the start of the body, as sent with
// LOOKUP, UNLINK and RMDIR.
func (r *Request) Name() string {
	return cString(r.Body)
}

func cString(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return string(b[:i])
	}

	return string(b)
}

func (r *Request) expect(ops ...OpCode) error {
	for _, op := range ops {
		if r.Header.Opcode == op {
			return nil
		}
	}

	return fmt.Errorf("request is %v, want one of %v", r.Header.Opcode, ops)
}

func (r *Request) OpenIn() (in OpenIn, err error) {
	if err = r.expect(OpOpen, OpOpendir); err != nil {
		return
	}

	err = in.Decode(r.Body)
	return
}

func (r *Request) ReadIn() (in ReadIn, err error) {
	if err = r.expect(OpRead, OpReaddir, OpReaddirplus); err != nil {
		return
	}

	err = in.Decode(r.Body)
	return
}

// Decode a WRITE request, returning the data that follows the fixed part.
func (r *Request) WriteIn() (in WriteIn, data []byte, err error) {
	if err = r.expect(OpWrite); err != nil {
		return
	}

	if err = in.Decode(r.Body); err != nil {
		return
	}

	data = r.Body[fusekernel.WriteInSize:]
	if int(in.Size) < len(data) {
		data = data[:in.Size]
	}

	return
}

func (r *Request) GetattrIn() (in GetattrIn, err error) {
	if err = r.expect(OpGetattr); err != nil {
		return
	}

	err = in.Decode(r.Body)
	return
}

// Decode a MKDIR request, returning the name of the new directory.
func (r *Request) MkdirIn() (in MkdirIn, name string, err error) {
	if err = r.expect(OpMkdir); err != nil {
		return
	}

	if err = in.Decode(r.Body); err != nil {
		return
	}

	name = cString(r.Body[fusekernel.MkdirInSize:])
	return
}

func (r *Request) ReleaseIn() (in ReleaseIn, err error) {
	if err = r.expect(OpRelease, OpReleasedir); err != nil {
		return
	}

	err = in.Decode(r.Body)
	return
}

func (r *Request) InitIn() (in InitIn, err error) {
	if err = r.expect(OpInit); err != nil {
		return
	}

	err = in.Decode(r.Body)
	return
}

////////////////////////////////////////////////////////////////////////
// Responses
////////////////////////////////////////////////////////////////////////

// The header the server puts in front of every reply.
type ResponseHeader struct {
	Len uint32

	// Zero or a negated errno.
	Error  int32
	Unique uint64
}

// A reply as written by the server to the kernel.
type Response struct {
	Header  ResponseHeader
	Payload []byte
}

// Decode a reply. b must hold exactly one reply.
func ParseResponse(b []byte) (r Response, err error) {
	var h fusekernel.OutHeader
	if err = h.Decode(b); err != nil {
		return
	}

	if int(h.Len) != len(b) {
		err = fmt.Errorf("response header claims %d bytes, have %d", h.Len, len(b))
		return
	}

	r.Header = ResponseHeader{
		Len:    h.Len,
		Error:  h.Error,
		Unique: h.Unique,
	}

	r.Payload = b[fusekernel.OutHeaderSize:]
	return
}

// Return the error carried by the reply, or nil.
func (r *Response) Errno() error {
	if r.Header.Error == 0 {
		return nil
	}

	return syscall.Errno(-r.Header.Error)
}

func (r *Response) EntryOut() (out EntryOut, err error) {
	err = out.Decode(r.Payload)
	return
}

func (r *Response) AttrOut() (out AttrOut, err error) {
	err = out.Decode(r.Payload)
	return
}

func (r *Response) InitOut() (out InitOut, err error) {
	err = out.Decode(r.Payload)
	return
}

func (r *Response) OpenOut() (out OpenOut, err error) {
	err = out.Decode(r.Payload)
	return
}

func (r *Response) WriteOut() (out WriteOut, err error) {
	err = out.Decode(r.Payload)
	return
}
