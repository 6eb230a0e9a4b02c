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

package fusetesting

import (
	"fmt"
	"os"

	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/fakefuse/internal/control"
	"github.com/jacobsa/fakefuse/internal/fusekernel"
	"golang.org/x/sys/unix"
)

// FakeKernel plays the part of the kernel for a server started with
// fakefuse.Start, so that the server can be exercised without mounting
// anything. Requests and replies travel over a socket pair that preserves
// message boundaries, as /dev/fuse does.
//
// Like the kernel, it numbers requests from 2 in steps of 2, starting with
// the INIT request that it sends on creation.
type FakeKernel struct {
	conn       *control.Conn
	nextUnique uint64
}

// Create a fake kernel, returning the device end of the connection for
// fakefuse.Start. The INIT request is already queued on return.
func NewFakeKernel() (k *FakeKernel, dev *os.File, err error) {
	kernel, server, err := control.Pair()
	if err != nil {
		return
	}

	dev, err = server.File("fake fuse device")
	server.Close()
	if err != nil {
		kernel.Close()
		return
	}

	k = &FakeKernel{
		conn:       kernel,
		nextUnique: 2,
	}

	initIn := fuseops.InitIn{
		Major:        fusekernel.ProtoVersionMajor,
		Minor:        31,
		MaxReadahead: 1 << 17,
	}

	body := make([]byte, fusekernel.InitInSize)
	initIn.Encode(body)

	if _, _, err = k.Send(fuseops.OpInit, 0, body); err != nil {
		k.Close()
		dev.Close()
		k, dev = nil, nil
		return
	}

	return
}

// Close the kernel's end. The server sees the device go away.
func (k *FakeKernel) Close() error {
	return k.conn.Close()
}

// Send a request with the given opcode for the given node, whose body is the
// concatenation of body. Return the unique ID assigned to the request and the
// size of the whole request.
func (k *FakeKernel) Send(
	op fuseops.OpCode,
	nodeID uint64,
	body ...[]byte) (unique uint64, size int, err error) {
	var bodyLen int
	for _, b := range body {
		bodyLen += len(b)
	}

	unique = k.nextUnique
	k.nextUnique += 2

	header := make([]byte, fusekernel.InHeaderSize)
	h := fusekernel.InHeader{
		Len:    uint32(fusekernel.InHeaderSize + bodyLen),
		Opcode: uint32(op),
		Unique: unique,
		NodeID: nodeID,
		UID:    uint32(os.Getuid()),
		GID:    uint32(os.Getgid()),
		PID:    uint32(os.Getpid()),
	}

	h.Encode(header)

	size, err = k.conn.WriteRecord(append([][]byte{header}, body...)...)
	if err != nil {
		err = fmt.Errorf("sending %v: %w", op, err)
		return
	}

	return
}

// Block until the server replies, and return the reply.
func (k *FakeKernel) Receive() (r fuseops.Response, err error) {
	buf := make([]byte, fusekernel.MinReadBuffer)
	n, err := k.conn.ReadRecord(buf)
	if err != nil {
		return
	}

	r, err = fuseops.ParseResponse(buf[:n])
	return
}

// Send a request and wait for the reply to it.
func (k *FakeKernel) Call(
	op fuseops.OpCode,
	nodeID uint64,
	body ...[]byte) (r fuseops.Response, err error) {
	unique, _, err := k.Send(op, nodeID, body...)
	if err != nil {
		return
	}

	r, err = k.Receive()
	if err != nil {
		return
	}

	if r.Header.Unique != unique {
		err = fmt.Errorf("reply to %v has unique %d, want %d", op, r.Header.Unique, unique)
		return
	}

	return
}

// Wait for the reply to the INIT request sent on creation.
func (k *FakeKernel) AwaitInit() (out fuseops.InitOut, err error) {
	r, err := k.Receive()
	if err != nil {
		return
	}

	if r.Header.Unique != 2 || r.Header.Error != 0 {
		err = fmt.Errorf("unexpected INIT reply header %+v", r.Header)
		return
	}

	out, err = r.InitOut()
	return
}

// Report whether a reply is waiting to be received.
func (k *FakeKernel) Pending() (pending bool, err error) {
	fds := []unix.PollFd{{Fd: int32(k.conn.Fd()), Events: unix.POLLIN}}
	for {
		_, err = unix.Poll(fds, 0)
		if err != unix.EINTR {
			break
		}
	}

	if err != nil {
		err = fmt.Errorf("poll: %w", err)
		return
	}

	pending = fds[0].Revents&unix.POLLIN != 0
	return
}
