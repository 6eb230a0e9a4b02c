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

package fakefuse

import (
	"errors"
	"testing"

	"github.com/jacobsa/fakefuse/internal/control"
	"github.com/jacobsa/fakefuse/internal/fusekernel"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"golang.org/x/net/context"
)

func TestServerInternals(t *testing.T) { RunTests(t) }

////////////////////////////////////////////////////////////////////////
// Helpers
////////////////////////////////////////////////////////////////////////

// Start an in-process server on one end of a socket pair, after queueing a
// first request with the given opcode on the other end, which is returned.
func startOnSocket(
	ctx context.Context,
	firstOp uint32) (kernel *control.Conn, ms *MountedServer, err error) {
	kernel, server, err := control.Pair()
	if err != nil {
		return
	}

	dev, err := server.File("fake fuse device")
	server.Close()
	if err != nil {
		kernel.Close()
		return
	}

	var header [fusekernel.InHeaderSize]byte
	h := fusekernel.InHeader{
		Len:    fusekernel.InHeaderSize,
		Opcode: firstOp,
		Unique: initUnique,
	}

	h.Encode(header[:])
	if _, err = kernel.WriteRecord(header[:]); err != nil {
		kernel.Close()
		dev.Close()
		return
	}

	ms, err = Start(ctx, dev, "", &Config{Isolation: InProcess})
	return
}

////////////////////////////////////////////////////////////////////////
// Handshake
////////////////////////////////////////////////////////////////////////

type HandshakeTest struct {
	ctx context.Context
}

func init() { RegisterTestSuite(&HandshakeTest{}) }

func (t *HandshakeTest) SetUp(ti *TestInfo) {
	t.ctx = ti.Ctx
}

func (t *HandshakeTest) FirstRequestNotInit() {
	kernel, ms, err := startOnSocket(t.ctx, fusekernel.OpGetattr)
	AssertNe(nil, kernel)
	defer kernel.Close()

	ExpectTrue(errors.Is(err, ErrServerFailure), "err: %v", err)
	ExpectEq(nil, ms)

	// The kernel still got a reply carrying the protocol version.
	buf := make([]byte, fusekernel.MinReadBuffer)
	n, err := kernel.ReadRecord(buf)
	AssertEq(nil, err)
	AssertEq(fusekernel.OutHeaderSize+fusekernel.InitOutSize, n)

	var out fusekernel.InitOut
	AssertEq(nil, out.Decode(buf[fusekernel.OutHeaderSize:n]))
	ExpectEq(fusekernel.ProtoVersionMajor, out.Major)
	ExpectEq(initUnique, fusekernel.UniqueOf(buf[:n]))
}

func (t *HandshakeTest) KernelGoneBeforeInit() {
	kernel, server, err := control.Pair()
	AssertEq(nil, err)

	dev, err := server.File("fake fuse device")
	server.Close()
	AssertEq(nil, err)

	kernel.Close()

	ms, err := Start(t.ctx, dev, "", &Config{Isolation: InProcess})
	ExpectNe(nil, err)
	ExpectEq(nil, ms)
	ExpectThat(err, Error(HasSubstr("handshake")))
}

func (t *HandshakeTest) DriverHangsUpMidCommand() {
	kernel, ms, err := startOnSocket(t.ctx, fusekernel.OpInit)
	AssertEq(nil, err)
	defer kernel.Close()

	// Leave the server waiting for the opcode of a SetResponse command.
	AssertEq(nil, ms.client.conn.WriteWord(uint32(control.SetResponse)))

	err = ms.Join(t.ctx)
	ExpectThat(err, Error(HasSubstr("SetResponse")))
	ExpectThat(err, Error(HasSubstr("reading opcode")))
}

////////////////////////////////////////////////////////////////////////
// Control commands
////////////////////////////////////////////////////////////////////////

type CommandTest struct {
	ctx    context.Context
	kernel *control.Conn
	ms     *MountedServer
}

var _ SetUpInterface = &CommandTest{}
var _ TearDownInterface = &CommandTest{}

func init() { RegisterTestSuite(&CommandTest{}) }

func (t *CommandTest) SetUp(ti *TestInfo) {
	var err error
	t.ctx = ti.Ctx

	t.kernel, t.ms, err = startOnSocket(t.ctx, fusekernel.OpInit)
	AssertEq(nil, err)

	// Swallow the INIT reply.
	buf := make([]byte, fusekernel.MinReadBuffer)
	_, err = t.kernel.ReadRecord(buf)
	AssertEq(nil, err)
}

func (t *CommandTest) TearDown() {
	t.kernel.Close()
	ExpectEq(nil, t.ms.Join(t.ctx))
}

func (t *CommandTest) UnknownCommand() {
	err := t.ms.client.roundTrip(control.Command(17), nil, nil)
	ExpectTrue(errors.Is(err, ErrServerFailure), "err: %v", err)

	// The failure sticks, but the counters still work.
	n, err := t.ms.client.NumUnsentResponses()
	ExpectTrue(errors.Is(err, ErrServerFailure), "err: %v", err)
	ExpectEq(0, n)
}

func (t *CommandTest) ResponseShorterThanHeader() {
	err := t.ms.client.roundTrip(
		control.SetResponse,
		func(conn *control.Conn) (err error) {
			if err = conn.WriteWord(fusekernel.OpGetattr); err != nil {
				return
			}

			_, err = conn.WriteRecord([]byte("taco"))
			return
		},
		nil)

	ExpectTrue(errors.Is(err, ErrServerFailure), "err: %v", err)

	// Nothing was staged.
	n, _ := t.ms.client.NumUnsentResponses()
	ExpectEq(0, n)
}

func (t *CommandTest) LookupNameStopsAtNul() {
	err := t.ms.client.roundTrip(
		control.SetInodeLookup,
		func(conn *control.Conn) (err error) {
			if err = conn.WriteWord(0755); err != nil {
				return
			}

			_, err = conn.WriteRecord([]byte("foo\x00bar"))
			return
		},
		nil)

	AssertEq(nil, err)

	// Ask the kernel side to look up "foo".
	var msg [fusekernel.InHeaderSize + 4]byte
	h := fusekernel.InHeader{
		Len:    uint32(len(msg)),
		Opcode: fusekernel.OpLookup,
		Unique: 4,
		NodeID: fusekernel.RootID,
	}

	h.Encode(msg[:])
	copy(msg[fusekernel.InHeaderSize:], "foo\x00")

	_, err = t.kernel.WriteRecord(msg[:])
	AssertEq(nil, err)

	buf := make([]byte, fusekernel.MinReadBuffer)
	n, err := t.kernel.ReadRecord(buf)
	AssertEq(nil, err)
	AssertEq(fusekernel.OutHeaderSize+fusekernel.EntryOutSize, n)
	ExpectEq(4, fusekernel.UniqueOf(buf[:n]))

	// Answered from the table, so not recorded.
	remaining, err := t.ms.client.NumUnconsumedRequests()
	AssertEq(nil, err)
	ExpectEq(0, remaining)
}
