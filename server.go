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
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/jacobsa/fakefuse/internal/buffer"
	"github.com/jacobsa/fakefuse/internal/control"
	"github.com/jacobsa/fakefuse/internal/fusekernel"
	"github.com/jacobsa/reqtrace"
	"golang.org/x/net/context"
	"golang.org/x/sys/unix"
)

// The unique ID of the reply to the kernel's INIT request. Linux numbers
// requests from 2 in steps of 2, so this matches the first request of every
// connection.
const initUnique = 2

// An object that terminates one end of the userspace <-> FUSE VFS connection
// and the server end of the control channel. It answers kernel requests from
// replies staged over the control channel.
//
// A server is used by a single goroutine and has no locks.
type server struct {
	debugLogger   *log.Logger
	errorLogger   *log.Logger
	protocolMinor uint32

	// The kernel device. Nil once it has gone away.
	dev *Connection
	ctl *control.Conn

	// Requests received from the kernel, in arrival order, and not answered
	// from the lookup table.
	requests buffer.MemBuffer[uint32]

	// Staged replies, in the order they are to be sent, keyed by the opcode
	// they answer.
	responses buffer.MemBuffer[uint32]

	lookups *lookupTable

	// Everything that has gone wrong so far. Once non-empty, every command is
	// acknowledged with control.AckFailure.
	failures []string

	in      buffer.InMessage
	out     buffer.OutMessage
	scratch [fusekernel.MinReadBuffer]byte
}

// ServeFds serves the fuse device and the control channel endpoint with the
// given descriptor numbers, taking ownership of both, until the driver closes
// its end of the control channel. It is for server binaries started with
// descriptors inherited from the test; see RunServerIfChild.
func ServeFds(
	ctx context.Context,
	devFd int,
	controlFd int,
	config *Config) (err error) {
	dev := os.NewFile(uintptr(devFd), "fuse device")
	if dev == nil {
		err = fmt.Errorf("bad device descriptor %d", devFd)
		return
	}

	err = serve(ctx, dev, control.NewConn(controlFd), config)
	return
}

// Perform the handshake, then serve until the driver goes away. Takes
// ownership of dev and ctl.
func serve(
	ctx context.Context,
	dev *os.File,
	ctl *control.Conn,
	config *Config) (err error) {
	s := &server{
		debugLogger:   config.debugLogger(),
		errorLogger:   config.errorLogger(),
		protocolMinor: config.ProtocolMinor,
		dev:           newConnection(dev),
		ctl:           ctl,
		lookups:       newLookupTable(),
	}

	defer s.close()

	if err = s.handshake(ctx); err != nil {
		err = fmt.Errorf("handshake: %w", err)
		return
	}

	err = s.loop(ctx)
	return
}

func (s *server) close() {
	if s.dev != nil {
		s.dev.close()
		s.dev = nil
	}

	s.ctl.Close()
}

////////////////////////////////////////////////////////////////////////
// Event loop
////////////////////////////////////////////////////////////////////////

const (
	devIndex = iota
	ctlIndex
)

// Wait for either descriptor to become ready and dispatch, until the driver
// hangs up.
func (s *server) loop(ctx context.Context) (err error) {
	fds := make([]unix.PollFd, 2)
	fds[devIndex] = unix.PollFd{Fd: int32(s.dev.fd), Events: unix.POLLIN}
	fds[ctlIndex] = unix.PollFd{Fd: int32(s.ctl.Fd()), Events: unix.POLLIN}

	for {
		_, err = unix.Poll(fds, -1)
		if err == unix.EINTR {
			continue
		}

		if err != nil {
			err = fmt.Errorf("poll: %w", err)
			return
		}

		// The device.
		if revents := fds[devIndex].Revents; revents != 0 {
			var gone bool
			gone, err = s.handleDeviceEvents(ctx, revents)
			if err != nil {
				return
			}

			if gone {
				s.debugLogger.Println("Device gone; serving control channel only.")
				s.dev.close()
				s.dev = nil
				fds[devIndex].Fd = -1
			}
		}

		// The control channel.
		if revents := fds[ctlIndex].Revents; revents != 0 {
			var done bool
			done, err = s.handleControlEvents(ctx, revents)
			if done || err != nil {
				return
			}
		}
	}
}

// Report whether the device has gone away, which happens when the file
// system is unmounted or the fake kernel closes its end.
func (s *server) handleDeviceEvents(
	ctx context.Context,
	revents int16) (gone bool, err error) {
	switch {
	case revents&unix.POLLNVAL != 0:
		err = errors.New("device: invalid descriptor")

	case revents&unix.POLLIN != 0:
		err = s.processFuseRequest(ctx)
		if err == io.EOF {
			gone = true
			err = nil
		}

	case revents&(unix.POLLERR|unix.POLLHUP) != 0:
		gone = true

	default:
		err = fmt.Errorf("device: unexpected poll events %#x", revents)
	}

	return
}

// Report whether the driver has hung up.
func (s *server) handleControlEvents(
	ctx context.Context,
	revents int16) (done bool, err error) {
	switch {
	case revents&(unix.POLLERR|unix.POLLNVAL) != 0:
		err = fmt.Errorf("control channel: unexpected poll events %#x", revents)

	case revents&unix.POLLIN != 0:
		err = s.handleCommand(ctx)
		if err == io.EOF {
			done = true
			err = nil
		}

	case revents&unix.POLLHUP != 0:
		done = true

	default:
		err = fmt.Errorf("control channel: unexpected poll events %#x", revents)
	}

	if done {
		s.debugLogger.Println("Driver hung up; exiting.")
	}

	return
}

// Record a failure that does not stop the server.
func (s *server) fail(format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	s.failures = append(s.failures, msg)
	s.errorLogger.Println(msg)
}

////////////////////////////////////////////////////////////////////////
// Handshake
////////////////////////////////////////////////////////////////////////

// Answer the kernel's first request, which must be INIT, then tell the
// driver whether that worked.
func (s *server) handshake(ctx context.Context) (err error) {
	_, report := reqtrace.StartSpan(ctx, "handshake")
	defer func() { report(err) }()

	err = s.answerInit()

	ack := control.AckSuccess
	if err != nil || len(s.failures) != 0 {
		ack = control.AckFailure
	}

	if ackErr := s.ctl.WriteWord(ack); ackErr != nil && err == nil {
		err = fmt.Errorf("acknowledging: %w", ackErr)
	}

	return
}

func (s *server) answerInit() (err error) {
	if err = s.dev.ReadMessage(&s.in); err != nil {
		err = fmt.Errorf("reading INIT: %w", err)
		return
	}

	h := s.in.Header()
	s.debugLogger.Printf("Received %s (unique %d)", fusekernel.OpName(h.Opcode), h.Unique)

	if h.Opcode != fusekernel.OpInit {
		s.fail("Expect opcode INIT but got %s", fusekernel.OpName(h.Opcode))
	}

	initOut := fusekernel.InitOut{
		Major: fusekernel.ProtoVersionMajor,
		Minor: s.protocolMinor,
	}

	s.out.Reset()
	s.out.SetUnique(initUnique)
	initOut.Encode(s.out.Grow(fusekernel.InitOutSize))

	if err = s.dev.Reply(s.out.Bytes()); err != nil {
		err = fmt.Errorf("replying to INIT: %w", err)
		return
	}

	return
}

////////////////////////////////////////////////////////////////////////
// Control commands
////////////////////////////////////////////////////////////////////////

// Read and carry out one command, then acknowledge it. Return io.EOF if the
// driver has hung up between commands; any other error means the channel is
// broken.
func (s *server) handleCommand(ctx context.Context) (err error) {
	word, err := s.ctl.ReadWord()
	if err != nil {
		if err != io.EOF {
			err = fmt.Errorf("reading command: %w", err)
		}

		return
	}

	cmd := control.Command(word)
	_, report := reqtrace.StartSpan(ctx, cmd.String())
	defer func() { report(err) }()

	s.debugLogger.Printf("Command: %v", cmd)

	switch cmd {
	case control.SetResponse:
		err = s.setResponse()

	case control.SetInodeLookup:
		err = s.setInodeLookup()

	case control.GetRequest:
		err = s.getRequest()

	case control.GetTotalReceivedBytes:
		err = s.ctl.WriteWord(uint32(s.requests.UsedBytes()))

	case control.GetNumUnconsumedRequests:
		err = s.ctl.WriteWord(uint32(s.requests.RemainingBlocks()))

	case control.GetNumUnsentResponses:
		err = s.ctl.WriteWord(uint32(s.responses.RemainingBlocks()))

	default:
		s.fail("Unknown control command %v", cmd)
	}

	if err != nil {
		err = fmt.Errorf("%v: %w", cmd, err)
		return
	}

	ack := control.AckSuccess
	if len(s.failures) != 0 {
		ack = control.AckFailure
	}

	if err = s.ctl.WriteWord(ack); err != nil {
		err = fmt.Errorf("%v: acknowledging: %w", cmd, err)
		return
	}

	return
}

// Read a record that must not be empty into the scratch buffer.
func (s *server) readPayload() (p []byte, err error) {
	n, err := s.ctl.ReadRecord(s.scratch[:])
	if err != nil {
		return
	}

	if n == 0 {
		err = io.ErrUnexpectedEOF
		return
	}

	p = s.scratch[:n]
	return
}

func (s *server) setResponse() (err error) {
	opcode, err := s.ctl.ReadWord()
	if err != nil {
		err = fmt.Errorf("reading opcode: %w", err)
		return
	}

	p, err := s.readPayload()
	if err != nil {
		err = fmt.Errorf("reading response: %w", err)
		return
	}

	if len(p) < fusekernel.OutHeaderSize {
		s.fail(
			"Staged %s response of %d bytes is shorter than a reply header",
			fusekernel.OpName(opcode),
			len(p))

		return
	}

	s.responses.AddMemBlock(opcode, p)
	s.debugLogger.Printf(
		"Staged %s response (%s)",
		fusekernel.OpName(opcode),
		humanize.Bytes(uint64(len(p))))

	return
}

func (s *server) setInodeLookup() (err error) {
	mode, err := s.ctl.ReadWord()
	if err != nil {
		err = fmt.Errorf("reading mode: %w", err)
		return
	}

	p, err := s.readPayload()
	if err != nil {
		err = fmt.Errorf("reading path: %w", err)
		return
	}

	name := p
	if i := bytes.IndexByte(p, 0); i >= 0 {
		name = p[:i]
	}

	nodeID := s.lookups.add(string(name), mode)
	s.debugLogger.Printf("Lookup of %q answers node %d, mode %#o", name, nodeID, mode)

	return
}

func (s *server) getRequest() (err error) {
	if s.requests.End() {
		s.fail("No more FUSE request is available")

		// An empty record keeps the driver's read from consuming the ack.
		_, err = s.ctl.WriteRecord()
		return
	}

	block := s.requests.Next()
	_, err = s.ctl.WriteRecord(s.requests.Data(block))
	return
}

////////////////////////////////////////////////////////////////////////
// Kernel requests
////////////////////////////////////////////////////////////////////////

// Read one request from the device and answer it. Return io.EOF if the
// device has gone away; any other error is fatal.
func (s *server) processFuseRequest(ctx context.Context) (err error) {
	err = s.dev.ReadMessage(&s.in)
	if errors.Is(err, fusekernel.ErrShortMessage) {
		s.fail("Reading request: %v", err)
		err = nil
		return
	}

	if err != nil {
		return
	}

	h := s.in.Header()
	opName := fusekernel.OpName(h.Opcode)
	unique := h.Unique

	_, report := reqtrace.StartSpan(ctx, opName)
	defer func() { report(err) }()

	s.debugLogger.Printf(
		"Received %s (unique %d, node %d, %s)",
		opName,
		unique,
		h.NodeID,
		humanize.Bytes(uint64(len(s.in.Bytes()))))

	// Lookups the test has registered are answered without involving the
	// staged responses.
	if h.Opcode == fusekernel.OpLookup {
		name := s.in.ConsumeCString()
		if reply, ok := s.lookups.find(name); ok {
			s.respond(opName, unique, reply)
			return
		}
	}

	s.requests.AddMemBlock(h.Opcode, s.in.Bytes())

	// The kernel reads no reply to these. Consume a staged one if the test
	// set one up anyway.
	if !fusekernel.ExpectsReply(h.Opcode) {
		if !s.responses.End() && s.responses.Peek().Key == h.Opcode {
			s.responses.Next()
		}

		return
	}

	if s.responses.End() {
		s.fail("No more FUSE response is expected, got %s", opName)
		s.respondError(opName, unique, ENOSYS)
		return
	}

	// A response for some other opcode stays staged for the request it was
	// meant for.
	next := s.responses.Peek()
	if next.Key != h.Opcode {
		s.fail("Expect opcode %s but got %s", fusekernel.OpName(next.Key), opName)
		s.respondError(opName, unique, ENOSYS)
		return
	}

	s.responses.Next()
	s.respond(opName, unique, s.responses.Data(next))
	return
}

// Send a stored reply, first patching in the unique ID of the request it
// answers. A failure to write is recorded but not fatal.
func (s *server) respond(opName string, unique uint64, reply []byte) {
	fusekernel.PatchUnique(reply, unique)

	if err := s.dev.Reply(reply); err != nil {
		s.fail("Replying to %s: %v", opName, err)
		return
	}

	s.debugLogger.Printf(
		"Replied to %s (unique %d, %s)",
		opName,
		unique,
		humanize.Bytes(uint64(len(reply))))
}

func (s *server) respondError(opName string, unique uint64, errno syscall.Errno) {
	s.out.Reset()
	s.out.SetUnique(unique)
	s.out.SetError(int32(errno))

	if err := s.dev.Reply(s.out.Bytes()); err != nil {
		s.fail("Replying to %s with %v: %v", opName, errno, err)
		return
	}

	s.debugLogger.Printf("Replied to %s (unique %d) with %v", opName, unique, errno)
}
