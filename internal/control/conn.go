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

package control

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// ErrShortWrite is returned when the socket accepted fewer bytes than a
// record holds.
var ErrShortWrite = errors.New("control: short write")

// Conn is one end of the control channel. It owns the socket descriptor.
//
// Conn performs blocking system calls directly on the descriptor so that the
// server can poll the same descriptor alongside /dev/fuse.
type Conn struct {
	fd int
}

// NewConn takes ownership of fd, which must be a connected SOCK_SEQPACKET
// socket in blocking mode.
func NewConn(fd int) *Conn {
	return &Conn{fd: fd}
}

// Pair creates a connected pair of endpoints. By convention the first is kept
// by the driver and the second is handed to the server.
func Pair() (driver *Conn, server *Conn, err error) {
	fds, err := unix.Socketpair(
		unix.AF_UNIX,
		unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC,
		0)

	if err != nil {
		err = fmt.Errorf("socketpair: %w", err)
		return
	}

	driver = NewConn(fds[0])
	server = NewConn(fds[1])
	return
}

// Fd returns the underlying descriptor. It stays owned by c.
func (c *Conn) Fd() int {
	return c.fd
}

// File returns a new *os.File owning a duplicate of the descriptor, suitable
// for handing to a child process.
func (c *Conn) File(name string) (*os.File, error) {
	fd, err := unix.FcntlInt(uintptr(c.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("dup: %w", err)
	}

	return os.NewFile(uintptr(fd), name), nil
}

// Close the descriptor. Only the first call has any effect.
func (c *Conn) Close() error {
	if c.fd < 0 {
		return nil
	}

	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

// WriteWord writes v as a record of its own.
func (c *Conn) WriteWord(v uint32) error {
	var b [WordSize]byte
	order.PutUint32(b[:], v)
	_, err := c.WriteRecord(b[:])
	return err
}

// ReadWord reads one record that must hold exactly one word. io.EOF means
// the peer has gone away.
func (c *Conn) ReadWord() (v uint32, err error) {
	var b [WordSize]byte
	n, err := c.ReadRecord(b[:])
	if err != nil {
		return
	}

	// An empty record and a closed peer look the same to recvmsg. Words are
	// never empty, so treat it as the latter.
	if n == 0 {
		err = io.EOF
		return
	}

	if n != WordSize {
		err = fmt.Errorf("control: read %d bytes, want a %d-byte word", n, WordSize)
		return
	}

	v = order.Uint32(b[:])
	return
}

// WriteRecord writes the concatenation of parts as a single record.
func (c *Conn) WriteRecord(parts ...[]byte) (n int, err error) {
	var want int
	for _, p := range parts {
		want += len(p)
	}

	// write(2) and writev(2) drop empty records on sockets; sendmsg(2) does
	// not.
	for {
		n, err = unix.SendmsgBuffers(c.fd, parts, nil, nil, unix.MSG_NOSIGNAL)
		if err != unix.EINTR {
			break
		}
	}

	if err != nil {
		err = fmt.Errorf("sendmsg: %w", err)
		return
	}

	if n != want {
		err = fmt.Errorf("%w: wrote %d of %d bytes", ErrShortWrite, n, want)
		return
	}

	return
}

// WriteCString writes s followed by a NUL byte as a single record.
func (c *Conn) WriteCString(s string) error {
	b := make([]byte, len(s)+1)
	copy(b, s)
	_, err := c.WriteRecord(b)
	return err
}

// ReadRecord reads one record, scattering it over bufs. Bytes that do not fit
// are discarded. A return of zero bytes is either an empty record or a closed
// peer; callers that never expect empty records treat it as io.EOF.
func (c *Conn) ReadRecord(bufs ...[]byte) (n int, err error) {
	for {
		n, _, _, _, err = unix.RecvmsgBuffers(c.fd, bufs, nil, 0)
		if err != unix.EINTR {
			break
		}
	}

	if err != nil {
		err = fmt.Errorf("recvmsg: %w", err)
		return
	}

	return
}
