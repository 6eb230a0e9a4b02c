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
	"fmt"
	"io"
	"os"

	"github.com/jacobsa/fakefuse/internal/buffer"
	"golang.org/x/sys/unix"
)

// A connection to the fuse kernel device, or to whatever plays the part of
// the kernel in a test.
type Connection struct {
	dev *os.File
	fd  int
}

// Responsibility for closing dev is transferred to the result. You must call
// c.close() eventually.
func newConnection(dev *os.File) *Connection {
	return &Connection{
		dev: dev,
		fd:  int(dev.Fd()),
	}
}

// Read implements io.Reader for buffer.InMessage. The device hands out one
// whole request per read. io.EOF means that the file system has been
// unmounted or the fake kernel has gone away.
func (c *Connection) Read(p []byte) (n int, err error) {
	for {
		n, err = unix.Read(c.fd, p)
		if err != unix.EINTR {
			break
		}
	}

	switch {
	case errors.Is(err, unix.ENODEV):
		n, err = 0, io.EOF

	case err != nil:
		n = 0
		err = fmt.Errorf("read: %w", err)
	}

	return
}

// Read the next request from the kernel into m.
func (c *Connection) ReadMessage(m *buffer.InMessage) error {
	return m.Init(c)
}

// Write a single reply. The device accepts replies only whole.
func (c *Connection) Reply(b []byte) (err error) {
	var n int
	for {
		n, err = unix.Write(c.fd, b)
		if err != unix.EINTR {
			break
		}
	}

	if err != nil {
		err = fmt.Errorf("write: %w", err)
		return
	}

	if n != len(b) {
		err = fmt.Errorf("write: wrote %d of %d bytes", n, len(b))
		return
	}

	return
}

// Close the device.
func (c *Connection) close() (err error) {
	if c.dev == nil {
		return
	}

	err = c.dev.Close()
	c.dev = nil
	c.fd = -1
	return
}
