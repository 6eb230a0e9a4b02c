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
	"strings"
	"sync"

	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/fakefuse/internal/control"
	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

var errClientClosed = errors.New("fakefuse: client closed")

// Client is the test's end of the control channel. Each method is one round
// trip to the server: it returns once the server has acknowledged the
// command, and ErrServerFailure if the acknowledgment reported a failure.
// Results are returned along with ErrServerFailure so that callers can still
// inspect them.
//
// Methods may be called from any goroutine; round trips never overlap.
type Client struct {
	mu sync.Mutex

	// Nil after Close.
	//
	// GUARDED_BY(mu)
	conn *control.Conn
}

func newClient(conn *control.Conn) *Client {
	return &Client{conn: conn}
}

// Close the control channel. The server exits once it notices. Only the first
// call has any effect.
func (c *Client) Close() (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return
	}

	err = c.conn.Close()
	c.conn = nil
	return
}

// Send cmd, let send and receive transfer the command's arguments and
// results, then read the acknowledgment.
func (c *Client) roundTrip(
	cmd control.Command,
	send func(*control.Conn) error,
	receive func(*control.Conn) error) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		err = fmt.Errorf("%v: %w", cmd, errClientClosed)
		return
	}

	if err = c.conn.WriteWord(uint32(cmd)); err != nil {
		err = fmt.Errorf("%v: writing command: %w", cmd, err)
		return
	}

	if send != nil {
		if err = send(c.conn); err != nil {
			err = fmt.Errorf("%v: %w", cmd, err)
			return
		}
	}

	if receive != nil {
		if err = receive(c.conn); err != nil {
			err = fmt.Errorf("%v: %w", cmd, err)
			return
		}
	}

	ack, err := c.conn.ReadWord()
	if err != nil {
		err = fmt.Errorf("%v: reading acknowledgment: %w", cmd, err)
		return
	}

	if ack != control.AckSuccess {
		err = fmt.Errorf("%v: %w", cmd, ErrServerFailure)
		return
	}

	return
}

// SetResponse stages a reply for the next request with the given opcode. The
// reply is the concatenation of parts and must start with a reply header,
// such as the ones built by package fuseutil; the server fills in the unique
// ID. Replies are sent in the order they are staged.
func (c *Client) SetResponse(op fuseops.OpCode, parts ...[]byte) (err error) {
	var size int
	for _, p := range parts {
		size += len(p)
	}

	if size < fusekernel.OutHeaderSize || size > fusekernel.MinReadBuffer {
		err = fmt.Errorf("%v response of %d bytes: %w", op, size, ErrResponseSize)
		return
	}

	err = c.roundTrip(
		control.SetResponse,
		func(conn *control.Conn) (err error) {
			if err = conn.WriteWord(uint32(op)); err != nil {
				return
			}

			_, err = conn.WriteRecord(parts...)
			return
		},
		nil)

	return
}

// SetInodeLookup makes the server answer every LOOKUP of the given name
// itself, with an entry of the given mode (including the file type bits) and
// a node ID that is fresh on every call. Such lookups are not recorded as
// requests.
func (c *Client) SetInodeLookup(name string, mode uint32) (err error) {
	if strings.IndexByte(name, 0) >= 0 || len(name)+1 > fusekernel.MinReadBuffer {
		err = fmt.Errorf("bad lookup name %q", name)
		return
	}

	err = c.roundTrip(
		control.SetInodeLookup,
		func(conn *control.Conn) (err error) {
			if err = conn.WriteWord(mode); err != nil {
				return
			}

			err = conn.WriteCString(name)
			return
		},
		nil)

	return
}

// GetRequest retrieves the oldest request the server received that has not
// been retrieved yet, scattering it over bufs. Anything that does not fit is
// discarded. It returns the number of bytes written to bufs. If no request
// remains, n is zero and err is ErrServerFailure.
func (c *Client) GetRequest(bufs ...[]byte) (n int, err error) {
	err = c.roundTrip(
		control.GetRequest,
		nil,
		func(conn *control.Conn) (err error) {
			n, err = conn.ReadRecord(bufs...)
			return
		})

	return
}

// NextRequest is like GetRequest, but decodes the request. A request
// retrieved after an earlier failure is still decoded and returned along with
// ErrServerFailure.
func (c *Client) NextRequest() (r fuseops.Request, err error) {
	buf := make([]byte, fusekernel.MinReadBuffer)
	n, err := c.GetRequest(buf)
	if err != nil && !(errors.Is(err, ErrServerFailure) && n > 0) {
		return
	}

	r, parseErr := fuseops.ParseRequest(buf[:n])
	if parseErr != nil {
		err = parseErr
		return
	}

	return
}

func (c *Client) counter(cmd control.Command) (v uint32, err error) {
	err = c.roundTrip(
		cmd,
		nil,
		func(conn *control.Conn) (err error) {
			v, err = conn.ReadWord()
			return
		})

	return
}

// TotalReceivedBytes returns the total size of all requests the server has
// recorded, retrieved or not.
func (c *Client) TotalReceivedBytes() (uint32, error) {
	return c.counter(control.GetTotalReceivedBytes)
}

// NumUnconsumedRequests returns the number of recorded requests not yet
// retrieved with GetRequest.
func (c *Client) NumUnconsumedRequests() (uint32, error) {
	return c.counter(control.GetNumUnconsumedRequests)
}

// NumUnsentResponses returns the number of staged replies not yet sent.
func (c *Client) NumUnsentResponses() (uint32, error) {
	return c.counter(control.GetNumUnsentResponses)
}
