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
	"errors"

	"github.com/jacobsa/fakefuse"
	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/ogletest"
)

// Driver wraps the control client of a server for use from test bodies.
//
// Its methods follow the failure semantics of the server: a failure the
// server reports (an unexpected request, say) fails the test but lets it
// continue, while a broken control channel aborts it.
type Driver struct {
	server *fakefuse.MountedServer
}

// NewDriver returns a driver for the given server.
func NewDriver(server *fakefuse.MountedServer) *Driver {
	return &Driver{server: server}
}

// Record err as a failure. Failures reported by the server let the test go
// on; anything else aborts it.
func (d *Driver) check(err error) {
	if err == nil {
		return
	}

	if errors.Is(err, fakefuse.ErrServerFailure) {
		ogletest.ExpectEq(nil, err)
		return
	}

	ogletest.AssertEq(nil, err)
}

// Stage a reply for the next request with the given opcode. See
// fakefuse.Client.SetResponse.
func (d *Driver) SetServerResponse(op fuseops.OpCode, parts ...[]byte) {
	d.check(d.server.Client().SetResponse(op, parts...))
}

// Retrieve the oldest request not yet retrieved into bufs, returning its
// size. See fakefuse.Client.GetRequest.
func (d *Driver) GetServerActualRequest(bufs ...[]byte) int {
	n, err := d.server.Client().GetRequest(bufs...)
	d.check(err)
	return n
}

// Like GetServerActualRequest, but decode the request.
func (d *Driver) GetServerActualRequestParsed() fuseops.Request {
	r, err := d.server.Client().NextRequest()
	d.check(err)
	return r
}

// Make the server answer lookups of name itself. See
// fakefuse.Client.SetInodeLookup.
func (d *Driver) SetServerInodeLookup(name string, mode uint32) {
	d.check(d.server.Client().SetInodeLookup(name, mode))
}

func (d *Driver) GetServerTotalReceivedBytes() uint32 {
	v, err := d.server.Client().TotalReceivedBytes()
	d.check(err)
	return v
}

func (d *Driver) GetServerNumUnconsumedRequests() uint32 {
	v, err := d.server.Client().NumUnconsumedRequests()
	d.check(err)
	return v
}

func (d *Driver) GetServerNumUnsentResponses() uint32 {
	v, err := d.server.Client().NumUnsentResponses()
	d.check(err)
	return v
}
