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
	"io"
	"log"
	"syscall"

	"github.com/jacobsa/fakefuse"
	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/fakefuse/fuseutil"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

// Exercises the leftover checks that FuseTest.TearDown reports, without going
// through TearDown itself.
type LeftoversTest struct {
	ft        FuseTest
	destroyed bool
}

func init() { RegisterTestSuite(&LeftoversTest{}) }

func (t *LeftoversTest) SetUp(ti *TestInfo) {
	t.ft.UseFakeKernel = true
	t.ft.Config = fakefuse.Config{
		Isolation:   fakefuse.InProcess,
		ErrorLogger: log.New(io.Discard, "", 0),
	}

	AssertEq(nil, t.ft.initialize())
}

func (t *LeftoversTest) TearDown() {
	if !t.destroyed {
		t.ft.destroy()
	}
}

func (t *LeftoversTest) destroy() []string {
	t.destroyed = true
	leftovers, err := t.ft.destroy()
	AssertEq(nil, err)
	return leftovers
}

func (t *LeftoversTest) getattr(nodeID uint64) {
	in := make([]byte, fuseops.GetattrInSize)
	(&fuseops.GetattrIn{}).Encode(in)

	_, err := t.ft.Kernel.Call(fuseops.OpGetattr, nodeID, in)
	AssertEq(nil, err)
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *LeftoversTest) NothingLeft() {
	t.ft.Fuse.SetServerResponse(fuseops.OpGetattr, fuseutil.NewErrorResponse(syscall.EIO))
	t.getattr(3)
	t.ft.Fuse.GetServerActualRequestParsed()

	ExpectEq(0, len(t.destroy()))
}

func (t *LeftoversTest) UnsentResponse() {
	t.ft.Fuse.SetServerResponse(fuseops.OpStatfs, fuseutil.NewErrorResponse(syscall.ENOSYS))

	ExpectThat(t.destroy(), ElementsAre("1 unsent responses"))
}

func (t *LeftoversTest) UnconsumedRequest() {
	t.ft.Fuse.SetServerResponse(fuseops.OpGetattr, fuseutil.NewErrorResponse(syscall.EIO))
	t.getattr(3)

	ExpectThat(t.destroy(), ElementsAre("1 unconsumed requests"))
}

func (t *LeftoversTest) ServerFailure() {
	// Nothing staged, so the server records a failure. The request is still
	// queued.
	t.getattr(3)

	ExpectThat(
		t.destroy(),
		ElementsAre(
			"server reported a failure",
			"1 unconsumed requests",
		))
}
