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

package fakefuse_test

import (
	"os"
	"path"
	"syscall"
	"testing"
	"time"

	"github.com/jacobsa/fakefuse"
	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/fakefuse/fusetesting"
	"github.com/jacobsa/fakefuse/fuseutil"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

func TestMount(t *testing.T) { RunTests(t) }

// Mounting needs root and a fuse device.
func canMount() bool {
	if os.Geteuid() != 0 {
		return false
	}

	_, err := os.Stat("/dev/fuse")
	return err == nil
}

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type MountTest struct {
	fusetesting.FuseTest
}

func init() { RegisterTestSuite(&MountTest{}) }

func (t *MountTest) SetUp(ti *TestInfo) {
	if !canMount() {
		return
	}

	t.Config.Isolation = fakefuse.InProcess
	t.Config.ProtocolMinor = 31
	t.FuseTest.SetUp(ti)
}

func (t *MountTest) TearDown() {
	t.FuseTest.TearDown()
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *MountTest) MountPointIsDirectory() {
	if t.Server == nil {
		return
	}

	t.Fuse.SetServerResponse(
		fuseops.OpGetattr,
		fuseutil.NewAttrResponse(fuseops.AttrOut{
			Attr: fuseops.Attr{
				Ino:   fuseops.RootInodeID,
				Mode:  syscall.S_IFDIR | 0755,
				Nlink: 2,
			},
		}))

	fi, err := os.Stat(t.Dir)
	AssertEq(nil, err)
	ExpectTrue(fi.IsDir())
	ExpectThat(fi, fusetesting.RawModeIs(syscall.S_IFDIR|0755))

	r := t.Fuse.GetServerActualRequestParsed()
	ExpectEq(fuseops.OpGetattr, r.Header.Opcode)
	ExpectEq(fuseops.RootInodeID, r.Header.NodeID)
}

func (t *MountTest) LookupOfMissingFile() {
	if t.Server == nil {
		return
	}

	t.Fuse.SetServerResponse(fuseops.OpLookup, fuseutil.NewErrorResponse(syscall.ENOENT))

	_, err := os.Lstat(path.Join(t.Dir, "missing"))
	ExpectTrue(os.IsNotExist(err), "err: %v", err)

	r := t.Fuse.GetServerActualRequestParsed()
	AssertEq(fuseops.OpLookup, r.Header.Opcode)
	ExpectEq(fuseops.RootInodeID, r.Header.NodeID)
	ExpectEq("missing\x00", string(r.Body))
}

func (t *MountTest) LookupFromTable() {
	if t.Server == nil {
		return
	}

	const mode = syscall.S_IFDIR | 0755
	t.Fuse.SetServerInodeLookup("dir", mode)

	// The lookup reply is valid for no time at all, so stat asks again.
	t.Fuse.SetServerResponse(
		fuseops.OpGetattr,
		fuseutil.NewAttrResponse(fuseops.AttrOut{
			Attr: fuseops.Attr{
				Ino:     2,
				Size:    512,
				Blocks:  4,
				Mode:    mode,
				Nlink:   2,
				UID:     1234,
				GID:     4321,
				Rdev:    12,
				BlkSize: 4096,
			},
		}))

	fi, err := os.Lstat(path.Join(t.Dir, "dir"))
	AssertEq(nil, err)

	ExpectTrue(fi.IsDir())
	ExpectThat(fi, fusetesting.HasLookupAttributes())
	ExpectThat(fi, fusetesting.RawModeIs(mode))
	ExpectThat(fi, fusetesting.InodeIs(2))

	// Only the GETATTR was recorded.
	r := t.Fuse.GetServerActualRequestParsed()
	ExpectEq(fuseops.OpGetattr, r.Header.Opcode)
	ExpectEq(2, r.Header.NodeID)
}

func (t *MountTest) ReadDir() {
	if t.Server == nil {
		return
	}

	t.Fuse.SetServerResponse(fuseops.OpOpendir, fuseutil.NewOpenResponse(fuseops.OpenOut{Fh: 7}))
	t.Fuse.SetServerResponse(
		fuseops.OpReaddir,
		fuseutil.NewReadDirResponse(
			fuseutil.Dirent{Offset: 1, Inode: 2, Name: "taco", Type: fuseutil.DT_File},
			fuseutil.Dirent{Offset: 2, Inode: 3, Name: "burrito", Type: fuseutil.DT_Directory}))
	t.Fuse.SetServerResponse(fuseops.OpReaddir, fuseutil.NewReadDirResponse())
	t.Fuse.SetServerResponse(fuseops.OpReleasedir, fuseutil.NewResponse())

	names, err := fusetesting.ReadDirNamesPicky(t.Dir)
	AssertEq(nil, err)
	ExpectThat(names, ElementsAre("burrito", "taco"))

	// The kernel releases the directory in the background.
	deadline := time.Now().Add(5 * time.Second)
	for t.Fuse.GetServerNumUnsentResponses() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	var ops []fuseops.OpCode
	for i := 0; i < 4; i++ {
		ops = append(ops, t.Fuse.GetServerActualRequestParsed().Header.Opcode)
	}

	ExpectThat(
		ops,
		ElementsAre(
			fuseops.OpOpendir,
			fuseops.OpReaddir,
			fuseops.OpReaddir,
			fuseops.OpReleasedir))
}
