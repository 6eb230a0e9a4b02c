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
	"syscall"
	"testing"

	"github.com/jacobsa/fakefuse/internal/fusekernel"
	. "github.com/jacobsa/ogletest"
	"github.com/kylelemons/godebug/pretty"
)

func TestLookupTable(t *testing.T) { RunTests(t) }

type LookupTableTest struct {
	table *lookupTable
}

var _ SetUpInterface = &LookupTableTest{}

func init() { RegisterTestSuite(&LookupTableTest{}) }

func (t *LookupTableTest) SetUp(ti *TestInfo) {
	t.table = newLookupTable()
}

// Decode a stored reply, checking its header.
func decodeLookupReply(reply []byte) (e fusekernel.EntryOut) {
	AssertEq(fusekernel.OutHeaderSize+fusekernel.EntryOutSize, len(reply))

	var h fusekernel.OutHeader
	AssertEq(nil, h.Decode(reply))
	ExpectEq(len(reply), h.Len)
	ExpectEq(0, h.Error)

	AssertEq(nil, e.Decode(reply[fusekernel.OutHeaderSize:]))
	return
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *LookupTableTest) UnknownName() {
	_, ok := t.table.find("taco")
	ExpectFalse(ok)
}

func (t *LookupTableTest) NodeIDsFollowRoot() {
	ExpectEq(fusekernel.RootID+1, t.table.add("foo", syscall.S_IFDIR|0755))
	ExpectEq(fusekernel.RootID+2, t.table.add("bar", syscall.S_IFREG|0644))
}

func (t *LookupTableTest) FixedAttributes() {
	nodeID := t.table.add("foo", syscall.S_IFREG|0600)

	reply, ok := t.table.find("foo")
	AssertTrue(ok)

	expected := fusekernel.EntryOut{
		NodeID: nodeID,
		Attr: fusekernel.Attr{
			Ino:     nodeID,
			Size:    512,
			Blocks:  4,
			Mode:    syscall.S_IFREG | 0600,
			Nlink:   2,
			UID:     1234,
			GID:     4321,
			Rdev:    12,
			BlkSize: 4096,
		},
	}

	if diff := pretty.Compare(expected, decodeLookupReply(reply)); diff != "" {
		AddFailure("Entry differs (-want +got):\n%s", diff)
	}
}

func (t *LookupTableTest) ReregisteringReplaces() {
	first := t.table.add("foo", syscall.S_IFDIR|0755)
	t.table.add("bar", syscall.S_IFDIR|0755)
	second := t.table.add("foo", syscall.S_IFREG|0644)

	ExpectNe(first, second)
	ExpectEq(fusekernel.RootID+3, second)

	reply, ok := t.table.find("foo")
	AssertTrue(ok)

	e := decodeLookupReply(reply)
	ExpectEq(second, e.NodeID)
	ExpectEq(second, e.Attr.Ino)
	ExpectEq(syscall.S_IFREG|0644, e.Attr.Mode)

	// Other entries are unaffected.
	reply, ok = t.table.find("bar")
	AssertTrue(ok)
	ExpectEq(fusekernel.RootID+2, decodeLookupReply(reply).NodeID)
}

func (t *LookupTableTest) RepliesAreIndependent() {
	t.table.add("foo", syscall.S_IFDIR|0755)
	t.table.add("bar", syscall.S_IFDIR|0755)

	foo, _ := t.table.find("foo")
	fusekernel.PatchUnique(foo, 17)

	bar, _ := t.table.find("bar")
	ExpectEq(0, fusekernel.UniqueOf(bar))

	foo, _ = t.table.find("foo")
	ExpectEq(17, fusekernel.UniqueOf(foo))
}
