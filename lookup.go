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
	"github.com/jacobsa/fakefuse/internal/buffer"
	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

// Attributes reported for every inode registered with SetInodeLookup, apart
// from the mode and inode number.
const (
	lookupSize    = 512
	lookupBlocks  = 4
	lookupNlink   = 2
	lookupUID     = 1234
	lookupGID     = 4321
	lookupRdev    = 12
	lookupBlkSize = 4096
)

// Prepared replies to LOOKUP, keyed by the name the kernel looks up. Each
// reply is stored whole, header included, so that answering a request is a
// matter of patching in its unique ID.
type lookupTable struct {
	buf     buffer.MemBuffer[uint32]
	entries map[string]buffer.MemBlock[uint32]

	// The node ID handed to the next registration. IDs start after the root's,
	// which Linux refuses to see returned by LOOKUP.
	nextNodeID uint64
}

func newLookupTable() *lookupTable {
	return &lookupTable{
		entries:    make(map[string]buffer.MemBlock[uint32]),
		nextNodeID: fusekernel.RootID + 1,
	}
}

// Register a reply for the given name, replacing any earlier one. Every call
// uses a fresh node ID, which is returned.
func (t *lookupTable) add(name string, mode uint32) (nodeID uint64) {
	nodeID = t.nextNodeID
	t.nextNodeID++

	e := fusekernel.EntryOut{
		NodeID: nodeID,
		Attr: fusekernel.Attr{
			Ino:     nodeID,
			Size:    lookupSize,
			Blocks:  lookupBlocks,
			Mode:    mode,
			Nlink:   lookupNlink,
			UID:     lookupUID,
			GID:     lookupGID,
			Rdev:    lookupRdev,
			BlkSize: lookupBlkSize,
		},
	}

	var msg [fusekernel.OutHeaderSize + fusekernel.EntryOutSize]byte
	h := fusekernel.OutHeader{Len: uint32(len(msg))}
	h.Encode(msg[:])
	e.Encode(msg[fusekernel.OutHeaderSize:])

	t.entries[name] = t.buf.AddMemBlock(fusekernel.OpLookup, msg[:])

	return
}

// Return the stored reply for the given name. The result aliases the table's
// storage and stays valid until the next call to add.
func (t *lookupTable) find(name string) (reply []byte, ok bool) {
	block, ok := t.entries[name]
	if !ok {
		return
	}

	reply = t.buf.Data(block)
	return
}
