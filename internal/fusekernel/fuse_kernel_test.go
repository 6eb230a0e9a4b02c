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

package fusekernel

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestInHeaderOffsets(t *testing.T) {
	h := InHeader{
		Len:    InHeaderSize + 4,
		Opcode: OpLookup,
		Unique: 0x1122334455667788,
		NodeID: RootID,
		UID:    1000,
		GID:    1001,
		PID:    4242,
	}

	b := make([]byte, InHeaderSize)
	h.Encode(b)

	if got := binary.NativeEndian.Uint32(b[4:]); got != OpLookup {
		t.Errorf("opcode at offset 4: got %d", got)
	}

	if got := binary.NativeEndian.Uint64(b[8:]); got != h.Unique {
		t.Errorf("unique at offset 8: got %#x", got)
	}

	if got := UniqueOf(b); got != h.Unique {
		t.Errorf("UniqueOf: got %#x", got)
	}

	if got := binary.NativeEndian.Uint32(b[32:]); got != 4242 {
		t.Errorf("pid at offset 32: got %d", got)
	}

	var decoded InHeader
	if err := decoded.Decode(b); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if diff := pretty.Compare(h, decoded); diff != "" {
		t.Errorf("InHeader diff (-want +got):\n%s", diff)
	}
}

func TestOutHeaderNegativeError(t *testing.T) {
	h := OutHeader{Len: OutHeaderSize, Error: -38, Unique: 7}
	b := make([]byte, OutHeaderSize)
	h.Encode(b)

	PatchUnique(b, 99)

	var decoded OutHeader
	if err := decoded.Decode(b); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := OutHeader{Len: OutHeaderSize, Error: -38, Unique: 99}
	if diff := pretty.Compare(want, decoded); diff != "" {
		t.Errorf("OutHeader diff (-want +got):\n%s", diff)
	}
}

func TestEntryOutModeOffset(t *testing.T) {
	e := EntryOut{
		NodeID: 3,
		Attr: Attr{
			Ino:     3,
			Size:    512,
			Mode:    0100644,
			Nlink:   2,
			BlkSize: 4096,
		},
	}

	b := make([]byte, EntryOutSize)
	e.Encode(b)

	if got := binary.NativeEndian.Uint32(b[40+60:]); got != 0100644 {
		t.Errorf("mode at offset 100: got %o", got)
	}

	var decoded EntryOut
	if err := decoded.Decode(b); err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if diff := pretty.Compare(e, decoded); diff != "" {
		t.Errorf("EntryOut diff (-want +got):\n%s", diff)
	}
}

func TestInitOutReservedTail(t *testing.T) {
	b := make([]byte, InitOutSize)
	for i := range b {
		b[i] = 0xff
	}

	o := InitOut{Major: ProtoVersionMajor}
	o.Encode(b)

	for i := 4; i < InitOutSize; i++ {
		if b[i] != 0 {
			t.Fatalf("byte %d: got %#x, want 0", i, b[i])
		}
	}
}

func TestShortMessage(t *testing.T) {
	var h InHeader
	err := h.Decode(make([]byte, InHeaderSize-1))
	if !errors.Is(err, ErrShortMessage) {
		t.Errorf("got %v, want ErrShortMessage", err)
	}

	var e EntryOut
	err = e.Decode(make([]byte, EntryOutSize-1))
	if !errors.Is(err, ErrShortMessage) {
		t.Errorf("got %v, want ErrShortMessage", err)
	}
}

func TestOpName(t *testing.T) {
	if got := OpName(OpLookup); got != "LOOKUP" {
		t.Errorf("OpName(OpLookup) = %q", got)
	}

	if got := OpName(7); got != "opcode(7)" {
		t.Errorf("OpName(7) = %q", got)
	}

	if ExpectsReply(OpForget) || !ExpectsReply(OpRead) {
		t.Errorf("ExpectsReply mismatch")
	}
}
