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

// Package fusekernel describes the messages exchanged with the kernel over
// /dev/fuse, as laid out in include/uapi/linux/fuse.h.
//
// Every message type is encoded and decoded field by field at fixed byte
// offsets in host byte order. Nothing here depends on the memory layout of
// the Go structs.
package fusekernel

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// The byte order used on the wire. The kernel speaks host order.
var order = binary.NativeEndian

// Protocol version spoken by the harness during the handshake.
const (
	ProtoVersionMajor = 7
	ProtoVersionMinor = 0
)

// MinReadBuffer is the smallest buffer the kernel accepts for a read from
// /dev/fuse. The harness never reads or stages larger messages.
const MinReadBuffer = 8192

// RootID is the node ID of the mount's root directory.
const RootID = 1

// ErrShortMessage is returned by the Decode methods when the source is
// smaller than the fixed-size structure being decoded.
var ErrShortMessage = errors.New("fusekernel: short message")

func checkLen(what string, b []byte, size int) error {
	if len(b) < size {
		return fmt.Errorf("%w: %s needs %d bytes, have %d", ErrShortMessage, what, size, len(b))
	}

	return nil
}

////////////////////////////////////////////////////////////////////////
// Opcodes
////////////////////////////////////////////////////////////////////////

// Opcodes of FUSE requests.
const (
	OpLookup      = 1
	OpForget      = 2 // no reply
	OpGetattr     = 3
	OpSetattr     = 4
	OpReadlink    = 5
	OpSymlink     = 6
	OpMknod       = 8
	OpMkdir       = 9
	OpUnlink      = 10
	OpRmdir       = 11
	OpRename      = 12
	OpLink        = 13
	OpOpen        = 14
	OpRead        = 15
	OpWrite       = 16
	OpStatfs      = 17
	OpRelease     = 18
	OpFsync       = 20
	OpSetxattr    = 21
	OpGetxattr    = 22
	OpListxattr   = 23
	OpRemovexattr = 24
	OpFlush       = 25
	OpInit        = 26
	OpOpendir     = 27
	OpReaddir     = 28
	OpReleasedir  = 29
	OpFsyncdir    = 30
	OpGetlk       = 31
	OpSetlk       = 32
	OpSetlkw      = 33
	OpAccess      = 34
	OpCreate      = 35
	OpInterrupt   = 36
	OpBmap        = 37
	OpDestroy     = 38
	OpIoctl       = 39
	OpPoll        = 40
	OpNotifyReply = 41
	OpBatchForget = 42
	OpFallocate   = 43
	OpReaddirplus = 44
	OpRename2     = 45
	OpLseek       = 46
)

var opNames = map[uint32]string{
	OpLookup:      "LOOKUP",
	OpForget:      "FORGET",
	OpGetattr:     "GETATTR",
	OpSetattr:     "SETATTR",
	OpReadlink:    "READLINK",
	OpSymlink:     "SYMLINK",
	OpMknod:       "MKNOD",
	OpMkdir:       "MKDIR",
	OpUnlink:      "UNLINK",
	OpRmdir:       "RMDIR",
	OpRename:      "RENAME",
	OpLink:        "LINK",
	OpOpen:        "OPEN",
	OpRead:        "READ",
	OpWrite:       "WRITE",
	OpStatfs:      "STATFS",
	OpRelease:     "RELEASE",
	OpFsync:       "FSYNC",
	OpSetxattr:    "SETXATTR",
	OpGetxattr:    "GETXATTR",
	OpListxattr:   "LISTXATTR",
	OpRemovexattr: "REMOVEXATTR",
	OpFlush:       "FLUSH",
	OpInit:        "INIT",
	OpOpendir:     "OPENDIR",
	OpReaddir:     "READDIR",
	OpReleasedir:  "RELEASEDIR",
	OpFsyncdir:    "FSYNCDIR",
	OpGetlk:       "GETLK",
	OpSetlk:       "SETLK",
	OpSetlkw:      "SETLKW",
	OpAccess:      "ACCESS",
	OpCreate:      "CREATE",
	OpInterrupt:   "INTERRUPT",
	OpBmap:        "BMAP",
	OpDestroy:     "DESTROY",
	OpIoctl:       "IOCTL",
	OpPoll:        "POLL",
	OpNotifyReply: "NOTIFY_REPLY",
	OpBatchForget: "BATCH_FORGET",
	OpFallocate:   "FALLOCATE",
	OpReaddirplus: "READDIRPLUS",
	OpRename2:     "RENAME2",
	OpLseek:       "LSEEK",
}

// OpName returns a human-readable name for the opcode.
func OpName(opcode uint32) string {
	if name, ok := opNames[opcode]; ok {
		return name
	}

	return fmt.Sprintf("opcode(%d)", opcode)
}

// ExpectsReply reports whether the kernel waits for an answer to requests
// with the given opcode.
func ExpectsReply(opcode uint32) bool {
	return opcode != OpForget && opcode != OpBatchForget
}

////////////////////////////////////////////////////////////////////////
// Headers
////////////////////////////////////////////////////////////////////////

// InHeader leads every request read from the kernel.
type InHeader struct {
	Len    uint32
	Opcode uint32
	Unique uint64
	NodeID uint64
	UID    uint32
	GID    uint32
	PID    uint32
}

const InHeaderSize = 40

func (h *InHeader) Encode(b []byte) {
	_ = b[InHeaderSize-1]
	order.PutUint32(b[0:], h.Len)
	order.PutUint32(b[4:], h.Opcode)
	order.PutUint64(b[8:], h.Unique)
	order.PutUint64(b[16:], h.NodeID)
	order.PutUint32(b[24:], h.UID)
	order.PutUint32(b[28:], h.GID)
	order.PutUint32(b[32:], h.PID)
	order.PutUint32(b[36:], 0)
}

func (h *InHeader) Decode(b []byte) error {
	if err := checkLen("InHeader", b, InHeaderSize); err != nil {
		return err
	}

	h.Len = order.Uint32(b[0:])
	h.Opcode = order.Uint32(b[4:])
	h.Unique = order.Uint64(b[8:])
	h.NodeID = order.Uint64(b[16:])
	h.UID = order.Uint32(b[24:])
	h.GID = order.Uint32(b[28:])
	h.PID = order.Uint32(b[32:])
	return nil
}

// OutHeader leads every reply written to the kernel. Error is zero or a
// negated errno.
type OutHeader struct {
	Len    uint32
	Error  int32
	Unique uint64
}

const OutHeaderSize = 16

func (h *OutHeader) Encode(b []byte) {
	_ = b[OutHeaderSize-1]
	order.PutUint32(b[0:], h.Len)
	order.PutUint32(b[4:], uint32(h.Error))
	order.PutUint64(b[8:], h.Unique)
}

func (h *OutHeader) Decode(b []byte) error {
	if err := checkLen("OutHeader", b, OutHeaderSize); err != nil {
		return err
	}

	h.Len = order.Uint32(b[0:])
	h.Error = int32(order.Uint32(b[4:]))
	h.Unique = order.Uint64(b[8:])
	return nil
}

// PatchUnique overwrites the unique field of the encoded OutHeader at the
// start of b.
func PatchUnique(b []byte, unique uint64) {
	order.PutUint64(b[8:], unique)
}

// UniqueOf returns the unique field of the encoded InHeader or OutHeader at
// the start of b. Both headers keep it at the same offset.
func UniqueOf(b []byte) uint64 {
	return order.Uint64(b[8:])
}

////////////////////////////////////////////////////////////////////////
// Attributes and entries
////////////////////////////////////////////////////////////////////////

type Attr struct {
	Ino       uint64
	Size      uint64
	Blocks    uint64
	Atime     uint64
	Mtime     uint64
	Ctime     uint64
	AtimeNsec uint32
	MtimeNsec uint32
	CtimeNsec uint32
	Mode      uint32
	Nlink     uint32
	UID       uint32
	GID       uint32
	Rdev      uint32
	BlkSize   uint32
}

const AttrSize = 88

func (a *Attr) Encode(b []byte) {
	_ = b[AttrSize-1]
	order.PutUint64(b[0:], a.Ino)
	order.PutUint64(b[8:], a.Size)
	order.PutUint64(b[16:], a.Blocks)
	order.PutUint64(b[24:], a.Atime)
	order.PutUint64(b[32:], a.Mtime)
	order.PutUint64(b[40:], a.Ctime)
	order.PutUint32(b[48:], a.AtimeNsec)
	order.PutUint32(b[52:], a.MtimeNsec)
	order.PutUint32(b[56:], a.CtimeNsec)
	order.PutUint32(b[60:], a.Mode)
	order.PutUint32(b[64:], a.Nlink)
	order.PutUint32(b[68:], a.UID)
	order.PutUint32(b[72:], a.GID)
	order.PutUint32(b[76:], a.Rdev)
	order.PutUint32(b[80:], a.BlkSize)
	order.PutUint32(b[84:], 0)
}

func (a *Attr) Decode(b []byte) error {
	if err := checkLen("Attr", b, AttrSize); err != nil {
		return err
	}

	a.Ino = order.Uint64(b[0:])
	a.Size = order.Uint64(b[8:])
	a.Blocks = order.Uint64(b[16:])
	a.Atime = order.Uint64(b[24:])
	a.Mtime = order.Uint64(b[32:])
	a.Ctime = order.Uint64(b[40:])
	a.AtimeNsec = order.Uint32(b[48:])
	a.MtimeNsec = order.Uint32(b[52:])
	a.CtimeNsec = order.Uint32(b[56:])
	a.Mode = order.Uint32(b[60:])
	a.Nlink = order.Uint32(b[64:])
	a.UID = order.Uint32(b[68:])
	a.GID = order.Uint32(b[72:])
	a.Rdev = order.Uint32(b[76:])
	a.BlkSize = order.Uint32(b[80:])
	return nil
}

// EntryOut is the reply to LOOKUP, MKNOD, MKDIR, SYMLINK and LINK.
type EntryOut struct {
	NodeID         uint64
	Generation     uint64
	EntryValid     uint64
	AttrValid      uint64
	EntryValidNsec uint32
	AttrValidNsec  uint32
	Attr           Attr
}

const EntryOutSize = 40 + AttrSize

func (e *EntryOut) Encode(b []byte) {
	_ = b[EntryOutSize-1]
	order.PutUint64(b[0:], e.NodeID)
	order.PutUint64(b[8:], e.Generation)
	order.PutUint64(b[16:], e.EntryValid)
	order.PutUint64(b[24:], e.AttrValid)
	order.PutUint32(b[32:], e.EntryValidNsec)
	order.PutUint32(b[36:], e.AttrValidNsec)
	e.Attr.Encode(b[40:])
}

func (e *EntryOut) Decode(b []byte) error {
	if err := checkLen("EntryOut", b, EntryOutSize); err != nil {
		return err
	}

	e.NodeID = order.Uint64(b[0:])
	e.Generation = order.Uint64(b[8:])
	e.EntryValid = order.Uint64(b[16:])
	e.AttrValid = order.Uint64(b[24:])
	e.EntryValidNsec = order.Uint32(b[32:])
	e.AttrValidNsec = order.Uint32(b[36:])
	return e.Attr.Decode(b[40:])
}

// AttrOut is the reply to GETATTR and SETATTR.
type AttrOut struct {
	AttrValid     uint64
	AttrValidNsec uint32
	Attr          Attr
}

const AttrOutSize = 16 + AttrSize

func (a *AttrOut) Encode(b []byte) {
	_ = b[AttrOutSize-1]
	order.PutUint64(b[0:], a.AttrValid)
	order.PutUint32(b[8:], a.AttrValidNsec)
	order.PutUint32(b[12:], 0)
	a.Attr.Encode(b[16:])
}

func (a *AttrOut) Decode(b []byte) error {
	if err := checkLen("AttrOut", b, AttrOutSize); err != nil {
		return err
	}

	a.AttrValid = order.Uint64(b[0:])
	a.AttrValidNsec = order.Uint32(b[8:])
	return a.Attr.Decode(b[16:])
}

////////////////////////////////////////////////////////////////////////
// Init
////////////////////////////////////////////////////////////////////////

type InitIn struct {
	Major        uint32
	Minor        uint32
	MaxReadahead uint32
	Flags        uint32
}

const InitInSize = 16

func (in *InitIn) Encode(b []byte) {
	_ = b[InitInSize-1]
	order.PutUint32(b[0:], in.Major)
	order.PutUint32(b[4:], in.Minor)
	order.PutUint32(b[8:], in.MaxReadahead)
	order.PutUint32(b[12:], in.Flags)
}

func (in *InitIn) Decode(b []byte) error {
	if err := checkLen("InitIn", b, InitInSize); err != nil {
		return err
	}

	in.Major = order.Uint32(b[0:])
	in.Minor = order.Uint32(b[4:])
	in.MaxReadahead = order.Uint32(b[8:])
	in.Flags = order.Uint32(b[12:])
	return nil
}

type InitOut struct {
	Major               uint32
	Minor               uint32
	MaxReadahead        uint32
	Flags               uint32
	MaxBackground       uint16
	CongestionThreshold uint16
	MaxWrite            uint32
	TimeGran            uint32
	MaxPages            uint16
	MapAlignment        uint16
}

// The trailing 32 bytes are reserved and always zero.
const InitOutSize = 64

func (o *InitOut) Encode(b []byte) {
	_ = b[InitOutSize-1]
	order.PutUint32(b[0:], o.Major)
	order.PutUint32(b[4:], o.Minor)
	order.PutUint32(b[8:], o.MaxReadahead)
	order.PutUint32(b[12:], o.Flags)
	order.PutUint16(b[16:], o.MaxBackground)
	order.PutUint16(b[18:], o.CongestionThreshold)
	order.PutUint32(b[20:], o.MaxWrite)
	order.PutUint32(b[24:], o.TimeGran)
	order.PutUint16(b[28:], o.MaxPages)
	order.PutUint16(b[30:], o.MapAlignment)
	for i := 32; i < InitOutSize; i++ {
		b[i] = 0
	}
}

func (o *InitOut) Decode(b []byte) error {
	if err := checkLen("InitOut", b, InitOutSize); err != nil {
		return err
	}

	o.Major = order.Uint32(b[0:])
	o.Minor = order.Uint32(b[4:])
	o.MaxReadahead = order.Uint32(b[8:])
	o.Flags = order.Uint32(b[12:])
	o.MaxBackground = order.Uint16(b[16:])
	o.CongestionThreshold = order.Uint16(b[18:])
	o.MaxWrite = order.Uint32(b[20:])
	o.TimeGran = order.Uint32(b[24:])
	o.MaxPages = order.Uint16(b[28:])
	o.MapAlignment = order.Uint16(b[30:])
	return nil
}
