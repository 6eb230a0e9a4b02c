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

// Package fuseops contains views of the FUSE requests and replies that pass
// through the fake server, for use by test bodies that stage replies and make
// assertions about the requests the kernel actually sent.
package fuseops

import (
	"github.com/jacobsa/fakefuse/internal/fusekernel"
)

// An OpCode identifies the file system operation a request asks for.
type OpCode uint32

const (
	OpLookup      OpCode = fusekernel.OpLookup
	OpForget      OpCode = fusekernel.OpForget
	OpGetattr     OpCode = fusekernel.OpGetattr
	OpSetattr     OpCode = fusekernel.OpSetattr
	OpReadlink    OpCode = fusekernel.OpReadlink
	OpSymlink     OpCode = fusekernel.OpSymlink
	OpMknod       OpCode = fusekernel.OpMknod
	OpMkdir       OpCode = fusekernel.OpMkdir
	OpUnlink      OpCode = fusekernel.OpUnlink
	OpRmdir       OpCode = fusekernel.OpRmdir
	OpRename      OpCode = fusekernel.OpRename
	OpLink        OpCode = fusekernel.OpLink
	OpOpen        OpCode = fusekernel.OpOpen
	OpRead        OpCode = fusekernel.OpRead
	OpWrite       OpCode = fusekernel.OpWrite
	OpStatfs      OpCode = fusekernel.OpStatfs
	OpRelease     OpCode = fusekernel.OpRelease
	OpFsync       OpCode = fusekernel.OpFsync
	OpSetxattr    OpCode = fusekernel.OpSetxattr
	OpGetxattr    OpCode = fusekernel.OpGetxattr
	OpListxattr   OpCode = fusekernel.OpListxattr
	OpRemovexattr OpCode = fusekernel.OpRemovexattr
	OpFlush       OpCode = fusekernel.OpFlush
	OpInit        OpCode = fusekernel.OpInit
	OpOpendir     OpCode = fusekernel.OpOpendir
	OpReaddir     OpCode = fusekernel.OpReaddir
	OpReleasedir  OpCode = fusekernel.OpReleasedir
	OpFsyncdir    OpCode = fusekernel.OpFsyncdir
	OpAccess      OpCode = fusekernel.OpAccess
	OpCreate      OpCode = fusekernel.OpCreate
	OpInterrupt   OpCode = fusekernel.OpInterrupt
	OpDestroy     OpCode = fusekernel.OpDestroy
	OpBatchForget OpCode = fusekernel.OpBatchForget
	OpFallocate   OpCode = fusekernel.OpFallocate
	OpReaddirplus OpCode = fusekernel.OpReaddirplus
	OpRename2     OpCode = fusekernel.OpRename2
	OpLseek       OpCode = fusekernel.OpLseek
)

func (op OpCode) String() string {
	return fusekernel.OpName(uint32(op))
}

// The ID of the root directory of the mount.
const RootInodeID = fusekernel.RootID

////////////////////////////////////////////////////////////////////////
// Request and reply bodies
////////////////////////////////////////////////////////////////////////

// Fixed-size bodies, as laid out by the kernel. See notes on
// Request and Response for decoding them.
type (
	Attr      = fusekernel.Attr
	EntryOut  = fusekernel.EntryOut
	AttrOut   = fusekernel.AttrOut
	InitIn    = fusekernel.InitIn
	InitOut   = fusekernel.InitOut
	OpenIn    = fusekernel.OpenIn
	OpenOut   = fusekernel.OpenOut
	ReadIn    = fusekernel.ReadIn
	WriteIn   = fusekernel.WriteIn
	WriteOut  = fusekernel.WriteOut
	GetattrIn = fusekernel.GetattrIn
	MkdirIn   = fusekernel.MkdirIn
	ReleaseIn = fusekernel.ReleaseIn
	ForgetIn  = fusekernel.ForgetIn
)

// Sizes of the encoded headers.
const (
	RequestHeaderSize  = fusekernel.InHeaderSize
	ResponseHeaderSize = fusekernel.OutHeaderSize
)

// Sizes of the encoded request bodies, for tests building requests by hand.
const (
	OpenInSize    = fusekernel.OpenInSize
	ReadInSize    = fusekernel.ReadInSize
	WriteInSize   = fusekernel.WriteInSize
	GetattrInSize = fusekernel.GetattrInSize
	MkdirInSize   = fusekernel.MkdirInSize
	ReleaseInSize = fusekernel.ReleaseInSize
	ForgetInSize  = fusekernel.ForgetInSize
)
