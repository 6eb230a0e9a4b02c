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

// Flags returned in OpenOut.OpenFlags.
const (
	OpenDirectIO    = 1 << 0
	OpenKeepCache   = 1 << 1
	OpenNonSeekable = 1 << 2
)

// GetattrFh is set in GetattrIn.GetattrFlags when Fh is valid.
const GetattrFh = 1 << 0

// OpenIn is the body of OPEN and OPENDIR.
type OpenIn struct {
	Flags uint32
}

const OpenInSize = 8

func (o *OpenIn) Encode(b []byte) {
	_ = b[OpenInSize-1]
	order.PutUint32(b[0:], o.Flags)
	order.PutUint32(b[4:], 0)
}

func (o *OpenIn) Decode(b []byte) error {
	if err := checkLen("OpenIn", b, OpenInSize); err != nil {
		return err
	}

	o.Flags = order.Uint32(b[0:])
	return nil
}

type OpenOut struct {
	Fh        uint64
	OpenFlags uint32
}

const OpenOutSize = 16

func (o *OpenOut) Encode(b []byte) {
	_ = b[OpenOutSize-1]
	order.PutUint64(b[0:], o.Fh)
	order.PutUint32(b[8:], o.OpenFlags)
	order.PutUint32(b[12:], 0)
}

func (o *OpenOut) Decode(b []byte) error {
	if err := checkLen("OpenOut", b, OpenOutSize); err != nil {
		return err
	}

	o.Fh = order.Uint64(b[0:])
	o.OpenFlags = order.Uint32(b[8:])
	return nil
}

// ReadIn is the body of READ and READDIR.
type ReadIn struct {
	Fh        uint64
	Offset    uint64
	Size      uint32
	ReadFlags uint32
	LockOwner uint64
	Flags     uint32
}

const ReadInSize = 40

func (r *ReadIn) Encode(b []byte) {
	_ = b[ReadInSize-1]
	order.PutUint64(b[0:], r.Fh)
	order.PutUint64(b[8:], r.Offset)
	order.PutUint32(b[16:], r.Size)
	order.PutUint32(b[20:], r.ReadFlags)
	order.PutUint64(b[24:], r.LockOwner)
	order.PutUint32(b[32:], r.Flags)
	order.PutUint32(b[36:], 0)
}

func (r *ReadIn) Decode(b []byte) error {
	if err := checkLen("ReadIn", b, ReadInSize); err != nil {
		return err
	}

	r.Fh = order.Uint64(b[0:])
	r.Offset = order.Uint64(b[8:])
	r.Size = order.Uint32(b[16:])
	r.ReadFlags = order.Uint32(b[20:])
	r.LockOwner = order.Uint64(b[24:])
	r.Flags = order.Uint32(b[32:])
	return nil
}

// WriteIn precedes the data in the body of WRITE.
type WriteIn struct {
	Fh         uint64
	Offset     uint64
	Size       uint32
	WriteFlags uint32
	LockOwner  uint64
	Flags      uint32
}

const WriteInSize = 40

func (w *WriteIn) Encode(b []byte) {
	_ = b[WriteInSize-1]
	order.PutUint64(b[0:], w.Fh)
	order.PutUint64(b[8:], w.Offset)
	order.PutUint32(b[16:], w.Size)
	order.PutUint32(b[20:], w.WriteFlags)
	order.PutUint64(b[24:], w.LockOwner)
	order.PutUint32(b[32:], w.Flags)
	order.PutUint32(b[36:], 0)
}

func (w *WriteIn) Decode(b []byte) error {
	if err := checkLen("WriteIn", b, WriteInSize); err != nil {
		return err
	}

	w.Fh = order.Uint64(b[0:])
	w.Offset = order.Uint64(b[8:])
	w.Size = order.Uint32(b[16:])
	w.WriteFlags = order.Uint32(b[20:])
	w.LockOwner = order.Uint64(b[24:])
	w.Flags = order.Uint32(b[32:])
	return nil
}

type WriteOut struct {
	Size uint32
}

const WriteOutSize = 8

func (w *WriteOut) Encode(b []byte) {
	_ = b[WriteOutSize-1]
	order.PutUint32(b[0:], w.Size)
	order.PutUint32(b[4:], 0)
}

func (w *WriteOut) Decode(b []byte) error {
	if err := checkLen("WriteOut", b, WriteOutSize); err != nil {
		return err
	}

	w.Size = order.Uint32(b[0:])
	return nil
}

type GetattrIn struct {
	GetattrFlags uint32
	Fh           uint64
}

const GetattrInSize = 16

func (g *GetattrIn) Encode(b []byte) {
	_ = b[GetattrInSize-1]
	order.PutUint32(b[0:], g.GetattrFlags)
	order.PutUint32(b[4:], 0)
	order.PutUint64(b[8:], g.Fh)
}

func (g *GetattrIn) Decode(b []byte) error {
	if err := checkLen("GetattrIn", b, GetattrInSize); err != nil {
		return err
	}

	g.GetattrFlags = order.Uint32(b[0:])
	g.Fh = order.Uint64(b[8:])
	return nil
}

// MkdirIn precedes the NUL-terminated name in the body of MKDIR.
type MkdirIn struct {
	Mode  uint32
	Umask uint32
}

const MkdirInSize = 8

func (m *MkdirIn) Encode(b []byte) {
	_ = b[MkdirInSize-1]
	order.PutUint32(b[0:], m.Mode)
	order.PutUint32(b[4:], m.Umask)
}

func (m *MkdirIn) Decode(b []byte) error {
	if err := checkLen("MkdirIn", b, MkdirInSize); err != nil {
		return err
	}

	m.Mode = order.Uint32(b[0:])
	m.Umask = order.Uint32(b[4:])
	return nil
}

// ReleaseIn is the body of RELEASE and RELEASEDIR.
type ReleaseIn struct {
	Fh           uint64
	Flags        uint32
	ReleaseFlags uint32
	LockOwner    uint64
}

const ReleaseInSize = 24

func (r *ReleaseIn) Encode(b []byte) {
	_ = b[ReleaseInSize-1]
	order.PutUint64(b[0:], r.Fh)
	order.PutUint32(b[8:], r.Flags)
	order.PutUint32(b[12:], r.ReleaseFlags)
	order.PutUint64(b[16:], r.LockOwner)
}

func (r *ReleaseIn) Decode(b []byte) error {
	if err := checkLen("ReleaseIn", b, ReleaseInSize); err != nil {
		return err
	}

	r.Fh = order.Uint64(b[0:])
	r.Flags = order.Uint32(b[8:])
	r.ReleaseFlags = order.Uint32(b[12:])
	r.LockOwner = order.Uint64(b[16:])
	return nil
}

// ForgetIn is the body of FORGET.
type ForgetIn struct {
	Nlookup uint64
}

const ForgetInSize = 8

func (f *ForgetIn) Encode(b []byte) {
	_ = b[ForgetInSize-1]
	order.PutUint64(b[0:], f.Nlookup)
}

func (f *ForgetIn) Decode(b []byte) error {
	if err := checkLen("ForgetIn", b, ForgetInSize); err != nil {
		return err
	}

	f.Nlookup = order.Uint64(b[0:])
	return nil
}

// Dirent is the fixed part of an entry in a READDIR reply. The name follows,
// padded to DirentAlign.
type Dirent struct {
	Ino     uint64
	Off     uint64
	Namelen uint32
	Type    uint32
}

const (
	DirentSize  = 24
	DirentAlign = 8
)

func (d *Dirent) Encode(b []byte) {
	_ = b[DirentSize-1]
	order.PutUint64(b[0:], d.Ino)
	order.PutUint64(b[8:], d.Off)
	order.PutUint32(b[16:], d.Namelen)
	order.PutUint32(b[20:], d.Type)
}

func (d *Dirent) Decode(b []byte) error {
	if err := checkLen("Dirent", b, DirentSize); err != nil {
		return err
	}

	d.Ino = order.Uint64(b[0:])
	d.Off = order.Uint64(b[8:])
	d.Namelen = order.Uint32(b[16:])
	d.Type = order.Uint32(b[20:])
	return nil
}
