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
	"fmt"
	"os"
	"reflect"
	"syscall"

	"github.com/jacobsa/fakefuse/fuseops"
	"github.com/jacobsa/oglematchers"
)

// Match os.FileInfo values whose Sys() result reports the given inode
// number, as assigned by the server to a name registered with
// SetServerInodeLookup.
func InodeIs(expected uint64) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return inodeIs(c, expected) },
		fmt.Sprintf("inode is %d", expected))
}

func inodeIs(c interface{}, expected uint64) error {
	st, err := extractStat(c)
	if err != nil {
		return err
	}

	if st.Ino != expected {
		return fmt.Errorf("which has inode %d", st.Ino)
	}

	return nil
}

// Match os.FileInfo values whose Sys() result reports the given raw mode,
// file type bits included.
func RawModeIs(expected uint32) oglematchers.Matcher {
	return oglematchers.NewMatcher(
		func(c interface{}) error { return rawModeIs(c, expected) },
		fmt.Sprintf("raw mode is %#o", expected))
}

func rawModeIs(c interface{}, expected uint32) error {
	st, err := extractStat(c)
	if err != nil {
		return err
	}

	if st.Mode != expected {
		return fmt.Errorf("which has raw mode %#o", st.Mode)
	}

	return nil
}

// Match os.FileInfo values that carry the attributes the server reports for
// inodes registered with SetServerInodeLookup, apart from mode and inode.
func HasLookupAttributes() oglematchers.Matcher {
	return oglematchers.NewMatcher(
		hasLookupAttributes,
		"has lookup attributes")
}

func hasLookupAttributes(c interface{}) error {
	st, err := extractStat(c)
	if err != nil {
		return err
	}

	want := fuseops.Attr{
		Size:    512,
		Blocks:  4,
		Nlink:   2,
		UID:     1234,
		GID:     4321,
		Rdev:    12,
		BlkSize: 4096,
	}

	got := fuseops.Attr{
		Size:    uint64(st.Size),
		Blocks:  uint64(st.Blocks),
		Nlink:   uint32(st.Nlink),
		UID:     st.Uid,
		GID:     st.Gid,
		Rdev:    uint32(st.Rdev),
		BlkSize: uint32(st.Blksize),
	}

	if got != want {
		return fmt.Errorf("which has attributes %+v", got)
	}

	return nil
}

func extractStat(c interface{}) (st *syscall.Stat_t, err error) {
	fi, ok := c.(os.FileInfo)
	if !ok {
		err = fmt.Errorf("which is of type %v", reflect.TypeOf(c))
		return
	}

	st, ok = fi.Sys().(*syscall.Stat_t)
	if !ok {
		err = fmt.Errorf("which has Sys() of type %v", reflect.TypeOf(fi.Sys()))
		return
	}

	return
}
