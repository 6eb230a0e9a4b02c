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

package fusetesting_test

import (
	"os"
	"syscall"
	"time"

	"github.com/jacobsa/fakefuse/fusetesting"
	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
)

// A FileInfo carrying a hand-built stat structure.
type statFileInfo struct {
	st syscall.Stat_t
}

func (fi *statFileInfo) Name() string       { return "foo" }
func (fi *statFileInfo) Size() int64        { return fi.st.Size }
func (fi *statFileInfo) Mode() os.FileMode  { return 0 }
func (fi *statFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *statFileInfo) IsDir() bool        { return false }
func (fi *statFileInfo) Sys() interface{}   { return &fi.st }

// The attributes the server reports for registered inodes.
func lookupStat() *statFileInfo {
	return &statFileInfo{
		st: syscall.Stat_t{
			Ino:     2,
			Mode:    syscall.S_IFREG | 0644,
			Size:    512,
			Blocks:  4,
			Nlink:   2,
			Uid:     1234,
			Gid:     4321,
			Rdev:    12,
			Blksize: 4096,
		},
	}
}

////////////////////////////////////////////////////////////////////////
// Boilerplate
////////////////////////////////////////////////////////////////////////

type StatTest struct {
}

func init() { RegisterTestSuite(&StatTest{}) }

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *StatTest) LookupAttributes() {
	fi := lookupStat()
	ExpectThat(fi, fusetesting.HasLookupAttributes())
	ExpectThat(fi, fusetesting.InodeIs(2))
	ExpectThat(fi, fusetesting.RawModeIs(syscall.S_IFREG|0644))
}

func (t *StatTest) WrongRdev() {
	fi := lookupStat()
	fi.st.Rdev = 0

	err := fusetesting.HasLookupAttributes().Matches(fi)
	ExpectThat(err, Error(HasSubstr("Rdev:0")))
}

func (t *StatTest) WrongSize() {
	fi := lookupStat()
	fi.st.Size = 513

	err := fusetesting.HasLookupAttributes().Matches(fi)
	ExpectThat(err, Error(HasSubstr("Size:513")))
}

func (t *StatTest) NotAFileInfo() {
	err := fusetesting.HasLookupAttributes().Matches(17)
	ExpectThat(err, Error(HasSubstr("type int")))
}
