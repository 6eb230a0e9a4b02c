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
	"errors"
	"testing"
	"time"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"
	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"
)

func TestUnmount(t *testing.T) { RunTests(t) }

type UnmountTest struct {
	clock timeutil.SimulatedClock

	// The errors returned by successive unmount(2) calls, then nil.
	results []error
	calls   int

	sleeps        []time.Duration
	fusermountDir string
}

var _ SetUpInterface = &UnmountTest{}
var _ TearDownInterface = &UnmountTest{}

func init() { RegisterTestSuite(&UnmountTest{}) }

func (t *UnmountTest) SetUp(ti *TestInfo) {
	t.clock.SetTime(time.Date(2015, 4, 5, 2, 15, 0, 0, time.Local))

	unmountSyscall = func(target string, flags int) (err error) {
		ExpectEq("/mnt/taco", target)
		ExpectEq(0, flags)

		if t.calls < len(t.results) {
			err = t.results[t.calls]
		}

		t.calls++
		return
	}

	sleep = func(d time.Duration) {
		t.sleeps = append(t.sleeps, d)
		t.clock.AdvanceTime(d)
	}

	fuserunmountMock = func(dir string) error {
		t.fusermountDir = dir
		return nil
	}
}

func (t *UnmountTest) TearDown() {
	unmountSyscall = unix.Unmount
	sleep = time.Sleep
	fuserunmountMock = fuserunmount
}

func (t *UnmountTest) busy(n int) {
	for i := 0; i < n; i++ {
		t.results = append(t.results, unix.EBUSY)
	}
}

////////////////////////////////////////////////////////////////////////
// Tests
////////////////////////////////////////////////////////////////////////

func (t *UnmountTest) ImmediateSuccess() {
	err := unmount("/mnt/taco", &t.clock, time.Second)
	AssertEq(nil, err)

	ExpectEq(1, t.calls)
	ExpectEq(0, len(t.sleeps))
	ExpectEq("", t.fusermountDir)
}

func (t *UnmountTest) RetriesWhileBusy() {
	t.busy(3)

	err := unmount("/mnt/taco", &t.clock, time.Second)
	AssertEq(nil, err)

	ExpectEq(4, t.calls)
	ExpectThat(
		t.sleeps,
		ElementsAre(time.Millisecond, 2*time.Millisecond, 4*time.Millisecond))
}

func (t *UnmountTest) DelayIsCapped() {
	t.busy(10)

	err := unmount("/mnt/taco", &t.clock, time.Minute)
	AssertEq(nil, err)

	AssertEq(10, len(t.sleeps))
	ExpectEq(64*time.Millisecond, t.sleeps[6])
	ExpectEq(100*time.Millisecond, t.sleeps[7])
	ExpectEq(100*time.Millisecond, t.sleeps[8])
	ExpectEq(100*time.Millisecond, t.sleeps[9])
}

func (t *UnmountTest) GivesUpAtDeadline() {
	t.busy(1000)

	err := unmount("/mnt/taco", &t.clock, 50*time.Millisecond)
	ExpectTrue(errors.Is(err, unix.EBUSY), "err: %v", err)
	ExpectThat(err, Error(HasSubstr("still busy")))

	// 1+2+4+8+16+32 ms covers the timeout; one more attempt happens at the
	// deadline.
	ExpectEq(6, len(t.sleeps))
	ExpectEq(7, t.calls)
}

func (t *UnmountTest) FallsBackToFusermount() {
	t.results = []error{unix.EPERM}

	err := unmount("/mnt/taco", &t.clock, time.Second)
	AssertEq(nil, err)

	ExpectEq(1, t.calls)
	ExpectEq("/mnt/taco", t.fusermountDir)
}

func (t *UnmountTest) FusermountFails() {
	t.results = []error{unix.EPERM}
	fuserunmountMock = func(dir string) error {
		return errors.New("taco")
	}

	err := unmount("/mnt/taco", &t.clock, time.Second)
	ExpectThat(err, Error(Equals("taco")))
}

func (t *UnmountTest) OtherErrorsAreReturned() {
	t.results = []error{unix.EINVAL}

	err := unmount("/mnt/taco", &t.clock, time.Second)
	ExpectTrue(errors.Is(err, unix.EINVAL), "err: %v", err)
	ExpectThat(err, Error(HasSubstr("/mnt/taco")))
	ExpectEq(1, t.calls)
}
