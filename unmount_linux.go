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
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/jacobsa/timeutil"
	"golang.org/x/sys/unix"
)

// Just for testing purposes to mock the system calls and the passage of time.
var (
	unmountSyscall   = unix.Unmount
	fuserunmountMock = fuserunmount
	sleep            = time.Sleep
)

const maxUnmountDelay = 100 * time.Millisecond

// Unmount the file system mounted on dir. While the mount point is busy, for
// example because a test left a file open, retry with growing delays until
// the timeout has passed according to clock. Fall back to fusermount when
// unmount(2) is not permitted.
func unmount(dir string, clock timeutil.Clock, timeout time.Duration) (err error) {
	deadline := clock.Now().Add(timeout)
	delay := time.Millisecond

	for {
		err = unmountSyscall(dir, 0)
		switch {
		case err == nil:
			return

		case errors.Is(err, unix.EBUSY):
			if !clock.Now().Before(deadline) {
				err = fmt.Errorf("unmount %s: still busy after %v: %w", dir, timeout, err)
				return
			}

			sleep(delay)
			delay *= 2
			if delay > maxUnmountDelay {
				delay = maxUnmountDelay
			}

		case errors.Is(err, unix.EPERM):
			err = fuserunmountMock(dir)
			return

		default:
			err = fmt.Errorf("unmount %s: %w", dir, err)
			return
		}
	}
}

func fuserunmount(dir string) error {
	fusermount, err := findFusermount()
	if err != nil {
		return err
	}
	cmd := exec.Command(fusermount, "-u", dir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		if len(output) > 0 {
			output = bytes.TrimRight(output, "\n")
			return fmt.Errorf("%v: %s", err, output)
		}

		return err
	}
	return nil
}

// Find the fusermount binary, preferring the one from fuse 3.
func findFusermount() (path string, err error) {
	for _, name := range []string{"fusermount3", "fusermount"} {
		path, err = exec.LookPath(name)
		if err == nil {
			return
		}
	}

	err = fmt.Errorf("no fusermount binary found: %w", err)
	return
}
