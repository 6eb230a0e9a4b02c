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

// Package samples holds helpers for tests that run the fake server from the
// standalone binary in samples/fake_server.
package samples

import (
	"fmt"
	"os"
	"os/exec"
	"path"
	"sync"

	"github.com/jacobsa/fakefuse"
	"github.com/jacobsa/fakefuse/fusetesting"
	"github.com/jacobsa/ogletest"
)

// Set by buildFakeServer.
var fakeServerPath string
var fakeServerErr error
var fakeServerOnce sync.Once

// Build the fake_server tool if it has not yet been built for this process.
// Return a path to the binary.
func buildFakeServer() (toolPath string, err error) {
	fakeServerOnce.Do(func() {
		tempDir, err := os.MkdirTemp("", "")
		if err != nil {
			fakeServerErr = fmt.Errorf("MkdirTemp: %w", err)
			return
		}

		fakeServerPath = path.Join(tempDir, "fake_server")

		cmd := exec.Command(
			"go",
			"build",
			"-o",
			fakeServerPath,
			"github.com/jacobsa/fakefuse/samples/fake_server")

		output, err := cmd.CombinedOutput()
		if err != nil {
			fakeServerErr = fmt.Errorf(
				"building fake_server failed with %v, output:\n%s",
				err,
				string(output))

			return
		}
	})

	if fakeServerErr != nil {
		err = fakeServerErr
		return
	}

	toolPath = fakeServerPath
	return
}

// A struct that implements common behavior needed by tests in the samples/
// directory, where the server runs in the fake_server binary and is fed by a
// fake kernel. Use it as an embedded field in your test fixture, calling its
// SetUp and TearDown methods from yours.
type SubprocessTest struct {
	fusetesting.FuseTest
}

// Build the server binary and start it. Panics on error.
func (t *SubprocessTest) SetUp(ti *ogletest.TestInfo) {
	toolPath, err := buildFakeServer()
	if err != nil {
		panic(fmt.Errorf("buildFakeServer: %w", err))
	}

	t.Config.Isolation = fakefuse.Subprocess
	t.Config.ServerPath = toolPath
	t.UseFakeKernel = true

	t.FuseTest.SetUp(ti)
}
