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
	"errors"
	"fmt"

	"github.com/jacobsa/fakefuse"
	"github.com/jacobsa/ogletest"
	"golang.org/x/net/context"
)

// A struct that implements common behavior needed by tests of FUSE clients.
// Use it as an embedded field in your test fixture, calling its SetUp method
// from your SetUp method after setting the Config and UseFakeKernel fields,
// and its TearDown method from your TearDown method.
//
// Only SetUp and TearDown are exported as methods, since ogletest runs every
// exported method of a suite as a test. Drive the server through Fuse.
type FuseTest struct {
	// Configuration for the server. Set before SetUp.
	Config fakefuse.Config

	// Serve Kernel instead of mounting a real file system. Set before SetUp.
	UseFakeKernel bool

	// A context object that can be used for long-running operations.
	Ctx context.Context

	// The directory at which the file system is mounted. Empty with a fake
	// kernel.
	Dir string

	// The fake kernel, if UseFakeKernel is set.
	Kernel *FakeKernel

	Server *fakefuse.MountedServer

	// Stages responses on Server and retrieves the requests it saw.
	Fuse *Driver
}

// Mount the file system (or start the fake kernel) and start the server.
// Panics on error, which aborts the test before its body runs.
func (t *FuseTest) SetUp(ti *ogletest.TestInfo) {
	err := t.initialize()
	if err != nil {
		panic(err)
	}
}

// Like SetUp, but doesn't panic.
func (t *FuseTest) initialize() (err error) {
	t.Ctx = context.Background()

	if !t.UseFakeKernel {
		t.Server, err = fakefuse.Mount(t.Ctx, &t.Config)
		if err != nil {
			err = fmt.Errorf("Mount: %w", err)
			return
		}

		t.Dir = t.Server.Dir()
		t.Fuse = NewDriver(t.Server)
		return
	}

	k, dev, err := NewFakeKernel()
	if err != nil {
		err = fmt.Errorf("NewFakeKernel: %w", err)
		return
	}

	t.Server, err = fakefuse.Start(t.Ctx, dev, "", &t.Config)
	if err != nil {
		k.Close()
		err = fmt.Errorf("Start: %w", err)
		return
	}

	if _, err = k.AwaitInit(); err != nil {
		k.Close()
		t.Server.Join(t.Ctx)
		err = fmt.Errorf("AwaitInit: %w", err)
		return
	}

	t.Kernel = k
	t.Fuse = NewDriver(t.Server)
	return
}

// Check that every staged response was used and every request retrieved,
// then unmount, stop the server and clean up. Leftovers fail the test;
// other errors panic.
func (t *FuseTest) TearDown() {
	leftovers, err := t.destroy()
	for _, l := range leftovers {
		ogletest.AddFailure("%s", l)
	}

	if err != nil {
		panic(err)
	}
}

// Like TearDown, but returns a description of each leftover instead of
// reporting it.
func (t *FuseTest) destroy() (leftovers []string, err error) {
	if t.Server == nil {
		return
	}

	leftovers, err = t.leftovers()
	if err != nil {
		return
	}

	if err = t.Server.Unmount(); err != nil {
		err = fmt.Errorf("Unmount: %w", err)
		return
	}

	if t.Kernel != nil {
		t.Kernel.Close()
	}

	if err = t.Server.Destroy(t.Ctx); err != nil {
		err = fmt.Errorf("Destroy: %w", err)
		return
	}

	return
}

// Describe what the test left behind on the server: requests nobody
// retrieved, responses nothing used, and any failure the server recorded.
func (t *FuseTest) leftovers() (l []string, err error) {
	c := t.Server.Client()
	var failed bool

	requests, err := c.NumUnconsumedRequests()
	if errors.Is(err, fakefuse.ErrServerFailure) {
		failed = true
	} else if err != nil {
		err = fmt.Errorf("NumUnconsumedRequests: %w", err)
		return
	}

	responses, err := c.NumUnsentResponses()
	if errors.Is(err, fakefuse.ErrServerFailure) {
		failed = true
	} else if err != nil {
		err = fmt.Errorf("NumUnsentResponses: %w", err)
		return
	}

	err = nil
	if failed {
		l = append(l, "server reported a failure")
	}

	if requests != 0 {
		l = append(l, fmt.Sprintf("%d unconsumed requests", requests))
	}

	if responses != 0 {
		l = append(l, fmt.Sprintf("%d unsent responses", responses))
	}

	return
}
