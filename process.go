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
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"

	"github.com/jacobsa/fakefuse/internal/control"
	"github.com/jacobsa/syncutil"
	"golang.org/x/net/context"
)

// Environment variables telling a server child process where to find its
// descriptors and how to behave.
const (
	devFdEnv         = "FAKEFUSE_DEV_FD"
	controlFdEnv     = "FAKEFUSE_CONTROL_FD"
	protocolMinorEnv = "FAKEFUSE_PROTOCOL_MINOR"
)

// The descriptor numbers the device and the control channel get in the
// child, following stdin, stdout and stderr.
const (
	childDevFd     = 3
	childControlFd = 4
)

// A running server.
type worker struct {
	// Closed once the server has exited; status is valid afterward.
	done   chan struct{}
	status error

	// Stop the server forcibly, if that is possible. May be nil.
	kill func()
}

// Run the server on a goroutine. Takes ownership of dev and ctl.
func startInProcess(
	ctx context.Context,
	dev *os.File,
	ctl *control.Conn,
	config *Config) *worker {
	b := syncutil.NewBundle(ctx)
	b.Add(func(ctx context.Context) error {
		return serve(config.opContext(), dev, ctl, config)
	})

	w := &worker{done: make(chan struct{})}
	go func() {
		w.status = b.Join()
		close(w.done)
	}()

	return w
}

// Run the server in a child process, which is killed if ctx is cancelled.
// Takes ownership of dev and ctl.
func startSubprocess(
	ctx context.Context,
	dev *os.File,
	ctl *control.Conn,
	config *Config) (w *worker, err error) {
	defer dev.Close()
	defer ctl.Close()

	path := config.ServerPath
	args := config.ServerArgs
	if path == "" {
		path, err = os.Executable()
		if err != nil {
			err = fmt.Errorf("Executable: %w", err)
			return
		}

		// A test binary must not run any tests if it turns out not to call
		// RunServerIfChild.
		if args == nil {
			args = []string{"-test.run=^$"}
		}
	}

	ctlFile, err := ctl.File("control channel")
	if err != nil {
		return
	}

	defer ctlFile.Close()

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, args...)
	cmd.ExtraFiles = []*os.File{dev, ctlFile}
	cmd.Stdout = os.Stderr
	cmd.Stderr = io.MultiWriter(os.Stderr, &stderr)
	cmd.Env = append(
		os.Environ(),
		fmt.Sprintf("%s=%d", devFdEnv, childDevFd),
		fmt.Sprintf("%s=%d", controlFdEnv, childControlFd),
		fmt.Sprintf("%s=%d", protocolMinorEnv, config.ProtocolMinor))

	if debugEnabled() {
		cmd.Env = append(cmd.Env, debugEnv+"=1")
	}

	if err = cmd.Start(); err != nil {
		err = fmt.Errorf("starting %s: %w", path, err)
		return
	}

	w = &worker{
		done: make(chan struct{}),
		kill: func() { cmd.Process.Kill() },
	}

	go func() {
		if err := cmd.Wait(); err != nil {
			w.status = fmt.Errorf("server %s: %w\nStderr:\n%s", path, err, stderr.String())
		}

		close(w.done)
	}()

	return
}

// Wait for the server to exit. If ctx is cancelled first, kill it where
// possible and return the context's error.
func (w *worker) join(ctx context.Context) error {
	select {
	case <-w.done:
		return w.status

	case <-ctx.Done():
		if w.kill != nil {
			w.kill()
			<-w.done
		}

		return ctx.Err()
	}
}

// RunServerIfChild serves and then exits the process if the process was
// started as a server by Mount or Start with Subprocess isolation. Otherwise
// it returns immediately. Call it first thing in TestMain, or in main for a
// standalone server binary.
func RunServerIfChild() {
	devFd, ok := lookupFdEnv(devFdEnv)
	if !ok {
		return
	}

	controlFd, ok := lookupFdEnv(controlFdEnv)
	if !ok {
		log.Fatalf("fakefuse: %s set without %s", devFdEnv, controlFdEnv)
	}

	config := &Config{}
	if v, err := strconv.ParseUint(os.Getenv(protocolMinorEnv), 10, 32); err == nil {
		config.ProtocolMinor = uint32(v)
	}

	if err := ServeFds(context.Background(), devFd, controlFd, config); err != nil {
		log.Fatalf("fakefuse: %v", err)
	}

	os.Exit(0)
}

func lookupFdEnv(name string) (fd int, ok bool) {
	v, ok := os.LookupEnv(name)
	if !ok {
		return
	}

	fd, err := strconv.Atoi(v)
	if err != nil || fd < 0 {
		log.Fatalf("fakefuse: bad %s: %q", name, v)
	}

	return
}
