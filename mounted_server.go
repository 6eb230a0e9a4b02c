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
	"fmt"
	"os"

	"github.com/jacobsa/fakefuse/internal/control"
	"golang.org/x/net/context"
)

// A struct representing a running server, with methods for talking to it and
// for tearing it down.
type MountedServer struct {
	dir    string
	client *Client
	worker *worker
	config Config

	// Whether dir is a mount point created by Mount, still mounted.
	mounted bool
}

// Return the directory on which the file system is mounted, or the empty
// string for a server started on a caller-supplied device without a mount
// point.
func (ms *MountedServer) Dir() string {
	return ms.dir
}

// Return the client for the server's control channel.
func (ms *MountedServer) Client() *Client {
	return ms.client
}

// Unmount the file system, if Mount mounted it. Later calls have no effect.
func (ms *MountedServer) Unmount() (err error) {
	if !ms.mounted {
		return
	}

	err = unmount(ms.dir, ms.config.clock(), ms.config.unmountTimeout())
	if err != nil {
		return
	}

	ms.mounted = false
	return
}

// Hang up the control channel and block until the server has exited. The
// return value is non-nil if the server failed fatally. If ctx is cancelled
// first, a server running in a child process is killed and ctx.Err() is
// returned. May be called multiple times.
func (ms *MountedServer) Join(ctx context.Context) error {
	ms.client.Close()
	return ms.worker.join(ctx)
}

// Unmount, join, and remove the mount point directory. Return the first
// error encountered.
func (ms *MountedServer) Destroy(ctx context.Context) (err error) {
	if err = ms.Unmount(); err != nil {
		err = fmt.Errorf("Unmount: %w", err)
		return
	}

	if err = ms.Join(ctx); err != nil {
		err = fmt.Errorf("Join: %w", err)
		return
	}

	if ms.dir != "" {
		if err = os.Remove(ms.dir); err != nil {
			err = fmt.Errorf("Remove: %w", err)
			return
		}
	}

	return
}

// Start serves dev, which must be open to a fuse device (or to something
// playing the part of the kernel), taking ownership of it. dir is reported by
// MountedServer.Dir and removed by Destroy; it may be empty. Start blocks
// until the server has completed the handshake with the kernel.
//
// In Subprocess isolation, cancelling ctx kills the server.
func Start(
	ctx context.Context,
	dev *os.File,
	dir string,
	config *Config) (ms *MountedServer, err error) {
	if config == nil {
		config = &Config{}
	}

	driver, server, err := control.Pair()
	if err != nil {
		dev.Close()
		err = fmt.Errorf("control.Pair: %w", err)
		return
	}

	var w *worker
	switch config.Isolation {
	case InProcess:
		w = startInProcess(ctx, dev, server, config)

	case Subprocess:
		w, err = startSubprocess(ctx, dev, server, config)
		if err != nil {
			driver.Close()
			return
		}

	default:
		dev.Close()
		server.Close()
		driver.Close()
		err = fmt.Errorf("unknown isolation %v", config.Isolation)
		return
	}

	ms = &MountedServer{
		dir:    dir,
		client: newClient(driver),
		worker: w,
		config: *config,
	}

	// Wait for the handshake.
	ack, err := driver.ReadWord()
	if err == nil && ack != control.AckSuccess {
		err = ErrServerFailure
	}

	if err != nil {
		err = fmt.Errorf("waiting for handshake: %w", err)
		if joinErr := ms.Join(ctx); joinErr != nil {
			err = fmt.Errorf("%w (server: %v)", err, joinErr)
		}

		ms = nil
		return
	}

	return
}
