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

	"golang.org/x/net/context"
	"golang.org/x/sys/unix"
)

const devicePath = "/dev/fuse"

// Mount a fresh file system on a new temporary directory and start a server
// for it, blocking until the kernel has completed the handshake. Mounting
// requires CAP_SYS_ADMIN.
func Mount(
	ctx context.Context,
	config *Config) (ms *MountedServer, err error) {
	if config == nil {
		config = &Config{}
	}

	dir, err := os.MkdirTemp("", "fakefuse")
	if err != nil {
		err = fmt.Errorf("MkdirTemp: %w", err)
		return
	}

	dev, err := openDevice()
	if err != nil {
		os.Remove(dir)
		return
	}

	opts := config.toOptionsString(int(dev.Fd()), os.Getuid(), os.Getgid())
	err = unix.Mount("fuse", dir, "fuse", config.mountFlags(), opts)
	if err != nil {
		dev.Close()
		os.Remove(dir)
		err = fmt.Errorf("mount %s (%s): %w", dir, opts, err)
		return
	}

	ms, err = Start(ctx, dev, dir, config)
	if err != nil {
		// The connection is dead by now, so this does not block on the server.
		unix.Unmount(dir, unix.MNT_DETACH)
		os.Remove(dir)
		return
	}

	ms.mounted = true
	return
}

func openDevice() (dev *os.File, err error) {
	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		err = fmt.Errorf("open %s: %w", devicePath, err)
		return
	}

	dev = os.NewFile(uintptr(fd), devicePath)
	return
}
