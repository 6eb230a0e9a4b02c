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
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jacobsa/timeutil"
	"golang.org/x/net/context"
	"golang.org/x/sys/unix"
)

// Isolation selects where the server runs.
type Isolation int

const (
	// Run the server in a child process re-executing the test binary (or
	// Config.ServerPath). The server shares no memory with the test, so a
	// misbehaving test cannot corrupt its state.
	Subprocess Isolation = iota

	// Run the server on a goroutine of the test process.
	InProcess
)

func (i Isolation) String() string {
	switch i {
	case Subprocess:
		return "Subprocess"
	case InProcess:
		return "InProcess"
	}

	return fmt.Sprintf("Isolation(%d)", int(i))
}

// Optional configuration accepted by Mount and Start.
type Config struct {
	Isolation Isolation

	// The binary to run for Subprocess isolation, and its arguments. It must
	// call RunServerIfChild early in main. The default is the running
	// executable with arguments that keep a test binary from running any
	// tests of its own.
	ServerPath string
	ServerArgs []string

	// Flags passed to mount(2). The default is MS_NODEV|MS_NOSUID.
	MountFlags uintptr

	// Extra options for the fuse mount, beyond the descriptor, root mode and
	// owner that Mount always sets. Values may be empty for flag options such
	// as "allow_other".
	MountOptions map[string]string

	// The minor protocol version announced in the handshake reply. The default
	// of zero keeps the reply minimal; clients that size replies by the
	// negotiated version may need a newer one.
	ProtocolMinor uint32

	// The clock used for unmount deadlines. The default is the real clock.
	Clock timeutil.Clock

	// How long Unmount keeps retrying while the mount point is busy. The
	// default is five seconds.
	UnmountTimeout time.Duration

	// Loggers for debug output and for failures recorded by the server. The
	// defaults write to stderr only when --fakefuse.debug is set, and to
	// stderr always, respectively. In Subprocess isolation the child process
	// uses its own defaults.
	DebugLogger *log.Logger
	ErrorLogger *log.Logger

	// The parent context for the trace spans of the server. The default is
	// context.Background().
	OpContext context.Context
}

const defaultUnmountTimeout = 5 * time.Second

func (c *Config) clock() timeutil.Clock {
	if c.Clock == nil {
		return timeutil.RealClock()
	}

	return c.Clock
}

func (c *Config) unmountTimeout() time.Duration {
	if c.UnmountTimeout == 0 {
		return defaultUnmountTimeout
	}

	return c.UnmountTimeout
}

func (c *Config) mountFlags() uintptr {
	if c.MountFlags == 0 {
		return unix.MS_NODEV | unix.MS_NOSUID
	}

	return c.MountFlags
}

func (c *Config) debugLogger() *log.Logger {
	if c.DebugLogger == nil {
		return getLogger()
	}

	return c.DebugLogger
}

func (c *Config) errorLogger() *log.Logger {
	if c.ErrorLogger == nil {
		return log.New(errorWriter, "fakefuse: ", log.LstdFlags)
	}

	return c.ErrorLogger
}

func (c *Config) opContext() context.Context {
	if c.OpContext == nil {
		return context.Background()
	}

	return c.OpContext
}

// Create a data string suitable for mount(2) for a fuse mount served over
// the given descriptor on behalf of the given user.
func (c *Config) toOptionsString(fd int, uid int, gid int) string {
	var components []string
	components = append(
		components,
		fmt.Sprintf("fd=%d", fd),
		"rootmode=40000",
		fmt.Sprintf("user_id=%d", uid),
		fmt.Sprintf("group_id=%d", gid))

	// Sort the extras for a stable result.
	var keys []string
	for k := range c.MountOptions {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	for _, k := range keys {
		v := c.MountOptions[k]
		if v == "" {
			components = append(components, k)
			continue
		}

		components = append(components, fmt.Sprintf("%s=%s", k, v))
	}

	return strings.Join(components, ",")
}
