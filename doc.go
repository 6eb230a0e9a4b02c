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

// Package fakefuse runs a scripted FUSE server for testing FUSE clients,
// whether that client is the kernel itself or a userspace emulation of it.
//
// The server does not implement a file system. A test stages the replies it
// wants the client to see, drives the client through the mount, and then
// retrieves the requests the server actually received to make assertions
// about them. The primary elements of interest are:
//
//   - Mount, which mounts a fresh file system on a temporary directory and
//     starts a server for it, and Start, which serves a device the caller
//     already has open.
//
//   - Client, the test's end of the control channel to the server, offering
//     SetResponse, SetInodeLookup, GetRequest and the three counters.
//
//   - MountedServer, which tears everything down again.
//
// The server runs either on a goroutine of its own or, by default, in a child
// process re-executing the test binary. Test binaries opt in to the latter by
// calling RunServerIfChild from TestMain:
//
//	func TestMain(m *testing.M) {
//		fakefuse.RunServerIfChild()
//		os.Exit(m.Run())
//	}
//
// The fusetesting package wraps all of this in an ogletest fixture.
package fakefuse
