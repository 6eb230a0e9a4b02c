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

// A standalone fake FUSE server, for tests that want the server in a binary
// of its own. Tests use it by setting fakefuse.Config.ServerPath, in which
// case the descriptors arrive through the environment. It can also be run by
// hand with descriptors passed on the command line.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/jacobsa/fakefuse"
	"golang.org/x/net/context"
)

var fDevFd = flag.Int("dev_fd", -1, "FD open to the fuse device.")
var fControlFd = flag.Int("control_fd", -1, "FD of the server end of the control channel.")
var fProtocolMinor = flag.Uint("protocol_minor", 0, "Minor protocol version for the handshake.")

func main() {
	fakefuse.RunServerIfChild()

	flag.Parse()

	if *fDevFd < 0 || *fControlFd < 0 {
		log.Fatalf("You must set --dev_fd and --control_fd.")
	}

	config := &fakefuse.Config{
		ProtocolMinor: uint32(*fProtocolMinor),
		ErrorLogger:   log.New(os.Stderr, "fake_server: ", log.LstdFlags),
	}

	err := fakefuse.ServeFds(context.Background(), *fDevFd, *fControlFd, config)
	if err != nil {
		log.Fatalf("ServeFds: %v", err)
	}
}
