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
	"flag"
	"io"
	"log"
	"os"
	"sync"
)

var fEnableDebug = flag.Bool(
	"fakefuse.debug",
	false,
	"Write fake FUSE server debugging messages to stderr.")

// Set in the environment of a server child process when the parent had
// debugging enabled, since the child never parses the test's flags.
const debugEnv = "FAKEFUSE_DEBUG"

// Where the default error logger writes.
var errorWriter io.Writer = os.Stderr

var gLogger *log.Logger
var gLoggerOnce sync.Once

func debugEnabled() bool {
	if os.Getenv(debugEnv) != "" {
		return true
	}

	return flag.Parsed() && *fEnableDebug
}

func initLogger() {
	var writer io.Writer = io.Discard
	if debugEnabled() {
		writer = os.Stderr
	}

	const flags = log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile
	gLogger = log.New(writer, "fakefuse: ", flags)
}

func getLogger() *log.Logger {
	gLoggerOnce.Do(initLogger)
	return gLogger
}
