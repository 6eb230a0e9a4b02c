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
	"errors"
	"syscall"
)

// ErrServerFailure is returned by Client methods when the server
// acknowledged a command with a failure. Failures are sticky: once the server
// has recorded one, every later command reports it too. The server's log says
// what went wrong.
var ErrServerFailure = errors.New("fakefuse: server reported a failure")

// ErrResponseSize is returned by Client.SetResponse for replies that are
// empty or do not fit in a minimum-sized kernel read buffer.
var ErrResponseSize = errors.New("fakefuse: bad response size")

const (
	// The error sent to the client for requests the server has nothing staged
	// for.
	ENOSYS = syscall.ENOSYS
)
