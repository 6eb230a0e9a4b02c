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

// Package control implements the channel between a test driver and the fake
// FUSE server it controls.
//
// Every exchange starts with a Command word written by the driver and ends
// with an acknowledgment word written by the server once it has finished
// handling the command: AckSuccess, or AckFailure if anything went wrong on
// the server side, including earlier failures. The driver must read the
// acknowledgment before writing the next command.
//
// The channel is a SOCK_SEQPACKET socket pair, so each write arrives as one
// record and each read consumes exactly one record. Variable-length payloads
// (staged responses, lookup paths, returned requests) rely on this.
package control

import (
	"encoding/binary"
	"fmt"
)

// Command selects what the server does next.
type Command uint32

const (
	// Followed by an opcode word and one record holding a full encoded
	// response. The server queues the response.
	SetResponse Command = iota

	// Followed by a mode word and one record holding a NUL-terminated path.
	// The server prepares a LOOKUP reply for that path.
	SetInodeLookup

	// The server replies with one record holding the next request it received
	// from the kernel that has not been fetched yet.
	GetRequest

	// The server replies with a word holding a counter.
	GetTotalReceivedBytes
	GetNumUnconsumedRequests
	GetNumUnsentResponses
)

func (c Command) String() string {
	switch c {
	case SetResponse:
		return "SetResponse"
	case SetInodeLookup:
		return "SetInodeLookup"
	case GetRequest:
		return "GetRequest"
	case GetTotalReceivedBytes:
		return "GetTotalReceivedBytes"
	case GetNumUnconsumedRequests:
		return "GetNumUnconsumedRequests"
	case GetNumUnsentResponses:
		return "GetNumUnsentResponses"
	}

	return fmt.Sprintf("Command(%d)", uint32(c))
}

// Acknowledgment words.
const (
	AckFailure uint32 = 0
	AckSuccess uint32 = 1
)

// WordSize is the size of every fixed-size value on the channel.
const WordSize = 4

// Words are exchanged in host byte order; both ends live on the same machine.
var order = binary.NativeEndian
