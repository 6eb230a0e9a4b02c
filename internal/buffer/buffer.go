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

package buffer

import "fmt"

// A MemBlock describes one message stored in a MemBuffer. It is immutable
// once returned by the buffer.
type MemBlock[K comparable] struct {
	// The key the block was added with. For FUSE messages this is the opcode.
	Key K

	// The location of the message within the buffer's storage.
	Offset int
	Len    int
}

// MemBuffer is an append-only store of binary messages that are consumed in
// the order they were added. Consumption only moves a cursor; the bytes of
// consumed messages stay in the storage.
//
// The zero value is an empty buffer ready for use. A MemBuffer must not be
// used concurrently.
type MemBuffer[K comparable] struct {
	storage []byte

	// INVARIANT: For all i, blocks[i].Offset+blocks[i].Len <= len(storage)
	blocks []MemBlock[K]

	// The index of the next block returned by Next.
	//
	// INVARIANT: 0 <= cursor <= len(blocks)
	cursor int
}

// AddMemBlock copies data to the end of the storage and appends a block
// describing it.
func (b *MemBuffer[K]) AddMemBlock(key K, data []byte) MemBlock[K] {
	block := MemBlock[K]{
		Key:    key,
		Offset: len(b.storage),
		Len:    len(data),
	}

	b.storage = append(b.storage, data...)
	b.blocks = append(b.blocks, block)
	return block
}

// Next returns the block under the cursor and advances the cursor.
//
// REQUIRES: !b.End()
func (b *MemBuffer[K]) Next() MemBlock[K] {
	block := b.Peek()
	b.cursor++
	return block
}

// Peek returns the block under the cursor without advancing.
//
// REQUIRES: !b.End()
func (b *MemBuffer[K]) Peek() MemBlock[K] {
	if b.End() {
		panic(fmt.Sprintf("MemBuffer: read past the last of %d blocks", len(b.blocks)))
	}

	return b.blocks[b.cursor]
}

// DataAtOffset returns a view of the storage starting at offset. The caller
// must bound its use to the length of the block it is interested in. Writes
// through the view modify the stored message.
func (b *MemBuffer[K]) DataAtOffset(offset int) []byte {
	return b.storage[offset:]
}

// Data returns a view of exactly the bytes of the supplied block.
func (b *MemBuffer[K]) Data(block MemBlock[K]) []byte {
	return b.storage[block.Offset : block.Offset+block.Len : block.Offset+block.Len]
}

// RemainingBlocks returns the number of blocks not yet returned by Next.
func (b *MemBuffer[K]) RemainingBlocks() int {
	return len(b.blocks) - b.cursor
}

// UsedBytes returns the total size of all blocks ever added, consumed or not.
func (b *MemBuffer[K]) UsedBytes() int {
	return len(b.storage)
}

// End reports whether every block has been consumed.
func (b *MemBuffer[K]) End() bool {
	return b.cursor == len(b.blocks)
}
