// Package hostmem provides host-side byte buffers with explicit ownership.
//
// A Block is allocated once by an Allocator and must be returned to it
// exactly once. The readback engine owns a Block from the moment a copy is
// issued until the caller is done with the bytes; Free detects a second
// release instead of silently corrupting a pooled buffer.
package hostmem

import (
	"errors"
	"sync/atomic"
)

var (
	// ErrDoubleFree is returned when a Block is freed more than once.
	ErrDoubleFree = errors.New("hostmem: block already freed")

	// ErrTooLarge is returned when a requested block exceeds MaxSize.
	ErrTooLarge = errors.New("hostmem: block too large")
)

// MaxSize is the largest block an Allocator hands out. It keeps every
// size class representable as an int on 32-bit platforms.
const MaxSize = 1 << 30

// Block is an owned region of host memory.
type Block struct {
	id    uint64
	data  []byte
	freed atomic.Bool
}

// ID returns the allocation id. Ids are unique per Allocator.
func (b *Block) ID() uint64 { return b.id }

// Len returns the requested size in bytes.
func (b *Block) Len() int { return len(b.data) }

// Bytes returns the block contents. The slice is only valid until the
// block is freed; after that the memory may be handed to another caller.
func (b *Block) Bytes() []byte { return b.data }

// Freed reports whether the block has been released.
func (b *Block) Freed() bool { return b.freed.Load() }

// release marks the block freed. Returns false if it already was.
func (b *Block) release() bool {
	return b.freed.CompareAndSwap(false, true)
}

// Allocator hands out and reclaims Blocks.
type Allocator interface {
	// Alloc returns a zeroed block of exactly size bytes, or ErrTooLarge
	// when size exceeds MaxSize.
	Alloc(size int) (*Block, error)

	// Free returns a block. Freeing the same block twice returns
	// ErrDoubleFree and has no other effect.
	Free(b *Block) error
}
