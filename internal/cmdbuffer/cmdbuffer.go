// Package cmdbuffer implements the Command Buffer of spec §4.8 (C8): a
// per-thread deferred-mutation queue keyed by a 32-bit (op, archetype,
// flags) signature, backed by a direct-addressed open-addressing table so a
// flush-less frame reset costs only a generation bump. Grounded on the
// teacher's operation_queue.go (deferred mutation while storage is locked)
// and cache.go's fixed-capacity slice-backed table idiom.
package cmdbuffer

import (
	"github.com/TheBitDrifter/fragstore/internal/ids"
	"github.com/TheBitDrifter/fragstore/internal/limits"
)

// Op is a Command Buffer operation kind.
type Op uint8

const (
	// OpDelete defers an entity deletion.
	OpDelete Op = iota
	// OpMigrate defers an add/remove-component migration to a target
	// archetype.
	OpMigrate
)

// Signature packs (op: 4 bits, archetype: 16 bits, flags: 10 bits) into one
// 32-bit dispatch key, per spec §4.8.
type Signature uint32

// MakeSignature builds a Signature from its three fields, truncating each
// to its documented bit width.
func MakeSignature(op Op, archetype uint32, flags uint16) Signature {
	return Signature(uint32(op&0xF)<<28 | (archetype&0xFFFF)<<10 | uint32(flags&0x3FF))
}

// Op extracts the operation kind from a Signature.
func (s Signature) Op() Op { return Op(s >> 28 & 0xF) }

// Archetype extracts the target/source archetype id from a Signature.
func (s Signature) Archetype() uint32 { return uint32(s) >> 10 & 0xFFFF }

// Flags extracts the flags field from a Signature.
func (s Signature) Flags() uint16 { return uint16(s & 0x3FF) }

// Command is one recorded deferred mutation: a packed entity slot plus the
// handle the caller used to name it (spec: "Encoded value per command is a
// (packed_id, handle) pair").
type Command struct {
	Packed ids.Packed
	Handle ids.Handle
}

type bucket struct {
	sig        Signature
	generation uint32
	commands   []Command
	used       bool
}

// Buffer is one command buffer: a direct-addressed, linearly-probed
// open-addressing table of MAP_CAPACITY buckets keyed by Signature.
type Buffer struct {
	id         uint32
	buckets    []bucket
	generation uint32
}

// New creates an empty Buffer identified by id (the buffer_id named in the
// CommandBufferFlushed event).
func New(id uint32) *Buffer {
	return &Buffer{
		id:      id,
		buckets: make([]bucket, limits.CommandBufferCapacity),
	}
}

// ID returns this buffer's identifier.
func (b *Buffer) ID() uint32 { return b.id }

func (b *Buffer) hashIndex(sig Signature) int {
	return int(uint32(sig)) % len(b.buckets)
}

func (b *Buffer) findOrProbe(sig Signature) int {
	start := b.hashIndex(sig)
	n := len(b.buckets)
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		bk := &b.buckets[idx]
		if bk.generation != b.generation {
			// Stale from a prior generation: first touch resets it.
			return idx
		}
		if bk.used && bk.sig == sig {
			return idx
		}
		if !bk.used {
			return idx
		}
	}
	// Table exhausted at current generation: fall back to the home slot and
	// let it collide rather than drop the command (callers are expected to
	// size MAP_CAPACITY comfortably above the working set).
	return start
}

// Record appends cmd to the bucket for sig, probing linearly on collision
// and stamping first-touch buckets with the buffer's current generation
// (spec §4.8: "first-touch on a bucket stamps it with the current
// generation so flush-less frame reset costs only a generation bump").
func (b *Buffer) Record(sig Signature, cmd Command) {
	idx := b.findOrProbe(sig)
	bk := &b.buckets[idx]
	if bk.generation != b.generation || !bk.used {
		bk.sig = sig
		bk.generation = b.generation
		bk.commands = bk.commands[:0]
		bk.used = true
	}
	bk.commands = append(bk.commands, cmd)
}

// Reset advances the buffer's generation, discarding every recorded command
// in O(1) without visiting a single bucket (the "flush-less frame reset").
func (b *Buffer) Reset() {
	b.generation++
}

// Bucket is one resolved (op, archetype, flags) group of commands, handed
// to Flush's dispatch callback.
type Bucket struct {
	Signature Signature
	Commands  []Command
}

// Flush iterates every bucket sharing the buffer's current generation and
// invokes dispatch once per (op, archetype, flags) group, then clears the
// buffer by advancing its generation (spec §4.8 "flush()"). It returns the
// total number of commands and buckets processed, for the caller to emit
// CommandBufferFlushed.
func (b *Buffer) Flush(dispatch func(Bucket)) (entitiesProcessed, operationCount int) {
	for i := range b.buckets {
		bk := &b.buckets[i]
		if bk.generation != b.generation || !bk.used || len(bk.commands) == 0 {
			continue
		}
		dispatch(Bucket{Signature: bk.sig, Commands: bk.commands})
		entitiesProcessed += len(bk.commands)
		operationCount++
	}
	b.Reset()
	return entitiesProcessed, operationCount
}
