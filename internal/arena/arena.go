// Copyright (c) 2024 Contributors to the Eclipse Foundation
//
// See the NOTICE file(s) distributed with this work for additional
// information regarding copyright ownership.
//
// This program and the accompanying materials are made available under the
// terms of the Apache Software License 2.0 which is available at
// https://www.apache.org/licenses/LICENSE-2.0, or the MIT license
// which is available at https://opensource.org/licenses/MIT.
//
// SPDX-License-Identifier: Apache-2.0 OR MIT

// Package arena implements the sample arena: a lock-free slab of N
// fixed-size chunks within a publisher's data segment, with atomic
// acquire/publish/borrow/release transitions between
// {free, loaned, inflight(count)}.
//
// Each slot's state is packed into a single atomic uint64 so every
// transition is a single CompareAndSwap: the high 32 bits carry the tag
// (free/loaned/inflight), the low 32 bits carry the in-flight refcount.
package arena

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"
)

const (
	tagFree uint64 = iota
	tagLoaned
	tagInflight
)

func pack(tag uint64, count uint32) uint64 {
	return (tag << 32) | uint64(count)
}

func unpack(v uint64) (tag uint64, count uint32) {
	return v >> 32, uint32(v)
}

// ErrEmpty is returned by Acquire when no free slot is available.
var ErrEmpty = errors.New("arena: no free slot available")

// ContractViolation is the fatal diagnostic raised when a caller performs
// an operation the chunk-ownership protocol forbids (double-release,
// borrowing a non-inflight slot, publishing a non-loaned slot). These
// are contract violations: they abort the process rather than return an
// error.
type ContractViolation struct {
	Op     string
	Offset int
	Detail string
}

func (c *ContractViolation) Error() string {
	return fmt.Sprintf("arena: contract violation in %s at offset %d: %s", c.Op, c.Offset, c.Detail)
}

func violate(op string, offset int, detail string) {
	panic(&ContractViolation{Op: op, Offset: offset, Detail: detail})
}

// Arena is a lock-free slab of N fixed-size chunks. Chunk storage itself
// (the []byte backing each slot) is owned by the caller (the publisher's
// data segment); Arena only tracks per-slot state.
type Arena struct {
	slots     []atomic.Uint64
	chunkSize int
	// freeHint rotates the scan start point across Acquire calls so
	// contention doesn't pile up on slot 0.
	freeHint atomic.Uint64
}

// New creates an Arena tracking n chunks of chunkSize bytes each. All
// slots start free.
func New(n int, chunkSize int) *Arena {
	return &Arena{slots: make([]atomic.Uint64, n), chunkSize: chunkSize}
}

// PlaceOverBuffer constructs an Arena whose slot-state words live inside
// buf rather than on the Go heap, so the lock-free state is genuinely
// shared across processes mapping the same underlying region: the
// zero-copy property requires the arena itself, not
// just the chunk payloads, to live in the data segment. buf must be at
// least n*8 bytes; the caller (internal/port's DataSegment) is
// responsible for reserving that many bytes ahead of the chunk array.
// Grounded on the same unsafe.Pointer-reinterpretation technique
// internal/dynstorage uses to place a typed payload over raw mmap'd
// bytes.
func PlaceOverBuffer(buf []byte, n int, chunkSize int) (*Arena, error) {
	need := n * 8
	if len(buf) < need {
		return nil, fmt.Errorf("arena: buffer too small: need %d bytes for %d slots, have %d", need, n, len(buf))
	}
	slots := unsafe.Slice((*atomic.Uint64)(unsafe.Pointer(&buf[0])), n)
	return &Arena{slots: slots, chunkSize: chunkSize}, nil
}

// Len returns the number of slots.
func (a *Arena) Len() int { return len(a.slots) }

// ChunkSize returns the fixed per-slot size.
func (a *Arena) ChunkSize() int { return a.chunkSize }

// Acquire performs the free→loaned CAS transition, scanning
// from a rotating start point. It returns ErrEmpty if every slot is
// loaned or inflight.
func (a *Arena) Acquire() (offset int, err error) {
	n := len(a.slots)
	start := int(a.freeHint.Add(1)) % n
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		slot := &a.slots[idx]
		cur := slot.Load()
		tag, _ := unpack(cur)
		if tag != tagFree {
			continue
		}
		if slot.CompareAndSwap(cur, pack(tagLoaned, 0)) {
			return idx, nil
		}
	}
	return 0, ErrEmpty
}

// Publish performs the sole transition out of loaned, to
// inflight(subscriberCount). subscriberCount is the number of
// connections the sample was actually pushed to; 0 means the sample had
// no live subscribers and returns directly to free.
func (a *Arena) Publish(offset int, subscriberCount int) {
	slot := &a.slots[offset]
	cur := slot.Load()
	tag, _ := unpack(cur)
	if tag != tagLoaned {
		violate("Publish", offset, "slot was not loaned")
	}
	if subscriberCount <= 0 {
		if !slot.CompareAndSwap(cur, pack(tagFree, 0)) {
			violate("Publish", offset, "concurrent mutation of a loaned slot")
		}
		return
	}
	if !slot.CompareAndSwap(cur, pack(tagInflight, uint32(subscriberCount))) {
		violate("Publish", offset, "concurrent mutation of a loaned slot")
	}
}

// Borrow increments the in-flight refcount when a subscriber additionally
// retains a sample already queued to it; precondition: the
// slot is inflight with count ≥ 1.
func (a *Arena) Borrow(offset int) {
	slot := &a.slots[offset]
	for {
		cur := slot.Load()
		tag, count := unpack(cur)
		if tag != tagInflight || count < 1 {
			violate("Borrow", offset, "slot is not inflight with count >= 1")
		}
		if slot.CompareAndSwap(cur, pack(tagInflight, count+1)) {
			return
		}
	}
}

// Release decrements the in-flight refcount; on reaching zero the slot
// transitions back to free. Releasing a free or loaned slot
// (double-release / use-after-release) is a contract violation.
func (a *Arena) Release(offset int) {
	slot := &a.slots[offset]
	for {
		cur := slot.Load()
		tag, count := unpack(cur)
		if tag != tagInflight || count < 1 {
			violate("Release", offset, "double-release or release of a non-inflight slot")
		}
		var next uint64
		if count == 1 {
			next = pack(tagFree, 0)
		} else {
			next = pack(tagInflight, count-1)
		}
		if slot.CompareAndSwap(cur, next) {
			return
		}
	}
}

// State reports whether offset is currently free, loaned, or inflight,
// and its refcount if inflight. Intended for diagnostics and tests, not
// the hot path.
type State struct {
	Free     bool
	Loaned   bool
	Inflight bool
	RefCount uint32
}

func (a *Arena) State(offset int) State {
	tag, count := unpack(a.slots[offset].Load())
	switch tag {
	case tagFree:
		return State{Free: true}
	case tagLoaned:
		return State{Loaned: true}
	default:
		return State{Inflight: true, RefCount: count}
	}
}

// Stats summarizes slot occupancy, used to verify the occupancy
// invariant: the sum of loaned and inflight slots equals the number of
// slots not free.
func (a *Arena) Stats() (free, loaned, inflight int) {
	for i := range a.slots {
		s := a.State(i)
		switch {
		case s.Free:
			free++
		case s.Loaned:
			loaned++
		default:
			inflight++
		}
	}
	return
}
