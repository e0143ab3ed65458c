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

// Package transport implements the transport channel: a bounded SPSC
// ring of chunk offsets between one publisher and one subscriber, with
// Block/DiscardSample/safe-overflow push semantics.
package transport

import (
	"math/bits"
	"sync/atomic"
	"time"
)

// emptySlot marks a slot holding no chunk; offset 0 is a valid chunk
// offset, so an all-ones sentinel is used instead of zero.
const emptySlot = ^uint64(0)

// Ring is a fixed-capacity, single-producer/single-consumer queue of
// chunk offsets. Capacity is rounded up to the next power of two so index
// masking replaces a modulo on the hot path.
type Ring struct {
	slots   []uint64
	mask    uint64
	head    atomic.Uint64 // next write index (producer-owned)
	tail    atomic.Uint64 // next read index (consumer-owned)
	dropped atomic.Uint64 // count of samples dropped under DiscardSample / safe overflow
}

// NewRing creates a ring with at least capacity slots, rounded up to
// the next power of two. Depth is set from the subscriber buffer size.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	n := 1 << bits.Len(uint(capacity-1))
	r := &Ring{slots: make([]uint64, n), mask: uint64(n - 1)}
	for i := range r.slots {
		r.slots[i] = emptySlot
	}
	return r
}

// Capacity returns the ring's slot count.
func (r *Ring) Capacity() int { return len(r.slots) }

// Len returns the number of queued elements. Approximate under
// concurrent access from the opposite endpoint but exact for the
// endpoint that owns the index it reads (producer reads head exactly,
// consumer reads tail exactly).
func (r *Ring) Len() int {
	h := r.head.Load()
	t := r.tail.Load()
	return int(h - t)
}

// Dropped returns the count of samples discarded by this ring due to
// DiscardSample or safe-overflow eviction.
func (r *Ring) Dropped() uint64 { return r.dropped.Load() }

// TryPush attempts a single non-blocking push, used directly when the
// caller (Publisher.send) has already decided the unable-to-deliver
// policy. It returns false if the ring is full.
func (r *Ring) TryPush(offset uint64) bool {
	h := r.head.Load()
	t := r.tail.Load()
	if h-t >= uint64(len(r.slots)) {
		return false
	}
	r.slots[h&r.mask] = offset
	r.head.Store(h + 1)
	return true
}

// PushSafeOverflow always succeeds: if the ring is full, the oldest
// element is popped first and reported through the eviction callback so
// the caller can release its arena slot.
func (r *Ring) PushSafeOverflow(offset uint64, onEvict func(evictedOffset uint64)) {
	if !r.TryPush(offset) {
		t := r.tail.Load()
		evicted := r.slots[t&r.mask]
		r.tail.Store(t + 1)
		r.dropped.Add(1)
		if onEvict != nil && evicted != emptySlot {
			onEvict(evicted)
		}
		if !r.TryPush(offset) {
			// Unreachable under SPSC discipline (we just freed a slot),
			// but guards against a misused ring being shared by two
			// writers.
			r.dropped.Add(1)
			return
		}
	}
}

// PushBlock pushes offset, spinning with bounded backoff while the ring
// is full. isDead is polled between spins and, if it ever returns true,
// PushBlock gives up and returns false: the call completes when either
// the space becomes free or the consumer is observed dead.
func (r *Ring) PushBlock(offset uint64, isDead func() bool) bool {
	backoff := time.Microsecond
	const maxBackoff = 2 * time.Millisecond
	for {
		if r.TryPush(offset) {
			return true
		}
		if isDead != nil && isDead() {
			return false
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// DiscardPush attempts a single push and, on failure, increments the
// dropped counter and returns false without blocking: the DiscardSample
// policy.
func (r *Ring) DiscardPush(offset uint64) bool {
	if r.TryPush(offset) {
		return true
	}
	r.dropped.Add(1)
	return false
}

// Pop is the non-blocking dequeue, returning ok=false when the ring is
// empty.
func (r *Ring) Pop() (offset uint64, ok bool) {
	t := r.tail.Load()
	h := r.head.Load()
	if t >= h {
		return 0, false
	}
	v := r.slots[t&r.mask]
	r.tail.Store(t + 1)
	return v, true
}

// Empty reports whether the ring currently has no queued elements.
func (r *Ring) Empty() bool {
	return r.head.Load() == r.tail.Load()
}
