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

package port

// historyRing retains the most recent publisherHistorySize sample
// offsets so a newly-connecting subscriber can be caught up immediately.
// It is a single-writer, non-atomic ring: only the owning Publisher ever
// touches it, always while holding Publisher.mu, so there is no
// concurrent-access hazard despite the plain slice storage.
type historyRing struct {
	capacity int
	buf      []uint64
	start    int
	len      int
}

func newHistoryRing(capacity int) *historyRing {
	if capacity <= 0 {
		return &historyRing{}
	}
	return &historyRing{capacity: capacity, buf: make([]uint64, capacity)}
}

// push records offset as the newest history entry. If the ring was
// already full, it reports the evicted (oldest) offset so the caller can
// release the arena's hold on it.
func (h *historyRing) push(offset int) (evicted int, hadEvicted bool) {
	if h.capacity == 0 {
		return 0, false
	}
	if h.len == h.capacity {
		evicted = int(h.buf[h.start])
		hadEvicted = true
		h.start = (h.start + 1) % h.capacity
		h.len--
	}
	idx := (h.start + h.len) % h.capacity
	h.buf[idx] = uint64(offset)
	h.len++
	return evicted, hadEvicted
}

// drain returns the currently-retained offsets, oldest first, and
// empties the ring.
func (h *historyRing) drain() []uint64 {
	out := h.snapshot()
	h.start = 0
	h.len = 0
	return out
}

// snapshot returns the currently-retained offsets, oldest first.
func (h *historyRing) snapshot() []uint64 {
	out := make([]uint64, h.len)
	for i := 0; i < h.len; i++ {
		out[i] = h.buf[(h.start+i)%h.capacity]
	}
	return out
}
