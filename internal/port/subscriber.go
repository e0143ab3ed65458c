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

import (
	"sync"
	"unsafe"

	"github.com/google/uuid"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/arena"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/transport"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

type borrowKey struct {
	segmentIdx int
	offset     int
}

// expiredConnection holds a disconnected publisher's segment index, ring
// and arena, so any samples still queued in it remain readable until the
// subscriber drains them or the expired-connection buffer overflows.
type expiredConnection struct {
	segmentIdx int
	ring       *transport.Ring
	arena      *arena.Arena
}

// Subscriber is the receiving port: it reads chunk offsets
// round-robin across every connected publisher's ring
// (internal/transport.MultiRingReader), translating each into a typed
// *ReceivedSample[T] that points directly into the owning segment's
// shared memory.
type Subscriber[T any] struct {
	mu            sync.Mutex
	id            uuid.UUID
	reader        *transport.MultiRingReader
	segments      []*DataSegment
	rings         []*transport.Ring
	forceReleased map[int]bool
	maxBorrowed   int
	borrowed      map[borrowKey]struct{}
	expiredCap    int
	expired       []expiredConnection
}

// NewSubscriber constructs an unconnected Subscriber; Connect must be
// called once per publisher it should receive from. expiredCap bounds the
// expired-connection buffer.
func NewSubscriber[T any](id uuid.UUID, maxBorrowed, expiredCap int) *Subscriber[T] {
	return &Subscriber[T]{
		id:            id,
		reader:        transport.NewMultiRingReader(nil),
		forceReleased: make(map[int]bool),
		maxBorrowed:   maxBorrowed,
		borrowed:      make(map[borrowKey]struct{}),
		expiredCap:    expiredCap,
	}
}

// ID returns the subscriber's unique port identity.
func (s *Subscriber[T]) ID() uuid.UUID { return s.id }

// Connect attaches a publisher's segment and inbound ring, returning the
// segment index used to key borrowed-sample bookkeeping and as the
// transport.Source.ID the ring's Pop results are tagged with.
func (s *Subscriber[T]) Connect(segment *DataSegment, ring *transport.Ring) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.segments)
	s.segments = append(s.segments, segment)
	s.rings = append(s.rings, ring)
	s.rebuildSourcesLocked()
	return idx
}

// rebuildSourcesLocked recomputes the MultiRingReader's active source list,
// excluding any segment index that has been force-released. A merely
// disconnected (but not yet force-released) ring stays in the source list
// so Receive keeps draining its queued samples. Callers must hold s.mu.
func (s *Subscriber[T]) rebuildSourcesLocked() {
	sources := make([]transport.Source, 0, len(s.rings))
	for i, r := range s.rings {
		if s.forceReleased[i] {
			continue
		}
		sources = append(sources, transport.Source{ID: i, Ring: r})
	}
	s.reader.SetSources(sources)
}

// Disconnect moves a connected publisher's segment into the expired-
// connection buffer. Its ring is not torn down immediately: any samples
// still queued in it remain readable through Receive's normal drain path
// until the expired-connection buffer overflows, at which point the oldest
// expired connection is force-released by draining and releasing every
// offset still queued in it.
func (s *Subscriber[T]) Disconnect(segmentIdx int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expired = append(s.expired, expiredConnection{
		segmentIdx: segmentIdx,
		ring:       s.rings[segmentIdx],
		arena:      s.segments[segmentIdx].Arena(),
	})
	if s.expiredCap <= 0 || len(s.expired) <= s.expiredCap {
		return
	}
	oldest := s.expired[0]
	s.expired = s.expired[1:]
	s.forceReleased[oldest.segmentIdx] = true
	s.rebuildSourcesLocked()
	for {
		offset, ok := oldest.ring.Pop()
		if !ok {
			break
		}
		oldest.arena.Release(int(offset))
	}
	_ = s.segments[oldest.segmentIdx].MaybeCloseDeferred()
}

// ReceivedSample is a dequeued, still-inflight chunk: reading its
// Payload is safe until Release is called.
type ReceivedSample[T any] struct {
	sub        *Subscriber[T]
	segmentIdx int
	offset     int
	payload    *T
	header     wireformat.SystemHeader
}

// Payload returns a pointer directly into the shared chunk's payload
// region; it remains valid until Release.
func (r *ReceivedSample[T]) Payload() *T { return r.payload }

// Header returns the system header the sending Publisher stamped on this
// sample.
func (r *ReceivedSample[T]) Header() wireformat.SystemHeader { return r.header }

// Release returns the sample's arena hold, allowing the slot to
// transition back to free once every other holder has also released it.
func (r *ReceivedSample[T]) Release() {
	r.sub.mu.Lock()
	delete(r.sub.borrowed, borrowKey{r.segmentIdx, r.offset})
	r.sub.mu.Unlock()
	segment := r.sub.segments[r.segmentIdx]
	segment.Arena().Release(r.offset)
	_ = segment.MaybeCloseDeferred()
}

// Receive dequeues the next available sample in round-robin order across
// every connected publisher, or ErrNoData if every ring is currently
// empty.
func (s *Subscriber[T]) Receive() (*ReceivedSample[T], error) {
	s.mu.Lock()
	if s.maxBorrowed > 0 && len(s.borrowed) >= s.maxBorrowed {
		s.mu.Unlock()
		return nil, ReceiveErrorExceedsMaxBorrows
	}
	segmentIdx, offset64, ok := s.reader.Pop()
	if !ok {
		s.mu.Unlock()
		return nil, ErrNoData
	}
	offset := int(offset64)
	s.borrowed[borrowKey{segmentIdx, offset}] = struct{}{}
	segment := s.segments[segmentIdx]
	s.mu.Unlock()

	chunk := segment.chunkBytes(offset)
	layout := segment.Layout()
	payload := (*T)(unsafe.Pointer(&chunk[layout.PayloadOffset]))
	header := layout.DecodeSystemHeader(chunk)

	return &ReceivedSample[T]{sub: s, segmentIdx: segmentIdx, offset: offset, payload: payload, header: header}, nil
}
