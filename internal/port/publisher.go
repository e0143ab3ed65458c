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
	"time"
	"unsafe"

	"github.com/google/uuid"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/transport"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// UnableToDeliverStrategy selects Publisher.send's behavior against a
// full subscriber connection.
type UnableToDeliverStrategy int

const (
	// Block spins with bounded backoff until space frees up or the
	// connection is observed dead.
	Block UnableToDeliverStrategy = iota
	// DiscardSample drops the sample for that one connection immediately,
	// counting it in the connection's dropped-sample counter.
	DiscardSample
)

func rawUUID(id uuid.UUID) [16]byte {
	var out [16]byte
	copy(out[:], id[:])
	return out
}

// Publisher is the sending port, generic over its
// payload type: loaning returns a typed *Sample[T] pointing directly
// into the shared data segment, never a copy.
type Publisher[T any] struct {
	mu           sync.Mutex
	id           uuid.UUID
	segment      *DataSegment
	policy       UnableToDeliverStrategy
	safeOverflow bool
	maxLoans     int
	loaned       int
	connections  []*connection
	history      *historyRing
	sequence     uint64
}

// NewPublisher constructs a Publisher bound to segment, with the given
// unable-to-deliver policy, max simultaneous loans, and history depth.
// safeOverflow, when true, takes
// priority over policy: every push always succeeds by evicting the
// connection's oldest queued sample first.
func NewPublisher[T any](id uuid.UUID, segment *DataSegment, policy UnableToDeliverStrategy, safeOverflow bool, maxLoans, historySize int) *Publisher[T] {
	return &Publisher[T]{
		id:           id,
		segment:      segment,
		policy:       policy,
		safeOverflow: safeOverflow,
		maxLoans:     maxLoans,
		history:      newHistoryRing(historySize),
	}
}

// ID returns the publisher's unique port identity.
func (p *Publisher[T]) ID() uuid.UUID { return p.id }

// Segment returns the publisher's backing data segment, so callers
// wiring up a same-process subscriber can share its arena and chunk
// layout directly.
func (p *Publisher[T]) Segment() *DataSegment { return p.segment }

// Connect registers a subscriber's inbound ring, replaying the retained
// history into it immediately. Each replayed sample gets an
// extra arena.Borrow, since the offset is now referenced by one more
// reader than existed when it was originally published.
func (p *Publisher[T]) Connect(subscriberID [16]byte, ring *transport.Ring, isDead func() bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connections = append(p.connections, &connection{subscriberID: subscriberID, ring: ring, dead: isDead})
	for _, offset := range p.history.snapshot() {
		if ring.DiscardPush(offset) {
			p.segment.Arena().Borrow(int(offset))
		}
	}
}

// Disconnect removes a subscriber's connection. It does not touch any
// samples already queued in that subscriber's ring; those are released
// when the subscriber itself drops them, or reclaimed by the expired-
// connection handling the Subscriber Port implements.
func (p *Publisher[T]) Disconnect(subscriberID [16]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.connections[:0]
	for _, c := range p.connections {
		if c.subscriberID != subscriberID {
			out = append(out, c)
		}
	}
	p.connections = out
}

// Sample is a loaned chunk: its payload may be written in place and
// either published (Send) or abandoned (Discard).
type Sample[T any] struct {
	pub     *Publisher[T]
	offset  int
	payload *T
	chunk   []byte
	done    bool
}

// Payload returns a pointer directly into the shared chunk's payload
// region.
func (s *Sample[T]) Payload() *T { return s.payload }

// Send stamps the system header, fans the sample out to every connected
// subscriber per the publisher's UnableToDeliverStrategy, and retires
// the oldest history entry if the publisher's history buffer is now
// over capacity. It returns how many subscriber connections
// actually accepted the sample.
func (s *Sample[T]) Send() (delivered int, err error) {
	if s.done {
		return 0, SendErrorAlreadySent
	}
	s.done = true
	return s.pub.send(s)
}

// Discard releases a loaned sample back to the arena without publishing
// it.
func (s *Sample[T]) Discard() error {
	if s.done {
		return SendErrorAlreadySent
	}
	s.done = true
	s.pub.mu.Lock()
	s.pub.loaned--
	s.pub.mu.Unlock()
	s.pub.segment.Arena().Publish(s.offset, 0)
	return nil
}

// LoanUninit reserves a chunk slot and returns a Sample wrapping its
// (zeroed) payload.
func (p *Publisher[T]) LoanUninit() (*Sample[T], error) {
	p.mu.Lock()
	if p.maxLoans > 0 && p.loaned >= p.maxLoans {
		p.mu.Unlock()
		return nil, LoanErrorExceedsMaxLoans
	}
	p.loaned++
	p.mu.Unlock()

	offset, err := p.segment.Arena().Acquire()
	if err != nil {
		p.mu.Lock()
		p.loaned--
		p.mu.Unlock()
		return nil, LoanErrorOutOfMemory
	}

	chunk := p.segment.chunkBytes(offset)
	layout := p.segment.Layout()
	payload := (*T)(unsafe.Pointer(&chunk[layout.PayloadOffset]))
	var zero T
	*payload = zero

	return &Sample[T]{pub: p, offset: offset, payload: payload, chunk: chunk}, nil
}

func (p *Publisher[T]) send(s *Sample[T]) (int, error) {
	p.mu.Lock()
	p.loaned--
	p.sequence++
	seq := p.sequence
	conns := append([]*connection(nil), p.connections...)
	retainForHistory := p.history.capacity > 0
	p.mu.Unlock()

	hdr := wireformat.SystemHeader{
		PublisherID: rawUUID(p.id),
		TimestampNs: time.Now().UnixNano(),
		Sequence:    seq,
	}
	p.segment.Layout().EncodeSystemHeader(s.chunk, hdr)

	delivered := 0
	for _, c := range conns {
		if p.safeOverflow {
			c.ring.PushSafeOverflow(uint64(s.offset), func(evicted uint64) {
				p.segment.Arena().Release(int(evicted))
			})
			delivered++
			continue
		}
		var ok bool
		switch p.policy {
		case Block:
			ok = c.ring.PushBlock(uint64(s.offset), c.dead)
		default:
			ok = c.ring.DiscardPush(uint64(s.offset))
		}
		if ok {
			delivered++
		}
	}

	total := delivered
	if retainForHistory {
		total++
	}
	p.segment.Arena().Publish(s.offset, total)

	if retainForHistory {
		p.mu.Lock()
		evicted, had := p.history.push(s.offset)
		p.mu.Unlock()
		if had {
			p.segment.Arena().Release(evicted)
		}
	}

	return delivered, nil
}

// ReleaseRetained drops the publisher's own hold on every history entry,
// used at publisher teardown so retained samples stop pinning their
// chunks once no future subscriber can be replayed to.
func (p *Publisher[T]) ReleaseRetained() {
	p.mu.Lock()
	offsets := p.history.drain()
	p.mu.Unlock()
	for _, offset := range offsets {
		p.segment.Arena().Release(int(offset))
	}
}
