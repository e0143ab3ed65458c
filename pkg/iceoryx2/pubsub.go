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

package iceoryx2

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/port"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/registry"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/transport"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

func rawUUID(id uuid.UUID) [16]byte {
	var out [16]byte
	copy(out[:], id[:])
	return out
}

// connLink records one in-process publisher-subscriber wiring, so either
// side's Close can unwind the other side's half of the connection: the
// publisher's connection-list entry and the subscriber's
// expired-connection handling.
type connLink[T any] struct {
	pub       *Publisher[T]
	sub       *Subscriber[T]
	subSegIdx int
}

// PortFactoryPubSub is the joined view of a publish-subscribe service
//: the entry point for creating publishers and subscribers
// against it. Publishers and subscribers created from the same factory
// within this process are connected directly; cross-process delivery
// shares the same service identity and static config but is out of this
// substrate's scope (see DESIGN.md).
type PortFactoryPubSub[T any] struct {
	mu      sync.Mutex
	node    *Node
	service *registry.Service
	layout  wireformat.ChunkLayout
	closed  bool

	publishers  []*Publisher[T]
	subscribers []*Subscriber[T]
	links       []*connLink[T]
}

// PublishSubscribe joins or creates the publish-subscribe service
// described by b, typed over T. Go forbids generic
// methods, so this is a package-level function rather than a method on
// ServiceBuilder.
func PublishSubscribe[T any](b *ServiceBuilder) (*PortFactoryPubSub[T], error) {
	if b == nil || b.node == nil {
		return nil, ErrBuilderConsumed
	}
	n := b.node
	cfg := n.cfg

	var zero T
	payloadSize := uint64(unsafe.Sizeof(zero))
	payloadAlign := uint64(unsafe.Alignof(zero))
	fingerprint := fmt.Sprintf("%T", zero)

	safeOverflow := cfg.PublishSubscribe.EnableSafeOverflow
	if b.enableSafeOverflow != nil {
		safeOverflow = *b.enableSafeOverflow
	}

	ps := &wireformat.PubSubConfig{
		MaxPublishers:                orDefault(b.maxPublishers, cfg.PublishSubscribe.MaxPublishers),
		MaxSubscribers:               orDefault(b.maxSubscribers, cfg.PublishSubscribe.MaxSubscribers),
		MaxNodes:                     orDefault(b.pubSubMaxNodes, cfg.PublishSubscribe.MaxNodes),
		SubscriberMaxBufferSize:      orDefault(b.subscriberMaxBufferSize, cfg.PublishSubscribe.SubscriberMaxBufferSize),
		SubscriberMaxBorrowedSamples: orDefault(b.subscriberMaxBorrowedSamples, cfg.PublishSubscribe.SubscriberMaxBorrowedSamples),
		PublisherHistorySize:         orDefault(b.publisherHistorySize, cfg.PublishSubscribe.PublisherHistorySize),
		EnableSafeOverflow:           safeOverflow,
		PayloadTypeFingerprint:       fingerprint,
		PayloadSize:                  payloadSize,
		PayloadAlignment:             payloadAlign,
	}

	svc, err := n.registry.CreateOrOpen(n.node, b.name, wireformat.PatternPublishSubscribe, ps, nil)
	if err != nil {
		return nil, &PubSubOpenOrCreateError{Err: err}
	}

	layout := wireformat.NewChunkLayout(0, 0, svc.Static.PubSub.PayloadSize, svc.Static.PubSub.PayloadAlignment)

	return &PortFactoryPubSub[T]{node: n, service: svc, layout: layout}, nil
}

// ServiceName returns the service's name.
func (f *PortFactoryPubSub[T]) ServiceName() string { return f.service.Name }

// StaticConfig returns the service's published static configuration.
func (f *PortFactoryPubSub[T]) StaticConfig() StaticConfigPubSub {
	return staticConfigPubSubFrom(f.service.Static.PubSub)
}

// NumberOfPublishers returns the service's live publisher count.
func (f *PortFactoryPubSub[T]) NumberOfPublishers() int {
	return f.service.Participants().NumberOfPublishers()
}

// NumberOfSubscribers returns the service's live subscriber count.
func (f *PortFactoryPubSub[T]) NumberOfSubscribers() int {
	return f.service.Participants().NumberOfSubscribers()
}

// PublisherBuilder starts building a publisher against this service.
func (f *PortFactoryPubSub[T]) PublisherBuilder() *PublisherBuilder[T] {
	return &PublisherBuilder[T]{factory: f}
}

// SubscriberBuilder starts building a subscriber against this service.
func (f *PortFactoryPubSub[T]) SubscriberBuilder() *SubscriberBuilder[T] {
	return &SubscriberBuilder[T]{factory: f}
}

// Close releases this process's handle on the service. It does not tear
// down publishers or subscribers already created from it; those must be
// closed individually.
func (f *PortFactoryPubSub[T]) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.service.Close()
}

// connectLocked wires a freshly created publisher and subscriber
// together with a fresh transport ring, sized from the service's static
// config. Callers must hold f.mu.
func (f *PortFactoryPubSub[T]) connectLocked(pub *Publisher[T], sub *Subscriber[T]) {
	ring := transport.NewRing(int(f.service.Static.PubSub.SubscriberMaxBufferSize))
	segIdx := sub.inner.Connect(pub.inner.Segment(), ring)
	pub.inner.Connect(rawUUID(sub.id), ring, sub.isDead)
	f.links = append(f.links, &connLink[T]{pub: pub, sub: sub, subSegIdx: segIdx})
}

func (f *PortFactoryPubSub[T]) resolveStrategy(b *PublisherBuilder[T]) UnableToDeliverStrategy {
	if b.hasStrategyOverride {
		return b.unableToDeliverStrategy
	}
	if f.node.cfg.PublishSubscribe.UnableToDeliverStrategy == "DiscardSample" {
		return port.DiscardSample
	}
	return port.Block
}

// PublisherBuilder configures and creates a Publisher.
type PublisherBuilder[T any] struct {
	factory                 *PortFactoryPubSub[T]
	maxLoanedSamples        int
	unableToDeliverStrategy UnableToDeliverStrategy
	hasStrategyOverride     bool
}

// MaxLoanedSamples overrides how many samples the publisher may hold on
// loan simultaneously.
func (b *PublisherBuilder[T]) MaxLoanedSamples(v int) *PublisherBuilder[T] {
	b.maxLoanedSamples = v
	return b
}

// UnableToDeliverStrategy overrides the publisher's behavior against a
// full connection.
func (b *PublisherBuilder[T]) UnableToDeliverStrategy(s UnableToDeliverStrategy) *PublisherBuilder[T] {
	b.unableToDeliverStrategy = s
	b.hasStrategyOverride = true
	return b
}

// Create finalizes the builder, allocating the publisher's data segment
// and registering it with the service's participant registry.
func (b *PublisherBuilder[T]) Create() (*Publisher[T], error) {
	f := b.factory
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrServiceClosed
	}

	ps := f.service.Static.PubSub
	id := uuid.New()
	rawID := rawUUID(id)

	if ps.MaxPublishers > 0 && uint64(f.service.Participants().NumberOfPublishers()) >= ps.MaxPublishers {
		return nil, WrapError("publisher create", ErrCapacityExceeded)
	}
	if !f.service.Participants().AddPublisher(rawID, rawUUID(f.node.node.ID())) {
		return nil, WrapError("publisher create", ErrCapacityExceeded)
	}

	maxLoaned := b.maxLoanedSamples
	if maxLoaned <= 0 {
		maxLoaned = int(f.node.cfg.PublishSubscribe.PublisherMaxLoanedSamples)
	}
	historySize := int(ps.PublisherHistorySize)
	// Chunk count must cover every loaned sample, every sample retained
	// for history replay, and every sample potentially in flight across
	// all connected subscribers' rings at once.
	chunkCount := maxLoaned + historySize + int(ps.MaxSubscribers)*int(ps.SubscriberMaxBufferSize) + 1

	segName := f.node.registry.DataSegmentName(f.service.Hash, rawID)
	segment, err := port.CreateDataSegment(f.node.registry.Provider(), segName, chunkCount, f.layout)
	if err != nil {
		f.service.Participants().RemovePublisher(rawID)
		return nil, WrapError("publisher create", err)
	}

	policy := f.resolveStrategy(b)
	inner := port.NewPublisher[T](id, segment, policy, ps.EnableSafeOverflow, maxLoaned, historySize)

	pub := &Publisher[T]{factory: f, inner: inner, id: id}
	f.publishers = append(f.publishers, pub)
	for _, sub := range f.subscribers {
		f.connectLocked(pub, sub)
	}

	return pub, nil
}

// SubscriberBuilder configures and creates a Subscriber.
type SubscriberBuilder[T any] struct {
	factory            *PortFactoryPubSub[T]
	maxBorrowedSamples int
}

// MaxBorrowedSamples overrides how many samples the subscriber may hold
// simultaneously without releasing.
func (b *SubscriberBuilder[T]) MaxBorrowedSamples(v int) *SubscriberBuilder[T] {
	b.maxBorrowedSamples = v
	return b
}

// Create finalizes the builder, registering the subscriber with the
// service's participant registry and connecting it to every publisher
// already created from the same factory.
func (b *SubscriberBuilder[T]) Create() (*Subscriber[T], error) {
	f := b.factory
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrServiceClosed
	}

	ps := f.service.Static.PubSub
	id := uuid.New()
	rawID := rawUUID(id)

	if ps.MaxSubscribers > 0 && uint64(f.service.Participants().NumberOfSubscribers()) >= ps.MaxSubscribers {
		return nil, WrapError("subscriber create", ErrCapacityExceeded)
	}
	if !f.service.Participants().AddSubscriber(rawID, rawUUID(f.node.node.ID())) {
		return nil, WrapError("subscriber create", ErrCapacityExceeded)
	}

	maxBorrowed := b.maxBorrowedSamples
	if maxBorrowed <= 0 {
		maxBorrowed = int(ps.SubscriberMaxBorrowedSamples)
	}
	expiredCap := int(f.node.cfg.PublishSubscribe.SubscriberExpiredConnBufSize)

	inner := port.NewSubscriber[T](id, maxBorrowed, expiredCap)
	sub := &Subscriber[T]{factory: f, inner: inner, id: id}
	f.subscribers = append(f.subscribers, sub)
	for _, pub := range f.publishers {
		f.connectLocked(pub, sub)
	}

	return sub, nil
}

// Publisher is the façade over internal/port.Publisher.
type Publisher[T any] struct {
	factory *PortFactoryPubSub[T]
	inner   *port.Publisher[T]
	id      uuid.UUID
	mu      sync.Mutex
	closed  bool
}

// ID returns the publisher's unique port identity.
func (p *Publisher[T]) ID() UniquePublisherId { return UniquePublisherId{id: p.id} }

// LoanUninit reserves a chunk and returns a Sample wrapping its
// uninitialized payload.
func (p *Publisher[T]) LoanUninit() (*Sample[T], error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, ErrPublisherClosed
	}
	s, err := p.inner.LoanUninit()
	if err != nil {
		return nil, WrapError("loan uninit", err)
	}
	return &Sample[T]{inner: s}, nil
}

// Close disconnects the publisher from every subscriber created from the
// same factory and releases its data segment.
func (p *Publisher[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	f := p.factory
	f.mu.Lock()
	publishers := make([]*Publisher[T], 0, len(f.publishers))
	for _, existing := range f.publishers {
		if existing != p {
			publishers = append(publishers, existing)
		}
	}
	f.publishers = publishers

	links := make([]*connLink[T], 0, len(f.links))
	for _, l := range f.links {
		if l.pub == p {
			l.sub.inner.Disconnect(l.subSegIdx)
			continue
		}
		links = append(links, l)
	}
	f.links = links
	f.service.Participants().RemovePublisher(rawUUID(p.id))
	f.mu.Unlock()

	// Drop the history buffer's own holds first, then destroy the data
	// segment: immediately if nothing is in flight, otherwise whichever
	// subscriber releases the last queued sample finishes the teardown.
	p.inner.ReleaseRetained()
	return WrapError("publisher close", p.inner.Segment().CloseDeferred())
}

// Sample is a loaned chunk: its payload may be written in place and
// either published or abandoned.
type Sample[T any] struct {
	inner *port.Sample[T]
}

// Payload returns a pointer directly into the shared chunk's payload.
func (s *Sample[T]) Payload() *T { return s.inner.Payload() }

// Send publishes the sample, returning how many connected subscribers it
// was actually delivered to.
func (s *Sample[T]) Send() (int, error) {
	delivered, err := s.inner.Send()
	if err != nil {
		return 0, WrapError("send", err)
	}
	return delivered, nil
}

// Discard releases a loaned sample without publishing it.
func (s *Sample[T]) Discard() error {
	return WrapError("discard", s.inner.Discard())
}

// Subscriber is the façade over internal/port.Subscriber.
type Subscriber[T any] struct {
	factory *PortFactoryPubSub[T]
	inner   *port.Subscriber[T]
	id      uuid.UUID
	closed  atomic.Bool
}

// ID returns the subscriber's unique port identity.
func (s *Subscriber[T]) ID() UniqueSubscriberId { return UniqueSubscriberId{id: s.id} }

func (s *Subscriber[T]) isDead() bool { return s.closed.Load() }

// Receive dequeues the next available sample, or ErrNoData if every
// connection is currently empty.
func (s *Subscriber[T]) Receive() (*ReceivedSample[T], error) {
	if s.closed.Load() {
		return nil, ErrSubscriberClosed
	}
	r, err := s.inner.Receive()
	if err != nil {
		if errors.Is(err, port.ErrNoData) {
			return nil, ErrNoData
		}
		return nil, WrapError("receive", err)
	}
	return &ReceivedSample[T]{inner: r}, nil
}

// Close disconnects the subscriber from every publisher created from the
// same factory. Samples already borrowed remain valid until Released.
func (s *Subscriber[T]) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	f := s.factory
	f.mu.Lock()
	defer f.mu.Unlock()

	subscribers := make([]*Subscriber[T], 0, len(f.subscribers))
	for _, existing := range f.subscribers {
		if existing != s {
			subscribers = append(subscribers, existing)
		}
	}
	f.subscribers = subscribers

	links := make([]*connLink[T], 0, len(f.links))
	for _, l := range f.links {
		if l.sub == s {
			l.pub.inner.Disconnect(rawUUID(s.id))
			continue
		}
		links = append(links, l)
	}
	f.links = links
	f.service.Participants().RemoveSubscriber(rawUUID(s.id))

	return nil
}

// ReceivedSample is a dequeued, still-inflight chunk.
type ReceivedSample[T any] struct {
	inner *port.ReceivedSample[T]
}

// Payload returns a pointer directly into the shared chunk's payload.
func (r *ReceivedSample[T]) Payload() *T { return r.inner.Payload() }

// Header returns the system header stamped by the sending publisher.
func (r *ReceivedSample[T]) Header() PublishSubscribeHeader {
	return PublishSubscribeHeader{raw: r.inner.Header()}
}

// Release returns the sample's arena hold.
func (r *ReceivedSample[T]) Release() { r.inner.Release() }
