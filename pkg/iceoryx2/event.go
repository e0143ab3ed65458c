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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/port"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/registry"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// PortFactoryEvent is the joined view of an event service:
// the entry point for creating notifiers and listeners against it.
// Every notifier/listener created from the same factory shares one
// process-local wake group, so a same-process Notify wakes a blocked
// Wait immediately rather than waiting for the next poll tick.
type PortFactoryEvent struct {
	mu      sync.Mutex
	node    *Node
	service *registry.Service
	wake    *port.WakeGroup
	closed  bool
}

// Event joins or creates the event service described by b.
func Event(b *ServiceBuilder) (*PortFactoryEvent, error) {
	if b == nil || b.node == nil {
		return nil, ErrBuilderConsumed
	}
	n := b.node
	cfg := n.cfg

	ev := &wireformat.EventConfig{
		MaxListeners:    orDefault(b.maxListeners, cfg.Event.MaxListeners),
		MaxNotifiers:    orDefault(b.maxNotifiers, cfg.Event.MaxNotifiers),
		MaxNodes:        orDefault(b.eventMaxNodes, cfg.Event.MaxNodes),
		EventIdMaxValue: orDefault(b.eventIdMaxValue, cfg.Event.EventIdMaxValue),
	}

	svc, err := n.registry.CreateOrOpen(n.node, b.name, wireformat.PatternEvent, nil, ev)
	if err != nil {
		return nil, &EventOpenOrCreateError{Err: err}
	}

	return &PortFactoryEvent{node: n, service: svc, wake: port.NewWakeGroup()}, nil
}

// ServiceName returns the service's name.
func (f *PortFactoryEvent) ServiceName() string { return f.service.Name }

// StaticConfig returns the service's published static configuration.
func (f *PortFactoryEvent) StaticConfig() StaticConfigEvent {
	return staticConfigEventFrom(f.service.Static.Event)
}

// NumberOfNotifiers returns the service's live notifier count.
func (f *PortFactoryEvent) NumberOfNotifiers() int {
	return f.service.Participants().NumberOfNotifiers()
}

// NotifierBuilder starts building a notifier against this service.
func (f *PortFactoryEvent) NotifierBuilder() *NotifierBuilder {
	return &NotifierBuilder{factory: f}
}

// ListenerBuilder starts building a listener against this service.
func (f *PortFactoryEvent) ListenerBuilder() *ListenerBuilder {
	return &ListenerBuilder{factory: f}
}

// Close releases this process's handle on the service. It does not tear
// down notifiers or listeners already created from it.
func (f *PortFactoryEvent) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.service.Close()
}

// NotifierBuilder configures and creates a Notifier.
type NotifierBuilder struct {
	factory      *PortFactoryEvent
	defaultEvent *EventId
}

// DefaultEventId sets the event id Notify raises when called with no
// explicit id.
func (b *NotifierBuilder) DefaultEventId(id EventId) *NotifierBuilder {
	b.defaultEvent = &id
	return b
}

// Create finalizes the builder, registering the notifier with the
// service's participant registry.
func (b *NotifierBuilder) Create() (*Notifier, error) {
	f := b.factory
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrServiceClosed
	}

	id := uuid.New()
	ev := f.service.Static.Event
	if ev.MaxNotifiers > 0 && uint64(f.service.Participants().NumberOfNotifiers()) >= ev.MaxNotifiers {
		return nil, ErrCapacityExceeded
	}
	if !f.service.Participants().AddNotifier(rawUUID(id), rawUUID(f.node.node.ID())) {
		return nil, ErrCapacityExceeded
	}

	inner := port.NewNotifier(id, f.service.Participants(), f.wake)
	n := &Notifier{factory: f, inner: inner, id: id, defaultEvent: b.defaultEvent}
	return n, nil
}

// Notifier is the façade over internal/port.Notifier.
type Notifier struct {
	factory      *PortFactoryEvent
	inner        *port.Notifier
	id           uuid.UUID
	defaultEvent *EventId
	closed       atomic.Bool
}

// ID returns the notifier's unique port identity.
func (n *Notifier) ID() UniqueNotifierId { return UniqueNotifierId{id: n.id} }

// Notify raises eventID, visible to every connected Listener. The id
// must not exceed the service's configured EventIdMaxValue.
func (n *Notifier) Notify(eventID EventId) error {
	if n.closed.Load() {
		return ErrNotifierClosed
	}
	if uint64(eventID) > n.factory.service.Static.Event.EventIdMaxValue {
		return WrapError("notify", ErrEventIdOutOfBounds)
	}
	return WrapError("notify", n.inner.Notify(port.EventId(eventID)))
}

// NotifyDefault raises the notifier's default event id, or ErrNoDefaultEventId
// if DefaultEventId was never set on its builder.
func (n *Notifier) NotifyDefault() error {
	if n.defaultEvent == nil {
		return ErrNoDefaultEventId
	}
	return n.Notify(*n.defaultEvent)
}

// Close deregisters the notifier. It does not itself wake any blocked
// Listener.
func (n *Notifier) Close() error {
	if !n.closed.CompareAndSwap(false, true) {
		return nil
	}
	n.factory.service.Participants().RemoveNotifier(rawUUID(n.id))
	return nil
}

// ListenerBuilder configures and creates a Listener.
type ListenerBuilder struct {
	factory      *PortFactoryEvent
	pollInterval time.Duration
}

// PollInterval overrides the listener's cross-process poll backstop
// interval.
func (b *ListenerBuilder) PollInterval(d time.Duration) *ListenerBuilder {
	b.pollInterval = d
	return b
}

// Create finalizes the builder, registering the listener with the
// service's participant registry.
func (b *ListenerBuilder) Create() (*Listener, error) {
	f := b.factory
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrServiceClosed
	}

	id := uuid.New()
	ev := f.service.Static.Event
	if ev.MaxListeners > 0 && uint64(f.service.Participants().NumberOfListeners()) >= ev.MaxListeners {
		return nil, ErrCapacityExceeded
	}
	if !f.service.Participants().AddListener(rawUUID(id), rawUUID(f.node.node.ID())) {
		return nil, ErrCapacityExceeded
	}

	inner := port.NewListener(id, f.service.Participants(), f.wake, b.pollInterval)
	return &Listener{factory: f, inner: inner, id: id}, nil
}

// Listener is the façade over internal/port.Listener.
type Listener struct {
	factory *PortFactoryEvent
	inner   *port.Listener
	id      uuid.UUID
	closed  atomic.Bool
}

// ID returns the listener's unique port identity.
func (l *Listener) ID() UniqueListenerId { return UniqueListenerId{id: l.id} }

// TryWait returns currently-pending event IDs without blocking, or
// ErrNoData if none are pending.
func (l *Listener) TryWait() ([]EventId, error) {
	if l.closed.Load() {
		return nil, ErrListenerClosed
	}
	raw, err := l.inner.TryWait()
	if err != nil {
		if errors.Is(err, port.ErrNoData) {
			return nil, ErrNoData
		}
		return nil, WrapError("try wait", err)
	}
	return fromPortEventIds(raw), nil
}

// Wait blocks until an event is pending, ctx is done, or timeout elapses
// (a timeout <= 0 waits until ctx alone ends it). Returns ErrTimedOut if
// the deadline elapses with nothing pending.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) ([]EventId, error) {
	if l.closed.Load() {
		return nil, ErrListenerClosed
	}
	raw, err := l.inner.Wait(ctx, timeout)
	if err != nil {
		switch {
		case errors.Is(err, port.ErrNoData):
			return nil, ErrNoData
		case errors.Is(err, port.ErrTimedOut):
			return nil, ErrTimedOut
		}
		return nil, WrapError("wait", err)
	}
	return fromPortEventIds(raw), nil
}

// Close deregisters the listener.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	l.factory.service.Participants().RemoveListener(rawUUID(l.id))
	return nil
}

// EventId identifies one of the up-to-EventIdMaxValue distinguishable
// event values a Notifier/Listener pair exchanges.
type EventId uint64

func fromPortEventIds(raw []port.EventId) []EventId {
	out := make([]EventId, len(raw))
	for i, v := range raw {
		out[i] = EventId(v)
	}
	return out
}
