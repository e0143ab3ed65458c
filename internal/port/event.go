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
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/registry"
)

// EventId identifies one of the up-to-256 distinguishable event values a
// Notifier/Listener pair exchanges.
type EventId uint64

// WakeGroup is a channel-close broadcast: every waiter holds the channel
// returned by wait() at the time it started waiting, and broadcast()
// closes it (then replaces it with a fresh one) to wake every holder at
// once. This is the same "fast local wake plus poll backstop" shape
// internal/registry's dead-node sweep uses (flock check backstopped by a
// periodic sweep rather than instant cross-process notification).
type WakeGroup struct {
	mu sync.Mutex
	ch chan struct{}
}

func newWakeGroup() *WakeGroup {
	return &WakeGroup{ch: make(chan struct{})}
}

// NewWakeGroup constructs the process-local wake group a PortFactoryEvent
// shares across every Notifier/Listener it creates, so a same-process
// Notify wakes a blocked Wait immediately instead of waiting for the next
// poll tick.
func NewWakeGroup() *WakeGroup {
	return newWakeGroup()
}

func (w *WakeGroup) wait() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.ch
}

func (w *WakeGroup) broadcast() {
	w.mu.Lock()
	defer w.mu.Unlock()
	close(w.ch)
	w.ch = make(chan struct{})
}

// Notifier is the event-raising port: it sets bits in the
// service's shared event bitset and wakes same-process Listeners
// immediately. Cross-process Listeners observe the bit on their next
// poll tick (bounded by Listener's pollInterval).
type Notifier struct {
	id           uuid.UUID
	participants *registry.ParticipantRegistry
	wake         *WakeGroup
}

// NewNotifier constructs a Notifier bound to a service's participant
// registry and the process-local wake group its Listeners share.
func NewNotifier(id uuid.UUID, participants *registry.ParticipantRegistry, wake *WakeGroup) *Notifier {
	return &Notifier{id: id, participants: participants, wake: wake}
}

// ID returns the notifier's unique port identity.
func (n *Notifier) ID() uuid.UUID { return n.id }

// Notify raises eventID, visible to every connected Listener.
func (n *Notifier) Notify(eventID EventId) error {
	n.participants.NotifyEvent(uint64(eventID))
	if n.wake != nil {
		n.wake.broadcast()
	}
	return nil
}

// Listener observes event ids raised by Notifiers on the same service.
type Listener struct {
	id           uuid.UUID
	participants *registry.ParticipantRegistry
	wake         *WakeGroup
	pollInterval time.Duration
}

// NewListener constructs a Listener polling participants every
// pollInterval as a backstop against missed same-process wakes (there is
// none to miss) and as the sole mechanism for observing events raised by
// a Notifier in a different OS process.
func NewListener(id uuid.UUID, participants *registry.ParticipantRegistry, wake *WakeGroup, pollInterval time.Duration) *Listener {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}
	return &Listener{id: id, participants: participants, wake: wake, pollInterval: pollInterval}
}

// ID returns the listener's unique port identity.
func (l *Listener) ID() uuid.UUID { return l.id }

func toEventIds(raw []uint64) []EventId {
	out := make([]EventId, len(raw))
	for i, v := range raw {
		out[i] = EventId(v)
	}
	return out
}

// TryWait returns currently-pending event IDs without blocking, or
// ErrNoData if none are pending.
func (l *Listener) TryWait() ([]EventId, error) {
	raw := l.participants.DrainEvents()
	if len(raw) == 0 {
		return nil, ErrNoData
	}
	return toEventIds(raw), nil
}

// Wait blocks until an event is pending, ctx is done, or timeout
// elapses, whichever comes first. A timeout <= 0 means wait until ctx is
// done with no additional deadline.
func (l *Listener) Wait(ctx context.Context, timeout time.Duration) ([]EventId, error) {
	if raw, err := l.TryWait(); err == nil {
		return raw, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ticker := time.NewTicker(l.pollInterval)
	defer ticker.Stop()

	for {
		var wake <-chan struct{}
		if l.wake != nil {
			wake = l.wake.wait()
		}
		select {
		case <-ctx.Done():
			if raw, err := l.TryWait(); err == nil {
				return raw, nil
			}
			return nil, ErrTimedOut
		case <-wake:
		case <-ticker.C:
		}
		if raw, err := l.TryWait(); err == nil {
			return raw, nil
		}
	}
}
