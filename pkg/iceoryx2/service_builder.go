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

// ServiceBuilder gathers a service name plus optional pattern-specific
// overrides before either PublishSubscribe or Event consumes it in its
// open-or-create step. Publish-subscribe and event both hang
// their setters off the same type: Go forbids a generic method on
// PublishSubscribe's type parameter, so a per-pattern builder split
// gains nothing here; a single builder carries both option sets and the
// pattern is selected by which package-level function (PublishSubscribe[T]
// or Event) ultimately consumes it.
type ServiceBuilder struct {
	node *Node
	name string

	// Publish-subscribe overrides (zero value means "use config default").
	maxPublishers                uint64
	maxSubscribers               uint64
	pubSubMaxNodes               uint64
	subscriberMaxBufferSize      uint64
	subscriberMaxBorrowedSamples uint64
	publisherHistorySize         uint64
	enableSafeOverflow           *bool

	// Event overrides.
	maxListeners    uint64
	maxNotifiers    uint64
	eventMaxNodes   uint64
	eventIdMaxValue uint64
}

// MaxPublishers overrides the publish-subscribe service's publisher
// capacity.
func (b *ServiceBuilder) MaxPublishers(v uint64) *ServiceBuilder {
	b.maxPublishers = v
	return b
}

// MaxSubscribers overrides the publish-subscribe service's subscriber
// capacity.
func (b *ServiceBuilder) MaxSubscribers(v uint64) *ServiceBuilder {
	b.maxSubscribers = v
	return b
}

// MaxNodes overrides the maximum number of nodes that may join the
// service being built. It applies to whichever pattern the builder is
// ultimately consumed as.
func (b *ServiceBuilder) MaxNodes(v uint64) *ServiceBuilder {
	b.pubSubMaxNodes = v
	b.eventMaxNodes = v
	return b
}

// SubscriberMaxBufferSize overrides the per-connection transport ring
// depth.
func (b *ServiceBuilder) SubscriberMaxBufferSize(v uint64) *ServiceBuilder {
	b.subscriberMaxBufferSize = v
	return b
}

// SubscriberMaxBorrowedSamples overrides how many samples a subscriber
// may hold simultaneously without releasing.
func (b *ServiceBuilder) SubscriberMaxBorrowedSamples(v uint64) *ServiceBuilder {
	b.subscriberMaxBorrowedSamples = v
	return b
}

// HistorySize overrides the publisher's replay-on-connect history
// depth.
func (b *ServiceBuilder) HistorySize(v uint64) *ServiceBuilder {
	b.publisherHistorySize = v
	return b
}

// EnableSafeOverflow overrides whether full connections evict their
// oldest sample instead of honoring the unable-to-deliver strategy.
func (b *ServiceBuilder) EnableSafeOverflow(v bool) *ServiceBuilder {
	b.enableSafeOverflow = &v
	return b
}

// MaxListeners overrides the event service's listener capacity.
func (b *ServiceBuilder) MaxListeners(v uint64) *ServiceBuilder {
	b.maxListeners = v
	return b
}

// MaxNotifiers overrides the event service's notifier capacity.
func (b *ServiceBuilder) MaxNotifiers(v uint64) *ServiceBuilder {
	b.maxNotifiers = v
	return b
}

// EventIdMaxValue overrides the highest event id the service's
// Notifiers may raise.
func (b *ServiceBuilder) EventIdMaxValue(v uint64) *ServiceBuilder {
	b.eventIdMaxValue = v
	return b
}

func orDefault(v, fallback uint64) uint64 {
	if v == 0 {
		return fallback
	}
	return v
}
