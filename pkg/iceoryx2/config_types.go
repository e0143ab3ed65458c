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
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/port"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// UnableToDeliverStrategy selects what a Publisher does when a
// subscriber's connection is full. It re-exports
// internal/port's enum so callers never import internal packages.
type UnableToDeliverStrategy = port.UnableToDeliverStrategy

const (
	Block         = port.Block
	DiscardSample = port.DiscardSample
)

// StaticConfigPubSub is the caller-visible view of a publish-subscribe
// service's published static descriptor.
type StaticConfigPubSub struct {
	MaxPublishers                uint64
	MaxSubscribers               uint64
	MaxNodes                     uint64
	SubscriberMaxBufferSize      uint64
	SubscriberMaxBorrowedSamples uint64
	PublisherHistorySize         uint64
	EnableSafeOverflow           bool
}

func staticConfigPubSubFrom(c *wireformat.PubSubConfig) StaticConfigPubSub {
	return StaticConfigPubSub{
		MaxPublishers:                c.MaxPublishers,
		MaxSubscribers:               c.MaxSubscribers,
		MaxNodes:                     c.MaxNodes,
		SubscriberMaxBufferSize:      c.SubscriberMaxBufferSize,
		SubscriberMaxBorrowedSamples: c.SubscriberMaxBorrowedSamples,
		PublisherHistorySize:         c.PublisherHistorySize,
		EnableSafeOverflow:           c.EnableSafeOverflow,
	}
}

// StaticConfigEvent is the caller-visible view of an event service's
// published static descriptor.
type StaticConfigEvent struct {
	MaxListeners    uint64
	MaxNotifiers    uint64
	MaxNodes        uint64
	EventIdMaxValue uint64
}

func staticConfigEventFrom(c *wireformat.EventConfig) StaticConfigEvent {
	return StaticConfigEvent{
		MaxListeners:    c.MaxListeners,
		MaxNotifiers:    c.MaxNotifiers,
		MaxNodes:        c.MaxNodes,
		EventIdMaxValue: c.EventIdMaxValue,
	}
}
