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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/config"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	cfg := config.Defaults()
	cfg.Global.RootPath = t.TempDir()
	n, err := NewNodeBuilder().Config(cfg).Create()
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n
}

// TestScenarioSingleProducerSingleConsumer exercises the basic round
// trip: create service "demo", open as publisher P and subscriber S. P
// loans,
// writes 42, sends. S receives; payload == 42. S releases. Expected:
// delivered_count == 1; after release, the arena has zero in-flight.
func TestScenarioSingleProducerSingleConsumer(t *testing.T) {
	n := newTestNode(t)

	factory, err := PublishSubscribe[uint64](n.ServiceBuilder("demo"))
	require.NoError(t, err)
	defer factory.Close()

	pub, err := factory.PublisherBuilder().Create()
	require.NoError(t, err)
	defer pub.Close()

	sub, err := factory.SubscriberBuilder().Create()
	require.NoError(t, err)
	defer sub.Close()

	sample, err := pub.LoanUninit()
	require.NoError(t, err)
	*sample.Payload() = 42
	delivered, err := sample.Send()
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	received, err := sub.Receive()
	require.NoError(t, err)
	assert.Equal(t, uint64(42), *received.Payload())

	_, err = sub.Receive()
	assert.ErrorIs(t, err, ErrNoData)

	received.Release()

	_, loaned, inflight := pub.inner.Segment().Arena().Stats()
	assert.Equal(t, 0, loaned)
	assert.Equal(t, 0, inflight)
}

// TestScenarioPublisherHistoryReplay exercises the round-trip law: a new
// subscriber connecting to a publisher with history size H receives the
// last min(H, sent_count) samples in send order, followed by
// subsequently sent samples.
func TestScenarioPublisherHistoryReplay(t *testing.T) {
	n := newTestNode(t)

	factory, err := PublishSubscribe[uint64](n.ServiceBuilder("demo-history").HistorySize(2).SubscriberMaxBufferSize(4))
	require.NoError(t, err)
	defer factory.Close()

	pub, err := factory.PublisherBuilder().Create()
	require.NoError(t, err)
	defer pub.Close()

	for _, v := range []uint64{1, 2, 3} {
		s, err := pub.LoanUninit()
		require.NoError(t, err)
		*s.Payload() = v
		_, err = s.Send()
		require.NoError(t, err)
	}

	sub, err := factory.SubscriberBuilder().Create()
	require.NoError(t, err)
	defer sub.Close()

	s, err := pub.LoanUninit()
	require.NoError(t, err)
	*s.Payload() = 4
	_, err = s.Send()
	require.NoError(t, err)

	var got []uint64
	for {
		r, err := sub.Receive()
		if errors.Is(err, ErrNoData) {
			break
		}
		require.NoError(t, err)
		got = append(got, *r.Payload())
		r.Release()
	}

	assert.Equal(t, []uint64{2, 3, 4}, got)
}

// TestScenarioSafeOverflowEvictsOldest exercises overflow through the
// full stack: safe-overflow on, buffer 2, sending 1, 2, 3 without the
// subscriber receiving. The oldest sample is evicted, so the subscriber
// observes 2, 3, then nothing.
func TestScenarioSafeOverflowEvictsOldest(t *testing.T) {
	n := newTestNode(t)

	factory, err := PublishSubscribe[uint64](n.ServiceBuilder("demo-overflow").
		SubscriberMaxBufferSize(2).
		EnableSafeOverflow(true))
	require.NoError(t, err)
	defer factory.Close()

	pub, err := factory.PublisherBuilder().Create()
	require.NoError(t, err)
	defer pub.Close()

	sub, err := factory.SubscriberBuilder().Create()
	require.NoError(t, err)
	defer sub.Close()

	for _, v := range []uint64{1, 2, 3} {
		s, err := pub.LoanUninit()
		require.NoError(t, err)
		*s.Payload() = v
		delivered, err := s.Send()
		require.NoError(t, err)
		assert.Equal(t, 1, delivered)
	}

	var got []uint64
	for {
		r, err := sub.Receive()
		if errors.Is(err, ErrNoData) {
			break
		}
		require.NoError(t, err)
		got = append(got, *r.Payload())
		r.Release()
	}
	assert.Equal(t, []uint64{2, 3}, got)
}

// TestScenarioDiscardSampleDropsNewest exercises the discard policy
// through the full stack: safe-overflow off, strategy DiscardSample, buffer 2.
// send(3) reports zero deliveries and the subscriber observes 1, 2, then
// nothing.
func TestScenarioDiscardSampleDropsNewest(t *testing.T) {
	n := newTestNode(t)

	factory, err := PublishSubscribe[uint64](n.ServiceBuilder("demo-discard").
		SubscriberMaxBufferSize(2).
		EnableSafeOverflow(false))
	require.NoError(t, err)
	defer factory.Close()

	pub, err := factory.PublisherBuilder().
		UnableToDeliverStrategy(DiscardSample).
		Create()
	require.NoError(t, err)
	defer pub.Close()

	sub, err := factory.SubscriberBuilder().Create()
	require.NoError(t, err)
	defer sub.Close()

	wantDelivered := []int{1, 1, 0}
	for i, v := range []uint64{1, 2, 3} {
		s, err := pub.LoanUninit()
		require.NoError(t, err)
		*s.Payload() = v
		delivered, err := s.Send()
		require.NoError(t, err)
		assert.Equal(t, wantDelivered[i], delivered)
	}

	var got []uint64
	for {
		r, err := sub.Receive()
		if errors.Is(err, ErrNoData) {
			break
		}
		require.NoError(t, err)
		got = append(got, *r.Payload())
		r.Release()
	}
	assert.Equal(t, []uint64{1, 2}, got)
}

// TestScenarioCloseDisconnectsBothSides exercises the publisher/
// subscriber teardown path: closing either port removes its half of the
// in-process connection without affecting the other port's own
// lifecycle.
func TestScenarioCloseDisconnectsBothSides(t *testing.T) {
	n := newTestNode(t)

	factory, err := PublishSubscribe[uint64](n.ServiceBuilder("demo-close"))
	require.NoError(t, err)
	defer factory.Close()

	pub, err := factory.PublisherBuilder().Create()
	require.NoError(t, err)

	sub, err := factory.SubscriberBuilder().Create()
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, pub.Close())
	_, err = pub.LoanUninit()
	assert.ErrorIs(t, err, ErrPublisherClosed)
}
