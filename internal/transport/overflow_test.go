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

package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSafeOverflowEvictsOldest exercises scenario 2: safe-overflow=true,
// buffer=2. Sending 1, 2, 3 without the consumer reading evicts 1, then
// reads observe 2, 3, none.
func TestSafeOverflowEvictsOldest(t *testing.T) {
	r := NewRing(2)
	require.Equal(t, 2, r.Capacity())

	var evicted []uint64
	onEvict := func(off uint64) { evicted = append(evicted, off) }

	r.PushSafeOverflow(1, onEvict)
	r.PushSafeOverflow(2, onEvict)
	r.PushSafeOverflow(3, onEvict)

	assert.Equal(t, []uint64{1}, evicted)
	assert.Equal(t, uint64(1), r.Dropped())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(2), v)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(3), v)

	_, ok = r.Pop()
	assert.False(t, ok)
}

// TestDiscardPushDropsNewest exercises scenario 3: safe-overflow=false,
// strategy=DiscardSample, buffer=2. send(3) is dropped; the consumer
// still observes 1, 2, none.
func TestDiscardPushDropsNewest(t *testing.T) {
	r := NewRing(2)

	assert.True(t, r.DiscardPush(1))
	assert.True(t, r.DiscardPush(2))
	assert.False(t, r.DiscardPush(3))
	assert.Equal(t, uint64(1), r.Dropped())

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(2), v)

	_, ok = r.Pop()
	assert.False(t, ok)
}

func TestRingCapacityRoundsUpToPowerOfTwo(t *testing.T) {
	assert.Equal(t, 1, NewRing(0).Capacity())
	assert.Equal(t, 1, NewRing(1).Capacity())
	assert.Equal(t, 4, NewRing(3).Capacity())
	assert.Equal(t, 8, NewRing(8).Capacity())
}

func TestPushBlockGivesUpWhenConsumerIsDead(t *testing.T) {
	r := NewRing(1)
	require.True(t, r.TryPush(1))

	ok := r.PushBlock(2, func() bool { return true })
	assert.False(t, ok)
}

func TestPushBlockSucceedsOnceSpaceFrees(t *testing.T) {
	r := NewRing(1)
	require.True(t, r.TryPush(1))

	done := make(chan bool, 1)
	go func() {
		done <- r.PushBlock(2, func() bool { return false })
	}()

	v, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(1), v)

	assert.True(t, <-done)

	v, ok = r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint64(2), v)
}

func TestMultiRingReaderRoundRobinsNonEmptyRings(t *testing.T) {
	r1 := NewRing(4)
	r2 := NewRing(4)
	require.True(t, r1.TryPush(10))
	require.True(t, r2.TryPush(20))
	require.True(t, r1.TryPush(11))

	reader := NewMultiRingReader([]Source{{ID: 1, Ring: r1}, {ID: 2, Ring: r2}})

	id, v, ok := reader.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, id)
	assert.Equal(t, uint64(10), v)

	id, v, ok = reader.Pop()
	require.True(t, ok)
	assert.Equal(t, 2, id)
	assert.Equal(t, uint64(20), v)

	id, v, ok = reader.Pop()
	require.True(t, ok)
	assert.Equal(t, 1, id)
	assert.Equal(t, uint64(11), v)

	_, _, ok = reader.Pop()
	assert.False(t, ok)
}
