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

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquirePublishReleaseRoundTrip(t *testing.T) {
	a := New(4, 64)

	offset, err := a.Acquire()
	require.NoError(t, err)
	assert.True(t, a.State(offset).Loaned)

	a.Publish(offset, 2)
	st := a.State(offset)
	assert.True(t, st.Inflight)
	assert.Equal(t, uint32(2), st.RefCount)

	a.Release(offset)
	assert.Equal(t, uint32(1), a.State(offset).RefCount)

	a.Release(offset)
	assert.True(t, a.State(offset).Free)
}

func TestPublishWithZeroSubscribersFreesImmediately(t *testing.T) {
	a := New(2, 64)

	offset, err := a.Acquire()
	require.NoError(t, err)
	a.Publish(offset, 0)
	assert.True(t, a.State(offset).Free)
}

func TestBorrowIncrementsRefCount(t *testing.T) {
	a := New(2, 64)

	offset, err := a.Acquire()
	require.NoError(t, err)
	a.Publish(offset, 1)

	a.Borrow(offset)
	assert.Equal(t, uint32(2), a.State(offset).RefCount)

	a.Release(offset)
	a.Release(offset)
	assert.True(t, a.State(offset).Free)
}

func TestAcquireReportsEmptyWhenExhausted(t *testing.T) {
	a := New(2, 64)

	_, err := a.Acquire()
	require.NoError(t, err)
	_, err = a.Acquire()
	require.NoError(t, err)

	_, err = a.Acquire()
	assert.ErrorIs(t, err, ErrEmpty)
}

// TestLoanDropDoesNotLeak exercises the loan/drop round-trip law: a
// loan followed by a drop without send returns the chunk to free, and
// repeating it many times neither leaks slots nor shifts the occupancy
// counts.
func TestLoanDropDoesNotLeak(t *testing.T) {
	iterations := 1_000_000
	if testing.Short() {
		iterations = 10_000
	}

	a := New(4, 64)
	for i := 0; i < iterations; i++ {
		offset, err := a.Acquire()
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		a.Publish(offset, 0)
	}

	free, loaned, inflight := a.Stats()
	assert.Equal(t, 4, free)
	assert.Equal(t, 0, loaned)
	assert.Equal(t, 0, inflight)
}

// TestSendReleaseDoesNotLeak is the second round-trip law: loan, publish
// to one subscriber, release. The chunk is reusable within one round of
// acquire.
func TestSendReleaseDoesNotLeak(t *testing.T) {
	iterations := 1_000_000
	if testing.Short() {
		iterations = 10_000
	}

	a := New(1, 64)
	for i := 0; i < iterations; i++ {
		offset, err := a.Acquire()
		if err != nil {
			t.Fatalf("iteration %d: %v", i, err)
		}
		a.Publish(offset, 1)
		a.Release(offset)
	}

	free, _, _ := a.Stats()
	assert.Equal(t, 1, free)
}

func TestDoubleReleaseIsAContractViolation(t *testing.T) {
	a := New(1, 64)

	offset, err := a.Acquire()
	require.NoError(t, err)
	a.Publish(offset, 1)
	a.Release(offset)

	assert.PanicsWithError(t,
		(&ContractViolation{Op: "Release", Offset: offset, Detail: "double-release or release of a non-inflight slot"}).Error(),
		func() { a.Release(offset) })
}

func TestPublishOfUnloanedSlotIsAContractViolation(t *testing.T) {
	a := New(1, 64)
	assert.Panics(t, func() { a.Publish(0, 1) })
}

func TestBorrowOfFreeSlotIsAContractViolation(t *testing.T) {
	a := New(1, 64)
	assert.Panics(t, func() { a.Borrow(0) })
}

func TestPlaceOverBufferSharesState(t *testing.T) {
	buf := make([]byte, 4*8)

	a, err := PlaceOverBuffer(buf, 4, 64)
	require.NoError(t, err)
	b, err := PlaceOverBuffer(buf, 4, 64)
	require.NoError(t, err)

	offset, err := a.Acquire()
	require.NoError(t, err)
	assert.True(t, b.State(offset).Loaned, "a second view over the same buffer must observe the transition")

	_, err = PlaceOverBuffer(buf[:8], 4, 64)
	assert.Error(t, err)
}
