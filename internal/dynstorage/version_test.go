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

package dynstorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/memprovider"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

type counters struct {
	Value uint64
}

func newProvider(t *testing.T) memprovider.Provider {
	t.Helper()
	p, err := memprovider.New(t.TempDir())
	require.NoError(t, err)
	return p
}

// TestVersionMismatch exercises scenario 5: a creator stamps one package
// version; an opener built against a different one is rejected with
// ErrVersionMismatch, and the record is left unmodified (still openable
// once the mismatch is "fixed" by restoring CurrentVersion).
func TestVersionMismatch(t *testing.T) {
	provider := newProvider(t)
	name := "demo-version"

	rec, err := Create[counters](provider, name, 0, counters{Value: 42}, func(*counters, *BumpAllocator) error { return nil })
	require.NoError(t, err)
	rec.SetOwnership(false)
	require.NoError(t, rec.Close())

	oldVersion := CurrentVersion
	CurrentVersion = wireformat.PackageVersion(9, 9, 9)
	defer func() { CurrentVersion = oldVersion }()

	_, err = Open[counters](provider, name, 0)
	assert.ErrorIs(t, err, ErrVersionMismatch)

	CurrentVersion = oldVersion
	reopened, err := Open[counters](provider, name, 0)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, uint64(42), reopened.Get().Value)
}

func TestCreateThenOpenSeesSameValue(t *testing.T) {
	provider := newProvider(t)
	name := "demo-roundtrip"

	rec, err := Create[counters](provider, name, 0, counters{Value: 7}, func(*counters, *BumpAllocator) error { return nil })
	require.NoError(t, err)
	defer rec.Close()

	opened, err := Open[counters](provider, name, 0)
	require.NoError(t, err)
	defer opened.Close()

	assert.Equal(t, uint64(7), opened.Get().Value)

	opened.Get().Value = 8
	assert.Equal(t, uint64(8), rec.Get().Value)
}

func TestCreateRejectsDuplicateName(t *testing.T) {
	provider := newProvider(t)
	name := "demo-dup"

	rec, err := Create[counters](provider, name, 0, counters{}, func(*counters, *BumpAllocator) error { return nil })
	require.NoError(t, err)
	defer rec.Close()

	_, err = Create[counters](provider, name, 0, counters{}, func(*counters, *BumpAllocator) error { return nil })
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestOpenMissingReturnsDoesNotExist(t *testing.T) {
	provider := newProvider(t)
	_, err := Open[counters](provider, "does-not-exist", 0)
	assert.ErrorIs(t, err, ErrDoesNotExist)
}

func TestBumpAllocatorExhaustion(t *testing.T) {
	provider := newProvider(t)
	name := "demo-arena"

	_, err := Create[counters](provider, name, 8, counters{}, func(_ *counters, arena *BumpAllocator) error {
		if _, err := arena.Alloc(16, 8); err != nil {
			return err
		}
		return nil
	})
	assert.ErrorIs(t, err, ErrInitializationFailed)
}

func TestBumpAllocatorTracksRemaining(t *testing.T) {
	provider := newProvider(t)
	name := "demo-align"

	var remainingAfterFirst, remainingAfterSecond int
	rec, err := Create[counters](provider, name, 64, counters{}, func(_ *counters, arena *BumpAllocator) error {
		if _, err := arena.Alloc(1, 1); err != nil {
			return err
		}
		remainingAfterFirst = arena.Remaining()
		if _, err := arena.Alloc(8, 8); err != nil {
			return err
		}
		remainingAfterSecond = arena.Remaining()
		return nil
	})
	require.NoError(t, err)
	defer rec.Close()

	assert.Greater(t, remainingAfterFirst, remainingAfterSecond)
}
