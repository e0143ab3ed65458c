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
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/arena"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/memprovider"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// DataSegment is a publisher's shared-memory chunk array: an arena
// state word per chunk (internal/arena.PlaceOverBuffer) immediately
// followed by the chunk bytes themselves (system header, optional user
// header, payload, per wireformat.ChunkLayout). This is the region
// that makes the substrate's zero-copy property real: both the arena's
// lock-free state and the payload bytes live in the same mapped region
// every connected process shares.
//
// Two-phase visibility follows internal/dynstorage's protocol at a
// smaller, arena-specific scope; a generic dynstorage.Record[T] doesn't
// fit here because the chunk area's size is a runtime-computed layout
// (chunk count × chunk size), not a single fixed Go type.
type DataSegment struct {
	handle     memprovider.Handle
	arenaPart  *arena.Arena
	layout     wireformat.ChunkLayout
	chunkSize  int
	deferClose atomic.Bool
	closed     atomic.Bool
}

func arenaStateBytes(n int) int { return n * 8 }

func segmentSize(n int, layout wireformat.ChunkLayout) int {
	return arenaStateBytes(n) + n*int(layout.ChunkSize)
}

// CreateDataSegment builds a new data segment for n chunks of the given
// layout, following create write-only → place arena → broaden
// permissions, the same ordering internal/dynstorage.Create uses.
func CreateDataSegment(provider memprovider.Provider, name string, n int, layout wireformat.ChunkLayout) (*DataSegment, error) {
	total := segmentSize(n, layout)

	handle, err := provider.CreateExclusive(name, total, memprovider.ModeOwnerWriteOnly)
	if err != nil {
		if errors.Is(err, memprovider.ErrAlreadyExists) {
			return nil, ErrSegmentAlreadyExists
		}
		return nil, fmt.Errorf("port: create data segment %q: %w", name, err)
	}

	ok := false
	defer func() {
		if !ok {
			handle.SetOwnership(true)
			_ = handle.Close()
		}
	}()

	buf := handle.Bytes()
	a, err := arena.PlaceOverBuffer(buf[:arenaStateBytes(n)], n, int(layout.ChunkSize))
	if err != nil {
		return nil, fmt.Errorf("port: place arena in segment %q: %w", name, err)
	}

	if err := handle.SetPermissions(memprovider.ModeOwnerAll); err != nil {
		return nil, fmt.Errorf("port: broaden data segment %q permissions: %w", name, err)
	}

	ok = true
	return &DataSegment{handle: handle, arenaPart: a, layout: layout, chunkSize: int(layout.ChunkSize)}, nil
}

// OpenDataSegment attaches to an existing data segment of n chunks laid
// out per layout, as agreed via the service's published static config.
func OpenDataSegment(provider memprovider.Provider, name string, n int, layout wireformat.ChunkLayout) (*DataSegment, error) {
	handle, err := provider.Open(name, 0)
	if err != nil {
		switch {
		case errors.Is(err, memprovider.ErrNotFound):
			return nil, ErrSegmentNotFound
		case errors.Is(err, memprovider.ErrNoPermission):
			return nil, ErrSegmentNotReady
		default:
			return nil, fmt.Errorf("port: open data segment %q: %w", name, err)
		}
	}

	ok := false
	defer func() {
		if !ok {
			_ = handle.Close()
		}
	}()

	need := segmentSize(n, layout)
	buf := handle.Bytes()
	if len(buf) < need {
		return nil, fmt.Errorf("port: data segment %q size %d below required %d", name, len(buf), need)
	}

	a, err := arena.PlaceOverBuffer(buf[:arenaStateBytes(n)], n, int(layout.ChunkSize))
	if err != nil {
		return nil, fmt.Errorf("port: place arena in segment %q: %w", name, err)
	}

	ok = true
	return &DataSegment{handle: handle, arenaPart: a, layout: layout, chunkSize: int(layout.ChunkSize)}, nil
}

func (d *DataSegment) chunkBytes(offset int) []byte {
	base := arenaStateBytes(d.arenaPart.Len()) + offset*d.chunkSize
	return d.handle.Bytes()[base : base+d.chunkSize]
}

// Arena returns the segment's lock-free chunk-state tracker.
func (d *DataSegment) Arena() *arena.Arena { return d.arenaPart }

// Layout returns the chunk layout this segment was built with.
func (d *DataSegment) Layout() wireformat.ChunkLayout { return d.layout }

// SetOwnership controls whether Close removes the backing region.
func (d *DataSegment) SetOwnership(owns bool) { d.handle.SetOwnership(owns) }

// Close unmaps the segment and, if owned, removes the backing region.
// Idempotent: only the first call touches the handle.
func (d *DataSegment) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return nil
	}
	return d.handle.Close()
}

// CloseDeferred destroys the segment now if no sample is loaned or in
// flight, and otherwise defers destruction to the last releaser: queued
// samples stay readable after their publisher drops, and whoever
// releases the final one tears the segment down.
func (d *DataSegment) CloseDeferred() error {
	d.deferClose.Store(true)
	return d.MaybeCloseDeferred()
}

// MaybeCloseDeferred completes a deferred destruction once the arena is
// fully idle. Subscriber release paths call it after every Release so
// whichever holder drops the last reference tears the segment down.
func (d *DataSegment) MaybeCloseDeferred() error {
	if !d.deferClose.Load() || d.closed.Load() {
		return nil
	}
	_, loaned, inflight := d.arenaPart.Stats()
	if loaned > 0 || inflight > 0 {
		return nil
	}
	return d.Close()
}
