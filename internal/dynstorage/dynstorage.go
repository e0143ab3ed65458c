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

// Package dynstorage implements dynamic storage: a content-versioned
// shared-memory region hosting a typed payload plus a tail bump arena,
// protected by a version-word protocol (create write-only, construct,
// write version, broaden permissions; an open failing with
// InsufficientPermissions means the creator has not finalized yet).
package dynstorage

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/memprovider"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// Package version stamped into every dynamic storage record's version
// word, encoded as (major<<32)|(minor<<16)|patch.
const (
	versionMajor uint16 = 0
	versionMinor uint16 = 3
	versionPatch uint16 = 0
)

// CurrentVersion is the version word this build writes and expects.
var CurrentVersion = wireformat.PackageVersion(versionMajor, versionMinor, versionPatch)

// Errors surfaced at the Dynamic Storage boundary.
var (
	ErrAlreadyExists        = errors.New("dynstorage: already exists")
	ErrInitializationFailed = errors.New("dynstorage: initialization failed")
	ErrDoesNotExist         = errors.New("dynstorage: does not exist")
	ErrNotYetFinalized      = errors.New("dynstorage: not yet finalized")
	ErrVersionMismatch      = errors.New("dynstorage: version mismatch")
	ErrInternal             = errors.New("dynstorage: internal error")
)

const versionWordSize = 8

// BumpAllocator is a simple forward-only allocator over the dynamic
// storage's supplementary (tail arena) bytes, handed to the initializer
// callback during Create.
type BumpAllocator struct {
	buf    []byte
	offset uintptr
}

func newBumpAllocator(buf []byte) *BumpAllocator {
	return &BumpAllocator{buf: buf}
}

// Alloc reserves size bytes aligned to align (which must be a power of
// two), returning a slice into the shared region. It returns an error if
// the tail arena is exhausted.
func (a *BumpAllocator) Alloc(size int, align uintptr) ([]byte, error) {
	if align == 0 {
		align = 1
	}
	start := (a.offset + align - 1) &^ (align - 1)
	end := start + uintptr(size)
	if end > uintptr(len(a.buf)) {
		return nil, fmt.Errorf("%w: bump allocator exhausted (need %d, have %d)", ErrInitializationFailed, size, uintptr(len(a.buf))-a.offset)
	}
	a.offset = end
	return a.buf[start:end], nil
}

// Remaining reports how many bytes are still available in the arena.
func (a *BumpAllocator) Remaining() int {
	return len(a.buf) - int(a.offset)
}

// Record is an open handle to a dynamic storage region typed over T.
type Record[T any] struct {
	handle  memprovider.Handle
	payload *T
	arena   *BumpAllocator
}

func payloadOffset[T any]() uintptr {
	var zero T
	align := unsafe.Alignof(zero)
	if align < unsafe.Alignof(uint64(0)) {
		align = unsafe.Alignof(uint64(0))
	}
	return alignUp(versionWordSize, align)
}

func alignUp(n uintptr, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// Create implements the creator side of the construction protocol:
//  1. create region write-only-to-owner
//  2. construct T in place, bump-allocate the tail arena, run init
//  3. atomically write the version word
//  4. broaden permissions
//
// Failure before step 3 leaves no visible artifact (the region is
// removed). Failure at step 4 is reported but the region is left in
// place: the failure is fatal to the creator but peers whose umask
// permits reading the region can still use it.
func Create[T any](provider memprovider.Provider, name string, supplementarySize int, initial T, init func(payload *T, arena *BumpAllocator) error) (*Record[T], error) {
	var zero T
	payloadSize := unsafe.Sizeof(zero)
	pOffset := payloadOffset[T]()
	totalSize := int(pOffset) + int(payloadSize) + supplementarySize

	handle, err := provider.CreateExclusive(name, totalSize, memprovider.ModeOwnerWriteOnly)
	if err != nil {
		switch {
		case errors.Is(err, memprovider.ErrAlreadyExists):
			return nil, ErrAlreadyExists
		default:
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	ok := false
	defer func() {
		if !ok {
			handle.SetOwnership(true)
			_ = handle.Close()
		}
	}()

	buf := handle.Bytes()
	payloadPtr := (*T)(unsafe.Pointer(&buf[pOffset]))
	*payloadPtr = initial

	arena := newBumpAllocator(buf[int(pOffset)+int(payloadSize):])

	if err := init(payloadPtr, arena); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitializationFailed, err)
	}

	versionWord := (*uint64)(unsafe.Pointer(&buf[0]))
	atomic.StoreUint64(versionWord, CurrentVersion)

	if err := handle.SetPermissions(memprovider.ModeOwnerAll); err != nil {
		// The region remains usable by peers who can read it despite the
		// stricter umask; this is only fatal to the creator's own
		// further use, so we still report success of the payload build
		// by propagating the permission error distinctly.
		ok = true
		handle.SetOwnership(false)
		return nil, fmt.Errorf("%w: broaden permissions: %v", ErrInternal, err)
	}

	ok = true
	return &Record[T]{handle: handle, payload: payloadPtr, arena: arena}, nil
}

// Open implements the opener side of the protocol: open the region,
// check its size, then verify the version word.
func Open[T any](provider memprovider.Provider, name string, supplementarySize int) (*Record[T], error) {
	handle, err := provider.Open(name, 0)
	if err != nil {
		switch {
		case errors.Is(err, memprovider.ErrNotFound):
			return nil, ErrDoesNotExist
		case errors.Is(err, memprovider.ErrNoPermission):
			// The creator has not reached step 4 yet.
			return nil, ErrNotYetFinalized
		default:
			return nil, fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}

	ok := false
	defer func() {
		if !ok {
			_ = handle.Close()
		}
	}()

	var zero T
	payloadSize := int(unsafe.Sizeof(zero))
	pOffset := int(payloadOffset[T]())
	required := pOffset + payloadSize + supplementarySize

	buf := handle.Bytes()
	if len(buf) < required {
		return nil, fmt.Errorf("%w: size %d below required %d", ErrInternal, len(buf), required)
	}

	versionWord := (*uint64)(unsafe.Pointer(&buf[0]))
	version := atomic.LoadUint64(versionWord)
	if version == 0 {
		return nil, ErrNotYetFinalized
	}
	if version != CurrentVersion {
		gotMaj, gotMin, gotPatch := wireformat.SplitPackageVersion(version)
		wantMaj, wantMin, wantPatch := wireformat.SplitPackageVersion(CurrentVersion)
		return nil, fmt.Errorf("%w: record version %d.%d.%d, this process requires %d.%d.%d",
			ErrVersionMismatch, gotMaj, gotMin, gotPatch, wantMaj, wantMin, wantPatch)
	}

	payloadPtr := (*T)(unsafe.Pointer(&buf[pOffset]))
	arena := newBumpAllocator(buf[pOffset+payloadSize:])
	arena.offset = uintptr(supplementarySize) // already fully consumed by the creator

	ok = true
	return &Record[T]{handle: handle, payload: payloadPtr, arena: arena}, nil
}

// Get returns a pointer to the typed payload. No reader ever
// dereferences the typed payload while the version word is 0: Open and
// Create never return a Record before the version word is confirmed
// nonzero and matching.
func (r *Record[T]) Get() *T { return r.payload }

// Arena returns the tail bump allocator. Only meaningful immediately
// after Create, inside the initializer callback's own scope or a
// creator-side follow-up; once published, peers treat the arena layout
// as fixed and addressed via offsets recorded in the static config, not
// through further allocation.
func (r *Record[T]) Arena() *BumpAllocator { return r.arena }

// SetOwnership controls whether Close removes the backing region.
func (r *Record[T]) SetOwnership(owns bool) { r.handle.SetOwnership(owns) }

// HasOwnership reports the current ownership flag.
func (r *Record[T]) HasOwnership() bool { return r.handle.HasOwnership() }

// Close unmaps the record and, if owned, removes the backing region.
func (r *Record[T]) Close() error { return r.handle.Close() }
