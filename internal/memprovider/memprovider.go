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

// Package memprovider implements the abstract memory-provider capability:
// create/open/remove/enumerate named, page-aligned shared
// regions, with an ownership flag controlling whether dropping a handle
// removes the backing object.
//
// The concrete implementation is a POSIX shared-memory-style region
// backed by a regular file under a configurable root directory (typically
// /dev/shm), memory-mapped with golang.org/x/sys/unix. A plain file under
// /dev/shm gives the same cross-process semantics as POSIX shm_open
// without requiring cgo.
package memprovider

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// Error sentinels surfaced at the Memory Provider boundary.
var (
	ErrAlreadyExists = errors.New("memprovider: already exists")
	ErrNoPermission  = errors.New("memprovider: insufficient permissions")
	ErrNotFound      = errors.New("memprovider: does not exist")
	ErrOther         = errors.New("memprovider: internal error")
)

// Mode is a POSIX-style permission bitmask, reused verbatim for
// os.FileMode.
type Mode = os.FileMode

const (
	// ModeOwnerWriteOnly is the restrictive mode used during the first
	// phase of the two-phase visibility protocol.
	ModeOwnerWriteOnly Mode = 0o200
	// ModeOwnerAll is the mode a region is broadened to once finalized.
	ModeOwnerAll Mode = 0o600
	// ModeOwnerAllReadable additionally makes a region readable to group
	// and other, used by components that want widely-readable metadata
	// (e.g. static descriptors).
	ModeOwnerAllReadable Mode = 0o644
)

// Provider abstracts the shared-memory capability the substrate needs.
type Provider interface {
	// CreateExclusive creates a new region of the given size. It fails
	// with ErrAlreadyExists if a region with that name already exists.
	CreateExclusive(name string, size int, mode Mode) (Handle, error)
	// Open opens an existing region. It fails with ErrNotFound if none
	// exists, or ErrNoPermission if the caller lacks access.
	Open(name string, mode Mode) (Handle, error)
	// Remove deletes the named region. It returns false if the region
	// did not exist.
	Remove(name string) (bool, error)
	// List enumerates the names of all regions managed by this provider.
	List() ([]string, error)
}

// Handle is a mapped shared region. Ownership (whether dropping removes
// the backing object) is controlled independently of the handle itself
// via SetOwnership/HasOwnership, so a creator can hand a region off
// without removing it.
type Handle interface {
	// Bytes returns the page-aligned mapped memory.
	Bytes() []byte
	// Size returns the size of the mapping in bytes.
	Size() int
	// SetPermissions changes the backing file's mode, implementing the
	// two-phase visibility broaden-on-finalize step.
	SetPermissions(mode Mode) error
	// SetOwnership controls whether Close removes the backing object.
	SetOwnership(owns bool)
	// HasOwnership reports the current ownership flag.
	HasOwnership() bool
	// Close unmaps the region and, if HasOwnership, removes the backing
	// object.
	Close() error
}

// PosixShm is the default Provider: each region is a regular file under
// Root, memory-mapped MAP_SHARED.
type PosixShm struct {
	// Root is the directory backing regions (e.g. "/dev/shm").
	Root string
}

// New returns a PosixShm provider rooted at root, creating the directory
// if necessary.
func New(root string) (*PosixShm, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("memprovider: create root %q: %w", root, err)
	}
	return &PosixShm{Root: root}, nil
}

func (p *PosixShm) path(name string) string {
	return filepath.Join(p.Root, name)
}

// PageSize returns the platform's page size; every mapped base is
// page-aligned, which covers the largest natural alignment of any payload.
func PageSize() int {
	return unix.Getpagesize()
}

func (p *PosixShm) CreateExclusive(name string, size int, mode Mode) (Handle, error) {
	path := p.path(name)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, ErrAlreadyExists
		}
		if os.IsPermission(err) {
			return nil, ErrNoPermission
		}
		return nil, fmt.Errorf("%w: create %q: %v", ErrOther, path, err)
	}

	ok := false
	defer func() {
		if !ok {
			f.Close()
			os.Remove(path)
		}
	}()

	if err := f.Truncate(int64(size)); err != nil {
		return nil, fmt.Errorf("%w: truncate %q: %v", ErrOther, path, err)
	}
	if err := f.Chmod(mode); err != nil {
		return nil, fmt.Errorf("%w: chmod %q: %v", ErrOther, path, err)
	}

	data, err := mmapFile(f, size)
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %q: %v", ErrOther, path, err)
	}

	ok = true
	return &posixHandle{
		path: path,
		file: f,
		data: data,
		owns: true,
	}, nil
}

func (p *PosixShm) Open(name string, mode Mode) (Handle, error) {
	path := p.path(name)
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		if os.IsPermission(err) {
			return nil, ErrNoPermission
		}
		return nil, fmt.Errorf("%w: open %q: %v", ErrOther, path, err)
	}

	ok := false
	defer func() {
		if !ok {
			f.Close()
		}
	}()

	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("%w: stat %q: %v", ErrOther, path, err)
	}

	data, err := mmapFile(f, int(fi.Size()))
	if err != nil {
		return nil, fmt.Errorf("%w: mmap %q: %v", ErrOther, path, err)
	}

	ok = true
	return &posixHandle{
		path: path,
		file: f,
		data: data,
		owns: false,
	}, nil
}

func (p *PosixShm) Remove(name string) (bool, error) {
	err := os.Remove(p.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: remove %q: %v", ErrOther, name, err)
	}
	return true, nil
}

func (p *PosixShm) List() ([]string, error) {
	entries, err := os.ReadDir(p.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %q: %v", ErrOther, p.Root, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func mmapFile(f *os.File, size int) ([]byte, error) {
	if size == 0 {
		return nil, nil
	}
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
}

type posixHandle struct {
	path string
	file *os.File
	data []byte
	owns bool
}

func (h *posixHandle) Bytes() []byte { return h.data }
func (h *posixHandle) Size() int     { return len(h.data) }

func (h *posixHandle) SetPermissions(mode Mode) error {
	return h.file.Chmod(mode)
}

func (h *posixHandle) SetOwnership(owns bool) { h.owns = owns }
func (h *posixHandle) HasOwnership() bool     { return h.owns }

func (h *posixHandle) Close() error {
	var errs []error
	if h.data != nil {
		if err := unix.Munmap(h.data); err != nil {
			errs = append(errs, err)
		}
		h.data = nil
	}
	if h.file != nil {
		if err := h.file.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if h.owns {
		if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
