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

// Package staticstorage implements the append-once, read-many shared
// descriptor: creation writes the full content, appends a
// content hash, then publishes; readers verify size and hash before
// deserializing, treating a mismatch identically to "not finalized". This
// binds two-phase visibility to content integrity
// without additional atomics.
package staticstorage

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/memprovider"
)

const hashSize = sha256.Size

// Errors surfaced at the Static Storage boundary.
var (
	ErrAlreadyExists   = errors.New("staticstorage: already exists")
	ErrDoesNotExist    = errors.New("staticstorage: does not exist")
	ErrNotYetFinalized = errors.New("staticstorage: not yet finalized")
	ErrInternal        = errors.New("staticstorage: internal error")
)

// Create writes content to a new descriptor file at path, in the
// owner-write-only → publish sequence: the file is
// created with 0o200 permissions, the content and its hash are written,
// then permissions are broadened to make it group/other-readable.
func Create(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o200)
	if err != nil {
		if os.IsExist(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("%w: create %q: %v", ErrInternal, path, err)
	}

	ok := false
	defer func() {
		if !ok {
			f.Close()
			os.Remove(path)
		}
	}()

	if err := f.Chmod(0o200); err != nil {
		return fmt.Errorf("%w: chmod %q: %v", ErrInternal, path, err)
	}

	sum := sha256.Sum256(content)
	payload := append(append([]byte{}, content...), sum[:]...)
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("%w: write %q: %v", ErrInternal, path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("%w: sync %q: %v", ErrInternal, path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: close %q: %v", ErrInternal, path, err)
	}

	// Linearization point: once this chmod succeeds, the descriptor is
	// visible to openers.
	if err := os.Chmod(path, memprovider.ModeOwnerAllReadable); err != nil {
		return fmt.Errorf("%w: publish %q: %v", ErrInternal, path, err)
	}

	ok = true
	return nil
}

// Open reads and hash-verifies the descriptor at path, returning its
// content with the trailing hash stripped. A permission error or a hash
// mismatch is reported identically as ErrNotYetFinalized: binding
// visibility to content integrity without additional atomics means a
// torn or not-yet-chmod'd read looks the same as an in-progress write.
func Open(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrDoesNotExist
		}
		if os.IsPermission(err) {
			return nil, ErrNotYetFinalized
		}
		return nil, fmt.Errorf("%w: open %q: %v", ErrInternal, path, err)
	}
	defer f.Close()

	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, ErrNotYetFinalized
		}
		return nil, fmt.Errorf("%w: read %q: %v", ErrInternal, path, err)
	}

	if len(raw) < hashSize {
		return nil, ErrNotYetFinalized
	}

	content := raw[:len(raw)-hashSize]
	wantHash := raw[len(raw)-hashSize:]
	gotHash := sha256.Sum256(content)
	if !bytes.Equal(gotHash[:], wantHash) {
		return nil, ErrNotYetFinalized
	}

	return content, nil
}

// Remove deletes the descriptor file at path, returning false if it did
// not exist.
func Remove(path string) (bool, error) {
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: remove %q: %v", ErrInternal, path, err)
	}
	return true, nil
}

// List enumerates descriptor files directly under dir whose name carries
// the given suffix.
func List(dir, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %q: %v", ErrInternal, dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) == suffix || hasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}
