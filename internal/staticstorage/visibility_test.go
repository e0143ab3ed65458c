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

package staticstorage

import (
	"crypto/sha256"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/memprovider"
)

// TestTwoPhaseVisibility exercises scenario 4: a creator that has
// written its content but not yet broadened permissions is observed by
// an opener as NotYetFinalized, and as Ok with matching content once the
// creator publishes.
func TestTwoPhaseVisibility(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.static")
	content := []byte("demo-service-static-config")

	require.NoError(t, writeUnpublished(path, content))

	_, err := Open(path)
	assert.ErrorIs(t, err, ErrNotYetFinalized)

	require.NoError(t, os.Chmod(path, memprovider.ModeOwnerAllReadable))

	got, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCreateThenOpenRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.static")
	content := []byte("demo-service-static-config")

	require.NoError(t, Create(path, content))

	got, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestCreateRejectsDuplicate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.static")

	require.NoError(t, Create(path, []byte("first")))
	err := Create(path, []byte("second"))
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestOpenMissingReturnsDoesNotExist(t *testing.T) {
	dir := t.TempDir()
	_, err := Open(filepath.Join(dir, "missing.static"))
	assert.ErrorIs(t, err, ErrDoesNotExist)
}

func TestOpenDetectsCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.static")
	require.NoError(t, Create(path, []byte("demo")))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[0] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, memprovider.ModeOwnerAllReadable))

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrNotYetFinalized)
}

func TestRemoveReportsWhetherItExisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.static")
	require.NoError(t, Create(path, []byte("demo")))

	removed, err := Remove(path)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = Remove(path)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestListFindsSuffixedFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Create(filepath.Join(dir, "a.static"), []byte("a")))
	require.NoError(t, Create(filepath.Join(dir, "b.static"), []byte("b")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.other"), []byte("c"), 0o644))

	names, err := List(dir, ".static")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.static", "b.static"}, names)
}

// writeUnpublished mirrors Create's owner-write-only phase without ever
// performing the publishing chmod, simulating a creator paused mid-way
// through the two-phase publish sequence.
func writeUnpublished(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o200)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Chmod(0o200); err != nil {
		return err
	}
	sum := sha256.Sum256(content)
	_, err = f.Write(append(append([]byte{}, content...), sum[:]...))
	return err
}
