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

package registry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// Node is the liveness-tracked identity a process registers once and
// shares across every service it joins. A node's death is detected by
// another process successfully acquiring the advisory lock this node
// holds for its entire lifetime.
type Node struct {
	id       uuid.UUID
	name     string
	prefix   string
	dir      string
	lockFile *os.File
}

func rawUUID(id uuid.UUID) [16]byte {
	var out [16]byte
	copy(out[:], id[:])
	return out
}

func nodeDirName(prefix string, id uuid.UUID) string {
	return prefix + wireformat.ServiceHashHex(rawUUID(id))
}

// NewNode creates a node directory under <root>/nodes/ and acquires an
// exclusive, non-blocking flock on its monitor file. The lock is held
// until Close, or until the process exits and the kernel releases it,
// which is the event a cleanup sweep looks for.
func NewNode(root, prefix, name string) (*Node, error) {
	id := uuid.New()
	dir := filepath.Join(root, nodesDirName, nodeDirName(prefix, id))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create node dir %q: %v", ErrInternal, dir, err)
	}

	ok := false
	defer func() {
		if !ok {
			os.RemoveAll(dir)
		}
	}()

	lockPath := filepath.Join(dir, "node"+monitorSuffix)
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open monitor file %q: %v", ErrInternal, lockPath, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: lock monitor file %q: %v", ErrInternal, lockPath, err)
	}

	ok = true
	return &Node{id: id, name: name, prefix: prefix, dir: dir, lockFile: f}, nil
}

// ID returns the node's identity.
func (n *Node) ID() uuid.UUID { return n.id }

// Name returns the node's human-readable name.
func (n *Node) Name() string { return n.name }

func (n *Node) rawID() [16]byte { return rawUUID(n.id) }

// tagService records, by creating an empty marker file named after the
// service's hash, that this node has joined hash. A dead-node sweep
// reads these tags to know which services to visit without scanning the
// entire service directory.
func (n *Node) tagService(hash [16]byte) error {
	path := filepath.Join(n.dir, wireformat.ServiceHashHex(hash)+serviceTagSuffix)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("%w: tag service: %v", ErrInternal, err)
	}
	return f.Close()
}

// untagService removes a previously-written service tag, used when a
// node explicitly leaves a service rather than dying.
func (n *Node) untagService(hash [16]byte) {
	path := filepath.Join(n.dir, wireformat.ServiceHashHex(hash)+serviceTagSuffix)
	_ = os.Remove(path)
}

// Close releases the monitor lock and removes the node's directory.
// This is the normal-shutdown counterpart to the dead-node sweep: a
// node that calls Close never needs to be reaped.
func (n *Node) Close() error {
	err := n.lockFile.Close()
	os.RemoveAll(n.dir)
	return err
}
