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

import "github.com/eclipse-iceoryx/iceoryx2-go/internal/transport"

// connection is the link between one publisher and one subscriber: the
// subscriber-owned ring of chunk offsets the publisher pushes into.
// The ring's index state (internal/transport.Ring) lives on the Go heap
// rather than inside the data segment's shared memory: this substrate
// shares the arena state and chunk payloads cross-process
// (internal/arena.PlaceOverBuffer) but keeps the connection ring itself
// process-local, so ports wired within one process exchange samples
// through it directly. Extending transport.Ring with a raw-buffer
// placement constructor analogous to arena.PlaceOverBuffer is recorded
// as a deliberate scope decision in DESIGN.md.
type connection struct {
	subscriberID [16]byte
	ring         *transport.Ring
	dead         func() bool
}
