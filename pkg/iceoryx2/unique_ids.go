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

package iceoryx2

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// lowBits returns the low 64 bits of a UUID, for display/ordering in
// contexts that don't need the full 128 bits.
func lowBits(u uuid.UUID) uint64 {
	return binary.BigEndian.Uint64(u[8:16])
}

// UniquePublisherId is a system-wide unique identifier for a publisher
// port.
type UniquePublisherId struct{ id uuid.UUID }

// Value returns the low 64 bits of the identifier, for display/ordering
// in contexts that don't need the full 128 bits.
func (u UniquePublisherId) Value() uint64 { return lowBits(u.id) }

// String returns the canonical UUID string form.
func (u UniquePublisherId) String() string { return u.id.String() }

// Equals reports whether two ids refer to the same publisher.
func (u UniquePublisherId) Equals(other UniquePublisherId) bool { return u.id == other.id }

// Less orders ids for use as map/set keys or in sorted listings.
func (u UniquePublisherId) Less(other UniquePublisherId) bool { return u.id.String() < other.id.String() }

// UniqueSubscriberId is a system-wide unique identifier for a subscriber
// port.
type UniqueSubscriberId struct{ id uuid.UUID }

func (u UniqueSubscriberId) Value() uint64                      { return lowBits(u.id) }
func (u UniqueSubscriberId) String() string                     { return u.id.String() }
func (u UniqueSubscriberId) Equals(other UniqueSubscriberId) bool { return u.id == other.id }
func (u UniqueSubscriberId) Less(other UniqueSubscriberId) bool { return u.id.String() < other.id.String() }

// UniqueNotifierId is a system-wide unique identifier for a notifier
// port.
type UniqueNotifierId struct{ id uuid.UUID }

func (u UniqueNotifierId) Value() uint64                      { return lowBits(u.id) }
func (u UniqueNotifierId) String() string                     { return u.id.String() }
func (u UniqueNotifierId) Equals(other UniqueNotifierId) bool { return u.id == other.id }
func (u UniqueNotifierId) Less(other UniqueNotifierId) bool   { return u.id.String() < other.id.String() }

// UniqueListenerId is a system-wide unique identifier for a listener
// port.
type UniqueListenerId struct{ id uuid.UUID }

func (u UniqueListenerId) Value() uint64                      { return lowBits(u.id) }
func (u UniqueListenerId) String() string                     { return u.id.String() }
func (u UniqueListenerId) Equals(other UniqueListenerId) bool { return u.id == other.id }
func (u UniqueListenerId) Less(other UniqueListenerId) bool   { return u.id.String() < other.id.String() }

// NodeId is a system-wide unique identifier for a Node. Pid is the id of
// the process that called Node.ID.
type NodeId struct {
	id  uuid.UUID
	pid int32
}

func (n NodeId) String() string { return n.id.String() }
func (n NodeId) Pid() int32     { return n.pid }
