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
	"github.com/google/uuid"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// PublishSubscribeHeader exposes the system header stamped onto every
// sample: the originating publisher's id and its per-
// publisher sequence number.
type PublishSubscribeHeader struct {
	raw wireformat.SystemHeader
}

// PublisherID returns the id of the publisher that sent this sample.
func (h PublishSubscribeHeader) PublisherID() UniquePublisherId {
	id, _ := uuid.FromBytes(h.raw.PublisherID[:])
	return UniquePublisherId{id: id}
}

// Sequence returns the sample's per-publisher sequence number, which
// increases by exactly one per successful Send.
func (h PublishSubscribeHeader) Sequence() uint64 { return h.raw.Sequence }

// TimestampNs returns the wall-clock nanosecond timestamp the publisher
// stamped at send time.
func (h PublishSubscribeHeader) TimestampNs() int64 { return h.raw.TimestampNs }
