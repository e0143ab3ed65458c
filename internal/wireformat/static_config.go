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

package wireformat

import (
	"encoding/binary"
	"fmt"
)

// MessagingPattern tags which pattern-specific config a StaticConfig
// carries.
type MessagingPattern uint8

const (
	PatternPublishSubscribe MessagingPattern = iota
	PatternEvent
	PatternRequestResponse
)

func (p MessagingPattern) String() string {
	switch p {
	case PatternPublishSubscribe:
		return "PublishSubscribe"
	case PatternEvent:
		return "Event"
	case PatternRequestResponse:
		return "RequestResponse"
	default:
		return fmt.Sprintf("MessagingPattern(%d)", uint8(p))
	}
}

// SchemaVersion is the static descriptor's own schema version, distinct
// from the dynamic storage package version word.
const SchemaVersion uint16 = 1

// PubSubConfig is the pattern-specific static config for a
// publish-subscribe service.
type PubSubConfig struct {
	MaxPublishers                uint64
	MaxSubscribers               uint64
	MaxNodes                     uint64
	SubscriberMaxBufferSize      uint64
	SubscriberMaxBorrowedSamples uint64
	PublisherHistorySize         uint64
	EnableSafeOverflow           bool
	PayloadTypeFingerprint       string
	PayloadSize                  uint64
	PayloadAlignment             uint64
	UserHeaderFingerprint        string
	UserHeaderSize               uint64
	UserHeaderAlignment          uint64
}

// EventConfig is the pattern-specific static config for an event service.
type EventConfig struct {
	MaxListeners    uint64
	MaxNotifiers    uint64
	MaxNodes        uint64
	EventIdMaxValue uint64
}

// StaticConfig is the canonical, length-prefixed, versioned content of a
// service's static descriptor file.
type StaticConfig struct {
	SchemaVersion uint16
	ServiceName   string
	Pattern       MessagingPattern
	PubSub        *PubSubConfig // non-nil iff Pattern == PatternPublishSubscribe
	Event         *EventConfig  // non-nil iff Pattern == PatternEvent
}

// Encode produces the canonical byte form of a static descriptor: a
// deterministic, length-prefixed encoding that a peer can decode and
// hash-verify. Two logically-identical configs always encode identically.
func Encode(c *StaticConfig) []byte {
	var buf []byte
	putU16 := func(v uint16) { buf = binary.LittleEndian.AppendUint16(buf, v) }
	putU64 := func(v uint64) { buf = binary.LittleEndian.AppendUint64(buf, v) }
	putStr := func(s string) {
		putU64(uint64(len(s)))
		buf = append(buf, s...)
	}
	putBool := func(b bool) {
		if b {
			buf = append(buf, 1)
		} else {
			buf = append(buf, 0)
		}
	}

	putU16(c.SchemaVersion)
	putStr(c.ServiceName)
	buf = append(buf, byte(c.Pattern))

	switch c.Pattern {
	case PatternPublishSubscribe:
		p := c.PubSub
		putU64(p.MaxPublishers)
		putU64(p.MaxSubscribers)
		putU64(p.MaxNodes)
		putU64(p.SubscriberMaxBufferSize)
		putU64(p.SubscriberMaxBorrowedSamples)
		putU64(p.PublisherHistorySize)
		putBool(p.EnableSafeOverflow)
		putStr(p.PayloadTypeFingerprint)
		putU64(p.PayloadSize)
		putU64(p.PayloadAlignment)
		putStr(p.UserHeaderFingerprint)
		putU64(p.UserHeaderSize)
		putU64(p.UserHeaderAlignment)
	case PatternEvent:
		e := c.Event
		putU64(e.MaxListeners)
		putU64(e.MaxNotifiers)
		putU64(e.MaxNodes)
		putU64(e.EventIdMaxValue)
	}

	return buf
}

// Decode reverses Encode. It returns an error on truncated or malformed
// input; internal/registry skips such a descriptor when listing services
// and reports ErrInternal when joining one.
func Decode(buf []byte) (*StaticConfig, error) {
	r := &reader{buf: buf}

	c := &StaticConfig{}
	c.SchemaVersion = r.u16()
	c.ServiceName = r.str()
	c.Pattern = MessagingPattern(r.byte())

	switch c.Pattern {
	case PatternPublishSubscribe:
		p := &PubSubConfig{}
		p.MaxPublishers = r.u64()
		p.MaxSubscribers = r.u64()
		p.MaxNodes = r.u64()
		p.SubscriberMaxBufferSize = r.u64()
		p.SubscriberMaxBorrowedSamples = r.u64()
		p.PublisherHistorySize = r.u64()
		p.EnableSafeOverflow = r.boolean()
		p.PayloadTypeFingerprint = r.str()
		p.PayloadSize = r.u64()
		p.PayloadAlignment = r.u64()
		p.UserHeaderFingerprint = r.str()
		p.UserHeaderSize = r.u64()
		p.UserHeaderAlignment = r.u64()
		c.PubSub = p
	case PatternEvent:
		e := &EventConfig{}
		e.MaxListeners = r.u64()
		e.MaxNotifiers = r.u64()
		e.MaxNodes = r.u64()
		e.EventIdMaxValue = r.u64()
		c.Event = e
	default:
		if r.err == nil {
			r.err = fmt.Errorf("wireformat: unknown messaging pattern %d", c.Pattern)
		}
	}

	if r.err != nil {
		return nil, r.err
	}
	return c, nil
}

// reader is a small bounds-checked cursor over an encoded StaticConfig;
// the first error encountered short-circuits all subsequent reads.
type reader struct {
	buf []byte
	pos int
	err error
}

func (r *reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if r.pos+n > len(r.buf) {
		r.err = fmt.Errorf("wireformat: truncated static config at offset %d (need %d, have %d)", r.pos, n, len(r.buf)-r.pos)
		return false
	}
	return true
}

func (r *reader) u16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.buf[r.pos:])
	r.pos += 2
	return v
}

func (r *reader) u64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v
}

func (r *reader) byte() byte {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.pos]
	r.pos++
	return v
}

func (r *reader) boolean() bool {
	return r.byte() != 0
}

func (r *reader) str() string {
	n := r.u64()
	if !r.need(int(n)) {
		return ""
	}
	s := string(r.buf[r.pos : r.pos+int(n)])
	r.pos += int(n)
	return s
}
