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

// SystemHeader is the fixed-layout header stamped by the publisher on
// every sample. Its layout is part of the wire contract: every
// peer computes identical offsets from it.
type SystemHeader struct {
	PublisherID [16]byte
	TimestampNs int64
	Sequence    uint64
}

// SystemHeaderSize is the encoded size of SystemHeader in the chunk.
const SystemHeaderSize = 16 + 8 + 8

// ChunkLayout describes the fixed offsets of
// `| system header | user header | payload |` within a chunk, computed
// once at service creation time and stored in the static config so every
// peer agrees.
type ChunkLayout struct {
	SystemHeaderOffset uint64
	UserHeaderOffset   uint64
	PayloadOffset      uint64
	ChunkSize          uint64
}

// align rounds n up to the next multiple of alignment (alignment must be
// a power of two).
func align(n, alignment uint64) uint64 {
	if alignment == 0 {
		return n
	}
	return (n + alignment - 1) &^ (alignment - 1)
}

// NewChunkLayout computes the fixed offsets for a chunk given the user
// header and payload sizes/alignments.
func NewChunkLayout(userHeaderSize, userHeaderAlign, payloadSize, payloadAlign uint64) ChunkLayout {
	sysEnd := uint64(SystemHeaderSize)

	userHeaderOffset := align(sysEnd, maxu64(userHeaderAlign, 1))
	userHeaderEnd := userHeaderOffset + userHeaderSize

	payloadOffset := align(userHeaderEnd, maxu64(payloadAlign, 1))
	chunkSize := payloadOffset + payloadSize

	return ChunkLayout{
		SystemHeaderOffset: 0,
		UserHeaderOffset:   userHeaderOffset,
		PayloadOffset:      payloadOffset,
		ChunkSize:          chunkSize,
	}
}

func maxu64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// EncodeSystemHeader writes h into dst at the layout's SystemHeaderOffset.
// dst must be at least ChunkSize bytes.
func (l ChunkLayout) EncodeSystemHeader(dst []byte, h SystemHeader) {
	base := dst[l.SystemHeaderOffset:]
	copy(base[0:16], h.PublisherID[:])
	PutUint64(base[16:24], uint64(h.TimestampNs))
	PutUint64(base[24:32], h.Sequence)
}

// DecodeSystemHeader reads a SystemHeader from src at the layout's
// SystemHeaderOffset.
func (l ChunkLayout) DecodeSystemHeader(src []byte) SystemHeader {
	base := src[l.SystemHeaderOffset:]
	var h SystemHeader
	copy(h.PublisherID[:], base[0:16])
	h.TimestampNs = int64(GetUint64(base[16:24]))
	h.Sequence = GetUint64(base[24:32])
	return h
}

// UserHeaderBytes returns the user header slice within chunk.
func (l ChunkLayout) UserHeaderBytes(chunk []byte, size uint64) []byte {
	return chunk[l.UserHeaderOffset : l.UserHeaderOffset+size]
}

// PayloadBytes returns the payload slice within chunk.
func (l ChunkLayout) PayloadBytes(chunk []byte, size uint64) []byte {
	return chunk[l.PayloadOffset : l.PayloadOffset+size]
}
