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
	"sync/atomic"
	"time"
)

// spinLock is a cross-process spinlock living directly in shared memory
// (a plain uint32, CAS-guarded), used to protect the participant
// registry with bounded backoff. It is held only across O(1) updates,
// so contention is always transient.
type spinLock struct {
	state uint32
}

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// lock acquires the spinlock, spinning with bounded exponential backoff.
// Every critical section guarded by this lock is O(1) (a handful of array
// slot updates), so contention is always transient.
func (s *spinLock) lock() {
	word := (*uint32)(&s.state)
	backoff := time.Microsecond
	const maxBackoff = 500 * time.Microsecond
	for !atomic.CompareAndSwapUint32(word, unlocked, locked) {
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *spinLock) unlock() {
	atomic.StoreUint32((*uint32)(&s.state), unlocked)
}
