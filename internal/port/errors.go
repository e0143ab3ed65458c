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

// Package port implements the Publisher, Subscriber, Notifier, and
// Listener ports: loan/send/receive/release over a
// shared-memory data segment, and notify/wait over a shared event-id
// set.
package port

import (
	"errors"
	"fmt"
)

// ErrNoData is returned by Receive/TryWait when nothing is currently
// available.
var ErrNoData = errors.New("port: no data available")

// ErrTimedOut is returned by Listener.Wait when its deadline elapses
// without an event arriving.
var ErrTimedOut = errors.New("port: wait timed out")

// ErrSegmentAlreadyExists and ErrSegmentNotReady surface the data
// segment's two-phase visibility protocol, mirrored from
// internal/dynstorage at the granularity the port layer needs.
var (
	ErrSegmentAlreadyExists = errors.New("port: data segment already exists")
	ErrSegmentNotReady      = errors.New("port: data segment not yet finalized")
	ErrSegmentNotFound      = errors.New("port: data segment does not exist")
)

// LoanError is the typed-int error family for Publisher.LoanUninit:
// named int constants with Error()/Is() rather than ad hoc sentinel
// values.
type LoanError int

const (
	// LoanErrorOutOfMemory means the arena has no free slot.
	LoanErrorOutOfMemory LoanError = iota
	// LoanErrorExceedsMaxLoans means the publisher already holds its
	// configured maximum number of simultaneous loans.
	LoanErrorExceedsMaxLoans
)

func (e LoanError) Error() string {
	switch e {
	case LoanErrorOutOfMemory:
		return "loan error: arena has no free chunk"
	case LoanErrorExceedsMaxLoans:
		return "loan error: exceeds max loaned samples"
	default:
		return fmt.Sprintf("loan error: unknown(%d)", int(e))
	}
}

func (e LoanError) Is(target error) bool {
	t, ok := target.(LoanError)
	return ok && t == e
}

// SendError is the typed-int error family for Sample.Send.
type SendError int

const (
	// SendErrorAlreadySent means Send or Discard was already called on
	// this sample.
	SendErrorAlreadySent SendError = iota
)

func (e SendError) Error() string {
	switch e {
	case SendErrorAlreadySent:
		return "send error: sample already sent or discarded"
	default:
		return fmt.Sprintf("send error: unknown(%d)", int(e))
	}
}

func (e SendError) Is(target error) bool {
	t, ok := target.(SendError)
	return ok && t == e
}

// ReceiveError is the typed-int error family for Subscriber.Receive.
type ReceiveError int

const (
	// ReceiveErrorExceedsMaxBorrows means the subscriber already holds
	// its configured maximum number of simultaneously borrowed samples.
	ReceiveErrorExceedsMaxBorrows ReceiveError = iota
)

func (e ReceiveError) Error() string {
	switch e {
	case ReceiveErrorExceedsMaxBorrows:
		return "receive error: exceeds max borrowed samples"
	default:
		return fmt.Sprintf("receive error: unknown(%d)", int(e))
	}
}

func (e ReceiveError) Is(target error) bool {
	t, ok := target.(ReceiveError)
	return ok && t == e
}
