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
	"errors"
	"fmt"
)

// ContextualError wraps an error with additional context about the
// operation that failed. It implements Unwrap for errors.Is/errors.As.
type ContextualError struct {
	Op  string
	Err error
}

func (e *ContextualError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

func (e *ContextualError) Unwrap() error { return e.Err }

// WrapError wraps err with operation context, or returns nil if err is
// nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ContextualError{Op: op, Err: err}
}

// Sentinel errors for common lifecycle conditions. Use errors.Is to
// check for these.
var (
	ErrNodeClosed       = errors.New("iceoryx2: node is closed")
	ErrBuilderConsumed  = errors.New("iceoryx2: builder already consumed")
	ErrPublisherClosed  = errors.New("iceoryx2: publisher is closed")
	ErrSubscriberClosed = errors.New("iceoryx2: subscriber is closed")
	ErrSampleClosed     = errors.New("iceoryx2: sample is closed")
	ErrServiceClosed    = errors.New("iceoryx2: service is closed")
	ErrNotifierClosed   = errors.New("iceoryx2: notifier is closed")
	ErrListenerClosed   = errors.New("iceoryx2: listener is closed")
	ErrNoData           = errors.New("iceoryx2: no data available")
	ErrCapacityExceeded = errors.New("iceoryx2: port capacity exceeded for service")
	ErrNoDefaultEventId = errors.New("iceoryx2: notifier has no default event id configured")
	ErrServiceNotFound  = errors.New("iceoryx2: service not found")
	ErrTimedOut         = errors.New("iceoryx2: wait timed out")

	// ErrEventIdOutOfBounds is returned by Notifier.Notify when the raised
	// id exceeds the service's configured EventIdMaxValue.
	ErrEventIdOutOfBounds = errors.New("iceoryx2: event id exceeds the service's maximum")
)

// NodeCreationError represents failures constructing a Node.
type NodeCreationError int

const (
	NodeCreationErrorInsufficientPermissions NodeCreationError = iota
	NodeCreationErrorInternalError
)

func (e NodeCreationError) Error() string {
	switch e {
	case NodeCreationErrorInsufficientPermissions:
		return "node creation failed: insufficient permissions"
	case NodeCreationErrorInternalError:
		return "node creation failed: internal error"
	default:
		return fmt.Sprintf("node creation failed: unknown error (%d)", int(e))
	}
}

func (e NodeCreationError) Is(target error) bool {
	t, ok := target.(NodeCreationError)
	return ok && t == e
}

// SemanticStringError reports a ServiceName/NodeName that failed
// validation.
type SemanticStringError int

const (
	SemanticStringErrorInvalidContent SemanticStringError = iota
	SemanticStringErrorExceedsMaximumLength
)

func (e SemanticStringError) Error() string {
	switch e {
	case SemanticStringErrorInvalidContent:
		return "semantic string error: invalid content"
	case SemanticStringErrorExceedsMaximumLength:
		return "semantic string error: exceeds maximum length"
	default:
		return fmt.Sprintf("semantic string error: unknown error (%d)", int(e))
	}
}

func (e SemanticStringError) Is(target error) bool {
	t, ok := target.(SemanticStringError)
	return ok && t == e
}

// PubSubOpenOrCreateError and EventOpenOrCreateError surface the Service
// Registry's open-or-create failures at the façade
// boundary, wrapping the underlying internal/registry sentinel.
type PubSubOpenOrCreateError struct{ Err error }

func (e *PubSubOpenOrCreateError) Error() string {
	return fmt.Sprintf("pub-sub service open/create failed: %v", e.Err)
}
func (e *PubSubOpenOrCreateError) Unwrap() error { return e.Err }

type EventOpenOrCreateError struct{ Err error }

func (e *EventOpenOrCreateError) Error() string {
	return fmt.Sprintf("event service open/create failed: %v", e.Err)
}
func (e *EventOpenOrCreateError) Unwrap() error { return e.Err }

// ServiceDetailsError represents failures retrieving a service's static
// configuration.
type ServiceDetailsError int

const (
	ServiceDetailsErrorFailedToOpenStaticServiceInfo ServiceDetailsError = iota
	ServiceDetailsErrorServiceInInconsistentState
	ServiceDetailsErrorVersionMismatch
	ServiceDetailsErrorInternalError
)

func (e ServiceDetailsError) Error() string {
	switch e {
	case ServiceDetailsErrorFailedToOpenStaticServiceInfo:
		return "service details failed: failed to open static service info"
	case ServiceDetailsErrorServiceInInconsistentState:
		return "service details failed: service in inconsistent state"
	case ServiceDetailsErrorVersionMismatch:
		return "service details failed: version mismatch"
	case ServiceDetailsErrorInternalError:
		return "service details failed: internal error"
	default:
		return fmt.Sprintf("service details failed: unknown error (%d)", int(e))
	}
}

func (e ServiceDetailsError) Is(target error) bool {
	t, ok := target.(ServiceDetailsError)
	return ok && t == e
}

// NodeCleanupError represents failures during dead-node resource
// cleanup.
type NodeCleanupError int

const (
	NodeCleanupErrorInternalError NodeCleanupError = iota
	NodeCleanupErrorInsufficientPermissions
)

func (e NodeCleanupError) Error() string {
	switch e {
	case NodeCleanupErrorInternalError:
		return "node cleanup failed: internal error"
	case NodeCleanupErrorInsufficientPermissions:
		return "node cleanup failed: insufficient permissions"
	default:
		return fmt.Sprintf("node cleanup failed: unknown error (%d)", int(e))
	}
}

func (e NodeCleanupError) Is(target error) bool {
	t, ok := target.(NodeCleanupError)
	return ok && t == e
}
