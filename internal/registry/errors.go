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

import "errors"

// Errors surfaced at the Service Registry boundary.
var (
	ErrServiceAlreadyExists = errors.New("registry: service already exists")
	ErrServiceDoesNotExist  = errors.New("registry: service does not exist")
	ErrCreationTimeout      = errors.New("registry: timed out waiting for a concurrent creator to finalize the service")
	ErrCapacityExceeded     = errors.New("registry: node capacity exceeded for service")
	ErrInternal             = errors.New("registry: internal error")
)

// errNotYetFinalized is an internal signal distinguishing "not present"
// from "present but mid-construction"; openWithTimeout retries on it and
// every exported entry point translates it away before returning.
var errNotYetFinalized = errors.New("registry: service not yet finalized")
