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

// Package registry implements the service registry: the two-phase
// create/open protocol, participant tracking, and dead-node cleanup,
// laid out on the filesystem under services/ and nodes/.
package registry

// Filesystem layout suffixes. All names are validated bounded
// filename fragments (internal/wireformat.ValidateName).
const (
	staticConfigSuffix       = ".static_config"
	dynamicConfigSuffix      = ".dynamic_config"
	publisherDataSegmentSufx = ".pub_segment"
	connectionSuffix         = ".conn"
	eventConnectionSuffix    = ".event_conn"
	monitorSuffix            = ".monitor"
	serviceTagSuffix         = ".tag"

	servicesDirName = "services"
	nodesDirName    = "nodes"
)
