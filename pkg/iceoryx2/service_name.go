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

import "github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"

// ServiceName is a validated, path-like service identifier (e.g.
// "My/Funky/ServiceName").
type ServiceName struct {
	value string
}

// NewServiceName validates name and wraps it.
func NewServiceName(name string) (*ServiceName, error) {
	if len(name) > wireformat.MaxNameLength {
		return nil, SemanticStringErrorExceedsMaximumLength
	}
	if err := wireformat.ValidateName(name); err != nil {
		return nil, SemanticStringErrorInvalidContent
	}
	return &ServiceName{value: name}, nil
}

// String returns the service name's string form.
func (s *ServiceName) String() string { return s.value }

// NodeName is a validated node identifier. Unlike ServiceName, node
// names need not be unique.
type NodeName struct {
	value string
}

// NewNodeName validates name and wraps it.
func NewNodeName(name string) (*NodeName, error) {
	if len(name) > wireformat.MaxNameLength {
		return nil, SemanticStringErrorExceedsMaximumLength
	}
	if err := wireformat.ValidateName(name); err != nil {
		return nil, SemanticStringErrorInvalidContent
	}
	return &NodeName{value: name}, nil
}

// String returns the node name's string form.
func (n *NodeName) String() string { return n.value }
