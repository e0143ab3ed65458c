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
	"os"
	"sync"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/registry"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// MessagingPattern tags which pattern-specific details a ServiceDetails
// carries.
type MessagingPattern = wireformat.MessagingPattern

const (
	PatternPublishSubscribe = wireformat.PatternPublishSubscribe
	PatternEvent            = wireformat.PatternEvent
	PatternRequestResponse  = wireformat.PatternRequestResponse
)

// NodeBuilder constructs a Node.
type NodeBuilder struct {
	name string
	cfg  *config.Config
}

// NewNodeBuilder starts building a Node using the package's default
// configuration (internal/config.Defaults).
func NewNodeBuilder() *NodeBuilder {
	return &NodeBuilder{cfg: config.Defaults()}
}

// Name sets the node's (non-unique) human-readable name.
func (b *NodeBuilder) Name(name string) *NodeBuilder {
	b.name = name
	return b
}

// Config overrides the configuration the node (and every service it
// joins) uses in place of the package defaults.
func (b *NodeBuilder) Config(cfg *config.Config) *NodeBuilder {
	if cfg != nil {
		b.cfg = cfg
	}
	return b
}

// Create finalizes the builder, opening the service registry rooted at
// the configured path and registering this node's liveness token.
func (b *NodeBuilder) Create() (*Node, error) {
	reg, err := registry.New(b.cfg.Global.RootPath, b.cfg)
	if err != nil {
		return nil, WrapError("node create", NodeCreationErrorInternalError)
	}

	n, err := registry.NewNode(b.cfg.Global.RootPath, b.cfg.Global.Prefix, b.name)
	if err != nil {
		return nil, WrapError("node create", NodeCreationErrorInternalError)
	}

	return &Node{registry: reg, node: n, cfg: b.cfg}, nil
}

// Node is a process's (or a process subsystem's) liveness-tracked
// identity, the root from which every service is joined.
type Node struct {
	mu       sync.Mutex
	registry *registry.Registry
	node     *registry.Node
	cfg      *config.Config
	closed   bool
}

// ID returns the node's system-wide unique identity.
func (n *Node) ID() NodeId {
	return NodeId{id: n.node.ID(), pid: int32(os.Getpid())}
}

// Name returns the node's human-readable name.
func (n *Node) Name() string { return n.node.Name() }

// ServiceBuilder starts building or joining a service named name under
// this node.
func (n *Node) ServiceBuilder(name string) *ServiceBuilder {
	return &ServiceBuilder{node: n, name: name}
}

// ListServices returns the names of every service currently known to the
// registry, refreshing the cached listing first so services created by
// other processes since the last call are included.
func (n *Node) ListServices() ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}
	if err := n.registry.RefreshIndex(); err != nil {
		return nil, WrapError("list services", err)
	}
	return n.registry.ListServices(), nil
}

// ServiceDetails is the pattern-agnostic view of a service's published
// static configuration.
type ServiceDetails struct {
	Name    string
	Pattern MessagingPattern
	PubSub  *StaticConfigPubSub
	Event   *StaticConfigEvent
}

// ServiceDetails looks up a service by name without joining it as a
// participant, returning ErrServiceNotFound if none matches.
func (n *Node) ServiceDetails(name string) (ServiceDetails, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ServiceDetails{}, ErrNodeClosed
	}

	cfg, err := n.registry.Describe(name)
	if err != nil {
		if errors.Is(err, registry.ErrServiceDoesNotExist) {
			return ServiceDetails{}, ErrServiceNotFound
		}
		return ServiceDetails{}, WrapError("service details", ServiceDetailsErrorInternalError)
	}

	details := ServiceDetails{Name: cfg.ServiceName, Pattern: MessagingPattern(cfg.Pattern)}
	if cfg.PubSub != nil {
		v := staticConfigPubSubFrom(cfg.PubSub)
		details.PubSub = &v
	}
	if cfg.Event != nil {
		v := staticConfigEventFrom(cfg.Event)
		details.Event = &v
	}
	return details, nil
}

// RemoveStaleResources runs the dead-node cleanup sweep on demand,
// independent of the Config.Global.CleanupDeadNodesOn{Creation,
// Destruction} toggles.
func (n *Node) RemoveStaleResources() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}
	if err := n.registry.SweepDeadNodes(); err != nil {
		return WrapError("remove stale resources", NodeCleanupErrorInternalError)
	}
	return nil
}

// Close releases the node's liveness token, optionally sweeping dead
// nodes first per Config.Global.CleanupDeadNodesOnDestruction.
func (n *Node) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.cfg.Global.CleanupDeadNodesOnDestruction {
		if err := n.registry.SweepDeadNodes(); err != nil {
			return WrapError("cleanup on destruction", NodeCleanupErrorInternalError)
		}
	}
	return n.node.Close()
}
