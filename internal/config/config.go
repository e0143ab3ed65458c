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

// Package config holds the immutable tunables record consumed by the rest
// of the substrate. Parsing a configuration file into this shape is out of
// scope here. Load accepts an already-parsed map, as if handed
// off by an external config-file parser, and Defaults returns the
// hardcoded baseline the rest of the tree falls back to.
package config

import (
	"os"
	"path/filepath"
)

// Global holds process-wide, non-service-specific tunables.
type Global struct {
	// Prefix is prepended to every artifact filename.
	Prefix string
	// RootPath is the base directory for services/ and nodes/.
	RootPath string
	// CleanupDeadNodesOnCreation runs dead-node cleanup when a
	// node is created.
	CleanupDeadNodesOnCreation bool
	// CleanupDeadNodesOnDestruction runs dead-node cleanup when a node
	// exits.
	CleanupDeadNodesOnDestruction bool
	// ServiceCreationTimeoutMillis bounds how long an opener waits for a
	// service under construction to finalize.
	ServiceCreationTimeoutMillis int64
	// DeadNodeSweepPollMillis is the backstop interval for
	// Registry.WatchDeadNodes's poll timer; an fsnotify event on the
	// nodes directory wakes the sweep early, this bounds how long a
	// crash can go unnoticed when events are missed or coalesced.
	DeadNodeSweepPollMillis int64
}

// PublishSubscribeDefaults holds the default capacities and policies for
// publish-subscribe services.
type PublishSubscribeDefaults struct {
	MaxSubscribers               uint64
	MaxPublishers                uint64
	MaxNodes                     uint64
	SubscriberMaxBufferSize      uint64
	SubscriberMaxBorrowedSamples uint64
	PublisherMaxLoanedSamples    uint64
	PublisherHistorySize         uint64
	EnableSafeOverflow           bool
	UnableToDeliverStrategy      string // "Block" | "DiscardSample"
	SubscriberExpiredConnBufSize uint64
}

// EventDefaults holds the default capacities for event services.
type EventDefaults struct {
	MaxListeners    uint64
	MaxNotifiers    uint64
	MaxNodes        uint64
	EventIdMaxValue uint64
}

// Config is the immutable tunables record threaded through the registry
// and ports. Once loaded it is never mutated; callers that want different
// values construct a new Config.
type Config struct {
	Global           Global
	PublishSubscribe PublishSubscribeDefaults
	Event            EventDefaults
}

// Defaults returns the hardcoded baseline configuration.
func Defaults() *Config {
	root := os.Getenv("XDG_RUNTIME_DIR")
	if root != "" {
		root = filepath.Join(root, "iceoryx2")
	} else {
		root = filepath.Join(os.TempDir(), "iceoryx2")
	}

	return &Config{
		Global: Global{
			Prefix:                        "iox2_",
			RootPath:                      root,
			CleanupDeadNodesOnCreation:    true,
			CleanupDeadNodesOnDestruction: true,
			ServiceCreationTimeoutMillis:  5000,
			DeadNodeSweepPollMillis:       2000,
		},
		PublishSubscribe: PublishSubscribeDefaults{
			MaxSubscribers:               8,
			MaxPublishers:                2,
			MaxNodes:                     20,
			SubscriberMaxBufferSize:      2,
			SubscriberMaxBorrowedSamples: 2,
			PublisherMaxLoanedSamples:    2,
			PublisherHistorySize:         0,
			EnableSafeOverflow:           true,
			UnableToDeliverStrategy:      "Block",
			SubscriberExpiredConnBufSize: 128,
		},
		Event: EventDefaults{
			MaxListeners:    8,
			MaxNotifiers:    8,
			MaxNodes:        20,
			EventIdMaxValue: 255,
		},
	}
}

// Load overlays values found in raw (as if produced by an external config
// file parser) on top of Defaults. Unknown keys are ignored; missing keys
// keep their default.
func Load(raw map[string]any) *Config {
	cfg := Defaults()

	if g, ok := raw["global"].(map[string]any); ok {
		if v, ok := g["prefix"].(string); ok {
			cfg.Global.Prefix = v
		}
		if v, ok := g["root_path"].(string); ok {
			cfg.Global.RootPath = v
		}
		if node, ok := g["node"].(map[string]any); ok {
			if v, ok := node["cleanup_dead_nodes_on_creation"].(bool); ok {
				cfg.Global.CleanupDeadNodesOnCreation = v
			}
			if v, ok := node["cleanup_dead_nodes_on_destruction"].(bool); ok {
				cfg.Global.CleanupDeadNodesOnDestruction = v
			}
		}
		if v, ok := g["service_creation_timeout_millis"].(int64); ok {
			cfg.Global.ServiceCreationTimeoutMillis = v
		}
		if v, ok := g["dead_node_sweep_poll_millis"].(int64); ok {
			cfg.Global.DeadNodeSweepPollMillis = v
		}
	}

	if d, ok := raw["defaults"].(map[string]any); ok {
		if ps, ok := d["publish_subscribe"].(map[string]any); ok {
			applyUint64(ps, "max_subscribers", &cfg.PublishSubscribe.MaxSubscribers)
			applyUint64(ps, "max_publishers", &cfg.PublishSubscribe.MaxPublishers)
			applyUint64(ps, "max_nodes", &cfg.PublishSubscribe.MaxNodes)
			applyUint64(ps, "subscriber_max_buffer_size", &cfg.PublishSubscribe.SubscriberMaxBufferSize)
			applyUint64(ps, "subscriber_max_borrowed_samples", &cfg.PublishSubscribe.SubscriberMaxBorrowedSamples)
			applyUint64(ps, "publisher_max_loaned_samples", &cfg.PublishSubscribe.PublisherMaxLoanedSamples)
			applyUint64(ps, "publisher_history_size", &cfg.PublishSubscribe.PublisherHistorySize)
			applyUint64(ps, "subscriber_expired_connection_buffer", &cfg.PublishSubscribe.SubscriberExpiredConnBufSize)
			if v, ok := ps["enable_safe_overflow"].(bool); ok {
				cfg.PublishSubscribe.EnableSafeOverflow = v
			}
			if v, ok := ps["unable_to_deliver_strategy"].(string); ok {
				cfg.PublishSubscribe.UnableToDeliverStrategy = v
			}
		}
		if ev, ok := d["event"].(map[string]any); ok {
			applyUint64(ev, "max_listeners", &cfg.Event.MaxListeners)
			applyUint64(ev, "max_notifiers", &cfg.Event.MaxNotifiers)
			applyUint64(ev, "max_nodes", &cfg.Event.MaxNodes)
			applyUint64(ev, "event_id_max_value", &cfg.Event.EventIdMaxValue)
		}
	}

	return cfg
}

func applyUint64(m map[string]any, key string, dst *uint64) {
	if v, ok := m[key].(uint64); ok {
		*dst = v
		return
	}
	if v, ok := m[key].(int); ok && v >= 0 {
		*dst = uint64(v)
	}
}
