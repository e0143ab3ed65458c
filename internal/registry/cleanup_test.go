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
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

func testConfig(root string) *config.Config {
	cfg := config.Defaults()
	cfg.Global.RootPath = root
	cfg.Global.CleanupDeadNodesOnCreation = false
	cfg.Global.CleanupDeadNodesOnDestruction = false
	return cfg
}

func demoPubSubConfig() *wireformat.PubSubConfig {
	return &wireformat.PubSubConfig{
		MaxPublishers:                2,
		MaxSubscribers:               8,
		MaxNodes:                     20,
		SubscriberMaxBufferSize:      2,
		SubscriberMaxBorrowedSamples: 2,
		PayloadTypeFingerprint:       "uint64",
		PayloadSize:                  8,
		PayloadAlignment:             8,
	}
}

// crash simulates a node's process dying without closing cleanly: it
// releases the monitor flock (as the kernel would on process exit)
// without removing the node's directory or service tags, so a sweep
// finds it the same way it would find a genuinely dead process.
func crash(t *testing.T, n *Node) {
	t.Helper()
	require.NoError(t, n.lockFile.Close())
}

// TestDeadNodeSweepReapsCrashedPublisher exercises scenario 6: a
// publisher's node dies while a subscriber's node is still alive. A
// sweep must reclaim the dead node's participant slot and its liveness
// directory, while leaving the service's storage in place because the
// still-live subscriber node keeps it non-empty.
func TestDeadNodeSweepReapsCrashedPublisher(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	reg, err := New(root, cfg)
	require.NoError(t, err)

	nodeP, err := NewNode(root, cfg.Global.Prefix, "publisher-node")
	require.NoError(t, err)
	nodeS, err := NewNode(root, cfg.Global.Prefix, "subscriber-node")
	require.NoError(t, err)
	defer nodeS.Close()

	svcP, err := reg.CreateOrOpen(nodeP, "demo", wireformat.PatternPublishSubscribe, demoPubSubConfig(), nil)
	require.NoError(t, err)

	svcS, err := reg.CreateOrOpen(nodeS, "demo", wireformat.PatternPublishSubscribe, demoPubSubConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, svcP.Hash, svcS.Hash)

	crash(t, nodeP)

	require.NoError(t, reg.SweepDeadNodes())

	_, err = os.Stat(nodeP.dir)
	assert.True(t, os.IsNotExist(err), "crashed node's liveness directory must be removed")

	require.NoError(t, reg.RefreshIndex())
	assert.Contains(t, reg.ListServices(), "demo")
}

// TestDeadNodeSweepRemovesServiceOnceEmpty exercises the rest of
// scenario 6: once every node that joined a service has crashed, a
// sweep removes the service's static descriptor entirely.
func TestDeadNodeSweepRemovesServiceOnceEmpty(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	reg, err := New(root, cfg)
	require.NoError(t, err)

	node, err := NewNode(root, cfg.Global.Prefix, "solo-node")
	require.NoError(t, err)

	svc, err := reg.CreateOrOpen(node, "demo-solo", wireformat.PatternPublishSubscribe, demoPubSubConfig(), nil)
	require.NoError(t, err)
	staticPath, _ := reg.paths(wireformat.ServiceHashHex(svc.Hash))

	_, err = os.Stat(staticPath)
	require.NoError(t, err)

	crash(t, node)
	require.NoError(t, reg.SweepDeadNodes())

	_, err = os.Stat(staticPath)
	assert.True(t, os.IsNotExist(err))
}

func TestDeadNodeSweepIgnoresLiveNodes(t *testing.T) {
	root := t.TempDir()
	cfg := testConfig(root)

	reg, err := New(root, cfg)
	require.NoError(t, err)

	node, err := NewNode(root, cfg.Global.Prefix, "live-node")
	require.NoError(t, err)
	defer node.Close()

	svc, err := reg.CreateOrOpen(node, "demo-live", wireformat.PatternPublishSubscribe, demoPubSubConfig(), nil)
	require.NoError(t, err)
	staticPath, _ := reg.paths(wireformat.ServiceHashHex(svc.Hash))

	require.NoError(t, reg.SweepDeadNodes())

	_, err = os.Stat(staticPath)
	assert.NoError(t, err, "a live node's service must survive a sweep")
}
