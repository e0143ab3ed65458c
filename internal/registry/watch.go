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
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/log"
)

// WatchDeadNodes runs the dead-node sweep in a loop until ctx is done,
// triggered both by a poll timer (the correctness backstop)
// and opportunistically by fsnotify events on the nodes directory (a
// node's monitor file or tag disappearing/appearing wakes an early
// sweep). The fsnotify watch is additive only: if it fails to start
// (e.g. the platform's inotify/kqueue instance limit is exhausted), the
// poll timer alone still drives correctness, and the failure is only
// logged.
//
// The returned function blocks until the watch loop has exited; call it
// from a goroutine and cancel ctx to stop.
func (r *Registry) WatchDeadNodes(ctx context.Context) func() {
	done := make(chan struct{})

	go func() {
		defer close(done)
		r.watchDeadNodesLoop(ctx)
	}()

	return func() { <-done }
}

func (r *Registry) watchDeadNodesLoop(ctx context.Context) {
	logger := log.Component("registry")

	pollMillis := r.cfg.Global.DeadNodeSweepPollMillis
	if pollMillis <= 0 {
		pollMillis = 2000
	}
	ticker := time.NewTicker(time.Duration(pollMillis) * time.Millisecond)
	defer ticker.Stop()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Warn("fsnotify unavailable, falling back to poll-only dead-node sweep")
		r.pollOnlyLoop(ctx, ticker)
		return
	}
	defer watcher.Close()

	nodesDir := filepath.Join(r.root, nodesDirName)
	if err := watcher.Add(nodesDir); err != nil {
		logger.WithError(err).Warn("could not watch nodes directory, falling back to poll-only dead-node sweep")
		r.pollOnlyLoop(ctx, ticker)
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepAndLog(logger)
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				r.sweepAndLog(logger)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.WithError(err).Warn("fsnotify watch error")
		}
	}
}

// pollOnlyLoop is the backstop path used when fsnotify can't be set up
// at all: the poll timer alone still guarantees eventual cleanup, just
// without the early wakeup.
func (r *Registry) pollOnlyLoop(ctx context.Context, ticker *time.Ticker) {
	logger := log.Component("registry")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepAndLog(logger)
		}
	}
}

func (r *Registry) sweepAndLog(logger log.Entry) {
	if err := r.SweepDeadNodes(); err != nil {
		logger.WithError(err).Warn("dead-node sweep failed")
	}
}
