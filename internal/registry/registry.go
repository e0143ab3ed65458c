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
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/btree"
	"golang.org/x/sys/unix"

	"github.com/eclipse-iceoryx/iceoryx2-go/internal/config"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/dynstorage"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/log"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/memprovider"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/staticstorage"
	"github.com/eclipse-iceoryx/iceoryx2-go/internal/wireformat"
)

// Service is a joined (created-or-opened) service: its published static
// descriptor plus its live participant-tracking dynamic storage.
type Service struct {
	Hash    [16]byte
	Name    string
	Pattern wireformat.MessagingPattern
	Static  *wireformat.StaticConfig
	Dynamic *dynstorage.Record[ParticipantRegistry]
}

// Participants returns the service's shared participant-tracking
// payload.
func (s *Service) Participants() *ParticipantRegistry { return s.Dynamic.Get() }

// Close releases this process's handle on the service's dynamic
// storage. It does not by itself remove the service; removal happens
// only once RemoveNode/dead-node cleanup observes no nodes and no ports
// remain.
func (s *Service) Close() error { return s.Dynamic.Close() }

// serviceIndexEntry is the cached-listing unit held in Registry.index, a
// google/btree ordered index used so ListServices returns names in
// sorted order without re-scanning the filesystem on every call.
type serviceIndexEntry struct {
	name string
	hash [16]byte
}

func lessServiceIndexEntry(a, b serviceIndexEntry) bool { return a.name < b.name }

// Registry implements the service registry: the two-phase create/open
// protocol, participant tracking via ParticipantRegistry, and dead-node
// cleanup, laid out on the filesystem under services/ and nodes/.
type Registry struct {
	provider memprovider.Provider
	cfg      *config.Config
	root     string
	svcDir   string

	index *btree.BTreeG[serviceIndexEntry]
}

// New constructs a Registry rooted at root, ensuring the services/ and
// nodes/ directories exist, loading the current service listing, and,
// if cfg requests it, sweeping dead nodes.
func New(root string, cfg *config.Config) (*Registry, error) {
	svcDir := filepath.Join(root, servicesDirName)
	if err := os.MkdirAll(svcDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create services dir: %v", ErrInternal, err)
	}
	if err := os.MkdirAll(filepath.Join(root, nodesDirName), 0o755); err != nil {
		return nil, fmt.Errorf("%w: create nodes dir: %v", ErrInternal, err)
	}

	provider, err := memprovider.New(svcDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	r := &Registry{
		provider: provider,
		cfg:      cfg,
		root:     root,
		svcDir:   svcDir,
		index:    btree.NewG(32, lessServiceIndexEntry),
	}

	if err := r.RefreshIndex(); err != nil {
		return nil, err
	}

	if cfg.Global.CleanupDeadNodesOnCreation {
		if err := r.SweepDeadNodes(); err != nil {
			log.Component("registry").WithError(err).Warn("dead-node sweep failed")
		}
	}

	return r, nil
}

func (r *Registry) paths(hashHex string) (staticPath, dynName string) {
	staticPath = filepath.Join(r.svcDir, r.cfg.Global.Prefix+hashHex+staticConfigSuffix)
	dynName = r.cfg.Global.Prefix + hashHex + dynamicConfigSuffix
	return
}

// Provider returns the shared-memory provider backing this registry's
// services directory, so port-level code (internal/port.DataSegment,
// connection rings) can place its own segments alongside the service's
// static/dynamic storage.
func (r *Registry) Provider() memprovider.Provider { return r.provider }

// Config returns the registry's resolved configuration.
func (r *Registry) Config() *config.Config { return r.cfg }

// DataSegmentName returns the filename a publisher port's data segment
// for the service identified by hash should use, keyed by the
// publisher's own port ID so distinct publishers on the same service
// never collide.
func (r *Registry) DataSegmentName(hash [16]byte, publisherID [16]byte) string {
	return r.cfg.Global.Prefix + wireformat.ServiceHashHex(hash) + "_" + wireformat.ServiceHashHex(publisherID) + publisherDataSegmentSufx
}

// CreateOrOpen joins the service if one with a matching
// name/type/pattern already exists, otherwise creates it. ps and ev are the pattern-specific static config
// to use if this call ends up being the creator; they are ignored when
// joining an existing service.
func (r *Registry) CreateOrOpen(node *Node, name string, pattern wireformat.MessagingPattern, ps *wireformat.PubSubConfig, ev *wireformat.EventConfig) (*Service, error) {
	if err := wireformat.ValidateName(name); err != nil {
		return nil, err
	}

	typeFingerprint := ""
	if pattern == wireformat.PatternPublishSubscribe && ps != nil {
		typeFingerprint = ps.PayloadTypeFingerprint
	}
	hash := wireformat.ServiceHash(name, typeFingerprint, uint8(pattern))
	hashHex := wireformat.ServiceHashHex(hash)
	staticPath, dynName := r.paths(hashHex)

	svc, err := r.openOnce(staticPath, dynName, hash)
	switch {
	case err == nil:
		// Joined an already-existing service.
	case errors.Is(err, ErrServiceDoesNotExist):
		svc, err = r.create(staticPath, dynName, hash, name, pattern, ps, ev)
		if errors.Is(err, ErrServiceAlreadyExists) {
			// Lost the creation race; the winner is finalizing concurrently.
			svc, err = r.openWithTimeout(staticPath, dynName, hash)
		}
		if err != nil {
			return nil, err
		}
	case errors.Is(err, errNotYetFinalized):
		svc, err = r.openWithTimeout(staticPath, dynName, hash)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if err := r.joinNode(node, svc); err != nil {
		return nil, err
	}

	r.index.ReplaceOrInsert(serviceIndexEntry{name: svc.Name, hash: svc.Hash})
	return svc, nil
}

// Open joins an existing service without creating one, failing with
// ErrServiceDoesNotExist if none matches. typeFingerprint must match
// whatever the creator registered for a publish-subscribe service; it is
// ignored for event services.
func (r *Registry) Open(node *Node, name, typeFingerprint string, pattern wireformat.MessagingPattern) (*Service, error) {
	if err := wireformat.ValidateName(name); err != nil {
		return nil, err
	}
	hash := wireformat.ServiceHash(name, typeFingerprint, uint8(pattern))
	hashHex := wireformat.ServiceHashHex(hash)
	staticPath, dynName := r.paths(hashHex)

	svc, err := r.openOnce(staticPath, dynName, hash)
	if errors.Is(err, errNotYetFinalized) {
		svc, err = r.openWithTimeout(staticPath, dynName, hash)
	}
	if err != nil {
		return nil, err
	}

	if err := r.joinNode(node, svc); err != nil {
		return nil, err
	}

	r.index.ReplaceOrInsert(serviceIndexEntry{name: svc.Name, hash: svc.Hash})
	return svc, nil
}

func (r *Registry) joinNode(node *Node, svc *Service) error {
	if !svc.Participants().AddNode(node.rawID()) {
		svc.Close()
		return fmt.Errorf("%w: %q", ErrCapacityExceeded, svc.Name)
	}
	if err := node.tagService(svc.Hash); err != nil {
		log.Component("registry").WithError(err).Warn("failed to tag service in node directory")
	}
	return nil
}

// openOnce attempts a single, non-retrying join of the service at
// staticPath/dynName. It returns errNotYetFinalized (not exported) when
// the static descriptor exists but fails hash verification or the
// dynamic storage's version word is still zero; both signal a creator
// that is still between steps, not an absent service.
func (r *Registry) openOnce(staticPath, dynName string, hash [16]byte) (*Service, error) {
	content, err := staticstorage.Open(staticPath)
	switch {
	case err == nil:
	case errors.Is(err, staticstorage.ErrDoesNotExist):
		return nil, ErrServiceDoesNotExist
	case errors.Is(err, staticstorage.ErrNotYetFinalized):
		return nil, errNotYetFinalized
	default:
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	cfg, err := wireformat.Decode(content)
	if err != nil {
		return nil, fmt.Errorf("%w: decode static config %q: %v", ErrInternal, staticPath, err)
	}

	dyn, err := dynstorage.Open[ParticipantRegistry](r.provider, dynName, 0)
	switch {
	case err == nil:
	case errors.Is(err, dynstorage.ErrDoesNotExist), errors.Is(err, dynstorage.ErrNotYetFinalized):
		return nil, errNotYetFinalized
	case errors.Is(err, dynstorage.ErrVersionMismatch):
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}

	return &Service{Hash: hash, Name: cfg.ServiceName, Pattern: cfg.Pattern, Static: cfg, Dynamic: dyn}, nil
}

// openWithTimeout retries openOnce with bounded exponential backoff
// until it stops seeing errNotYetFinalized or the configured
// ServiceCreationTimeoutMillis elapses.
func (r *Registry) openWithTimeout(staticPath, dynName string, hash [16]byte) (*Service, error) {
	deadline := time.Now().Add(time.Duration(r.cfg.Global.ServiceCreationTimeoutMillis) * time.Millisecond)
	backoff := time.Millisecond
	const maxBackoff = 50 * time.Millisecond
	for {
		svc, err := r.openOnce(staticPath, dynName, hash)
		if err == nil {
			return svc, nil
		}
		if !errors.Is(err, errNotYetFinalized) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrCreationTimeout
		}
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// create implements the creator side of the two-phase protocol.
// This substrate creates the dynamic storage region first and publishes
// the static descriptor second as the sole linearization point: a reader
// who observes the static descriptor is therefore guaranteed the dynamic
// storage it names already fully exists. This collapses the
// descriptor's own two-step staging (reserve
// write-only, then separately fill and broaden) into staticstorage's
// single Create call, since that call already performs write-then-
// broaden atomically from the perspective of any other process (see
// internal/staticstorage's doc comment). The net visibility ordering
// is preserved: no peer observes the static descriptor before the
// dynamic storage it names fully exists.
func (r *Registry) create(staticPath, dynName string, hash [16]byte, name string, pattern wireformat.MessagingPattern, ps *wireformat.PubSubConfig, ev *wireformat.EventConfig) (*Service, error) {
	if pattern == wireformat.PatternPublishSubscribe && ps == nil {
		return nil, fmt.Errorf("%w: publish-subscribe service %q needs a pattern config to be created", ErrInternal, name)
	}
	if pattern == wireformat.PatternEvent && ev == nil {
		return nil, fmt.Errorf("%w: event service %q needs a pattern config to be created", ErrInternal, name)
	}

	dyn, err := dynstorage.Create[ParticipantRegistry](r.provider, dynName, 0, ParticipantRegistry{}, func(*ParticipantRegistry, *dynstorage.BumpAllocator) error {
		return nil
	})
	if err != nil {
		if errors.Is(err, dynstorage.ErrAlreadyExists) {
			return nil, ErrServiceAlreadyExists
		}
		return nil, fmt.Errorf("%w: create dynamic storage: %v", ErrInternal, err)
	}

	cfg := &wireformat.StaticConfig{
		SchemaVersion: wireformat.SchemaVersion,
		ServiceName:   name,
		Pattern:       pattern,
		PubSub:        ps,
		Event:         ev,
	}

	if err := staticstorage.Create(staticPath, wireformat.Encode(cfg)); err != nil {
		dyn.SetOwnership(true)
		_ = dyn.Close()
		if errors.Is(err, staticstorage.ErrAlreadyExists) {
			return nil, ErrServiceAlreadyExists
		}
		return nil, fmt.Errorf("%w: publish static config: %v", ErrInternal, err)
	}

	// CreateExclusive marks this process's handle as owning the backing
	// region, but Service.Close must only release this process's
	// reference (its doc comment's contract): removal is the dead-node
	// sweep's job, via reapServiceParticipant's explicit SetOwnership(true).
	dyn.SetOwnership(false)

	return &Service{Hash: hash, Name: name, Pattern: pattern, Static: cfg, Dynamic: dyn}, nil
}

// ListServices returns every service name currently in the cached
// index, sorted. Call RefreshIndex
// first to pick up services created purely by other processes.
func (r *Registry) ListServices() []string {
	names := make([]string, 0, r.index.Len())
	r.index.Ascend(func(e serviceIndexEntry) bool {
		names = append(names, e.name)
		return true
	})
	return names
}

// RefreshIndex rescans the services directory and repopulates the
// cached index, picking up services created by other processes since
// the last refresh.
func (r *Registry) RefreshIndex() error {
	files, err := staticstorage.List(r.svcDir, staticConfigSuffix)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInternal, err)
	}
	for _, f := range files {
		content, err := staticstorage.Open(filepath.Join(r.svcDir, f))
		if err != nil {
			// Mid-construction or racing removal; a later refresh will see
			// its final state.
			continue
		}
		cfg, err := wireformat.Decode(content)
		if err != nil {
			continue
		}
		hash := wireformat.ServiceHash(cfg.ServiceName, fingerprintOf(cfg), uint8(cfg.Pattern))
		r.index.ReplaceOrInsert(serviceIndexEntry{name: cfg.ServiceName, hash: hash})
	}
	return nil
}

// Describe returns the published static configuration for the service
// named name, without joining it as a participant. It scans the
// services directory directly rather than consulting the cached index,
// since the index only retains a
// name/hash pair, not the full decoded descriptor.
func (r *Registry) Describe(name string) (*wireformat.StaticConfig, error) {
	files, err := staticstorage.List(r.svcDir, staticConfigSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInternal, err)
	}
	for _, f := range files {
		content, err := staticstorage.Open(filepath.Join(r.svcDir, f))
		if err != nil {
			continue
		}
		cfg, err := wireformat.Decode(content)
		if err != nil {
			continue
		}
		if cfg.ServiceName == name {
			return cfg, nil
		}
	}
	return nil, ErrServiceDoesNotExist
}

func fingerprintOf(cfg *wireformat.StaticConfig) string {
	if cfg.Pattern == wireformat.PatternPublishSubscribe && cfg.PubSub != nil {
		return cfg.PubSub.PayloadTypeFingerprint
	}
	return ""
}

// SweepDeadNodes implements dead-node cleanup: every node
// directory's monitor file is probed with a non-blocking flock; if the
// lock can be acquired, the owning process is dead, and the node's
// tagged services each have their participant entry removed, with the
// service itself torn down once it has no nodes and no ports left
// (step 3).
func (r *Registry) SweepDeadNodes() error {
	nodesDir := filepath.Join(r.root, nodesDirName)
	entries, err := os.ReadDir(nodesDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("%w: list nodes dir: %v", ErrInternal, err)
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		r.sweepOneNode(filepath.Join(nodesDir, e.Name()), e.Name())
	}
	return nil
}

func (r *Registry) sweepOneNode(dir, dirName string) {
	lockPath := filepath.Join(dir, "node"+monitorSuffix)
	f, err := os.OpenFile(lockPath, os.O_RDWR, 0o644)
	if err != nil {
		// No monitor file: either still being constructed by NewNode, or an
		// already-orphaned leftover from an even earlier crash. Leave it
		// for a future sweep rather than guessing.
		return
	}
	defer f.Close()

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		// Still held: the owning process is alive.
		return
	}
	// Acquired the lock: the owner is dead. Release immediately so this
	// doesn't block a concurrent sweeper inspecting the same node.
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)

	r.reapNode(dir, dirName)
}

func (r *Registry) reapNode(dir, dirName string) {
	rawID, ok := decodeNodeID(dirName, r.cfg.Global.Prefix)
	if !ok {
		return
	}

	tags, err := os.ReadDir(dir)
	if err == nil {
		for _, t := range tags {
			if t.IsDir() || !hasSuffix(t.Name(), serviceTagSuffix) {
				continue
			}
			hashHex := t.Name()[:len(t.Name())-len(serviceTagSuffix)]
			r.reapServiceParticipant(hashHex, rawID)
		}
	}

	os.RemoveAll(dir)
}

func (r *Registry) reapServiceParticipant(hashHex string, rawNodeID [16]byte) {
	staticPath, dynName := r.paths(hashHex)

	dyn, err := dynstorage.Open[ParticipantRegistry](r.provider, dynName, 0)
	if err != nil {
		// Already removed, or still under construction by someone else;
		// nothing to reclaim here.
		return
	}

	participants := dyn.Get()
	remainingNodes, hasPorts := participants.RemoveNode(rawNodeID)

	if remainingNodes == 0 && !hasPorts {
		dyn.SetOwnership(true)
		_ = dyn.Close()
		_, _ = staticstorage.Remove(staticPath)
		r.removeOrphanedSegments(hashHex)
		r.removeFromIndex(hashHex)
		return
	}

	dyn.SetOwnership(false)
	_ = dyn.Close()
}

// removeOrphanedSegments deletes any publisher data segments still on
// disk for a service whose storage has just been torn down. A crashed
// publisher's segment outlives the publisher itself so in-flight samples
// stay readable; once the whole service is gone nothing can
// release them anymore, and the backing regions are reclaimed here.
func (r *Registry) removeOrphanedSegments(hashHex string) {
	names, err := r.provider.List()
	if err != nil {
		return
	}
	marker := r.cfg.Global.Prefix + hashHex + "_"
	for _, n := range names {
		if hasSuffix(n, publisherDataSegmentSufx) && len(n) >= len(marker) && n[:len(marker)] == marker {
			_, _ = r.provider.Remove(n)
		}
	}
}

func (r *Registry) removeFromIndex(hashHex string) {
	var stale []serviceIndexEntry
	r.index.Ascend(func(e serviceIndexEntry) bool {
		if wireformat.ServiceHashHex(e.hash) == hashHex {
			stale = append(stale, e)
		}
		return true
	})
	for _, e := range stale {
		r.index.Delete(e)
	}
}

func hasSuffix(s, suffix string) bool {
	return len(s) >= len(suffix) && s[len(s)-len(suffix):] == suffix
}

func decodeNodeID(dirName, prefix string) ([16]byte, bool) {
	hexPart := dirName
	if len(prefix) > 0 && len(dirName) >= len(prefix) && dirName[:len(prefix)] == prefix {
		hexPart = dirName[len(prefix):]
	}
	if len(hexPart) != 32 {
		return [16]byte{}, false
	}
	var out [16]byte
	for i := 0; i < 16; i++ {
		hi, ok1 := hexNibble(hexPart[i*2])
		lo, ok2 := hexNibble(hexPart[i*2+1])
		if !ok1 || !ok2 {
			return [16]byte{}, false
		}
		out[i] = hi<<4 | lo
	}
	return out, true
}

func hexNibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
