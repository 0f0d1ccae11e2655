// Package server wires the document engine (jsondoc) to durable
// storage (persist), an optional read-through cache (cache), and an
// optional raft-elected watermark coordinator (cluster), the same
// central-object role server/server.go plays for the teacher's
// per-key Redis store — except the unit of storage here is a whole
// JSON CRDT document, addressed by key, not an individual Redis value.
package server

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/luoyjx/jsoncrdt/cache"
	"github.com/luoyjx/jsoncrdt/cluster"
	"github.com/luoyjx/jsoncrdt/config"
	"github.com/luoyjx/jsoncrdt/dot"
	"github.com/luoyjx/jsoncrdt/jsondoc"
	"github.com/luoyjx/jsoncrdt/patch"
	"github.com/luoyjx/jsoncrdt/persist"
)

// Server is the central object a frontend (package frontend) or a
// replication loop (package sync) drives.
type Server struct {
	mu     sync.RWMutex
	cfg    *config.Config
	states map[string]*jsondoc.State

	oplog     *persist.OpLog
	snapshots *persist.SnapshotStore
	cache     *cache.SnapshotCache // nil disables the read-through cache
	members   *cluster.Membership  // nil disables compaction entirely

	stopCompaction chan struct{}
}

// New opens durable storage under cfg and returns a Server with no
// cached documents loaded yet — documents are loaded lazily on first
// access, matching storage/store.go's own lazy-load-on-Get pattern.
func New(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("server: invalid config: %v", err)
	}

	oplog, err := persist.OpenOpLog(cfg.GetOpLogPath())
	if err != nil {
		return nil, fmt.Errorf("server: open oplog: %v", err)
	}
	snapshots, err := persist.OpenSnapshotStore(cfg.GetPersistencePath())
	if err != nil {
		oplog.Close()
		return nil, fmt.Errorf("server: open snapshot store: %v", err)
	}

	s := &Server{
		cfg:            cfg,
		states:         make(map[string]*jsondoc.State),
		oplog:          oplog,
		snapshots:      snapshots,
		stopCompaction: make(chan struct{}),
	}

	if cfg.CompactionInterval > 0 {
		go s.compactionLoop()
	}

	return s, nil
}

// SetCache attaches a read-through snapshot cache. Optional — a Server
// works without one, just re-reading from persist.SnapshotStore on
// every miss.
func (s *Server) SetCache(c *cache.SnapshotCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = c
}

// SetMembership attaches the raft-elected watermark coordinator.
// Optional — without one, compactionLoop runs with an empty watermark
// and never reclaims a tombstone, which is always safe, just never
// reclaims space.
func (s *Server) SetMembership(m *cluster.Membership) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = m
}

// Actor returns the actor this server mints dots under.
func (s *Server) Actor() string {
	return s.cfg.Actor
}

// OpLog exposes the durable operation log for package sync's
// replication loop.
func (s *Server) OpLog() *persist.OpLog {
	return s.oplog
}

// Documents returns the ids of every document known to this server,
// loaded or merely persisted, for package sync's replication loop to
// iterate without the caller having to track ids itself.
func (s *Server) Documents() ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{}, len(s.states))
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		if !strings.HasPrefix(id, "_remote:") {
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()

	persisted, err := s.snapshots.List()
	if err != nil {
		return nil, err
	}
	for _, id := range persisted {
		if _, ok := seen[id]; !ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Get materializes docID's current document to a plain JSON value.
func (s *Server) Get(docID string) (any, error) {
	st, err := s.load(docID)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return jsondoc.Materialize(st, s.cfg.MaxDepth)
}

// Patch compiles and atomically applies ops to docID, under the
// semantics configured by cfg.PatchSemantics, then persists the result,
// invalidates the cache entry, records the patch in the operation log,
// and reports the actor's new high-water counter to the cluster (if
// any).
func (s *Server) Patch(docID string, ops []patch.Operation) error {
	st, err := s.load(docID)
	if err != nil {
		return err
	}
	semantics, err := s.cfg.Semantics()
	if err != nil {
		return err
	}

	s.mu.Lock()
	err = jsondoc.ApplyInPlace(st, ops, jsondoc.ApplyOptions{Semantics: semantics}, s.cfg.MaxDepth, true)
	counter := st.Clock.Counter()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if err := s.oplog.Append(persist.Entry{
		DocID:     docID,
		Actor:     s.cfg.Actor,
		Counter:   counter,
		Ops:       ops,
		Semantics: semantics,
		Timestamp: time.Now().UnixNano(),
	}); err != nil {
		log.Printf("server: failed to append oplog entry for %s: %v", docID, err)
	}

	if err := s.persistDoc(docID, st); err != nil {
		return err
	}

	if s.members != nil {
		if err := s.members.ReportProgress(s.cfg.Actor, counter); err != nil {
			log.Printf("server: failed to report progress to cluster: %v", err)
		}
	}
	return nil
}

// Diff returns the patch that turns docA's current document into
// docB's.
func (s *Server) Diff(docA, docB string) ([]patch.Operation, error) {
	a, err := s.Get(docA)
	if err != nil {
		return nil, err
	}
	b, err := s.Get(docB)
	if err != nil {
		return nil, err
	}
	return jsondoc.Diff(a, b, s.cfg.LCSCellCap, s.cfg.MaxDepth)
}

// Merge unions docA and docB under this server's actor and stores the
// result at dest (which may be docA or docB itself).
func (s *Server) Merge(dest, docA, docB string) error {
	a, err := s.load(docA)
	if err != nil {
		return err
	}
	b, err := s.load(docB)
	if err != nil {
		return err
	}

	s.mu.Lock()
	merged, err := jsondoc.Merge(a, b, s.cfg.Actor, s.cfg.MaxDepth)
	if err == nil {
		s.states[dest] = merged
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}
	return s.persistDoc(dest, merged)
}

// ExportSnapshot serializes docID's current document for a peer to pull,
// without creating it if it doesn't exist yet (unlike Get/Patch, which
// lazily create an empty document on first access). A nil, nil result
// means docID is unknown.
func (s *Server) ExportSnapshot(docID string) ([]byte, error) {
	s.mu.RLock()
	if st, ok := s.states[docID]; ok {
		defer s.mu.RUnlock()
		return jsondoc.Serialize(st, s.cfg.MaxDepth)
	}
	s.mu.RUnlock()

	data, found, err := s.snapshots.Get(docID)
	if err != nil || !found {
		return nil, err
	}
	return data, nil
}

// ImportSnapshot loads data as docID's in-memory document, overwriting
// whatever was there before. Used by package sync to stage a peer's
// copy of a document under a scratch id ahead of a local Merge.
func (s *Server) ImportSnapshot(docID string, data []byte) error {
	st, err := jsondoc.Deserialize(data, s.cfg.Actor, s.cfg.MaxDepth)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.states[docID] = st
	s.mu.Unlock()
	return nil
}

// load returns docID's in-memory state, loading it from the cache or
// durable storage on first access and falling back to a fresh empty
// document if neither has it yet.
func (s *Server) load(docID string) (*jsondoc.State, error) {
	s.mu.RLock()
	if st, ok := s.states[docID]; ok {
		s.mu.RUnlock()
		return st, nil
	}
	s.mu.RUnlock()

	data, found, err := s.readThrough(docID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if st, ok := s.states[docID]; ok {
		// Another goroutine loaded it first.
		return st, nil
	}

	var st *jsondoc.State
	if found {
		st, err = jsondoc.Deserialize(data, s.cfg.Actor, s.cfg.MaxDepth)
	} else {
		st, err = jsondoc.CreateState(map[string]any{}, s.cfg.Actor, s.cfg.MaxDepth)
	}
	if err != nil {
		return nil, err
	}
	s.states[docID] = st
	return st, nil
}

// readThrough checks the cache first, falling back to the durable
// snapshot store on a miss and repopulating the cache from it.
func (s *Server) readThrough(docID string) ([]byte, bool, error) {
	ctx := context.Background()
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, docID); err == nil && ok {
			return data, true, nil
		}
	}
	data, found, err := s.snapshots.Get(docID)
	if err != nil {
		return nil, false, err
	}
	if found && s.cache != nil {
		if err := s.cache.Put(ctx, docID, data); err != nil {
			log.Printf("server: cache repopulate failed for %s: %v", docID, err)
		}
	}
	return data, found, nil
}

// persistDoc serializes st and writes it through to durable storage,
// invalidating (rather than repopulating) the cache entry so the next
// reader re-fetches the fresh bytes instead of racing this write.
func (s *Server) persistDoc(docID string, st *jsondoc.State) error {
	data, err := jsondoc.Serialize(st, s.cfg.MaxDepth)
	if err != nil {
		return err
	}
	if err := s.snapshots.Put(docID, data); err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Invalidate(context.Background(), docID); err != nil {
			log.Printf("server: cache invalidate failed for %s: %v", docID, err)
		}
	}
	return nil
}

// compactionLoop periodically asks the cluster for the current
// causal-stability watermark and compacts every loaded document against
// it, mirroring storage/store.go's cleanupLoop.
func (s *Server) compactionLoop() {
	ticker := time.NewTicker(s.cfg.CompactionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.compactAll()
		case <-s.stopCompaction:
			return
		}
	}
}

func (s *Server) compactAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	watermark := dot.NewVersionVector()
	if s.members != nil {
		watermark = s.members.Watermark()
	}

	for docID, st := range s.states {
		stats, err := jsondoc.Compact(st, watermark, s.cfg.MaxDepth)
		if err != nil {
			log.Printf("server: compaction failed for %s: %v", docID, err)
			continue
		}
		if stats.ObjectTombstones > 0 || stats.SequenceTombstones > 0 {
			log.Printf("server: compacted %s: dropped %d object and %d sequence tombstones",
				docID, stats.ObjectTombstones, stats.SequenceTombstones)
		}
	}
}

// Close stops the compaction loop and closes durable storage.
func (s *Server) Close() error {
	close(s.stopCompaction)
	if err := s.oplog.Close(); err != nil {
		return err
	}
	return s.snapshots.Close()
}
