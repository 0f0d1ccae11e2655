// Package cluster elects a coordinator among server replicas using
// hashicorp/raft and uses the elected term to agree on a single
// causal-stability watermark: a version vector every member has
// observed, which compact.Compact can safely use to drop tombstones.
// Raft here replicates only that watermark decision — document content
// always replicates by CRDT merge (package merge, driven by package
// sync), never through the Raft log.
package cluster

import (
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/luoyjx/jsoncrdt/dot"
)

// Membership wraps a raft.Raft node whose replicated state is a
// watermarkFSM rather than application data.
type Membership struct {
	raft *raft.Raft
	fsm  *watermarkFSM
}

// Config configures a Membership node.
type Config struct {
	NodeID    string
	BindAddr  string
	DataDir   string
	Bootstrap bool // true for a single-node or cluster-founding start
}

// New starts a Membership node. When cfg.Bootstrap is set, it bootstraps
// a single-member cluster with itself as the only voter — the teacher's
// consensus/raft.go never bootstraps at all (raft.NewRaft alone leaves
// the node perpetually a non-voting follower with no leader), which
// this corrects.
func New(cfg Config) (*Membership, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("cluster: create data dir: %v", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("cluster: resolve bind addr: %v", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: create transport: %v", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("cluster: create snapshot store: %v", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.bolt"))
	if err != nil {
		return nil, fmt.Errorf("cluster: create log store: %v", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.bolt"))
	if err != nil {
		return nil, fmt.Errorf("cluster: create stable store: %v", err)
	}

	fsm := newWatermarkFSM()

	ra, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("cluster: create raft: %v", err)
	}

	if cfg.Bootstrap {
		hasState, err := raft.HasExistingState(logStore, stableStore, snapshots)
		if err != nil {
			return nil, fmt.Errorf("cluster: check existing state: %v", err)
		}
		if !hasState {
			bootCfg := raft.Configuration{
				Servers: []raft.Server{{
					ID:      raftCfg.LocalID,
					Address: transport.LocalAddr(),
				}},
			}
			if f := ra.BootstrapCluster(bootCfg); f.Error() != nil {
				return nil, fmt.Errorf("cluster: bootstrap: %v", f.Error())
			}
		}
	}

	return &Membership{raft: ra, fsm: fsm}, nil
}

// ReportProgress proposes raising actor's high-water counter to at
// least counter. Only the leader can commit this; non-leaders return
// raft.ErrNotLeader, matching raft.Raft.Apply's own behavior.
func (m *Membership) ReportProgress(actor string, counter uint64) error {
	data, err := json.Marshal(watermarkEntry{Actor: actor, Counter: counter})
	if err != nil {
		return fmt.Errorf("cluster: marshal watermark entry: %v", err)
	}
	future := m.raft.Apply(data, 5*time.Second)
	return future.Error()
}

// Watermark returns the version vector every member has agreed is
// stable, safe to pass to compact.Compact. It reflects committed Raft
// log entries, so it is consistent on any node, leader or follower.
func (m *Membership) Watermark() *dot.VersionVector {
	return m.fsm.snapshot()
}

// IsLeader reports whether this node currently holds the Raft
// leadership.
func (m *Membership) IsLeader() bool {
	return m.raft.State() == raft.Leader
}

// Leader returns the address of the current Raft leader, if known.
func (m *Membership) Leader() string {
	addr, _ := m.raft.LeaderWithID()
	return string(addr)
}

// Close shuts down the Raft node.
func (m *Membership) Close() error {
	return m.raft.Shutdown().Error()
}

// watermarkEntry is the Raft log payload: a single actor's reported
// high-water counter.
type watermarkEntry struct {
	Actor   string `json:"actor"`
	Counter uint64 `json:"counter"`
}

// watermarkFSM replicates a dot.VersionVector: each Apply observes one
// actor's reported counter, so the vector only ever grows — naturally
// idempotent under raft's at-least-once log replay.
type watermarkFSM struct {
	mu     sync.Mutex
	vector *dot.VersionVector
}

func newWatermarkFSM() *watermarkFSM {
	return &watermarkFSM{vector: dot.NewVersionVector()}
}

func (f *watermarkFSM) Apply(log *raft.Log) interface{} {
	var e watermarkEntry
	if err := json.Unmarshal(log.Data, &e); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vector.Observe(dot.Dot{Actor: e.Actor, Counter: e.Counter})
	return nil
}

func (f *watermarkFSM) snapshot() *dot.VersionVector {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.vector.Clone()
}

func (f *watermarkFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &watermarkSnapshot{vector: f.snapshot()}, nil
}

func (f *watermarkFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	var flat map[string]uint64
	if err := json.NewDecoder(rc).Decode(&flat); err != nil {
		return fmt.Errorf("cluster: decode watermark snapshot: %v", err)
	}
	vector := dot.NewVersionVector()
	for actor, counter := range flat {
		vector.Set(actor, counter)
	}
	f.mu.Lock()
	f.vector = vector
	f.mu.Unlock()
	return nil
}

type watermarkSnapshot struct {
	vector *dot.VersionVector
}

func (s *watermarkSnapshot) Persist(sink raft.SnapshotSink) error {
	flat := make(map[string]uint64)
	for _, actor := range s.vector.Actors() {
		flat[actor] = s.vector.Get(actor)
	}
	data, err := json.Marshal(flat)
	if err != nil {
		sink.Cancel()
		return err
	}
	if _, err := sink.Write(data); err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *watermarkSnapshot) Release() {}
