// Package election gates the Scheduler/Dispatcher (C3/C8) behind a
// raft leader election, adapted from the teacher's pkg/manager/fsm.go
// and manager.go Bootstrap/Join machinery. Unlike the teacher, whose
// FSM replicates full cluster state through raft, this FSM applies
// nothing: the Action Store stays single-writer bbolt (SPEC_FULL.md's
// Non-goal on cross-leader consistency), and raft here does exactly
// one job — decide which process instance is allowed to dispatch.
package election

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/cuemby/clusterd/pkg/log"
	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"
)

// Config configures a single raft participant.
type Config struct {
	NodeID   string
	BindAddr string
	DataDir  string
}

// Elector wraps a raft.Raft instance whose only purpose is leader
// election: the Scheduler consults IsLeader before draining READY
// actions so exactly one process instance dispatches at a time.
type Elector struct {
	raft      *raft.Raft
	localID   raft.ServerID
	localAddr raft.ServerAddress
	logger    zerolog.Logger
}

// noopFSM accepts every entry without mutating anything: this raft
// group carries no replicated state, only the leadership vote.
type noopFSM struct{}

func (noopFSM) Apply(*raft.Log) interface{}         { return nil }
func (noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }
func (noopFSM) Restore(rc io.ReadCloser) error      { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (noopSnapshot) Release()                             {}

// New starts a raft participant at cfg.BindAddr backed by bbolt log
// and stable stores under cfg.DataDir, mirroring the teacher's
// Bootstrap/Join raft setup (tuned the same way for sub-10s failover).
func New(cfg Config) (*Elector, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create election data dir: %w", err)
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)
	raftCfg.HeartbeatTimeout = 500 * time.Millisecond
	raftCfg.ElectionTimeout = 500 * time.Millisecond
	raftCfg.CommitTimeout = 50 * time.Millisecond
	raftCfg.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(raftCfg, noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("create raft node: %w", err)
	}

	return &Elector{
		raft:      r,
		localID:   raftCfg.LocalID,
		localAddr: transport.LocalAddr(),
		logger:    log.WithComponent("election"),
	}, nil
}

// Bootstrap initializes a brand-new single-node raft cluster with this
// Elector as its only (and initially leading) voter.
func (e *Elector) Bootstrap() error {
	future := e.raft.BootstrapCluster(raft.Configuration{
		Servers: []raft.Server{{ID: e.localID, Address: e.localAddr}},
	})
	return future.Error()
}

// AddVoter admits nodeID at address to the raft group; only the
// current leader may call this successfully.
func (e *Elector) AddVoter(nodeID, address string) error {
	if !e.IsLeader() {
		return fmt.Errorf("election: not the leader, current leader is %s", e.LeaderAddr())
	}
	future := e.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	return future.Error()
}

// IsLeader reports whether this process instance currently holds
// leadership, and therefore whether its Scheduler may drain READY
// actions.
func (e *Elector) IsLeader() bool { return e.raft.State() == raft.Leader }

// LeaderAddr returns the current leader's raft bind address, or empty
// if none is known.
func (e *Elector) LeaderAddr() string { return string(e.raft.Leader()) }

// LeaderCh notifies true/false as this instance gains or loses
// leadership, letting the Scheduler start/stop its dispatch loop
// without polling IsLeader on every tick.
func (e *Elector) LeaderCh() <-chan bool { return e.raft.LeaderCh() }

// Shutdown gracefully stops the raft participant.
func (e *Elector) Shutdown() error {
	return e.raft.Shutdown().Error()
}
