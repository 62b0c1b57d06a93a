package main

import (
	"fmt"

	"github.com/cuemby/clusterd/pkg/action"
	"github.com/cuemby/clusterd/pkg/config"
	"github.com/cuemby/clusterd/pkg/credential"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/engine/cluster"
	"github.com/cuemby/clusterd/pkg/engine/node"
	"github.com/cuemby/clusterd/pkg/event"
	"github.com/cuemby/clusterd/pkg/lock"
	"github.com/cuemby/clusterd/pkg/policy"
	"github.com/cuemby/clusterd/pkg/policy/deletion"
	"github.com/cuemby/clusterd/pkg/policy/lbmember"
	"github.com/cuemby/clusterd/pkg/policy/scaling"
	"github.com/cuemby/clusterd/pkg/profile"
	"github.com/cuemby/clusterd/pkg/receiver"
	"github.com/cuemby/clusterd/pkg/scheduler"
	"github.com/cuemby/clusterd/pkg/store"
)

// clusterActionNames is every CLUSTER_* action the Cluster Action
// Runtime's Handle dispatches on (§4.5's decomposition), registered in
// one pass against the Scheduler.
var clusterActionNames = []string{
	domain.ClusterCreate,
	domain.ClusterDelete,
	domain.ClusterUpdate,
	domain.ClusterAddNodes,
	domain.ClusterDelNodes,
	domain.ClusterResize,
	domain.ClusterScaleOut,
	domain.ClusterScaleIn,
	domain.ClusterAttachPolicy,
	domain.ClusterDetachPolicy,
	domain.ClusterUpdatePolicy,
}

// env is the fully wired composition root every subcommand needs,
// whether it runs the long-lived dispatch loop (serve) or submits a
// single action and exits (the rest of the CLI).
type env struct {
	cfg *config.Config

	store   store.Store
	actions *action.Store
	locks   *lock.Manager
	drv     driver.Driver
	creds   *credential.Resolver
	events  *event.Recorder

	profiles *profile.Registry
	policies *policy.Engine

	nodeRT    *node.Runtime
	clusterRT *cluster.Runtime
	receivers *receiver.Runtime

	scheduler *scheduler.Scheduler
}

// buildEnv opens the bbolt store at cfg.DataDir and wires every
// component the way cmd/warren/main.go wires manager/scheduler/api,
// generalized to clusterd's Lock Manager / Action Store / Cluster
// and Node Action Runtimes / Policy Engine.
func buildEnv(cfg *config.Config) (*env, error) {
	repo, err := store.NewBoltStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	actions := action.New(repo)
	sched := scheduler.New(actions, cfg.WorkerPool)
	sched.SetBackoff(scheduler.Backoff{
		Initial:    cfg.Backoff.Initial,
		Max:        cfg.Backoff.RetryCap,
		MaxRetries: cfg.Backoff.MaxRetries,
	})
	locks := lock.New(repo, repo, sched)

	var drv driver.Driver
	switch flagUseDriver {
	case "containerd":
		drv, err = driver.NewContainerdDriver("")
		if err != nil {
			return nil, fmt.Errorf("open containerd driver: %w", err)
		}
	default:
		drv = driver.NewFake()
	}

	creds := credential.New(repo, drv)
	events := event.NewRecorder(repo)

	profiles := profile.NewDefaultRegistry()

	policies := policy.New(repo, policy.NewDefaultRegistry())
	policies.Registry().Register(deletion.Key, deletion.Policy{})
	policies.Registry().Register(scaling.Key, scaling.Policy{})
	policies.Registry().Register(lbmember.Key, lbmember.Policy{Nodes: repo})

	nodeRT := node.New(repo, profiles, drv, creds)
	clusterRT := cluster.New(repo, actions, locks, policies, drv, creds)
	receivers := receiver.New(repo, clusterRT)

	e := &env{
		cfg:       cfg,
		store:     repo,
		actions:   actions,
		locks:     locks,
		drv:       drv,
		creds:     creds,
		events:    events,
		profiles:  profiles,
		policies:  policies,
		nodeRT:    nodeRT,
		clusterRT: clusterRT,
		receivers: receivers,
		scheduler: sched,
	}
	e.registerHandlers()
	return e, nil
}

// registerHandlers installs every NODE_*/CLUSTER_* handler on the
// Scheduler, mirroring the teacher's main() wiring of scheduler
// handlers to manager methods.
func (e *env) registerHandlers() {
	e.scheduler.RegisterHandler(domain.NodeCreate, e.nodeRT.HandleCreate)
	e.scheduler.RegisterHandler(domain.NodeDelete, e.nodeRT.HandleDelete)
	e.scheduler.RegisterHandler(domain.NodeUpdate, e.nodeRT.HandleUpdate)
	e.scheduler.RegisterHandler(domain.NodeJoin, e.nodeRT.HandleJoin)
	e.scheduler.RegisterHandler(domain.NodeLeave, e.nodeRT.HandleLeave)

	for _, name := range clusterActionNames {
		e.scheduler.RegisterHandler(name, e.clusterRT.Handle)
	}
}

func (e *env) Close() error {
	return e.store.Close()
}
