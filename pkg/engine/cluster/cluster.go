// Package cluster implements the Cluster Action Runtime (C5): the
// decomposition rules that turn a cluster-scoped intent into NODE_*
// children dispatched through the Action Store and Scheduler, flanked
// by the Policy Engine's BEFORE/AFTER checkpoints and serialized by
// the cluster lock (spec §4.5).
package cluster

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/clusterd/pkg/action"
	"github.com/cuemby/clusterd/pkg/authctx"
	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/credential"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/lock"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/policy"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/rs/zerolog"
)

// DefaultTimeout is the cluster-level default per §5; children inherit
// min(child-default, remaining-parent-budget).
const DefaultTimeout = time.Hour

// Runtime executes cluster actions: the top-level entrypoint
// (Submit) plus the scheduler-registered handler that implements the
// execution wrapper and per-intent decomposition.
type Runtime struct {
	repo     store.Store
	actions  *action.Store
	locks    *lock.Manager
	policies *policy.Engine
	drv      driver.Driver
	creds    *credential.Resolver
	logger   zerolog.Logger
}

// New builds a cluster Runtime.
func New(repo store.Store, actions *action.Store, locks *lock.Manager, policies *policy.Engine, drv driver.Driver, creds *credential.Resolver) *Runtime {
	return &Runtime{repo: repo, actions: actions, locks: locks, policies: policies, drv: drv, creds: creds, logger: log.WithComponent("engine.cluster")}
}

// Submit creates and enqueues a top-level, user-initiated cluster
// action (the RPC entry point pkg/receiver and the CLI call through).
func (r *Runtime) Submit(ctx context.Context, clusterID, actionName string, inputs map[string]any) (*domain.Action, error) {
	owner := domain.Owner{}
	if ac, ok := authctx.From(ctx); ok {
		owner = domain.Owner{User: ac.User, Project: ac.Project, Domain: ac.Domain}
	}
	a := action.NewAction(clusterID, actionName, owner, domain.CauseRPC, DefaultTimeout)
	if inputs != nil {
		a.Inputs = inputs
	}
	if err := r.actions.Create(a); err != nil {
		return nil, err
	}
	if err := r.actions.MarkReady(a.ID); err != nil {
		return nil, err
	}
	return a, nil
}

// stage names for the per-action resumable state machine carried in
// Action.Data["stage"]; each scheduler dispatch picks up where the
// last one left off.
const (
	stageLocked  = "locked"
	stageBefore  = "before"
	stageBody    = "body"
	stageWaiting = "waiting"
	stageAfter   = "after"
)

func stageOf(a *domain.Action) string {
	s, _ := a.Data["stage"].(string)
	return s
}

func setStage(a *domain.Action, stage string) { a.Data["stage"] = stage }

func resultForErr(err error) domain.ResultCode {
	switch clustererr.KindOf(err) {
	case clustererr.KindTransient, clustererr.KindLockBusy:
		return domain.ResultRetry
	case clustererr.KindCancelled:
		return domain.ResultCancel
	case clustererr.KindTimeout:
		return domain.ResultTimeout
	default:
		return domain.ResultError
	}
}

func wait() (domain.ResultCode, map[string]any, error) {
	return domain.ResultRetry, map[string]any{domain.DependentsWaitKey: true}, nil
}

// errYield is a body sentinel meaning "not ready to spawn children
// yet, call me again at the next reschedule" - used for an explicit
// sleep suspension point (§5), e.g. a deletion policy's grace period.
// It carries no information beyond "try again"; any state needed
// across yields (e.g. a deadline) is stashed in Action.Data by the
// body before returning it.
var errYield = errors.New("cluster: yield, not ready")

// operation is the per-intent decomposition plugged into the shared
// execution wrapper: body spawns (or directly performs) the
// intent-specific work, returning whether it fanned out into NODE_*
// children the wrapper must then wait on; commit finalizes the
// cluster record once children (if any) and the AFTER checkpoint have
// succeeded; onChildFailure computes the terminal cluster status for
// a failed/cancelled child.
type operation struct {
	// prepare runs once, right after the cluster lock is acquired and
	// before the BEFORE checkpoint, so a hook's action.data
	// expectations (e.g. the deletion policy's deletion_count /
	// candidate_nodes) are populated before it fires.
	prepare        func(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) error
	body           func(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (spawned bool, err error)
	commit         func(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error)
	onChildFailure func(cluster *domain.Cluster, a *domain.Action, reason string) domain.ClusterStatus
}

func defaultOnChildFailure(cluster *domain.Cluster, a *domain.Action, reason string) domain.ClusterStatus {
	cluster.StatusReason = reason
	return domain.ClusterError
}

// operations is the C5 decomposition-rule table, populated by each
// op's file via registerOp in an init().
var operations = map[string]operation{}

func registerOp(name string, op operation) {
	if op.onChildFailure == nil {
		op.onChildFailure = defaultOnChildFailure
	}
	operations[name] = op
}

// Handle is the scheduler.Handler for every CLUSTER_* action name: it
// drives the execution wrapper from §4.5 -
//
//	1. acquire cluster lock
//	2. invoke Policy Engine (phase=BEFORE)
//	3. dispatch operation-specific body (may spawn NODE_* children)
//	4. wait for children, if any
//	5. invoke Policy Engine (phase=AFTER)
//	6. commit cluster status / reason
//	7. release cluster lock
//
// - resuming at the right stage on every re-dispatch.
func (r *Runtime) Handle(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
	op, ok := operations[a.ActionName]
	if !ok {
		return domain.ResultError, nil, clustererr.New(clustererr.KindValidation, "unknown cluster action %s", a.ActionName)
	}
	cluster, err := r.repo.GetCluster(a.TargetID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	if a.Data == nil {
		a.Data = map[string]any{}
	}

	for {
		switch stageOf(a) {
		case "":
			if _, err := r.locks.Acquire(cluster.ID, domain.ScopeCluster, a.ID, false); err != nil {
				if clustererr.Is(err, clustererr.KindLockBusy) {
					return wait()
				}
				return resultForErr(err), nil, err
			}
			setStage(a, stageLocked)
			if err := r.actions.Update(a); err != nil {
				return domain.ResultError, nil, err
			}

		case stageLocked:
			if op.prepare != nil {
				if err := op.prepare(ctx, r, cluster, a); err != nil {
					r.release(cluster.ID, a.ID)
					return resultForErr(err), nil, err
				}
			}
			decision, err := r.policies.Evaluate(ctx, domain.PhaseBefore, a.ActionName, cluster.ID, cluster, a)
			if err != nil {
				r.release(cluster.ID, a.ID)
				return domain.ResultError, nil, err
			}
			if decision.Status == policy.CheckError {
				r.release(cluster.ID, a.ID)
				return domain.ResultError, nil, clustererr.New(clustererr.KindPolicyVeto, "Policy check failure: %s", decision.Reason)
			}
			setStage(a, stageBefore)
			if err := r.actions.Update(a); err != nil {
				return domain.ResultError, nil, err
			}

		case stageBefore:
			spawned, err := op.body(ctx, r, cluster, a)
			if errors.Is(err, errYield) {
				if uerr := r.actions.Update(a); uerr != nil {
					return domain.ResultError, nil, uerr
				}
				return wait()
			}
			if err != nil {
				r.release(cluster.ID, a.ID)
				return resultForErr(err), nil, err
			}
			if spawned {
				setStage(a, stageWaiting)
			} else {
				setStage(a, stageAfter)
			}
			if err := r.actions.Update(a); err != nil {
				return domain.ResultError, nil, err
			}

		case stageWaiting:
			children, err := r.actions.ListDependencies(a.ID)
			if err != nil {
				r.release(cluster.ID, a.ID)
				return domain.ResultError, nil, err
			}
			code, reason := evalChildren(a, children)
			switch code {
			case domain.ResultOK:
				setStage(a, stageAfter)
				if err := r.actions.Update(a); err != nil {
					return domain.ResultError, nil, err
				}
			case "":
				return wait()
			default:
				r.commit(cluster, op.onChildFailure(cluster, a, reason))
				r.release(cluster.ID, a.ID)
				return code, nil, clustererr.New(clustererr.KindInternal, "%s", reason)
			}

		case stageAfter:
			decision, err := r.policies.Evaluate(ctx, domain.PhaseAfter, a.ActionName, cluster.ID, cluster, a)
			if err != nil {
				r.release(cluster.ID, a.ID)
				return domain.ResultError, nil, err
			}
			if decision.Status == policy.CheckError {
				r.commit(cluster, op.onChildFailure(cluster, a, decision.Reason))
				r.release(cluster.ID, a.ID)
				return domain.ResultError, nil, clustererr.New(clustererr.KindPolicyVeto, "Policy check failure: %s", decision.Reason)
			}
			outputs, err := op.commit(ctx, r, cluster, a)
			if err != nil {
				r.release(cluster.ID, a.ID)
				return domain.ResultError, nil, err
			}
			r.release(cluster.ID, a.ID)
			return domain.ResultOK, outputs, nil
		}
	}
}

func (r *Runtime) release(clusterID, actionID string) {
	if err := r.locks.Release(clusterID, domain.ScopeCluster, actionID); err != nil {
		r.logger.Error().Err(err).Str("cluster_id", clusterID).Msg("release cluster lock failed")
	}
}

func (r *Runtime) commit(cluster *domain.Cluster, status domain.ClusterStatus) {
	cluster.Status = status
	if err := r.repo.UpdateCluster(cluster); err != nil {
		r.logger.Error().Err(err).Str("cluster_id", cluster.ID).Msg("commit cluster status failed")
	}
}

// evalChildren implements the "waiting loop for dependents" table
// verbatim (§4.5): all SUCCEEDED -> OK; any FAILED -> ERROR; cancelled
// -> CANCEL; empty code means "keep waiting".
func evalChildren(parent *domain.Action, children []*domain.Action) (domain.ResultCode, string) {
	if parent.Cancelled {
		return domain.ResultCancel, fmt.Sprintf("ACTION [%s] cancelled", parent.ID)
	}
	allDone := true
	for _, c := range children {
		switch c.Status {
		case domain.ActionFailed:
			return domain.ResultError, fmt.Sprintf("ACTION [%s] failed: %s", c.ID, c.ResultReason)
		case domain.ActionCancelled:
			return domain.ResultCancel, fmt.Sprintf("ACTION [%s] cancelled", c.ID)
		case domain.ActionSucceeded:
			// continue checking the rest
		default:
			allDone = false
		}
	}
	if allDone {
		return domain.ResultOK, ""
	}
	return "", ""
}

// spawnChild creates a NODE_* child action targeting nodeID, links it
// as a dependency of parent, and marks it READY for the scheduler to
// pick up (§4.5's fan-out).
func (r *Runtime) spawnChild(parent *domain.Action, nodeID, actionName string, inputs map[string]any) (*domain.Action, error) {
	remaining := parent.Timeout
	if !parent.StartedAt.IsZero() {
		if left := parent.Timeout - time.Since(parent.StartedAt); left > 0 {
			remaining = left
		}
	}
	child := action.NewAction(nodeID, actionName, parent.Owner, domain.CauseDerived, remaining)
	if inputs != nil {
		child.Inputs = inputs
	}
	if err := r.actions.Create(child); err != nil {
		return nil, err
	}
	if err := r.actions.AddDependency(child.ID, parent.ID); err != nil {
		return nil, err
	}
	// Mirror the stored edge on the in-memory parent, which the caller
	// later persists wholesale with Update.
	parent.DependsOn = append(parent.DependsOn, child.ID)
	if err := r.actions.MarkReady(child.ID); err != nil {
		return nil, err
	}
	return child, nil
}

func sortByIndexDesc(nodes []*domain.Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Index != nodes[j].Index {
			return nodes[i].Index > nodes[j].Index
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}
