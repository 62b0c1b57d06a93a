// Package node implements the Node Action Runtime (C4): the atomic,
// single-node operations NODE_CREATE/DELETE/UPDATE/JOIN/LEAVE, each
// driving a ProfileKind through the Infrastructure Driver and applying
// the pre/post/rollback contract from spec §4.4. Handlers are plain
// scheduler.Handler functions registered with the Scheduler by the
// composition root.
package node

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/credential"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/profile"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/rs/zerolog"
)

// Runtime executes node actions against repo, the profile registry,
// the Infrastructure Driver, and the credential resolver used to
// build driver.Params for each call.
type Runtime struct {
	repo     store.Store
	profiles *profile.Registry
	drv      driver.Driver
	creds    *credential.Resolver
	logger   zerolog.Logger
}

// New builds a node Runtime.
func New(repo store.Store, profiles *profile.Registry, drv driver.Driver, creds *credential.Resolver) *Runtime {
	return &Runtime{repo: repo, profiles: profiles, drv: drv, creds: creds, logger: log.WithComponent("engine.node")}
}

// resultForErr maps a clustererr Kind to the scheduler's result-code
// vocabulary (§7): transient and lock-busy failures are retried by the
// scheduler's backoff, everything else is a terminal failure.
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

func (r *Runtime) node(id string) (*domain.Node, error) { return r.repo.GetNode(id) }

func (r *Runtime) paramsFor(ctx context.Context, a *domain.Action) (driver.Params, error) {
	region, _ := a.Inputs["region"].(string)
	return r.creds.Params(ctx, a.Owner.User, a.Owner.Project, region)
}

// HandleCreate implements NODE_CREATE (§4.4): pre node in INIT, post
// physical-id populated and status ACTIVE, rollback status ERROR with
// best-effort physical cleanup.
func (r *Runtime) HandleCreate(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
	n, err := r.node(a.TargetID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	p, err := r.repo.GetProfile(n.ProfileID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	params, err := r.paramsFor(ctx, a)
	if err != nil {
		return resultForErr(err), nil, err
	}

	n.Status = domain.NodeCreating
	n.StatusReason = ""
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}

	kind := r.profiles.ForProfile(p)
	physicalID, err := kind.DoCreate(ctx, r.drv, params, p, n)
	if err != nil {
		n.Status = domain.NodeError
		n.StatusReason = err.Error()
		if uerr := r.repo.UpdateNode(n); uerr != nil {
			r.logger.Error().Err(uerr).Str("node_id", n.ID).Msg("persist rollback status failed")
		}
		return resultForErr(err), nil, err
	}

	n.PhysicalID = physicalID
	n.Status = domain.NodeActive
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}
	return domain.ResultOK, map[string]any{"physical_id": physicalID}, nil
}

// HandleDelete implements NODE_DELETE (§4.4): any non-terminal status
// may be deleted; on success the physical resource is gone and the
// node record is removed ("tombstoned").
func (r *Runtime) HandleDelete(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
	n, err := r.node(a.TargetID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	p, err := r.repo.GetProfile(n.ProfileID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	params, err := r.paramsFor(ctx, a)
	if err != nil {
		return resultForErr(err), nil, err
	}

	n.Status = domain.NodeDeleting
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}

	kind := r.profiles.ForProfile(p)
	if err := kind.DoDelete(ctx, r.drv, params, p, n); err != nil {
		n.Status = domain.NodeError
		n.StatusReason = err.Error()
		if uerr := r.repo.UpdateNode(n); uerr != nil {
			r.logger.Error().Err(uerr).Str("node_id", n.ID).Msg("persist rollback status failed")
		}
		return resultForErr(err), nil, err
	}

	if err := r.repo.DeleteNode(n.ID); err != nil {
		return domain.ResultError, nil, err
	}
	return domain.ResultOK, map[string]any{"node_id": n.ID}, nil
}

// HandleUpdate implements NODE_UPDATE (§4.4): pre status ACTIVE, post
// profile-id swapped and properties refreshed, rollback keeps the
// prior profile.
func (r *Runtime) HandleUpdate(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
	n, err := r.node(a.TargetID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	if n.Status != domain.NodeActive {
		return domain.ResultError, nil, clustererr.New(clustererr.KindConflict, "node %s is not ACTIVE", n.ID)
	}
	newProfileID, _ := a.Inputs["profile_id"].(string)
	if newProfileID == "" {
		return domain.ResultError, nil, clustererr.New(clustererr.KindValidation, "inputs.profile_id is required")
	}
	oldProfile, err := r.repo.GetProfile(n.ProfileID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	newProfile, err := r.repo.GetProfile(newProfileID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	params, err := r.paramsFor(ctx, a)
	if err != nil {
		return resultForErr(err), nil, err
	}

	n.Status = domain.NodeUpdating
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}

	kind := r.profiles.ForProfile(oldProfile)
	if err := kind.DoUpdate(ctx, r.drv, params, oldProfile, newProfile, n); err != nil {
		n.Status = domain.NodeError
		n.StatusReason = err.Error()
		if uerr := r.repo.UpdateNode(n); uerr != nil {
			r.logger.Error().Err(uerr).Str("node_id", n.ID).Msg("persist rollback status failed")
		}
		return resultForErr(err), nil, err
	}

	if details, err := kind.DoGetDetails(ctx, r.drv, params, n); err == nil {
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		for k, v := range details {
			n.Data[k] = v
		}
	}
	n.ProfileID = newProfileID
	n.Status = domain.NodeActive
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}
	return domain.ResultOK, map[string]any{"profile_id": newProfileID}, nil
}

// HandleJoin implements NODE_JOIN(cluster_id) (§4.4): pre node has no
// cluster, post cluster-id set and index assigned atomically via
// next_index; desired-capacity is bumped only for a user-initiated
// join (a direct RPC join, as opposed to one spawned by
// CLUSTER_ADD_NODES, which already accounts for the node in its own
// capacity bookkeeping).
func (r *Runtime) HandleJoin(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
	n, err := r.node(a.TargetID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	if !n.IsOrphan() {
		return domain.ResultError, nil, clustererr.New(clustererr.KindConflict, "node %s already belongs to a cluster", n.ID)
	}
	clusterID, _ := a.Inputs["cluster_id"].(string)
	if clusterID == "" {
		return domain.ResultError, nil, clustererr.New(clustererr.KindValidation, "inputs.cluster_id is required")
	}
	cluster, err := r.repo.GetCluster(clusterID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	p, err := r.repo.GetProfile(n.ProfileID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	params, err := r.paramsFor(ctx, a)
	if err != nil {
		return resultForErr(err), nil, err
	}

	index, err := r.repo.NextNodeIndex(clusterID)
	if err != nil {
		return domain.ResultError, nil, err
	}

	kind := r.profiles.ForProfile(p)
	if err := kind.DoJoin(ctx, r.drv, params, n, clusterID); err != nil {
		return resultForErr(err), nil, err
	}

	n.ClusterID = clusterID
	n.Index = index
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}

	if a.Cause == domain.CauseRPC {
		cluster.DesiredCapacity++
		if err := r.repo.UpdateCluster(cluster); err != nil {
			return domain.ResultError, nil, err
		}
	}
	return domain.ResultOK, map[string]any{"index": index}, nil
}

// HandleLeave implements NODE_LEAVE (§4.4): pre node in a cluster,
// post cluster-id cleared and index reset to OrphanIndex. Status is
// left unchanged either way, matching the spec's table.
func (r *Runtime) HandleLeave(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error) {
	n, err := r.node(a.TargetID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	if n.IsOrphan() {
		return domain.ResultError, nil, clustererr.New(clustererr.KindConflict, "node %s has no cluster to leave", n.ID)
	}
	p, err := r.repo.GetProfile(n.ProfileID)
	if err != nil {
		return domain.ResultError, nil, err
	}
	params, err := r.paramsFor(ctx, a)
	if err != nil {
		return resultForErr(err), nil, err
	}

	kind := r.profiles.ForProfile(p)
	if err := kind.DoLeave(ctx, r.drv, params, n); err != nil {
		return resultForErr(err), nil, err
	}

	n.ClusterID = ""
	n.Index = domain.OrphanIndex
	if err := r.repo.UpdateNode(n); err != nil {
		return domain.ResultError, nil, err
	}
	return domain.ResultOK, map[string]any{"node_id": n.ID}, nil
}

// RegisterHandlers wires every C4 operation onto a registrar (the
// Scheduler's RegisterHandler), matching the signature
// func(actionName string, h scheduler.Handler) without importing
// pkg/scheduler here and risking an import cycle.
func (r *Runtime) RegisterHandlers(register func(actionName string, h func(ctx context.Context, a *domain.Action) (domain.ResultCode, map[string]any, error))) {
	register(domain.NodeCreate, r.HandleCreate)
	register(domain.NodeDelete, r.HandleDelete)
	register(domain.NodeUpdate, r.HandleUpdate)
	register(domain.NodeJoin, r.HandleJoin)
	register(domain.NodeLeave, r.HandleLeave)
}
