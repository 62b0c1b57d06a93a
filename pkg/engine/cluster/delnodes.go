package cluster

import (
	"context"
	"time"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterDelNodes, operation{
		prepare:        delNodesPrepare,
		body:           delNodesBody,
		commit:         delNodesCommit,
		onChildFailure: deleteOnChildFailure,
	})
}

// delNodesPrepare resolves and validates the candidate node-ids
// (§4.5: "must belong to this cluster") and stashes them in
// action.Data for the deletion policy's BEFORE hook to see.
func delNodesPrepare(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) error {
	ids, _ := a.Inputs["node_ids"].([]string)
	if len(ids) == 0 {
		return clustererr.New(clustererr.KindValidation, "inputs.node_ids is required")
	}
	nodes := make([]*domain.Node, 0, len(ids))
	for _, id := range ids {
		n, err := r.repo.GetNode(id)
		if err != nil {
			return err
		}
		if n.ClusterID != cluster.ID {
			return clustererr.New(clustererr.KindValidation, "node %s does not belong to cluster %s", id, cluster.ID)
		}
		nodes = append(nodes, n)
	}
	a.Data["deletion_count"] = len(nodes)
	a.Data["candidate_nodes"] = nodes
	return nil
}

func delNodesBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	nodes, _ := a.Data["candidate_nodes"].([]*domain.Node)
	count, _ := a.Data["deletion_count"].(int)
	if len(nodes) == 0 {
		return false, nil
	}

	if grace := gracePeriodFor(r, cluster); grace > 0 {
		until, ok := a.Data["grace_until"].(string)
		if !ok {
			a.Data["grace_until"] = time.Now().Add(grace).Format(time.RFC3339Nano)
			return false, errYield
		}
		deadline, err := time.Parse(time.RFC3339Nano, until)
		if err == nil && time.Now().Before(deadline) {
			return false, errYield
		}
	}

	candidates := deletionCandidates(r, cluster, nodes, count)
	destroy := destroyAfterDeletionFor(r, cluster)
	opName := domain.NodeDelete
	if !destroy {
		opName = domain.NodeLeave
	}
	var removed []string
	for _, n := range candidates {
		if _, err := r.spawnChild(a, n.ID, opName, nil); err != nil {
			return false, err
		}
		removed = append(removed, n.ID)
	}
	a.Outputs["nodes_removed"] = removed
	return true, nil
}

func delNodesCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	cluster.Status = domain.ClusterActive
	cluster.StatusReason = ""
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"nodes_removed": a.Outputs["nodes_removed"]}, nil
}
