package cluster

import (
	"context"

	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterDelete, operation{
		body:           deleteBody,
		commit:         deleteCommit,
		onChildFailure: deleteOnChildFailure,
	})
}

// deleteBody implements CLUSTER_DELETE (§4.5): mark DELETING, spawn
// one NODE_DELETE (or NODE_LEAVE, per policy.data
// deletion.destroy_after_deletion) per current node.
func deleteBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	cluster.Status = domain.ClusterDeleting
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return false, err
	}
	nodes, err := r.repo.ListNodesByCluster(cluster.ID)
	if err != nil {
		return false, err
	}
	if len(nodes) == 0 {
		return false, nil
	}
	destroy := destroyAfterDeletionFor(r, cluster)
	opName := domain.NodeDelete
	if !destroy {
		opName = domain.NodeLeave
	}
	for _, n := range nodes {
		if _, err := r.spawnChild(a, n.ID, opName, nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

func deleteCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	if err := r.repo.DeleteCluster(cluster.ID); err != nil {
		return nil, err
	}
	return map[string]any{"cluster_id": cluster.ID}, nil
}

// deleteOnChildFailure implements the "on any non-OK child mark
// WARNING and do not delete the cluster record" clause.
func deleteOnChildFailure(cluster *domain.Cluster, a *domain.Action, reason string) domain.ClusterStatus {
	cluster.StatusReason = reason
	return domain.ClusterWarning
}
