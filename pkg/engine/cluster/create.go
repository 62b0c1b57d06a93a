package cluster

import (
	"context"
	"fmt"

	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterCreate, operation{
		body:   createBody,
		commit: createCommit,
	})
}

// createBody implements CLUSTER_CREATE's decomposition (§4.5): mark
// CREATING, spawn N=desired-capacity NODE_CREATE children with fresh
// indices, forwarding policy.data["placement"] hints into each
// child's inputs.placement.
func createBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	cluster.Status = domain.ClusterCreating
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return false, err
	}

	placements, _ := a.Data["placement"].([]map[string]any)
	n := cluster.DesiredCapacity
	if n <= 0 {
		return false, nil
	}
	for i := 0; i < n; i++ {
		index, err := r.repo.NextNodeIndex(cluster.ID)
		if err != nil {
			return false, err
		}
		node := &domain.Node{
			ID:        fmt.Sprintf("%s-node-%d", cluster.ID, index),
			Name:      fmt.Sprintf("%s-%d", cluster.Name, index),
			ProfileID: cluster.ProfileID,
			ClusterID: cluster.ID,
			Index:     index,
			Status:    domain.NodeInit,
			Data:      map[string]any{},
		}
		if i < len(placements) {
			node.Data["placement"] = placements[i]
		}
		if err := r.repo.CreateNode(node); err != nil {
			return false, err
		}
		if _, err := r.spawnChild(a, node.ID, domain.NodeCreate, nil); err != nil {
			return false, err
		}
	}
	return true, nil
}

func createCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	cluster.Status = domain.ClusterActive
	cluster.StatusReason = ""
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"cluster_id": cluster.ID}, nil
}
