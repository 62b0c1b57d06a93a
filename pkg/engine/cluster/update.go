package cluster

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterUpdate, operation{
		body:   updateBody,
		commit: updateCommit,
	})
}

// updateBody implements CLUSTER_UPDATE (§4.5): given a new profile-id,
// spawn NODE_UPDATE per current node in parallel.
func updateBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	newProfileID, _ := a.Inputs["profile_id"].(string)
	if newProfileID == "" {
		return false, clustererr.New(clustererr.KindValidation, "inputs.profile_id is required")
	}
	if _, err := r.repo.GetProfile(newProfileID); err != nil {
		return false, err
	}
	cluster.Status = domain.ClusterUpdating
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
	for _, n := range nodes {
		if _, err := r.spawnChild(a, n.ID, domain.NodeUpdate, map[string]any{"profile_id": newProfileID}); err != nil {
			return false, err
		}
	}
	return true, nil
}

func updateCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	if newProfileID, _ := a.Inputs["profile_id"].(string); newProfileID != "" {
		cluster.ProfileID = newProfileID
	}
	cluster.Status = domain.ClusterActive
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"cluster_id": cluster.ID}, nil
}
