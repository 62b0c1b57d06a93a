package cluster

import (
	"context"
	"fmt"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterScaleOut, operation{
		body:   scaleOutBody,
		commit: scaleOutCommit,
	})
}

// scaleOutCount resolves the requested count: an explicit inputs.count
// overrides the scaling policy's creation.count default of 1 (§4.5).
func scaleOutCount(r *Runtime, cluster *domain.Cluster, a *domain.Action) (int, error) {
	if v, ok := a.Inputs["count"].(int); ok {
		if v < 0 {
			return 0, clustererr.New(clustererr.KindValidation, "scale-out count must not be negative")
		}
		return v, nil
	}
	creation, _ := scalingCounts(r, cluster)
	return creation, nil
}

func scaleOutBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	count, err := scaleOutCount(r, cluster, a)
	if err != nil {
		return false, err
	}
	if count == 0 {
		return false, nil
	}
	cluster.Status = domain.ClusterResizing
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return false, err
	}
	for i := 0; i < count; i++ {
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
		}
		if err := r.repo.CreateNode(node); err != nil {
			return false, err
		}
		if _, err := r.spawnChild(a, node.ID, domain.NodeCreate, nil); err != nil {
			return false, err
		}
	}
	a.Outputs["nodes_added"] = count
	return true, nil
}

func scaleOutCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	n, _ := asInt(a.Outputs["nodes_added"])
	cluster.DesiredCapacity += n
	cluster.Status = domain.ClusterActive
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"nodes_added": n}, nil
}
