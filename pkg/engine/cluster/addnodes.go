package cluster

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterAddNodes, operation{
		prepare: addNodesPrepare,
		body:    addNodesBody,
		commit:  addNodesCommit,
	})
}

// addNodesPrepare validates every input node up front — exists, is an
// orphan, is ACTIVE — before any NODE_JOIN is spawned, mirroring
// delNodesPrepare's all-or-nothing validation. Validating inside the
// spawn loop would let a later node's failure (e.g. already owned by
// another cluster) leave earlier nodes' joins already READY and
// running, a partial join that §8 requires add_nodes never produce.
func addNodesPrepare(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) error {
	ids, _ := a.Inputs["node_ids"].([]string)
	if len(ids) == 0 {
		return clustererr.New(clustererr.KindValidation, "inputs.node_ids is required")
	}
	for _, id := range ids {
		n, err := r.repo.GetNode(id)
		if err != nil {
			return err
		}
		if !n.IsOrphan() {
			return clustererr.New(clustererr.KindValidation, "node %s is not an orphan", id)
		}
		if n.Status != domain.NodeActive {
			return clustererr.New(clustererr.KindValidation, "node %s is not ACTIVE", id)
		}
	}
	a.Data["candidate_node_ids"] = ids
	return nil
}

// addNodesBody implements CLUSTER_ADD_NODES (§4.5): spawn NODE_JOIN
// for every node addNodesPrepare already validated.
func addNodesBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	ids, _ := a.Data["candidate_node_ids"].([]string)
	var joined []string
	for _, id := range ids {
		if _, err := r.spawnChild(a, id, domain.NodeJoin, map[string]any{"cluster_id": cluster.ID}); err != nil {
			return false, err
		}
		joined = append(joined, id)
	}
	a.Outputs["nodes_added"] = joined
	return true, nil
}

func addNodesCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	switch joined := a.Outputs["nodes_added"].(type) {
	case []string:
		cluster.DesiredCapacity += len(joined)
	case []any:
		cluster.DesiredCapacity += len(joined)
	}
	cluster.Status = domain.ClusterActive
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"nodes_added": a.Outputs["nodes_added"]}, nil
}
