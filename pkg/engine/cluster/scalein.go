package cluster

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterScaleIn, operation{
		prepare:        scaleInPrepare,
		body:           scaleInBody,
		commit:         scaleInCommit,
		onChildFailure: deleteOnChildFailure,
	})
}

func scaleInCount(r *Runtime, cluster *domain.Cluster, a *domain.Action) (int, error) {
	if v, ok := a.Inputs["count"].(int); ok {
		if v < 0 {
			return 0, clustererr.New(clustererr.KindValidation, "scale-in count must not be negative")
		}
		return v, nil
	}
	_, deletion := scalingCounts(r, cluster)
	return deletion, nil
}

// scaleInPrepare resolves the candidate set (every current node) and
// the requested count into action.Data for the deletion policy's
// BEFORE hook, mirroring delNodesPrepare.
func scaleInPrepare(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) error {
	count, err := scaleInCount(r, cluster, a)
	if err != nil {
		return err
	}
	nodes, err := r.repo.ListNodesByCluster(cluster.ID)
	if err != nil {
		return err
	}
	if count > len(nodes) {
		count = len(nodes)
	}
	a.Data["deletion_count"] = count
	a.Data["candidate_nodes"] = nodes
	return nil
}

func scaleInBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	cluster.Status = domain.ClusterResizing
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return false, err
	}
	return delNodesBody(ctx, r, cluster, a)
}

// scaleInCommit mirrors delNodesCommit but also drops DesiredCapacity
// by the number of nodes actually removed, the counterpart to
// scaleOutCommit's bump — without this, scale_out(n); scale_in(n)
// would not return desired_capacity to its prior value (§8).
func scaleInCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	switch removed := a.Outputs["nodes_removed"].(type) {
	case []string:
		cluster.DesiredCapacity -= len(removed)
	case []any:
		cluster.DesiredCapacity -= len(removed)
	}
	if cluster.DesiredCapacity < 0 {
		cluster.DesiredCapacity = 0
	}
	cluster.Status = domain.ClusterActive
	cluster.StatusReason = ""
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"nodes_removed": a.Outputs["nodes_removed"]}, nil
}
