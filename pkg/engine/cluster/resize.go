package cluster

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
)

func init() {
	registerOp(domain.ClusterResize, operation{
		prepare:        resizePrepare,
		body:           resizeBody,
		commit:         resizeCommit,
		onChildFailure: deleteOnChildFailure,
	})
}

// resizeRequest is the parsed inputs of a CLUSTER_RESIZE action.
type resizeRequest struct {
	target  int
	delta   int
	minSize *int
	maxSize *int
	strict  bool
}

// parseResize implements §4.5 rule 1: the request may specify an
// absolute desired capacity, a signed delta, or a percentage with a
// minimum step, against the cluster's current (desired, min, max,
// actual node count).
func parseResize(cluster *domain.Cluster, inputs map[string]any, actual int) (resizeRequest, error) {
	req := resizeRequest{target: cluster.DesiredCapacity}
	strict, _ := inputs["strict"].(bool)
	req.strict = strict

	switch {
	case inputs["desired_capacity"] != nil:
		v, ok := asInt(inputs["desired_capacity"])
		if !ok {
			return req, clustererr.New(clustererr.KindValidation, "inputs.desired_capacity must be an integer")
		}
		req.target = v
	case inputs["adjustment"] != nil:
		v, ok := asInt(inputs["adjustment"])
		if !ok {
			return req, clustererr.New(clustererr.KindValidation, "inputs.adjustment must be an integer")
		}
		req.target = cluster.DesiredCapacity + v
	case inputs["percentage"] != nil:
		pct, ok := inputs["percentage"].(float64)
		if !ok {
			return req, clustererr.New(clustererr.KindValidation, "inputs.percentage must be a number")
		}
		minStep, _ := asInt(inputs["min_step"])
		if minStep <= 0 {
			minStep = 1
		}
		delta := int(float64(actual) * pct / 100.0)
		if delta > 0 && delta < minStep {
			delta = minStep
		}
		if delta < 0 && delta > -minStep {
			delta = -minStep
		}
		req.target = cluster.DesiredCapacity + delta
	default:
		// No capacity-changing field supplied: this is a bounds-only
		// resize (min_size/max_size), which targets the cluster's
		// current desired_capacity (already req's zero-value default).
	}

	if v, ok := asInt(inputs["min_size"]); ok {
		req.minSize = &v
	}
	if v, ok := asInt(inputs["max_size"]); ok {
		req.maxSize = &v
	}
	req.delta = req.target - cluster.DesiredCapacity
	return req, nil
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	}
	return 0, false
}

func resizePrepare(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) error {
	nodes, err := r.repo.ListNodesByCluster(cluster.ID)
	if err != nil {
		return err
	}
	req, err := parseResize(cluster, a.Inputs, len(nodes))
	if err != nil {
		return err
	}

	minSize := cluster.MinSize
	if req.minSize != nil {
		minSize = *req.minSize
	}
	maxSize := cluster.MaxSize
	if req.maxSize != nil {
		maxSize = *req.maxSize
	}

	target := req.target
	if req.strict {
		if err := domain.ValidateCapacity(minSize, target, maxSize); err != nil {
			return clustererr.Wrap(clustererr.KindValidation, err, "strict resize violates capacity bounds")
		}
	} else {
		if target < minSize {
			target = minSize
		}
		effectiveMax := maxSize
		if maxSize == domain.Unbounded {
			effectiveMax = target
		}
		if target > effectiveMax {
			target = effectiveMax
		}
	}

	a.Data["resize_target"] = target
	a.Data["resize_delta"] = target - cluster.DesiredCapacity
	a.Data["resize_min"] = minSize
	a.Data["resize_max"] = maxSize

	if delta := target - cluster.DesiredCapacity; delta < 0 {
		a.Data["deletion_count"] = -delta
		a.Data["candidate_nodes"] = nodes
	}
	return nil
}

func resizeBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	delta, _ := a.Data["resize_delta"].(int)
	cluster.Status = domain.ClusterResizing
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return false, err
	}
	switch {
	case delta > 0:
		a.Inputs["count"] = delta
		return scaleOutBody(ctx, r, cluster, a)
	case delta < 0:
		return delNodesBody(ctx, r, cluster, a)
	default:
		return false, nil
	}
}

func resizeCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	target, _ := a.Data["resize_target"].(int)
	minSize, _ := a.Data["resize_min"].(int)
	maxSize, _ := a.Data["resize_max"].(int)
	cluster.DesiredCapacity = target
	cluster.MinSize = minSize
	cluster.MaxSize = maxSize
	cluster.Status = domain.ClusterActive
	if err := r.repo.UpdateCluster(cluster); err != nil {
		return nil, err
	}
	return map[string]any{"desired_capacity": target}, nil
}
