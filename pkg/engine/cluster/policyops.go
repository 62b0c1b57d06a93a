package cluster

import (
	"context"
	"time"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/policy/deletion"
	"github.com/cuemby/clusterd/pkg/policy/scaling"
)

func init() {
	registerOp(domain.ClusterAttachPolicy, operation{body: attachPolicyBody, commit: noopCommit})
	registerOp(domain.ClusterDetachPolicy, operation{body: detachPolicyBody, commit: noopCommit})
	registerOp(domain.ClusterUpdatePolicy, operation{body: updatePolicyBody, commit: noopCommit})
}

func noopCommit(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (map[string]any, error) {
	return map[string]any{"cluster_id": cluster.ID}, nil
}

// attachPolicyBody implements CLUSTER_ATTACH_POLICY (§4.5): create the
// binding row and run the policy's attach() hook, which may seed
// binding.data (e.g. an LB-member policy registering existing nodes as
// pool members). Not fanned out into children.
func attachPolicyBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	policyID, _ := a.Inputs["policy_id"].(string)
	if policyID == "" {
		return false, clustererr.New(clustererr.KindValidation, "inputs.policy_id is required")
	}
	p, err := r.repo.GetPolicy(policyID)
	if err != nil {
		return false, err
	}
	if existing, err := r.repo.GetBinding(cluster.ID, policyID); err == nil && existing != nil {
		return false, clustererr.New(clustererr.KindConflict, "policy %s is already attached to cluster %s", policyID, cluster.ID)
	}

	priority, _ := asInt(a.Inputs["priority"])
	level, _ := asInt(a.Inputs["level"])
	cooldownSecs, _ := asInt(a.Inputs["cooldown"])
	now := time.Now()
	binding := &domain.ClusterPolicyBinding{
		ClusterID:  cluster.ID,
		PolicyID:   policyID,
		Priority:   priority,
		Level:      level,
		Cooldown:   time.Duration(cooldownSecs) * time.Second,
		Enabled:    true,
		Data:       map[string]any{},
		AttachedAt: now,
		UpdatedAt:  now,
	}

	switch p.Type {
	case deletion.Key.Type:
		deletion.SeedBindingData(p, binding)
	case scaling.Key.Type:
		scaling.SeedBindingData(p, binding)
	}

	nodes, err := r.repo.ListNodesByCluster(cluster.ID)
	if err != nil {
		return false, err
	}
	params, err := r.creds.Params(ctx, a.Owner.User, a.Owner.Project, "")
	if err != nil {
		return false, err
	}
	if err := r.policies.Attach(ctx, r.drv, params, binding, cluster, nodes, p); err != nil {
		return false, err
	}
	if err := r.repo.CreateBinding(binding); err != nil {
		return false, err
	}
	return false, nil
}

// detachPolicyBody implements CLUSTER_DETACH_POLICY: run detach() then
// remove the binding row.
func detachPolicyBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	policyID, _ := a.Inputs["policy_id"].(string)
	if policyID == "" {
		return false, clustererr.New(clustererr.KindValidation, "inputs.policy_id is required")
	}
	binding, err := r.repo.GetBinding(cluster.ID, policyID)
	if err != nil {
		return false, err
	}
	p, err := r.repo.GetPolicy(policyID)
	if err != nil {
		return false, err
	}
	if err := r.policies.Detach(ctx, binding, cluster, p); err != nil {
		return false, err
	}
	if err := r.repo.DeleteBinding(cluster.ID, policyID); err != nil {
		return false, err
	}
	return false, nil
}

// updatePolicyBody implements CLUSTER_UPDATE_POLICY: mutate the
// binding's priority/cooldown/level/enabled fields in place.
func updatePolicyBody(ctx context.Context, r *Runtime, cluster *domain.Cluster, a *domain.Action) (bool, error) {
	policyID, _ := a.Inputs["policy_id"].(string)
	if policyID == "" {
		return false, clustererr.New(clustererr.KindValidation, "inputs.policy_id is required")
	}
	binding, err := r.repo.GetBinding(cluster.ID, policyID)
	if err != nil {
		return false, err
	}
	if v, ok := asInt(a.Inputs["priority"]); ok {
		binding.Priority = v
	}
	if v, ok := asInt(a.Inputs["level"]); ok {
		binding.Level = v
	}
	if v, ok := asInt(a.Inputs["cooldown"]); ok {
		binding.Cooldown = time.Duration(v) * time.Second
	}
	if v, ok := a.Inputs["enabled"].(bool); ok {
		binding.Enabled = v
	}
	binding.UpdatedAt = time.Now()
	if err := r.repo.UpdateBinding(binding); err != nil {
		return false, err
	}
	return false, nil
}
