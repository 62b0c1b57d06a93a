package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/store"
)

// Engine evaluates the policies attached to a cluster at a given
// checkpoint (§4.6).
type Engine struct {
	repo     store.Store
	registry *Registry
}

// New builds an Engine over repo and registry.
func New(repo store.Store, registry *Registry) *Engine {
	return &Engine{repo: repo, registry: registry}
}

// Registry returns the Engine's backing Registry, letting a
// composition root register concrete PolicyKinds after construction
// (e.g. kinds needing a store-aware NodeLister, per NewDefaultRegistry's doc).
func (e *Engine) Registry() *Registry { return e.registry }

// Evaluate runs every enabled, non-cooldown-suppressed binding on
// clusterID whose policy declares a trigger for (phase, actionName),
// highest priority first (ties by attach time), invoking PreOp for
// PhaseBefore and PostOp for PhaseAfter. The first CHECK_ERROR stops
// iteration; successful hooks update the binding's LastFiredAt.
func (e *Engine) Evaluate(ctx context.Context, phase domain.Phase, actionName string, clusterID string, cluster *domain.Cluster, action *domain.Action) (Decision, error) {
	bindings, err := e.repo.ListBindingsByCluster(clusterID)
	if err != nil {
		return Decision{}, err
	}

	type scored struct {
		binding *domain.ClusterPolicyBinding
		policy  *domain.Policy
	}
	var candidates []scored
	for _, b := range bindings {
		if !b.Enabled {
			continue
		}
		p, err := e.repo.GetPolicy(b.PolicyID)
		if err != nil {
			return Decision{}, err
		}
		if !p.Matches(phase, actionName) {
			continue
		}
		candidates = append(candidates, scored{binding: b, policy: p})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		bi, bj := candidates[i].binding, candidates[j].binding
		if bi.Priority != bj.Priority {
			return bi.Priority > bj.Priority
		}
		return bi.AttachedAt.Before(bj.AttachedAt)
	})

	now := time.Now()
	for _, c := range candidates {
		if onCooldown(c.binding, now) {
			continue
		}
		kind := e.registry.Get(domain.Key{Type: c.policy.Type, Version: c.policy.Version})

		decision := e.invoke(ctx, kind, phase, c.binding, cluster, action)
		if decision.Status == CheckError {
			return decision, nil
		}
		c.binding.LastFiredAt = now
		c.binding.UpdatedAt = now
		if err := e.repo.UpdateBinding(c.binding); err != nil {
			return Decision{}, err
		}
	}
	return Decision{Status: CheckOK}, nil
}

func (e *Engine) invoke(ctx context.Context, kind Kind, phase domain.Phase, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, action *domain.Action) (decision Decision) {
	defer func() {
		if r := recover(); r != nil {
			// An unexpected panic is treated as CHECK_ERROR per §4.6's
			// "hook that raises an unexpected error" clause; the binding
			// is left enabled.
			decision = Decision{Status: CheckError, Reason: fmt.Sprintf("policy panic: %v", r)}
		}
	}()
	if phase == domain.PhaseBefore {
		return kind.PreOp(ctx, binding, cluster, action)
	}
	return kind.PostOp(ctx, binding, cluster, action)
}

// Attach runs a newly-created binding's attach() hook (§4.5's
// CLUSTER_ATTACH_POLICY).
func (e *Engine) Attach(ctx context.Context, drv driver.Driver, params driver.Params, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, nodes []*domain.Node, policy *domain.Policy) error {
	kind := e.registry.Get(domain.Key{Type: policy.Type, Version: policy.Version})
	return kind.Attach(ctx, drv, params, binding, cluster, nodes)
}

// Detach runs an about-to-be-destroyed binding's detach() hook.
func (e *Engine) Detach(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, policy *domain.Policy) error {
	kind := e.registry.Get(domain.Key{Type: policy.Type, Version: policy.Version})
	return kind.Detach(ctx, binding, cluster)
}
