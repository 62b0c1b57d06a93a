// Package scaling implements the scaling PolicyKind (SPEC_FULL.md §3):
// it bounds how many nodes a SCALE_OUT/SCALE_IN may create or destroy
// by default, exercising spec §4.5's `data.creation.count` /
// `data.deletion.count` fallback.
package scaling

import (
	"context"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/policy"
)

// Key is the registry key for this PolicyKind.
var Key = domain.Key{Type: "scaling", Version: "1.0"}

// Policy is the scaling PolicyKind.
type Policy struct {
	policy.Base
}

// SeedBindingData copies the policy's configured creation.count /
// deletion.count defaults into a freshly-attached binding's data.
func SeedBindingData(p *domain.Policy, binding *domain.ClusterPolicyBinding) {
	if binding.Data == nil {
		binding.Data = map[string]any{}
	}
	binding.Data["creation.count"] = specInt(p, "creation_count", 1)
	binding.Data["deletion.count"] = specInt(p, "deletion_count", 1)
}

func specInt(p *domain.Policy, key string, def int) int {
	if v, ok := p.Spec[key].(int); ok {
		return v
	}
	if v, ok := p.Spec[key].(float64); ok {
		return int(v)
	}
	return def
}

// PreOp is a no-op: the bounds this policy contributes are read
// directly from binding.Data by the Cluster Action Runtime when
// computing a SCALE_OUT/SCALE_IN delta (§4.5), not vetoed here.
func (s Policy) PreOp(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, action *domain.Action) policy.Decision {
	return policy.Decision{Status: policy.CheckOK}
}

func (s Policy) Validate(p *domain.Policy) error { return nil }

var _ policy.Kind = Policy{}
