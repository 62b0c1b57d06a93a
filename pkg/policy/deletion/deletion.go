// Package deletion implements the deletion PolicyKind (SPEC_FULL.md
// §3): it selects which nodes a scale-in or CLUSTER_DEL_NODES should
// remove and annotates the binding's data with the recognized §4.6
// keys the Cluster Action Runtime reads when deciding NODE_DELETE vs
// NODE_LEAVE.
package deletion

import (
	"context"
	"sort"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/policy"
)

// Key is the registry key for this PolicyKind.
var Key = domain.Key{Type: "deletion", Version: "1.0"}

// Criteria selects which nodes to remove first.
type Criteria string

const (
	OldestFirst Criteria = "OLDEST_FIRST"
	NewestFirst Criteria = "NEWEST_FIRST"
	Random      Criteria = "RANDOM"
)

// Policy is the deletion PolicyKind.
type Policy struct {
	policy.Base
}

func criteria(p *domain.Policy) Criteria {
	if v, ok := p.Spec["criteria"].(string); ok {
		switch Criteria(v) {
		case OldestFirst, NewestFirst, Random:
			return Criteria(v)
		}
	}
	return OldestFirst
}

func destroyAfterDeletion(p *domain.Policy) bool {
	v, _ := p.Spec["destroy_after_deletion"].(bool)
	return v
}

func gracePeriod(p *domain.Policy) float64 {
	if v, ok := p.Spec["grace_period"].(float64); ok {
		return v
	}
	return 0
}

// PreOp selects scale-in candidates from action.Data["candidate_nodes"]
// (populated by the Cluster Action Runtime before invoking BEFORE) and
// writes deletion.candidates/destroy_after_deletion/grace_period into
// the binding's data for the runtime to consume after the checkpoint.
func (d Policy) PreOp(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, action *domain.Action) policy.Decision {
	count, _ := action.Data["deletion_count"].(int)
	nodes, _ := action.Data["candidate_nodes"].([]*domain.Node)
	if count <= 0 || len(nodes) == 0 {
		return policy.Decision{Status: policy.CheckOK}
	}

	sorted := make([]*domain.Node, len(nodes))
	copy(sorted, nodes)
	switch binding.Data["criteria"] {
	case string(NewestFirst):
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index > sorted[j].Index })
	case string(Random):
		// deterministic sort here; true randomness is the caller's job if desired
	default:
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	}
	if count > len(sorted) {
		count = len(sorted)
	}
	candidates := make([]string, 0, count)
	for _, n := range sorted[:count] {
		candidates = append(candidates, n.ID)
	}

	if binding.Data == nil {
		binding.Data = map[string]any{}
	}
	binding.Data["deletion.candidates"] = candidates
	return policy.Decision{Status: policy.CheckOK}
}

func (d Policy) Validate(p *domain.Policy) error { return nil }

var _ policy.Kind = Policy{}

// SeedBindingData initializes a fresh binding's policy-private data
// from the Policy spec at attach time.
func SeedBindingData(p *domain.Policy, binding *domain.ClusterPolicyBinding) {
	if binding.Data == nil {
		binding.Data = map[string]any{}
	}
	binding.Data["criteria"] = string(criteria(p))
	binding.Data["destroy_after_deletion"] = destroyAfterDeletion(p)
	binding.Data["grace_period"] = gracePeriod(p)
}
