package cluster

import (
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
)

// deletionBinding returns the first enabled binding on cluster whose
// policy type is "deletion", or nil if none is attached — the Cluster Action Runtime's only
// coupling point to the deletion PolicyKind's seeded/annotated data
// (§4.6's recognized deletion.* keys).
func deletionBinding(r *Runtime, cluster *domain.Cluster) *domain.ClusterPolicyBinding {
	bindings, err := r.repo.ListBindingsByCluster(cluster.ID)
	if err != nil {
		return nil
	}
	for _, b := range bindings {
		if !b.Enabled {
			continue
		}
		p, err := r.repo.GetPolicy(b.PolicyID)
		if err != nil || p.Type != "deletion" {
			continue
		}
		return b
	}
	return nil
}

// destroyAfterDeletionFor reports whether nodes removed from cluster
// should be truly destroyed (NODE_DELETE) vs merely detached
// (NODE_LEAVE). Absent a deletion policy, the default is to destroy.
func destroyAfterDeletionFor(r *Runtime, cluster *domain.Cluster) bool {
	b := deletionBinding(r, cluster)
	if b == nil {
		return true
	}
	if v, ok := b.Data["destroy_after_deletion"].(bool); ok {
		return v
	}
	return true
}

// gracePeriodFor returns the configured deletion.grace_period, or zero
// if none is attached.
func gracePeriodFor(r *Runtime, cluster *domain.Cluster) time.Duration {
	b := deletionBinding(r, cluster)
	if b == nil {
		return 0
	}
	secs, _ := b.Data["grace_period"].(float64)
	if secs <= 0 {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

// scalingCounts returns the attached scaling policy's creation.count /
// deletion.count, defaulting to 1 when no such policy is bound
// (§4.5: "Count defaults to policy.data[...], else to 1").
func scalingCounts(r *Runtime, cluster *domain.Cluster) (creation, deletion int) {
	creation, deletion = 1, 1
	bindings, err := r.repo.ListBindingsByCluster(cluster.ID)
	if err != nil {
		return
	}
	for _, b := range bindings {
		if !b.Enabled {
			continue
		}
		p, err := r.repo.GetPolicy(b.PolicyID)
		if err != nil || p.Type != "scaling" {
			continue
		}
		if v, ok := asInt(b.Data["creation.count"]); ok {
			creation = v
		}
		if v, ok := asInt(b.Data["deletion.count"]); ok {
			deletion = v
		}
		return
	}
	return
}

// deletionCandidates resolves which of cluster's nodes a scale-in or
// CLUSTER_DEL_NODES should remove: it prefers the deletion policy's
// seeded deletion.candidates, falling back to "choose the newest count
// nodes, tie-break by creation time ascending" per §4.5 rule 5.
func deletionCandidates(r *Runtime, cluster *domain.Cluster, nodes []*domain.Node, count int) []*domain.Node {
	if count > len(nodes) {
		count = len(nodes)
	}
	if b := deletionBinding(r, cluster); b != nil {
		var ids []string
		switch v := b.Data["deletion.candidates"].(type) {
		case []string:
			ids = v
		case []any:
			for _, x := range v {
				if s, ok := x.(string); ok {
					ids = append(ids, s)
				}
			}
		}
		if len(ids) > 0 {
			byID := make(map[string]*domain.Node, len(nodes))
			for _, n := range nodes {
				byID[n.ID] = n
			}
			var picked []*domain.Node
			for _, id := range ids {
				if n, ok := byID[id]; ok {
					picked = append(picked, n)
				}
			}
			if len(picked) > 0 {
				if len(picked) > count {
					picked = picked[:count]
				}
				return picked
			}
		}
	}
	sorted := make([]*domain.Node, len(nodes))
	copy(sorted, nodes)
	sortByIndexDesc(sorted)
	if count > len(sorted) {
		count = len(sorted)
	}
	return sorted[:count]
}
