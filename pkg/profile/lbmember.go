package profile

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
)

// LBMemberKey is the registry key for the loadbalancer-member profile
// kind (SPEC_FULL §3): a node that is itself just a pool-member
// registration rather than a provisioned server, mirroring senlin's
// lb_member_policy's rbalancer-member profile.
var LBMemberKey = domain.Key{Type: "loadbalancer-member", Version: "1.0"}

// LBMember is the ProfileKind for a node whose lifecycle is entirely
// in the LoadBalancing capability: create/delete register and
// deregister a pool member keyed off the owning cluster's pool id.
type LBMember struct {
	Base
}

func (LBMember) poolID(p *domain.Profile) (string, error) {
	poolID, _ := p.Spec["pool_id"].(string)
	if poolID == "" {
		return "", clustererr.New(clustererr.KindValidation, "profile %s: spec.pool_id is required", p.ID)
	}
	return poolID, nil
}

func (LBMember) port(p *domain.Profile) int {
	if v, ok := p.Spec["port"].(int); ok {
		return v
	}
	if v, ok := p.Spec["port"].(float64); ok {
		return int(v)
	}
	return 80
}

func (l LBMember) DoCreate(ctx context.Context, drv driver.Driver, params driver.Params, p *domain.Profile, n *domain.Node) (string, error) {
	poolID, err := l.poolID(p)
	if err != nil {
		return "", err
	}
	address, _ := n.Data["address"].(string)
	if address == "" {
		return "", clustererr.New(clustererr.KindValidation, "node %s has no address to register", n.ID)
	}
	lb, err := drv.LoadBalancing(params)
	if err != nil {
		return "", clustererr.Wrap(clustererr.KindTransient, err, "acquire load balancing capability")
	}
	memberID, err := lb.MemberAdd(ctx, address, poolID, l.port(p))
	if err != nil {
		return "", clustererr.Wrap(clustererr.KindTransient, err, "member_add for node %s", n.ID)
	}
	return memberID, nil
}

func (l LBMember) DoDelete(ctx context.Context, drv driver.Driver, params driver.Params, p *domain.Profile, n *domain.Node) error {
	if n.PhysicalID == "" {
		return nil
	}
	lb, err := drv.LoadBalancing(params)
	if err != nil {
		return clustererr.Wrap(clustererr.KindTransient, err, "acquire load balancing capability")
	}
	if err := lb.MemberRemove(ctx, n.PhysicalID); err != nil {
		return clustererr.Wrap(clustererr.KindTransient, err, "member_remove for node %s", n.ID)
	}
	return nil
}

func (l LBMember) DoCheck(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node) (bool, error) {
	return n.PhysicalID != "", nil
}

func (l LBMember) Validate(p *domain.Profile) error {
	_, err := l.poolID(p)
	return err
}

var _ Kind = LBMember{}
