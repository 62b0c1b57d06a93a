package profile

import (
	"context"
	"fmt"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
)

// ComputeKey is the registry key for the compute profile kind.
var ComputeKey = domain.Key{Type: "compute", Version: "1.0"}

// Compute is the ProfileKind grounding a node in the Compute driver
// capability: create/delete/update/check a server, join/leave being
// no-ops at the compute layer (cluster membership is tracked by the
// domain model, not the infrastructure).
type Compute struct {
	Base
}

func (Compute) spec(p *domain.Profile) (driver.ServerSpec, error) {
	name, _ := p.Spec["name"].(string)
	if name == "" {
		name = p.Name
	}
	image, _ := p.Spec["image"].(string)
	if image == "" {
		return driver.ServerSpec{}, clustererr.New(clustererr.KindValidation, "profile %s: spec.image is required", p.ID)
	}
	flavor, _ := p.Spec["flavor"].(string)
	md := map[string]string{}
	for k, v := range p.Metadata {
		md[k] = v
	}
	var networks []string
	if raw, ok := p.Spec["networks"].([]any); ok {
		for _, n := range raw {
			if s, ok := n.(string); ok {
				networks = append(networks, s)
			}
		}
	}
	return driver.ServerSpec{
		Name:      name,
		ImageRef:  image,
		FlavorRef: flavor,
		Networks:  networks,
		Metadata:  md,
	}, nil
}

func (c Compute) DoCreate(ctx context.Context, drv driver.Driver, params driver.Params, p *domain.Profile, n *domain.Node) (string, error) {
	spec, err := c.spec(p)
	if err != nil {
		return "", err
	}
	spec.Name = fmt.Sprintf("%s-%d", spec.Name, n.Index)
	compute, err := drv.Compute(params)
	if err != nil {
		return "", clustererr.Wrap(clustererr.KindTransient, err, "acquire compute capability")
	}
	id, err := compute.ServerCreate(ctx, spec)
	if err != nil {
		return "", clustererr.Wrap(clustererr.KindTransient, err, "server_create for node %s", n.ID)
	}
	return id, nil
}

func (c Compute) DoDelete(ctx context.Context, drv driver.Driver, params driver.Params, p *domain.Profile, n *domain.Node) error {
	if n.PhysicalID == "" {
		return nil
	}
	compute, err := drv.Compute(params)
	if err != nil {
		return clustererr.Wrap(clustererr.KindTransient, err, "acquire compute capability")
	}
	if err := compute.ServerDelete(ctx, n.PhysicalID); err != nil {
		return clustererr.Wrap(clustererr.KindTransient, err, "server_delete for node %s", n.ID)
	}
	return compute.WaitForServerDelete(ctx, n.PhysicalID, 0)
}

func (c Compute) DoUpdate(ctx context.Context, drv driver.Driver, params driver.Params, oldP, newP *domain.Profile, n *domain.Node) error {
	if n.PhysicalID == "" {
		return clustererr.New(clustererr.KindNotFound, "node %s has no physical id", n.ID)
	}
	compute, err := drv.Compute(params)
	if err != nil {
		return clustererr.Wrap(clustererr.KindTransient, err, "acquire compute capability")
	}
	newSpec, err := c.spec(newP)
	if err != nil {
		return err
	}
	if newSpec.ImageRef != "" {
		if err := compute.ServerRebuild(ctx, n.PhysicalID, newSpec.ImageRef); err != nil {
			return clustererr.Wrap(clustererr.KindTransient, err, "server_rebuild for node %s", n.ID)
		}
	}
	return compute.ServerMetadataUpdate(ctx, n.PhysicalID, newSpec.Metadata)
}

func (c Compute) DoGetDetails(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node) (map[string]any, error) {
	compute, err := drv.Compute(params)
	if err != nil {
		return nil, clustererr.Wrap(clustererr.KindTransient, err, "acquire compute capability")
	}
	info, err := compute.ServerGet(ctx, n.PhysicalID)
	if err != nil {
		return nil, clustererr.Wrap(clustererr.KindTransient, err, "server_get for node %s", n.ID)
	}
	return map[string]any{
		"id":        info.ID,
		"status":    info.Status,
		"addresses": info.Addresses,
		"metadata":  info.Metadata,
	}, nil
}

func (c Compute) DoCheck(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node) (bool, error) {
	compute, err := drv.Compute(params)
	if err != nil {
		return false, clustererr.Wrap(clustererr.KindTransient, err, "acquire compute capability")
	}
	info, err := compute.ServerGet(ctx, n.PhysicalID)
	if err != nil {
		return false, nil
	}
	return info.Status == "ACTIVE", nil
}

func (c Compute) Validate(p *domain.Profile) error {
	_, err := c.spec(p)
	return err
}

var _ Kind = Compute{}
