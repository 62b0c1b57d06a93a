// Package profile implements the ProfileKind capability set (§9): the
// class-based inheritance senlin's Profile subclasses use is replaced
// by an interface plus a process-wide registry keyed by (type,
// version), populated at init and looked up by the Node Action
// Runtime (C4).
package profile

import (
	"context"
	"sync"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
)

// Kind is the capability set a ProfileKind implements. Concrete kinds
// embed Base and override only the capabilities they need; the rest
// return "not applicable" (§9).
type Kind interface {
	DoCreate(ctx context.Context, drv driver.Driver, params driver.Params, p *domain.Profile, n *domain.Node) (physicalID string, err error)
	DoDelete(ctx context.Context, drv driver.Driver, params driver.Params, p *domain.Profile, n *domain.Node) error
	DoUpdate(ctx context.Context, drv driver.Driver, params driver.Params, oldP, newP *domain.Profile, n *domain.Node) error
	DoGetDetails(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node) (map[string]any, error)
	DoJoin(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node, clusterID string) error
	DoLeave(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node) error
	DoCheck(ctx context.Context, drv driver.Driver, params driver.Params, n *domain.Node) (bool, error)
	Validate(p *domain.Profile) error
}

// Base provides "not applicable" defaults for every Kind capability
// (§9); concrete kinds embed it and override selectively.
type Base struct{}

func notApplicable(op string) error {
	return clustererr.New(clustererr.KindValidation, "operation %s is not applicable to this profile kind", op)
}

func (Base) DoCreate(context.Context, driver.Driver, driver.Params, *domain.Profile, *domain.Node) (string, error) {
	return "", notApplicable("create")
}
func (Base) DoDelete(context.Context, driver.Driver, driver.Params, *domain.Profile, *domain.Node) error {
	return notApplicable("delete")
}
func (Base) DoUpdate(context.Context, driver.Driver, driver.Params, *domain.Profile, *domain.Profile, *domain.Node) error {
	return notApplicable("update")
}
func (Base) DoGetDetails(context.Context, driver.Driver, driver.Params, *domain.Node) (map[string]any, error) {
	return nil, notApplicable("get_details")
}
func (Base) DoJoin(context.Context, driver.Driver, driver.Params, *domain.Node, string) error {
	return nil // joining a cluster is a no-op for most kinds unless overridden
}
func (Base) DoLeave(context.Context, driver.Driver, driver.Params, *domain.Node) error {
	return nil
}
func (Base) DoCheck(context.Context, driver.Driver, driver.Params, *domain.Node) (bool, error) {
	return true, nil
}
func (Base) Validate(*domain.Profile) error { return nil }

// Unknown is the fallback variant for an unrecognized (type, version)
// pair (§9): every operation fails validation instead of panicking or
// silently no-oping.
type Unknown struct {
	Base
	Key domain.Key
}

func (u Unknown) DoCreate(context.Context, driver.Driver, driver.Params, *domain.Profile, *domain.Node) (string, error) {
	return "", clustererr.New(clustererr.KindValidation, "unknown profile kind %s", u.Key)
}
func (u Unknown) Validate(*domain.Profile) error {
	return clustererr.New(clustererr.KindValidation, "unknown profile kind %s", u.Key)
}

// Registry is the process-wide (type, version) -> Kind lookup table.
type Registry struct {
	mu    sync.RWMutex
	kinds map[domain.Key]Kind
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry { return &Registry{kinds: make(map[domain.Key]Kind)} }

// Register installs kind under key, replacing any previous entry.
func (r *Registry) Register(key domain.Key, kind Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[key] = kind
}

// Get returns the Kind for (type, version), or Unknown if unregistered.
func (r *Registry) Get(key domain.Key) Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.kinds[key]; ok {
		return k
	}
	return Unknown{Key: key}
}

// ForProfile resolves the Kind for a stored Profile.
func (r *Registry) ForProfile(p *domain.Profile) Kind {
	return r.Get(domain.Key{Type: p.Type, Version: p.Version})
}
