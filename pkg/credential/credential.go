// Package credential resolves a caller's (user, project) identity to
// the delegated TrustID used to construct driver.Params, and lazily
// establishes that trust with the Infrastructure Driver's Identity
// capability the first time a given (user, project) pair is seen
// (SPEC_FULL.md §3; grounded on senlin's engine/trust.py).
package credential

import (
	"context"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
	"github.com/cuemby/clusterd/pkg/store"
)

// Resolver looks up or creates a Credential bundle for a caller.
type Resolver struct {
	repo store.Store
	drv  driver.Driver
}

// New builds a Resolver over repo, establishing new trusts through drv.
func New(repo store.Store, drv driver.Driver) *Resolver {
	return &Resolver{repo: repo, drv: drv}
}

// Resolve returns the stored Credential for (user, project), creating
// one via the Identity capability's trust_create if none exists yet.
func (r *Resolver) Resolve(ctx context.Context, user, project string) (*domain.Credential, error) {
	c, err := r.repo.GetCredential(user, project)
	if err == nil {
		return c, nil
	}
	if !clustererr.Is(err, clustererr.KindNotFound) {
		return nil, err
	}

	identity, err := r.drv.Identity(driver.Params{})
	if err != nil {
		return nil, clustererr.Wrap(clustererr.KindTransient, err, "acquire identity capability")
	}
	trusteeID, err := identity.GetUserID(ctx)
	if err != nil {
		return nil, clustererr.Wrap(clustererr.KindTransient, err, "get_user_id")
	}
	trustID, err := identity.TrustCreate(ctx, user, trusteeID, nil)
	if err != nil {
		return nil, clustererr.Wrap(clustererr.KindTransient, err, "trust_create for user %s", user)
	}

	c = &domain.Credential{User: user, Project: project, TrustID: trustID}
	if err := r.repo.PutCredential(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Params builds driver.Params for (user, project), resolving its
// credential bundle first.
func (r *Resolver) Params(ctx context.Context, user, project, region string) (driver.Params, error) {
	c, err := r.Resolve(ctx, user, project)
	if err != nil {
		return driver.Params{}, err
	}
	return driver.Params{TrustID: c.TrustID, Region: region}, nil
}
