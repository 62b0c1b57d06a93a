// Package policy implements the PolicyKind capability set and the
// Policy Engine evaluation contract (spec §4.6): attach/detach/pre_op/
// post_op hooks resolved by (type, version), invoked priority-ordered
// at the BEFORE/AFTER checkpoints flanking a cluster action body, with
// cooldown suppression and first-CHECK_ERROR short-circuit.
package policy

import (
	"context"
	"sync"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/driver"
)

// CheckStatus is a hook's veto indicator (§4.6).
type CheckStatus string

const (
	CheckOK    CheckStatus = "CHECK_OK"
	CheckError CheckStatus = "CHECK_ERROR"
)

// Decision is what a policy hook returns.
type Decision struct {
	Status CheckStatus
	Reason string
}

// Kind is the capability set a PolicyKind implements. Concrete kinds
// embed Base and override only the hooks they declare in their target
// set; the rest are no-ops that always return CHECK_OK.
type Kind interface {
	Attach(ctx context.Context, drv driver.Driver, params driver.Params, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, nodes []*domain.Node) error
	Detach(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster) error
	PreOp(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, action *domain.Action) Decision
	PostOp(ctx context.Context, binding *domain.ClusterPolicyBinding, cluster *domain.Cluster, action *domain.Action) Decision
	Validate(p *domain.Policy) error
}

// Base provides no-op defaults for every Kind hook; concrete kinds
// embed it and override selectively.
type Base struct{}

func (Base) Attach(context.Context, driver.Driver, driver.Params, *domain.ClusterPolicyBinding, *domain.Cluster, []*domain.Node) error {
	return nil
}
func (Base) Detach(context.Context, *domain.ClusterPolicyBinding, *domain.Cluster) error { return nil }
func (Base) PreOp(context.Context, *domain.ClusterPolicyBinding, *domain.Cluster, *domain.Action) Decision {
	return Decision{Status: CheckOK}
}
func (Base) PostOp(context.Context, *domain.ClusterPolicyBinding, *domain.Cluster, *domain.Action) Decision {
	return Decision{Status: CheckOK}
}
func (Base) Validate(*domain.Policy) error { return nil }

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

// Get returns the Kind for (type, version), or Base (always CHECK_OK)
// if unregistered — an unattachable policy is caught at attach time by
// the caller resolving the binding's Policy row, not here.
func (r *Registry) Get(key domain.Key) Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if k, ok := r.kinds[key]; ok {
		return k
	}
	return Base{}
}

// onCooldown reports whether binding fired within its cooldown window.
func onCooldown(b *domain.ClusterPolicyBinding, now time.Time) bool {
	if b.Cooldown <= 0 || b.LastFiredAt.IsZero() {
		return false
	}
	return now.Sub(b.LastFiredAt) < b.Cooldown
}
