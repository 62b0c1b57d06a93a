// Package driver defines the Infrastructure Driver capability (spec
// §6): the narrow set of cloud operations the Node Action Runtime
// (C4) and Cluster Action Runtime (C5) call through. Concrete cloud
// adapters are out of scope for this core; this package defines the
// interfaces plus a fake in-memory implementation for tests and a
// containerd-backed reference compute driver.
package driver

import (
	"context"
	"time"
)

// ServerSpec describes the node to create, built by a ProfileKind from
// a Profile's templated Spec blob.
type ServerSpec struct {
	Name       string
	ImageRef   string
	FlavorRef  string
	Networks   []string
	Metadata   map[string]string
	Placement  map[string]any
}

// ServerInfo is what ServerGet returns about a provisioned node.
type ServerInfo struct {
	ID       string
	Status   string
	Addresses map[string][]string
	Metadata map[string]string
}

// Compute is the compute capability: server_create, server_delete,
// server_get, wait_for_server_delete, server_rebuild,
// server_interface_{list,create,delete}, server_metadata_{get,update},
// image_find, flavor_find (§6).
type Compute interface {
	ServerCreate(ctx context.Context, spec ServerSpec) (physicalID string, err error)
	ServerDelete(ctx context.Context, physicalID string) error
	ServerGet(ctx context.Context, physicalID string) (*ServerInfo, error)
	WaitForServerDelete(ctx context.Context, physicalID string, timeout time.Duration) error
	ServerRebuild(ctx context.Context, physicalID, imageRef string) error
	ServerInterfaceList(ctx context.Context, physicalID string) ([]string, error)
	ServerInterfaceCreate(ctx context.Context, physicalID, networkID string) (string, error)
	ServerInterfaceDelete(ctx context.Context, physicalID, interfaceID string) error
	ServerMetadataGet(ctx context.Context, physicalID string) (map[string]string, error)
	ServerMetadataUpdate(ctx context.Context, physicalID string, md map[string]string) error
	ImageFind(ctx context.Context, name string) (string, error)
	FlavorFind(ctx context.Context, name string) (string, error)
}

// Network is the network capability: network_get, subnet_get,
// pool_member_{create,delete}, load_balancer_{create,delete},
// listener_{create,delete}, pool_{create,delete},
// health_monitor_{create,delete} (§6).
type Network interface {
	NetworkGet(ctx context.Context, id string) (string, error)
	SubnetGet(ctx context.Context, id string) (string, error)
	PoolMemberCreate(ctx context.Context, poolID, address string, port int) (string, error)
	PoolMemberDelete(ctx context.Context, poolID, memberID string) error
	LoadBalancerCreate(ctx context.Context, vipSubnetID string) (string, error)
	LoadBalancerDelete(ctx context.Context, id string) error
	ListenerCreate(ctx context.Context, lbID string, port int, protocol string) (string, error)
	ListenerDelete(ctx context.Context, id string) error
	PoolCreate(ctx context.Context, listenerID, protocol string) (string, error)
	PoolDelete(ctx context.Context, id string) error
	HealthMonitorCreate(ctx context.Context, poolID string) (string, error)
	HealthMonitorDelete(ctx context.Context, id string) error
}

// LoadBalancing is the higher-level member_add/member_remove capability
// the lbmember policy (SPEC_FULL §3) drives directly (§6).
type LoadBalancing interface {
	MemberAdd(ctx context.Context, nodeAddress, poolID string, port int) (memberID string, err error)
	MemberRemove(ctx context.Context, memberID string) error
}

// Orchestration is the stack capability: stack_create, stack_update,
// stack_delete, stack_get, wait_for_stack (§6).
type Orchestration interface {
	StackCreate(ctx context.Context, name string, template map[string]any) (string, error)
	StackUpdate(ctx context.Context, id string, template map[string]any) error
	StackDelete(ctx context.Context, id string) error
	StackGet(ctx context.Context, id string) (string, error)
	WaitForStack(ctx context.Context, id, target string, timeout time.Duration) error
}

// Identity is the identity capability: trust_get_by_trustor,
// trust_create, get_user_id (§6).
type Identity interface {
	TrustGetByTrustor(ctx context.Context, trustorID string) (string, error)
	TrustCreate(ctx context.Context, trustorID, trusteeID string, roles []string) (string, error)
	GetUserID(ctx context.Context) (string, error)
}

// Params carries the credential-scoped construction parameters used to
// build each capability, threading authctx.Context's TrustID through
// to whatever backend a Driver implementation talks to.
type Params struct {
	TrustID string
	Region  string
}

// Driver aggregates the capabilities C4/C5 consume. A concrete
// implementation (fake, containerd-backed, or a real cloud adapter
// outside this module's scope) builds each capability lazily from Params.
type Driver interface {
	Identity(p Params) (Identity, error)
	Compute(p Params) (Compute, error)
	Network(p Params) (Network, error)
	LoadBalancing(p Params) (LoadBalancing, error)
	Orchestration(p Params) (Orchestration, error)
}
