// Package store is the persistence repository consumed by every other
// component (spec §6: "a narrow repository interface"). It is a thin,
// generic-CRUD interface over clusterd's domain entities plus the two
// primitives the engine needs beyond plain CRUD: an atomic per-cluster
// node-index counter and dependency-edge bookkeeping for actions.
package store

import "github.com/cuemby/clusterd/pkg/domain"

// Store is the narrow persistence repository the core consumes. A
// single implementation (BoltStore) backs every entity type in one
// embedded database, one bucket per type, mirroring the teacher's
// BoltDB-backed storage.Store.
type Store interface {
	// Clusters
	CreateCluster(c *domain.Cluster) error
	GetCluster(id string) (*domain.Cluster, error)
	ListClusters() ([]*domain.Cluster, error)
	UpdateCluster(c *domain.Cluster) error
	DeleteCluster(id string) error
	// NextNodeIndex atomically increments and returns Cluster.NextNodeIndex (§4.7).
	NextNodeIndex(clusterID string) (int, error)

	// Nodes
	CreateNode(n *domain.Node) error
	GetNode(id string) (*domain.Node, error)
	ListNodes() ([]*domain.Node, error)
	ListNodesByCluster(clusterID string) ([]*domain.Node, error)
	UpdateNode(n *domain.Node) error
	DeleteNode(id string) error

	// Profiles
	CreateProfile(p *domain.Profile) error
	GetProfile(id string) (*domain.Profile, error)
	ListProfiles() ([]*domain.Profile, error)
	UpdateProfile(p *domain.Profile) error
	DeleteProfile(id string) error

	// Policies
	CreatePolicy(p *domain.Policy) error
	GetPolicy(id string) (*domain.Policy, error)
	ListPolicies() ([]*domain.Policy, error)
	UpdatePolicy(p *domain.Policy) error
	DeletePolicy(id string) error

	// ClusterPolicyBindings, keyed by (clusterID, policyID)
	CreateBinding(b *domain.ClusterPolicyBinding) error
	GetBinding(clusterID, policyID string) (*domain.ClusterPolicyBinding, error)
	ListBindingsByCluster(clusterID string) ([]*domain.ClusterPolicyBinding, error)
	UpdateBinding(b *domain.ClusterPolicyBinding) error
	DeleteBinding(clusterID, policyID string) error

	// Actions
	CreateAction(a *domain.Action) error
	GetAction(id string) (*domain.Action, error)
	ListActions() ([]*domain.Action, error)
	UpdateAction(a *domain.Action) error
	// AddDependency declares child must complete (terminal-success)
	// before parent leaves WAITING (§4.2).
	AddDependency(childID, parentID string) error
	ListDependents(actionID string) ([]*domain.Action, error)
	ListDependencies(actionID string) ([]*domain.Action, error)
	// GetReady returns actions in READY status ordered by
	// (priority desc, creation-time asc) per §4.2.
	GetReady() ([]*domain.Action, error)

	// Events
	CreateEvent(e *domain.Event) error
	ListEvents(objType, objID string) ([]*domain.Event, error)

	// Receivers
	CreateReceiver(r *domain.Receiver) error
	GetReceiver(id string) (*domain.Receiver, error)
	ListReceivers() ([]*domain.Receiver, error)
	DeleteReceiver(id string) error

	// Credentials
	PutCredential(c *domain.Credential) error
	GetCredential(user, project string) (*domain.Credential, error)

	Close() error
}
