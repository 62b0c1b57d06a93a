package store

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketClusters    = []byte("clusters")
	bucketNodes       = []byte("nodes")
	bucketProfiles    = []byte("profiles")
	bucketPolicies    = []byte("policies")
	bucketBindings    = []byte("cluster_policy_bindings")
	bucketActions     = []byte("actions")
	bucketEvents      = []byte("events")
	bucketReceivers   = []byte("receivers")
	bucketCredentials = []byte("credentials")
	bucketCounters    = []byte("counters")
	bucketLocks       = []byte("locks")
)

var allBuckets = [][]byte{
	bucketClusters, bucketNodes, bucketProfiles, bucketPolicies,
	bucketBindings, bucketActions, bucketEvents, bucketReceivers,
	bucketCredentials, bucketCounters, bucketLocks,
}

// BoltStore implements Store using an embedded go.etcd.io/bbolt database,
// one bucket per entity type, adapted from the teacher's pkg/storage.BoltStore.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) the clusterd database under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "clusterd.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// DB exposes the underlying database so the lock package can run its
// own transactions against bucketLocks without the Store interface
// having to model lock semantics generically.
func (s *BoltStore) DB() *bolt.DB { return s.db }

// LocksBucket is the bucket name the lock package operates on.
func LocksBucket() []byte { return bucketLocks }

func (s *BoltStore) Close() error { return s.db.Close() }

func put(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), data)
}

func get(tx *bolt.Tx, bucket []byte, key string, v any) error {
	data := tx.Bucket(bucket).Get([]byte(key))
	if data == nil {
		return clustererr.Wrap(clustererr.KindNotFound, clustererr.ErrNotFound, "%s/%s", bucket, key)
	}
	return json.Unmarshal(data, v)
}

// --- Clusters ---

func (s *BoltStore) CreateCluster(c *domain.Cluster) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketClusters, c.ID, c) })
}

func (s *BoltStore) GetCluster(id string) (*domain.Cluster, error) {
	var c domain.Cluster
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketClusters, id, &c) })
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *BoltStore) ListClusters() ([]*domain.Cluster, error) {
	var out []*domain.Cluster
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketClusters).ForEach(func(k, v []byte) error {
			var c domain.Cluster
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			out = append(out, &c)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateCluster(c *domain.Cluster) error { return s.CreateCluster(c) }

func (s *BoltStore) DeleteCluster(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketClusters).Delete([]byte(id)) })
}

func (s *BoltStore) NextNodeIndex(clusterID string) (int, error) {
	var next int
	err := s.db.Update(func(tx *bolt.Tx) error {
		var c domain.Cluster
		if err := get(tx, bucketClusters, clusterID, &c); err != nil {
			return err
		}
		c.NextNodeIndex++
		next = c.NextNodeIndex
		return put(tx, bucketClusters, clusterID, &c)
	})
	return next, err
}

// --- Nodes ---

func (s *BoltStore) CreateNode(n *domain.Node) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketNodes, n.ID, n) })
}

func (s *BoltStore) GetNode(id string) (*domain.Node, error) {
	var n domain.Node
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketNodes, id, &n) })
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (s *BoltStore) ListNodes() ([]*domain.Node, error) {
	var out []*domain.Node
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketNodes).ForEach(func(k, v []byte) error {
			var n domain.Node
			if err := json.Unmarshal(v, &n); err != nil {
				return err
			}
			out = append(out, &n)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) ListNodesByCluster(clusterID string) ([]*domain.Node, error) {
	all, err := s.ListNodes()
	if err != nil {
		return nil, err
	}
	var out []*domain.Node
	for _, n := range all {
		if n.ClusterID == clusterID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *BoltStore) UpdateNode(n *domain.Node) error { return s.CreateNode(n) }

func (s *BoltStore) DeleteNode(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketNodes).Delete([]byte(id)) })
}

// --- Profiles ---

func (s *BoltStore) CreateProfile(p *domain.Profile) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketProfiles, p.ID, p) })
}

func (s *BoltStore) GetProfile(id string) (*domain.Profile, error) {
	var p domain.Profile
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketProfiles, id, &p) })
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListProfiles() ([]*domain.Profile, error) {
	var out []*domain.Profile
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketProfiles).ForEach(func(k, v []byte) error {
			var p domain.Profile
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateProfile(p *domain.Profile) error { return s.CreateProfile(p) }

func (s *BoltStore) DeleteProfile(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketProfiles).Delete([]byte(id)) })
}

// --- Policies ---

func (s *BoltStore) CreatePolicy(p *domain.Policy) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketPolicies, p.ID, p) })
}

func (s *BoltStore) GetPolicy(id string) (*domain.Policy, error) {
	var p domain.Policy
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketPolicies, id, &p) })
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *BoltStore) ListPolicies() ([]*domain.Policy, error) {
	var out []*domain.Policy
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPolicies).ForEach(func(k, v []byte) error {
			var p domain.Policy
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, &p)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdatePolicy(p *domain.Policy) error { return s.CreatePolicy(p) }

func (s *BoltStore) DeletePolicy(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketPolicies).Delete([]byte(id)) })
}

// --- ClusterPolicyBindings ---

func bindingKey(clusterID, policyID string) string { return clusterID + "/" + policyID }

func (s *BoltStore) CreateBinding(b *domain.ClusterPolicyBinding) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketBindings, bindingKey(b.ClusterID, b.PolicyID), b)
	})
}

func (s *BoltStore) GetBinding(clusterID, policyID string) (*domain.ClusterPolicyBinding, error) {
	var b domain.ClusterPolicyBinding
	err := s.db.View(func(tx *bolt.Tx) error {
		return get(tx, bucketBindings, bindingKey(clusterID, policyID), &b)
	})
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BoltStore) ListBindingsByCluster(clusterID string) ([]*domain.ClusterPolicyBinding, error) {
	var out []*domain.ClusterPolicyBinding
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBindings).ForEach(func(k, v []byte) error {
			var b domain.ClusterPolicyBinding
			if err := json.Unmarshal(v, &b); err != nil {
				return err
			}
			if b.ClusterID == clusterID {
				out = append(out, &b)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateBinding(b *domain.ClusterPolicyBinding) error { return s.CreateBinding(b) }

func (s *BoltStore) DeleteBinding(clusterID, policyID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBindings).Delete([]byte(bindingKey(clusterID, policyID)))
	})
}

// --- Actions ---

func (s *BoltStore) CreateAction(a *domain.Action) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketActions, a.ID, a) })
}

func (s *BoltStore) GetAction(id string) (*domain.Action, error) {
	var a domain.Action
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketActions, id, &a) })
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *BoltStore) ListActions() ([]*domain.Action, error) {
	var out []*domain.Action
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketActions).ForEach(func(k, v []byte) error {
			var a domain.Action
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			out = append(out, &a)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) UpdateAction(a *domain.Action) error { return s.CreateAction(a) }

// AddDependency is atomic: it reads both records, appends the edge to
// each side, and writes both back inside a single bbolt transaction so
// a crash never leaves a one-sided edge.
func (s *BoltStore) AddDependency(childID, parentID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		var child, parent domain.Action
		if err := get(tx, bucketActions, childID, &child); err != nil {
			return err
		}
		if err := get(tx, bucketActions, parentID, &parent); err != nil {
			return err
		}
		child.DependedBy = appendUnique(child.DependedBy, parentID)
		parent.DependsOn = appendUnique(parent.DependsOn, childID)
		if err := put(tx, bucketActions, childID, &child); err != nil {
			return err
		}
		return put(tx, bucketActions, parentID, &parent)
	})
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

func (s *BoltStore) ListDependents(actionID string) ([]*domain.Action, error) {
	a, err := s.GetAction(actionID)
	if err != nil {
		return nil, err
	}
	return s.resolveActions(a.DependedBy)
}

func (s *BoltStore) ListDependencies(actionID string) ([]*domain.Action, error) {
	a, err := s.GetAction(actionID)
	if err != nil {
		return nil, err
	}
	return s.resolveActions(a.DependsOn)
}

func (s *BoltStore) resolveActions(ids []string) ([]*domain.Action, error) {
	out := make([]*domain.Action, 0, len(ids))
	for _, id := range ids {
		a, err := s.GetAction(id)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *BoltStore) GetReady() ([]*domain.Action, error) {
	all, err := s.ListActions()
	if err != nil {
		return nil, err
	}
	var ready []*domain.Action
	for _, a := range all {
		if a.Status == domain.ActionReady {
			ready = append(ready, a)
		}
	}
	sort.SliceStable(ready, func(i, j int) bool {
		if ready[i].Priority != ready[j].Priority {
			return ready[i].Priority > ready[j].Priority
		}
		return ready[i].CreatedAt.Before(ready[j].CreatedAt)
	})
	return ready, nil
}

// --- Events ---

func (s *BoltStore) CreateEvent(e *domain.Event) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketEvents, e.ID, e) })
}

func (s *BoltStore) ListEvents(objType, objID string) ([]*domain.Event, error) {
	var out []*domain.Event
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEvents).ForEach(func(k, v []byte) error {
			var e domain.Event
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if (objType == "" || e.ObjType == objType) && (objID == "" || e.ObjID == objID) {
				out = append(out, &e)
			}
			return nil
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, err
}

// --- Receivers ---

func (s *BoltStore) CreateReceiver(r *domain.Receiver) error {
	return s.db.Update(func(tx *bolt.Tx) error { return put(tx, bucketReceivers, r.ID, r) })
}

func (s *BoltStore) GetReceiver(id string) (*domain.Receiver, error) {
	var r domain.Receiver
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketReceivers, id, &r) })
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *BoltStore) ListReceivers() ([]*domain.Receiver, error) {
	var out []*domain.Receiver
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketReceivers).ForEach(func(k, v []byte) error {
			var r domain.Receiver
			if err := json.Unmarshal(v, &r); err != nil {
				return err
			}
			out = append(out, &r)
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) DeleteReceiver(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error { return tx.Bucket(bucketReceivers).Delete([]byte(id)) })
}

// --- Credentials ---

func credKey(user, project string) string { return user + "/" + project }

func (s *BoltStore) PutCredential(c *domain.Credential) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return put(tx, bucketCredentials, credKey(c.User, c.Project), c)
	})
}

func (s *BoltStore) GetCredential(user, project string) (*domain.Credential, error) {
	var c domain.Credential
	err := s.db.View(func(tx *bolt.Tx) error { return get(tx, bucketCredentials, credKey(user, project), &c) })
	if err != nil {
		return nil, err
	}
	return &c, nil
}

var _ Store = (*BoltStore)(nil)
