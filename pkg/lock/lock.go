// Package lock implements the scope-aware advisory Lock Manager (C1):
// CLUSTER scope is exclusive with one live owner; NODE scope allows
// multiple concurrent owners. Locks are persisted so a process restart
// does not lose ownership, and stale locks (owner action terminal) are
// reclaimed lazily by the next acquirer (§4.1).
package lock

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/log"
	"github.com/cuemby/clusterd/pkg/store"
	bolt "go.etcd.io/bbolt"
)

func marshal(v any) ([]byte, error)         { return json.Marshal(v) }
func unmarshal(data []byte, v any) error    { return json.Unmarshal(data, v) }

// ActionStatusLookup is the narrow slice of Store the lock manager
// needs to decide whether a recorded owner is still alive.
type ActionStatusLookup interface {
	GetAction(id string) (*domain.Action, error)
}

// Canceller notifies a running action's cooperative cancel flag. The
// scheduler implements this; Manager.Acquire(forced=true) calls it
// when stealing a lock out from under its current owner (§4.1).
type Canceller interface {
	Cancel(actionID string)
}

// Manager is the Lock Manager (C1).
type Manager struct {
	db        *bolt.DB
	bucket    []byte
	actions   ActionStatusLookup
	canceller Canceller
}

// New builds a Manager backed by bs's database and actions for
// orphan-owner detection. canceller may be nil until the scheduler is
// wired up (forced steal then simply cannot notify the prior owner).
func New(bs BoltDB, actions ActionStatusLookup, canceller Canceller) *Manager {
	return &Manager{db: bs.DB(), bucket: store.LocksBucket(), actions: actions, canceller: canceller}
}

// BoltDB is the narrow slice of *store.BoltStore the lock manager needs.
type BoltDB interface {
	DB() *bolt.DB
}

func key(resourceID string, scope domain.LockScope) string {
	return fmt.Sprintf("%s/%s", scope, resourceID)
}

func (m *Manager) read(tx *bolt.Tx, resourceID string, scope domain.LockScope) (*domain.LockRecord, error) {
	rec := &domain.LockRecord{ResourceID: resourceID, Scope: scope}
	data := tx.Bucket(m.bucket).Get([]byte(key(resourceID, scope)))
	if data == nil {
		return rec, nil
	}
	if err := unmarshal(data, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (m *Manager) write(tx *bolt.Tx, rec *domain.LockRecord) error {
	data, err := marshal(rec)
	if err != nil {
		return err
	}
	return tx.Bucket(m.bucket).Put([]byte(key(rec.ResourceID, rec.Scope)), data)
}

// isLive reports whether actionID is still a non-terminal action and
// therefore a legitimate lock owner. A lookup failure is treated as
// "not live" so a dangling reference never blocks forward progress.
func (m *Manager) isLive(actionID string) bool {
	a, err := m.actions.GetAction(actionID)
	if err != nil {
		return false
	}
	return !a.Status.IsTerminal()
}

// Acquire attempts to acquire resourceID at scope for requester.
//
// CLUSTER scope: exclusive. If held by a live owner and forced is
// false, returns ("", clustererr.ErrLockBusy). If forced is true, the
// current owner is stolen (notified via Canceller) and requester
// becomes the sole owner.
//
// NODE scope: multiple owners may hold concurrently; requester is
// simply added to Owners (idempotent) unless forced-steal semantics
// are requested, which clears all other owners.
func (m *Manager) Acquire(resourceID string, scope domain.LockScope, requester string, forced bool) (string, error) {
	var stolenFrom string
	err := m.db.Update(func(tx *bolt.Tx) error {
		rec, err := m.read(tx, resourceID, scope)
		if err != nil {
			return err
		}
		rec.Owners = reapStale(rec.Owners, m.isLive)

		switch scope {
		case domain.ScopeCluster:
			if len(rec.Owners) > 0 && rec.Owners[0] != requester {
				if !forced {
					return clustererr.ErrLockBusy
				}
				stolenFrom = rec.Owners[0]
			}
			rec.Owners = []string{requester}
		case domain.ScopeNode:
			if forced {
				stolenFrom = firstOther(rec.Owners, requester)
				rec.Owners = []string{requester}
			} else {
				rec.Owners = appendUnique(rec.Owners, requester)
			}
		default:
			return fmt.Errorf("unknown lock scope %q", scope)
		}
		return m.write(tx, rec)
	})
	if err != nil {
		if clustererr.Is(err, clustererr.KindLockBusy) {
			return "", err
		}
		return "", clustererr.Wrap(clustererr.KindTransient, err, "acquire lock %s/%s", scope, resourceID)
	}
	if stolenFrom != "" && m.canceller != nil {
		log.WithComponent("lock").Info().
			Str("resource_id", resourceID).
			Str("stolen_from", stolenFrom).
			Str("new_owner", requester).
			Msg("lock stolen")
		m.canceller.Cancel(stolenFrom)
	}
	return requester, nil
}

// Release drops requester's ownership of resourceID at scope. It is a
// no-op if requester does not currently hold the lock.
func (m *Manager) Release(resourceID string, scope domain.LockScope, requester string) error {
	return m.db.Update(func(tx *bolt.Tx) error {
		rec, err := m.read(tx, resourceID, scope)
		if err != nil {
			return err
		}
		rec.Owners = removeOwner(rec.Owners, requester)
		return m.write(tx, rec)
	})
}

// Steal forcibly transfers resourceID's lock at scope to newOwner,
// notifying the prior owner (if any) via Canceller.
func (m *Manager) Steal(resourceID string, scope domain.LockScope, newOwner string) error {
	_, err := m.Acquire(resourceID, scope, newOwner, true)
	return err
}

// IsHeld reports whether any live owner currently holds resourceID at scope.
func (m *Manager) IsHeld(resourceID string, scope domain.LockScope) (bool, error) {
	var held bool
	err := m.db.View(func(tx *bolt.Tx) error {
		rec, err := m.read(tx, resourceID, scope)
		if err != nil {
			return err
		}
		for _, o := range rec.Owners {
			if m.isLive(o) {
				held = true
				return nil
			}
		}
		return nil
	})
	return held, err
}

func reapStale(owners []string, isLive func(string) bool) []string {
	out := owners[:0:0]
	for _, o := range owners {
		if isLive(o) {
			out = append(out, o)
		}
	}
	return out
}

func firstOther(owners []string, except string) string {
	for _, o := range owners {
		if o != except {
			return o
		}
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, e := range list {
		if e == v {
			return list
		}
	}
	return append(list, v)
}

func removeOwner(list []string, v string) []string {
	out := list[:0:0]
	for _, e := range list {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}
