// Package action implements the Action Store contract (C2): creating
// actions, declaring dependency edges, validating status transitions
// against the normative table in spec §4.2, and surfacing READY
// actions to the Scheduler in priority order.
package action

import (
	"time"

	"github.com/cuemby/clusterd/pkg/clustererr"
	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/google/uuid"
)

// Store wraps a store.Store with Action Store semantics (C2).
type Store struct {
	repo store.Store
}

// New builds an action.Store over repo.
func New(repo store.Store) *Store { return &Store{repo: repo} }

// NewAction builds a fresh Action in INIT status, ready for Create.
func NewAction(targetID, actionName string, owner domain.Owner, cause string, timeout time.Duration) *domain.Action {
	now := time.Now()
	return &domain.Action{
		ID:         uuid.New().String(),
		TargetID:   targetID,
		ActionName: actionName,
		Inputs:     map[string]any{},
		Outputs:    map[string]any{},
		Data:       map[string]any{},
		Status:     domain.ActionInit,
		Cause:      cause,
		Owner:      owner,
		Timeout:    timeout,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Create persists a into the Action Store.
func (s *Store) Create(a *domain.Action) error {
	return s.repo.CreateAction(a)
}

// Get returns the action by id.
func (s *Store) Get(id string) (*domain.Action, error) { return s.repo.GetAction(id) }

// MarkReady is the shortcut used by schedulers/runtimes after creating
// a child action that has no dependencies of its own (§4.2).
func (s *Store) MarkReady(id string) error {
	return s.UpdateStatus(id, domain.ActionReady, "")
}

// AddDependency declares that parent waits on child (§4.2). The child
// becomes READY immediately if it has no dependencies of its own (it
// is a leaf in the DAG); the parent moves to WAITING since it now has
// an outstanding dependency.
func (s *Store) AddDependency(childID, parentID string) error {
	if err := s.repo.AddDependency(childID, parentID); err != nil {
		return clustererr.Wrap(clustererr.KindInternal, err, "add dependency %s -> %s", childID, parentID)
	}
	child, err := s.repo.GetAction(childID)
	if err != nil {
		return err
	}
	if child.Status == domain.ActionInit && len(child.DependsOn) == 0 {
		if err := s.UpdateStatus(childID, domain.ActionReady, ""); err != nil {
			return err
		}
	}
	parent, err := s.repo.GetAction(parentID)
	if err != nil {
		return err
	}
	if parent.Status == domain.ActionInit {
		if err := s.UpdateStatus(parentID, domain.ActionWaiting, ""); err != nil {
			return err
		}
	}
	return nil
}

// UpdateStatus validates from -> to against the table in §4.2 and
// persists atomically. Outputs are frozen once a terminal status is
// reached (§8 invariant 5): callers must set Outputs before calling
// UpdateStatus with a terminal target.
func (s *Store) UpdateStatus(id string, to domain.ActionStatus, reason string) error {
	a, err := s.repo.GetAction(id)
	if err != nil {
		return err
	}
	if a.Status == to {
		return nil // idempotent re-application, e.g. re-submitting a terminal action (§8)
	}
	if !domain.ValidTransition(a.Status, to) {
		return &domain.InvalidTransitionError{From: a.Status, To: to}
	}
	a.Status = to
	if reason != "" {
		a.ResultReason = reason
	}
	a.UpdatedAt = time.Now()
	switch to {
	case domain.ActionRunning:
		if a.StartedAt.IsZero() {
			a.StartedAt = time.Now()
		}
	case domain.ActionSucceeded, domain.ActionFailed, domain.ActionCancelled:
		a.EndedAt = time.Now()
	}
	return s.repo.UpdateAction(a)
}

// Update persists an already-mutated action verbatim (used by runtimes
// to set Inputs/Outputs/Data alongside a status change in one write).
func (s *Store) Update(a *domain.Action) error { return s.repo.UpdateAction(a) }

// GetReady returns actions in READY status ordered by
// (priority desc, creation-time asc) per §4.2.
func (s *Store) GetReady() ([]*domain.Action, error) { return s.repo.GetReady() }

// ListDependents / ListDependencies expose the dependency graph.
func (s *Store) ListDependents(id string) ([]*domain.Action, error) { return s.repo.ListDependents(id) }
func (s *Store) ListDependencies(id string) ([]*domain.Action, error) {
	return s.repo.ListDependencies(id)
}

// Cancel sets the cooperative cancel flag (§5); the worker executing
// the action observes it at its next suspension point.
func (s *Store) Cancel(id string) error {
	a, err := s.repo.GetAction(id)
	if err != nil {
		return err
	}
	if a.Status.IsTerminal() {
		return nil
	}
	a.Cancelled = true
	return s.repo.UpdateAction(a)
}

// IsCancelled reports the cooperative cancel flag's current value.
func (s *Store) IsCancelled(id string) (bool, error) {
	a, err := s.repo.GetAction(id)
	if err != nil {
		return false, err
	}
	return a.Cancelled, nil
}
