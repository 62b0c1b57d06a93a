// Package event implements the persisted event log (SPEC_FULL.md §3):
// every status transition of a Cluster, Node, or Action appends an
// Event, and an in-process Broker (adapted from the teacher's
// pkg/events package) lets operators subscribe to them live on top of
// the persisted history.
package event

import (
	"sync"
	"time"

	"github.com/cuemby/clusterd/pkg/domain"
	"github.com/cuemby/clusterd/pkg/store"
	"github.com/google/uuid"
)

// Subscriber is a channel that receives events as they are recorded.
type Subscriber chan *domain.Event

// Recorder persists events and fans them out to live subscribers.
type Recorder struct {
	repo store.Store

	mu          sync.RWMutex
	subscribers map[Subscriber]bool
}

// NewRecorder builds a Recorder over repo.
func NewRecorder(repo store.Store) *Recorder {
	return &Recorder{repo: repo, subscribers: make(map[Subscriber]bool)}
}

// Record persists a new event for (objType, objID) and broadcasts it
// to any live subscribers. Subscriber delivery is best-effort: a full
// subscriber buffer drops the event rather than blocking the caller.
func (r *Recorder) Record(level domain.EventLevel, objType, objID, objName, action, status, reason string) (*domain.Event, error) {
	e := &domain.Event{
		ID:        uuid.New().String(),
		Level:     level,
		ObjType:   objType,
		ObjID:     objID,
		ObjName:   objName,
		Action:    action,
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now(),
	}
	if err := r.repo.CreateEvent(e); err != nil {
		return nil, err
	}
	r.broadcast(e)
	return e, nil
}

// List returns the persisted event history for (objType, objID).
func (r *Recorder) List(objType, objID string) ([]*domain.Event, error) {
	return r.repo.ListEvents(objType, objID)
}

// Subscribe returns a channel fed with every event recorded from now on.
func (r *Recorder) Subscribe() Subscriber {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub := make(Subscriber, 64)
	r.subscribers[sub] = true
	return sub
}

// Unsubscribe removes and closes sub.
func (r *Recorder) Unsubscribe(sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subscribers[sub] {
		delete(r.subscribers, sub)
		close(sub)
	}
}

func (r *Recorder) broadcast(e *domain.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for sub := range r.subscribers {
		select {
		case sub <- e:
		default:
		}
	}
}
