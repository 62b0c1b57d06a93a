package domain

// LockScope distinguishes cluster-exclusive locks from node locks,
// which may have several concurrent owners (§4.1).
type LockScope string

const (
	ScopeCluster LockScope = "CLUSTER"
	ScopeNode    LockScope = "NODE"
)

// LockRecord is the persisted advisory lock keyed by (ResourceID, Scope).
// CLUSTER scope holds exactly one Owners entry; NODE scope may hold many.
type LockRecord struct {
	ResourceID string
	Scope      LockScope
	Owners     []string // owning action id(s)
}

// Holds reports whether actionID currently holds the lock.
func (l *LockRecord) Holds(actionID string) bool {
	for _, o := range l.Owners {
		if o == actionID {
			return true
		}
	}
	return false
}
