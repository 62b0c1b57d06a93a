package domain

import "time"

// EventLevel mirrors standard syslog-ish severities used by senlin's
// event log.
type EventLevel string

const (
	EventInfo    EventLevel = "INFO"
	EventWarning EventLevel = "WARNING"
	EventError   EventLevel = "ERROR"
)

// Event is an immutable, persisted record of a status transition on a
// Cluster, Node or Action (SPEC_FULL.md §3, supplemented feature).
type Event struct {
	ID        string
	Level     EventLevel
	ObjType   string // "cluster" | "node" | "action"
	ObjID     string
	ObjName   string
	Action    string
	Status    string
	Reason    string
	Timestamp time.Time
}
