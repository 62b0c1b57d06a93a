package domain

import "time"

// ReceiverType enumerates the trigger kinds a Receiver may implement.
// Only "webhook" is implemented by this core; the type is kept open
// for future trigger kinds (cron, message-bus) per senlin's receiver model.
type ReceiverType string

const (
	ReceiverWebhook ReceiverType = "webhook"
)

// Receiver is an external trigger that invokes a named cluster action
// with pre-bound credentials and parameters (GLOSSARY).
type Receiver struct {
	ID         string
	Name       string
	Type       ReceiverType
	ClusterID  string
	ActionName string
	Params     map[string]any
	Owner      Owner
	Channel    map[string]string // e.g. {"alarm_url": "..."} handed back to the caller
	CreatedAt  time.Time
}
