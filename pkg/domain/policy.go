package domain

import "time"

// Phase is the checkpoint moment at which the Policy Engine invokes a
// policy hook, flanking the cluster action body (§4.6, GLOSSARY).
type Phase string

const (
	PhaseBefore Phase = "BEFORE"
	PhaseAfter  Phase = "AFTER"
)

// Trigger pairs a Phase with the cluster action name it fires on.
type Trigger struct {
	Phase      Phase
	ActionName string
}

// Policy is a typed checker that may be attached to clusters.
type Policy struct {
	ID        string
	Name      string
	Type      string
	Version   string
	Spec      map[string]any
	Triggers  []Trigger
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Matches reports whether the policy declared a trigger for (phase, action).
func (p *Policy) Matches(phase Phase, actionName string) bool {
	for _, t := range p.Triggers {
		if t.Phase == phase && t.ActionName == actionName {
			return true
		}
	}
	return false
}

// ClusterPolicyBinding is the (cluster, policy) relation of §3, unique
// per pair, destroyed before either side may be deleted.
type ClusterPolicyBinding struct {
	ClusterID string
	PolicyID  string
	Priority  int // 0-100, higher runs first
	Level     int // 0-100, policy-defined severity, not interpreted by the engine
	Cooldown  time.Duration
	Enabled   bool
	Data      map[string]any // policy-private state
	AttachedAt time.Time
	UpdatedAt  time.Time
	LastFiredAt time.Time // zero value ⇔ never fired; used for cooldown suppression
}
