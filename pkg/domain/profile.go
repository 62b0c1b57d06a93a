package domain

import "time"

// Profile is an opaque, templated description of how to create a node.
// It is immutable once stored except for Name and Metadata (§3).
type Profile struct {
	ID        string
	Name      string
	Type      string // e.g. "compute", "loadbalancer-member"
	Version   string
	Spec      map[string]any // templated create spec, interpreted by the ProfileKind
	Context   map[string]any // credential-scoped parameters
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key identifies a ProfileKind/PolicyKind implementation by (type, version),
// the dynamic-dispatch key from §9's plugin registry design.
type Key struct {
	Type    string
	Version string
}

func (k Key) String() string { return k.Type + "-" + k.Version }
