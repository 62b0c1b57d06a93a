// Package domain defines the entities clusterd operates on: Cluster,
// Node, Profile, Policy, ClusterPolicyBinding, Action, Event, Receiver
// and Credential, along with their status machines and invariants.
package domain
