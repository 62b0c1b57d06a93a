package domain

// Credential is an opaque per-(user,project) delegated trust bundle.
// The core only ever extracts TrustID from it (§6, §9 Open Question:
// the source uses both "trusts" and "trust_id" inconsistently; this
// module standardizes on TrustID throughout).
type Credential struct {
	User    string
	Project string
	TrustID string
}
