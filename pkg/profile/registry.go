package profile

// NewDefaultRegistry builds a Registry with the two built-in profile
// kinds (compute and loadbalancer-member) registered.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ComputeKey, Compute{})
	r.Register(LBMemberKey, LBMember{})
	return r
}
