// Package authctx carries the immutable per-call identity value
// threaded through every repository call and driver construction
// (spec §9: "Design ctx as an immutable value carrying {user, project,
// domain, roles, auth-url, trust-id, is-admin}"). It is never cached
// across tenants.
package authctx

import "context"

type ctxKey struct{}

// Context is the immutable per-call identity and credential bundle.
type Context struct {
	User    string
	Project string
	Domain  string
	Roles   []string
	AuthURL string
	TrustID string
	IsAdmin bool
}

// HasRole reports whether the caller carries the named role.
func (c Context) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// With attaches c to ctx for downstream repository/driver calls.
func With(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// From extracts the Context previously attached with With. The second
// return is false if none was attached.
func From(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(ctxKey{}).(Context)
	return c, ok
}
