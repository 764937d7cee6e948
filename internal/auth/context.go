package auth

import "context"

type securityContextKey struct{}

// SecurityContext is the per-request record of a successful authentication.
type SecurityContext struct {
	Identity Identity
	Claims   *Claims
	Token    string
}

// WithSecurityContext stores sc in ctx. A context that already carries a security context is
// returned unchanged, so a second authentication pass never replaces the first.
func WithSecurityContext(ctx context.Context, sc SecurityContext) context.Context {
	if _, ok := SecurityContextFrom(ctx); ok {
		return ctx
	}
	return context.WithValue(ctx, securityContextKey{}, sc)
}

// SecurityContextFrom returns the security context stored by an authentication gate.
func SecurityContextFrom(ctx context.Context) (SecurityContext, bool) {
	if ctx == nil {
		return SecurityContext{}, false
	}
	sc, ok := ctx.Value(securityContextKey{}).(SecurityContext)
	return sc, ok
}

// IdentityFrom returns the authenticated identity or ErrContextNotPopulated.
func IdentityFrom(ctx context.Context) (Identity, error) {
	sc, ok := SecurityContextFrom(ctx)
	if !ok || sc.Identity.SubjectID == "" {
		return Identity{}, ErrContextNotPopulated
	}
	return sc.Identity, nil
}
