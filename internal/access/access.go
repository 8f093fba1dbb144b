// Package access resolves who is calling and whether they may proceed.
package access

import (
	"context"

	"sprintboard/internal/apperr"
	"sprintboard/internal/models"
)

// Principal is the authenticated caller.
type Principal struct {
	ID   string
	Role models.Role
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (p Principal) IsAdmin() bool {
	return p.Role == models.RoleAdmin
}

// RequireAuth succeeds for any resolved principal.
func RequireAuth(p *Principal) (Principal, error) {
	if p == nil || p.ID == "" {
		return Principal{}, apperr.Unauthenticated()
	}
	return *p, nil
}

// RequireAdmin succeeds only for an ADMIN principal.
func RequireAdmin(p *Principal) (Principal, error) {
	principal, err := RequireAuth(p)
	if err != nil {
		return Principal{}, err
	}
	if !principal.IsAdmin() {
		return Principal{}, apperr.Forbidden("")
	}
	return principal, nil
}

type contextKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext extracts the principal stored by WithPrincipal.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok {
		return nil, false
	}
	return &p, true
}
