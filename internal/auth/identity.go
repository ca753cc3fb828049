// Package auth resolves who is making a request and what they may do.
package auth

import (
	"context"

	"cafelist/internal/apperrors"
)

// Identity is the request-scoped answer to "who is asking". The zero
// value is anonymous.
type Identity struct {
	userID        uint
	authenticated bool
}

// Anonymous returns the identity of a visitor without a session.
func Anonymous() Identity {
	return Identity{}
}

// Authenticated returns the identity of a logged-in user.
func Authenticated(userID uint) Identity {
	return Identity{userID: userID, authenticated: true}
}

// UserID returns the user id and whether the identity is authenticated.
func (i Identity) UserID() (uint, bool) {
	return i.userID, i.authenticated
}

func (i Identity) IsAuthenticated() bool {
	return i.authenticated
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}

// Authorizer decides whether an identity may perform admin-only actions.
type Authorizer interface {
	RequireAdmin(id Identity) error
}

// AdminOnly grants admin rights to exactly one user id.
type AdminOnly struct {
	AdminID uint
}

// RequireAdmin returns a forbidden error unless id is the admin.
func (a AdminOnly) RequireAdmin(id Identity) error {
	if uid, ok := id.UserID(); ok && uid == a.AdminID {
		return nil
	}
	return apperrors.NewForbiddenError("You are not allowed to do that.")
}
