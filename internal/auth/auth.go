// Package auth carries the authenticated caller through a request context.
// Authentication itself happens in front of this service.
package auth

import (
	"context"
	"errors"

	"github.com/psicapp/riskwatch/internal/models"
)

// ErrUnauthenticated is returned when no current user can be resolved
var ErrUnauthenticated = errors.New("no authenticated user")

type contextKey int

const (
	userKey contextKey = iota
	systemKey
)

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by WithUser
func UserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(userKey).(*models.User)
	return user, ok && user != nil && user.ID != ""
}

// WithSystem marks ctx as a trusted in-process caller (scheduled jobs)
func WithSystem(ctx context.Context) context.Context {
	return context.WithValue(ctx, systemKey, true)
}

// IsSystem reports whether ctx was marked by WithSystem
func IsSystem(ctx context.Context) bool {
	v, _ := ctx.Value(systemKey).(bool)
	return v
}

// Resolver resolves the current user for a request
type Resolver interface {
	CurrentUser(ctx context.Context) (*models.User, error)
}

// ContextResolver resolves the user placed on the context by the HTTP layer
type ContextResolver struct{}

// Ensure ContextResolver implements Resolver
var _ Resolver = ContextResolver{}

// CurrentUser returns the context user or ErrUnauthenticated
func (ContextResolver) CurrentUser(ctx context.Context) (*models.User, error) {
	if user, ok := UserFromContext(ctx); ok {
		return user, nil
	}
	return nil, ErrUnauthenticated
}
