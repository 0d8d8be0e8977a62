// Package authz enforces role-based access on resolved identities.
package authz

import (
	"context"

	"github.com/vyrodovalexey/tenantgate/internal/auth"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/session"
)

// Special role values accepted in route allow-lists.
const (
	// RoleAny admits every caller, authenticated or not.
	RoleAny = "*"

	// RoleUnauthenticated admits only callers with no identity, to keep
	// authenticated callers off login-only routes.
	RoleUnauthenticated = "unauthenticated"
)

// User is the subset of a user record the capability check needs.
type User struct {
	ID                     string
	Role                   string
	CanEditGeneralSettings bool
}

// UserDirectory fetches user records. It is an external collaborator
// backed by the persistent store.
type UserDirectory interface {
	GetUser(ctx context.Context, tid int64, userID string) (*User, error)
}

// Gate evaluates role allow-lists against resolved identities.
type Gate struct {
	users  UserDirectory
	logger observability.Logger
}

// GateOption is a functional option for the gate.
type GateOption func(*Gate)

// WithGateLogger sets the logger.
func WithGateLogger(logger observability.Logger) GateOption {
	return func(g *Gate) {
		g.logger = logger
	}
}

// WithUserDirectory sets the user directory used by capability checks.
func WithUserDirectory(users UserDirectory) GateOption {
	return func(g *Gate) {
		g.users = users
	}
}

// NewGate creates an access gate.
func NewGate(opts ...GateOption) *Gate {
	g := &Gate{
		logger: observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Check applies the route's role allow-list to the resolved identity.
// A nil identity means no credential channel matched.
func (g *Gate) Check(identity *session.Session, roles []string) error {
	for _, role := range roles {
		if role == RoleAny {
			return nil
		}
	}

	for _, role := range roles {
		if role == RoleUnauthenticated {
			if identity != nil {
				return auth.ErrInvalidAuthentication
			}
			return nil
		}
	}

	if identity == nil {
		return auth.ErrNotAuthenticated
	}

	for _, role := range roles {
		if identity.Role == role {
			g.logger.Debug("authentication ok",
				observability.String("role", identity.Role),
			)
			return nil
		}
	}

	return auth.ErrInvalidAuthentication
}

// CanEditGeneralSettings checks whether the identity may edit general
// settings. Admins always may; any other authenticated identity needs
// the explicit permission flag on its user record.
func (g *Gate) CanEditGeneralSettings(ctx context.Context, identity *session.Session) error {
	if identity == nil {
		return auth.ErrNotAuthenticated
	}

	if identity.Role == session.RoleAdmin {
		return nil
	}

	if g.users == nil {
		return auth.ErrInvalidAuthentication
	}

	user, err := g.users.GetUser(ctx, identity.TenantID, identity.UserID)
	if err != nil {
		return err
	}

	if user != nil && user.CanEditGeneralSettings {
		return nil
	}

	return auth.ErrInvalidAuthentication
}
