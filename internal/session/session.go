// Package session provides the process-wide session registry.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
)

// Common registry errors.
var (
	// ErrSessionNotFound indicates that the session does not exist or
	// has expired.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired indicates that the session exists but is past
	// its expiry.
	ErrSessionExpired = errors.New("session expired")
)

// Roles known to the access controller.
const (
	RoleAdmin      = "admin"
	RoleReceiver   = "receiver"
	RoleCustodian  = "custodian"
	RoleWhistleblower = "whistleblower"
)

// Session is an authenticated caller's session. A session belongs to
// exactly one tenant and is never mutated after creation.
type Session struct {
	// ID is the opaque session token.
	ID string `json:"id"`

	// TenantID is the owning tenant.
	TenantID int64 `json:"tenant_id"`

	// UserID identifies the user within the tenant.
	UserID string `json:"user_id"`

	// Role is the user's role.
	Role string `json:"role"`

	// CanEditGeneralSettings is the cached permission flag from the
	// user record at login time.
	CanEditGeneralSettings bool `json:"can_edit_general_settings"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is when the session expires.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}

// New creates a session with a fresh random ID.
func New(tid int64, userID, role string, ttl time.Duration) *Session {
	now := time.Now()
	return &Session{
		ID:        uuid.NewString(),
		TenantID:  tid,
		UserID:    userID,
		Role:      role,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// NewAPISession creates the node-level singleton session backing the
// admin API-token channel. It belongs to the root tenant and never
// expires.
func NewAPISession() *Session {
	return &Session{
		ID:        uuid.NewString(),
		TenantID:  config.RootTenantID,
		UserID:    "api",
		Role:      RoleAdmin,
		CreatedAt: time.Now(),
	}
}

// Registry stores active sessions. Sessions are created on login
// (outside this layer), looked up on every request, and removed on
// logout or expiry.
type Registry interface {
	// Get returns the session for the given ID.
	// Returns ErrSessionNotFound for unknown or expired sessions.
	Get(ctx context.Context, id string) (*Session, error)

	// Put stores a session for its remaining lifetime.
	Put(ctx context.Context, s *Session) error

	// Delete removes a session. Deleting an absent session is not an
	// error.
	Delete(ctx context.Context, id string) error

	// Sweep removes expired sessions and returns how many were
	// evicted. Intended for the external periodic scheduler.
	Sweep(ctx context.Context) (int, error)

	// Close releases backend resources.
	Close() error
}

// NewRegistry creates a registry from configuration.
func NewRegistry(cfg config.SessionConfig, logger observability.Logger) (Registry, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}

	switch cfg.Backend {
	case "memory", "":
		return newMemoryRegistry(logger), nil
	case "redis":
		return newRedisRegistry(cfg.Redis, logger)
	default:
		return nil, errors.New("unknown session backend: " + cfg.Backend)
	}
}
