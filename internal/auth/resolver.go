// Package auth resolves caller identity from request credentials.
package auth

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/session"
)

// Credential channels, in resolution order.
const (
	ChannelAPIToken = "api_token"
	ChannelSession  = "session"
)

// Request headers and arguments carrying credentials.
const (
	HeaderSession  = "X-Session"
	HeaderAPIToken = "X-Api-Token"
	QueryAPIToken  = "api-token"
)

// Resolver derives the caller's identity from request headers and
// arguments. Resolution is best effort: a missing or wrong credential
// yields no identity, never an error, so callers cannot distinguish
// "wrong token" from "no token".
type Resolver struct {
	sessions   session.Registry
	tokenLen   int
	apiSession *session.Session
	logger     observability.Logger
	metrics    *Metrics
}

// ResolverOption is a functional option for the resolver.
type ResolverOption func(*Resolver)

// WithResolverLogger sets the logger.
func WithResolverLogger(logger observability.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithResolverMetrics sets the metrics.
func WithResolverMetrics(metrics *Metrics) ResolverOption {
	return func(r *Resolver) {
		r.metrics = metrics
	}
}

// WithAPISession sets the singleton node API session returned for a
// valid admin API token. Without one the API-token channel is disabled.
func WithAPISession(s *session.Session) ResolverOption {
	return func(r *Resolver) {
		r.apiSession = s
	}
}

// NewResolver creates an identity resolver.
func NewResolver(sessions session.Registry, tokenLen int, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		sessions: sessions,
		tokenLen: tokenLen,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(r)
	}

	if r.metrics == nil {
		r.metrics = NewMetrics("tenantgate")
	}

	return r
}

// Resolve returns the caller's session, or nil when no credential
// channel yields an identity. The API-token channel is consulted first,
// then the session header. A non-nil error means a registry backend
// failure, not an authentication failure.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request, tid int64, tc *config.TenantConfig) (*session.Session, error) {
	start := time.Now()

	if s := r.resolveAPIToken(req, tid, tc); s != nil {
		r.metrics.RecordResolution(ChannelAPIToken, "success", time.Since(start))
		return s, nil
	}

	s, err := r.resolveSessionHeader(ctx, req, tid)
	if err != nil {
		return nil, err
	}
	if s != nil {
		r.metrics.RecordResolution(ChannelSession, "success", time.Since(start))
		return s, nil
	}

	r.metrics.RecordResolution("none", "anonymous", time.Since(start))
	return nil, nil
}

// resolveAPIToken implements the API-token channel. It is honored only
// for the root tenant, only when a node API session exists, and only
// when the tenant carries an admin token digest. Every rejection is
// silent.
func (r *Resolver) resolveAPIToken(req *http.Request, tid int64, tc *config.TenantConfig) *session.Session {
	token := req.URL.Query().Get(QueryAPIToken)
	if token == "" {
		token = req.Header.Get(HeaderAPIToken)
	}

	if tid != config.RootTenantID ||
		len(token) != r.tokenLen ||
		r.apiSession == nil ||
		tc == nil || tc.AdminAPITokenDigest == "" {
		return nil
	}

	if !SecretsEqual(DigestToken([]byte(token)), []byte(tc.AdminAPITokenDigest)) {
		r.metrics.RecordFailure(ChannelAPIToken, "digest_mismatch")
		return nil
	}

	return r.apiSession
}

// resolveSessionHeader implements the session-header channel. A session
// owned by a different tenant is treated as not found; this is the
// tenant-isolation boundary.
func (r *Resolver) resolveSessionHeader(ctx context.Context, req *http.Request, tid int64) (*session.Session, error) {
	id := req.Header.Get(HeaderSession)
	if id == "" {
		return nil, nil
	}

	s, err := r.sessions.Get(ctx, id)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			r.metrics.RecordFailure(ChannelSession, "not_found")
			return nil, nil
		}
		return nil, err
	}

	if s.TenantID != tid {
		r.logger.Debug("session rejected for tenant mismatch",
			observability.Int64("session_tenant", s.TenantID),
			observability.Int64("request_tenant", tid),
		)
		r.metrics.RecordFailure(ChannelSession, "tenant_mismatch")
		return nil, nil
	}

	return s, nil
}
