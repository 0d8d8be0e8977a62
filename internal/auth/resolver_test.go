package auth

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/session"
)

const testTokenLen = 32

func testToken() string {
	return strings.Repeat("t", testTokenLen)
}

func newTestResolver(t *testing.T, opts ...ResolverOption) (*Resolver, session.Registry) {
	t.Helper()

	reg, err := session.NewRegistry(config.SessionConfig{Backend: "memory"}, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	opts = append(opts, WithResolverMetrics(
		NewMetricsWithRegisterer("test", prometheus.NewRegistry()),
	))
	return NewResolver(reg, testTokenLen, opts...), reg
}

func rootTenant(digest string) *config.TenantConfig {
	return &config.TenantConfig{ID: config.RootTenantID, AdminAPITokenDigest: digest}
}

func TestResolveNoCredentials(t *testing.T) {
	r, _ := newTestResolver(t)

	req := httptest.NewRequest("GET", "/api/node", nil)
	s, err := r.Resolve(context.Background(), req, config.RootTenantID, rootTenant(""))
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestResolveAPIToken(t *testing.T) {
	apiSession := &session.Session{
		ID:       "api",
		TenantID: config.RootTenantID,
		Role:     session.RoleAdmin,
	}
	digest := string(DigestToken([]byte(testToken())))

	tests := []struct {
		name       string
		tid        int64
		tc         *config.TenantConfig
		apiSession *session.Session
		token      string
		header     bool
		want       bool
	}{
		{
			name:       "valid token via query",
			tid:        config.RootTenantID,
			tc:         rootTenant(digest),
			apiSession: apiSession,
			token:      testToken(),
			want:       true,
		},
		{
			name:       "valid token via header",
			tid:        config.RootTenantID,
			tc:         rootTenant(digest),
			apiSession: apiSession,
			token:      testToken(),
			header:     true,
			want:       true,
		},
		{
			name:       "non-root tenant rejected",
			tid:        2,
			tc:         &config.TenantConfig{ID: 2, AdminAPITokenDigest: digest},
			apiSession: apiSession,
			token:      testToken(),
			want:       false,
		},
		{
			name:       "wrong length rejected",
			tid:        config.RootTenantID,
			tc:         rootTenant(digest),
			apiSession: apiSession,
			token:      "short",
			want:       false,
		},
		{
			name:       "no api session configured",
			tid:        config.RootTenantID,
			tc:         rootTenant(digest),
			apiSession: nil,
			token:      testToken(),
			want:       false,
		},
		{
			name:       "no digest configured",
			tid:        config.RootTenantID,
			tc:         rootTenant(""),
			apiSession: apiSession,
			token:      testToken(),
			want:       false,
		},
		{
			name:       "wrong token rejected",
			tid:        config.RootTenantID,
			tc:         rootTenant(digest),
			apiSession: apiSession,
			token:      strings.Repeat("x", testTokenLen),
			want:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []ResolverOption
			if tt.apiSession != nil {
				opts = append(opts, WithAPISession(tt.apiSession))
			}
			r, _ := newTestResolver(t, opts...)

			var req = httptest.NewRequest("GET", "/api/node", nil)
			if tt.header {
				req.Header.Set(HeaderAPIToken, tt.token)
			} else {
				req = httptest.NewRequest("GET", "/api/node?api-token="+tt.token, nil)
			}

			s, err := r.Resolve(context.Background(), req, tt.tid, tt.tc)
			require.NoError(t, err)

			if tt.want {
				require.NotNil(t, s)
				assert.Equal(t, "api", s.ID)
			} else {
				assert.Nil(t, s)
			}
		})
	}
}

func TestResolveSessionHeader(t *testing.T) {
	r, reg := newTestResolver(t)
	ctx := context.Background()

	s := session.New(2, "user-1", session.RoleReceiver, time.Minute)
	require.NoError(t, reg.Put(ctx, s))

	req := httptest.NewRequest("GET", "/api/user", nil)
	req.Header.Set(HeaderSession, s.ID)

	got, err := r.Resolve(ctx, req, 2, &config.TenantConfig{ID: 2})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
}

func TestResolveSessionTenantIsolation(t *testing.T) {
	r, reg := newTestResolver(t)
	ctx := context.Background()

	// Session belongs to tenant 2; request arrives for tenant 3.
	s := session.New(2, "user-1", session.RoleReceiver, time.Minute)
	require.NoError(t, reg.Put(ctx, s))

	req := httptest.NewRequest("GET", "/api/user", nil)
	req.Header.Set(HeaderSession, s.ID)

	got, err := r.Resolve(ctx, req, 3, &config.TenantConfig{ID: 3})
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveUnknownSession(t *testing.T) {
	r, _ := newTestResolver(t)

	req := httptest.NewRequest("GET", "/api/user", nil)
	req.Header.Set(HeaderSession, "no-such-session")

	got, err := r.Resolve(context.Background(), req, 1, rootTenant(""))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestResolveAPITokenBeforeSessionHeader(t *testing.T) {
	apiSession := &session.Session{ID: "api", TenantID: config.RootTenantID, Role: session.RoleAdmin}
	digest := string(DigestToken([]byte(testToken())))

	r, reg := newTestResolver(t, WithAPISession(apiSession))
	ctx := context.Background()

	userSession := session.New(config.RootTenantID, "user-1", session.RoleReceiver, time.Minute)
	require.NoError(t, reg.Put(ctx, userSession))

	req := httptest.NewRequest("GET", "/api/node?api-token="+testToken(), nil)
	req.Header.Set(HeaderSession, userSession.ID)

	got, err := r.Resolve(ctx, req, config.RootTenantID, rootTenant(digest))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "api", got.ID)
}
