package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/tenantgate/internal/auth"
	"github.com/vyrodovalexey/tenantgate/internal/authz"
	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/session"
	"github.com/vyrodovalexey/tenantgate/internal/tenant"
	"github.com/vyrodovalexey/tenantgate/internal/validate"
)

type pipelineFixture struct {
	pipeline *Pipeline
	tenants  *tenant.Cache
	source   *tenant.StaticSource
	sessions session.Registry
}

func newPipelineFixture(t *testing.T, tenants []config.TenantConfig) *pipelineFixture {
	t.Helper()

	source := tenant.NewStaticSource(tenants)
	cache, err := tenant.NewCache(context.Background(), source)
	require.NoError(t, err)

	sessions, err := session.NewRegistry(config.SessionConfig{Backend: "memory"}, observability.NopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	resolver := auth.NewResolver(sessions, config.DefaultAPITokenLength)
	gate := authz.NewGate()

	return &pipelineFixture{
		pipeline: NewPipeline(cache, resolver, gate),
		tenants:  cache,
		source:   source,
		sessions: sessions,
	}
}

func defaultTenants() []config.TenantConfig {
	return []config.TenantConfig{
		{ID: 1, Hostname: "root.example.org", MaxFileSize: 30},
		{ID: 2, Hostname: "two.example.org", MaxFileSize: 30},
	}
}

func okRoute(roles ...string) Route {
	return Route{
		Name:   "test",
		Method: "GET",
		Path:   "/test",
		Roles:  roles,
		Handler: func(w http.ResponseWriter, r *http.Request, rc *RequestContext) error {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return nil
		},
	}
}

func (f *pipelineFixture) login(t *testing.T, tid int64, role string) *session.Session {
	t.Helper()
	s := session.New(tid, "user-1", role, time.Hour)
	require.NoError(t, f.sessions.Put(context.Background(), s))
	return s
}

func TestPipeline_RoleGate(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	t.Run("wildcard admits anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(authz.RoleAny)).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("role list rejects anonymous", func(t *testing.T) {
		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(session.RoleAdmin)).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("role list rejects wrong role", func(t *testing.T) {
		s := f.login(t, 1, session.RoleReceiver)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(auth.HeaderSession, s.ID)

		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(session.RoleAdmin)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("role list admits matching role", func(t *testing.T) {
		s := f.login(t, 1, session.RoleAdmin)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(auth.HeaderSession, s.ID)

		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(session.RoleAdmin)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unauthenticated route rejects authenticated caller", func(t *testing.T) {
		s := f.login(t, 1, session.RoleWhistleblower)

		req := httptest.NewRequest("GET", "/test", nil)
		req.Header.Set(auth.HeaderSession, s.ID)

		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(authz.RoleUnauthenticated)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPipeline_TenantIsolation(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	s := f.login(t, 2, session.RoleAdmin)

	req := httptest.NewRequest("GET", "/test", nil)
	req.Host = "root.example.org"
	req.Header.Set(auth.HeaderSession, s.ID)

	w := httptest.NewRecorder()
	f.pipeline.Wrap(okRoute(session.RoleAdmin)).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPipeline_RootTenantOnly(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	route := okRoute(authz.RoleAny)
	route.RootTenantOnly = true

	t.Run("root tenant admitted", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Host = "root.example.org"

		w := httptest.NewRecorder()
		f.pipeline.Wrap(route).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("secondary tenant rejected", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Host = "two.example.org"

		w := httptest.NewRecorder()
		f.pipeline.Wrap(route).ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestPipeline_BasicAuth(t *testing.T) {
	tenants := defaultTenants()
	tenants[0].BasicAuth = true
	tenants[0].BasicAuthUsername = "gate"
	tenants[0].BasicAuthPassword = "keeper"

	f := newPipelineFixture(t, tenants)

	t.Run("missing credentials re-challenge", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Host = "root.example.org"

		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(authz.RoleAny)).ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Basic")
	})

	t.Run("valid credentials pass", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/test", nil)
		req.Host = "root.example.org"
		req.SetBasicAuth("gate", "keeper")

		w := httptest.NewRecorder()
		f.pipeline.Wrap(okRoute(authz.RoleAny)).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("bypass flag skips the gate", func(t *testing.T) {
		route := okRoute(authz.RoleAny)
		route.BypassBasicAuth = true

		req := httptest.NewRequest("GET", "/test", nil)
		req.Host = "root.example.org"

		w := httptest.NewRecorder()
		f.pipeline.Wrap(route).ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestPipeline_BodyValidation(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	var received any
	route := Route{
		Name:         "update",
		Method:       "POST",
		Path:         "/update",
		Roles:        []string{authz.RoleAny},
		BodyTemplate: validate.Object{"name": validate.String},
		Handler: func(w http.ResponseWriter, r *http.Request, rc *RequestContext) error {
			received = rc.Payload
			w.WriteHeader(http.StatusOK)
			return nil
		},
	}

	t.Run("sanitized payload reaches the handler", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/update", strings.NewReader(`{"name":"a","junk":1}`))

		w := httptest.NewRecorder()
		f.pipeline.Wrap(route).ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, map[string]any{"name": "a"}, received)
	})

	t.Run("missing key rejected with the key name", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/update", strings.NewReader(`{}`))

		w := httptest.NewRecorder()
		f.pipeline.Wrap(route).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), `"key":"name"`)
	})

	t.Run("malformed json rejected", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/update", strings.NewReader(`{`))

		w := httptest.NewRecorder()
		f.pipeline.Wrap(route).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPipeline_InvalidateTenantState(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	route := okRoute(authz.RoleAny)
	route.InvalidateTenantState = true

	before := f.tenants.Version()

	w := httptest.NewRecorder()
	f.pipeline.Wrap(route).ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	require.Equal(t, http.StatusOK, w.Code)

	assert.Eventually(t, func() bool {
		return f.tenants.Version() > before
	}, 2*time.Second, 10*time.Millisecond)
}

func TestPipeline_HandlerErrorMapped(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	route := Route{
		Name:   "fail",
		Method: "GET",
		Path:   "/fail",
		Roles:  []string{authz.RoleAny},
		Handler: func(w http.ResponseWriter, r *http.Request, rc *RequestContext) error {
			return auth.ErrInvalidAuthentication
		},
	}

	w := httptest.NewRecorder()
	f.pipeline.Wrap(route).ServeHTTP(w, httptest.NewRequest("GET", "/fail", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestPipeline_Router(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	mux := f.pipeline.Router([]Route{okRoute(authz.RoleAny)})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest("POST", "/test", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPipeline_Metrics(t *testing.T) {
	f := newPipelineFixture(t, defaultTenants())

	registry := prometheus.NewRegistry()
	metrics := NewMetricsWithRegisterer("tenantgate_test", registry)
	WithPipelineMetrics(metrics)(f.pipeline)

	route := okRoute(authz.RoleAny)
	route.BodyTemplate = validate.Object{"name": validate.String}
	handler := f.pipeline.Wrap(route)

	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":"n"}`))
	req.Host = "root.example.org"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"name":7}`))
	req.Host = "root.example.org"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("test", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.requestsTotal.WithLabelValues("test", "rejected")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.validationFailuresTotal.WithLabelValues("test", "type_mismatch")))
}
