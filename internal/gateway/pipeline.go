package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/auth"
	"github.com/vyrodovalexey/tenantgate/internal/authz"
	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/middleware"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/tenant"
	"github.com/vyrodovalexey/tenantgate/internal/upload"
	"github.com/vyrodovalexey/tenantgate/internal/validate"
)

// invalidateTimeout bounds the post-success tenant refresh.
const invalidateTimeout = 5 * time.Second

// Pipeline wires the per-request gates around application handlers:
// tenant resolution, basic auth, identity resolution, role checking,
// body validation and upload assembly.
type Pipeline struct {
	tenants   *tenant.Cache
	resolver  *auth.Resolver
	gate      *authz.Gate
	assembler *upload.Assembler
	governor  *middleware.Governor
	metrics   *Metrics
	logger    observability.Logger
}

// PipelineOption is a functional option for configuring the pipeline.
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger for the pipeline.
func WithPipelineLogger(logger observability.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithPipelineAssembler enables upload handling on routes flagged for it.
func WithPipelineAssembler(assembler *upload.Assembler) PipelineOption {
	return func(p *Pipeline) {
		p.assembler = assembler
	}
}

// WithPipelineGovernor enables execution timing on wrapped routes.
func WithPipelineGovernor(governor *middleware.Governor) PipelineOption {
	return func(p *Pipeline) {
		p.governor = governor
	}
}

// WithPipelineMetrics sets the metrics for the pipeline.
func WithPipelineMetrics(metrics *Metrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = metrics
	}
}

// NewPipeline creates a pipeline over the given tenant cache, identity
// resolver and access gate.
func NewPipeline(tenants *tenant.Cache, resolver *auth.Resolver, gate *authz.Gate, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		tenants:  tenants,
		resolver: resolver,
		gate:     gate,
		logger:   observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Wrap builds the gated http.Handler for a route.
func (p *Pipeline) Wrap(route Route) http.Handler {
	handler := http.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.serve(w, r, route)
	}))

	if p.governor != nil {
		handler = p.governor.MeasureWithThreshold(route.Name, route.UniformAnswerTime, route.ExecThreshold)(handler)
	}

	return handler
}

// Router builds a mux with every route wrapped by the pipeline.
func (p *Pipeline) Router(routes []Route) *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range routes {
		mux.Handle(route.Method+" "+route.Path, p.Wrap(route))
	}
	return mux
}

func (p *Pipeline) serve(w http.ResponseWriter, r *http.Request, route Route) {
	tid := p.tenants.ResolveHost(r.Host)

	tc, ok := p.tenants.Snapshot(tid)
	if !ok {
		p.reject(w, route, tenant.ErrTenantNotFound)
		return
	}

	ctx := observability.ContextWithTenantID(r.Context(), tid)
	r = r.WithContext(ctx)

	if route.RootTenantOnly && tid != config.RootTenantID {
		p.reject(w, route, auth.ErrRootTenantOnly)
		return
	}

	if tc.BasicAuth && !route.BypassBasicAuth {
		if err := auth.CheckBasicAuth(r, tc); err != nil {
			p.reject(w, route, err)
			return
		}
	}

	identity, err := p.resolver.Resolve(ctx, r, tid, tc)
	if err != nil {
		p.reject(w, route, err)
		return
	}

	if err := p.gate.Check(identity, route.Roles); err != nil {
		p.reject(w, route, err)
		return
	}

	rc := &RequestContext{
		TenantID: tid,
		Tenant:   tc,
		Session:  identity,
	}

	if route.BodyTemplate != nil {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			p.reject(w, route, &validate.Error{Kind: validate.KindMalformedJSON})
			return
		}

		payload, err := validate.SanitizeJSON(body, route.BodyTemplate)
		if err != nil {
			p.reject(w, route, err)
			return
		}
		rc.Payload = payload
	}

	if route.UploadHandler && p.assembler != nil {
		uploaded, err := p.assembler.ProcessFileUpload(r, tc)
		if err != nil {
			p.reject(w, route, err)
			return
		}
		rc.Upload = uploaded
	}

	if err := route.Handler(w, r, rc); err != nil {
		p.reject(w, route, err)
		return
	}

	if p.metrics != nil {
		p.metrics.RecordRequest(route.Name, "ok")
	}

	if route.InvalidateTenantState {
		p.invalidateTenant(tid)
	}
}

// reject writes the mapped error response and records the rejection.
func (p *Pipeline) reject(w http.ResponseWriter, route Route, err error) {
	if p.metrics != nil {
		p.metrics.RecordRequest(route.Name, "rejected")

		var verr *validate.Error
		if errors.As(err, &verr) {
			p.metrics.RecordValidationFailure(route.Name, verr.Kind.String())
		}
	}

	WriteError(w, p.logger, err)
}

// invalidateTenant refreshes the tenant snapshot after a successful
// mutation without delaying the response already computed for the
// caller.
func (p *Pipeline) invalidateTenant(tid int64) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), invalidateTimeout)
		defer cancel()

		if err := p.tenants.Invalidate(ctx, tid); err != nil {
			p.logger.Error("tenant state invalidation failed",
				observability.Int64("tenant_id", tid),
				observability.Error(err))
		}
	}()
}
