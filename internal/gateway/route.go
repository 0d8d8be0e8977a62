// Package gateway composes tenant resolution, authentication,
// authorization, payload validation and upload assembly into an HTTP
// pipeline around application handlers.
package gateway

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/tenantgate/internal/config"
	"github.com/vyrodovalexey/tenantgate/internal/session"
	"github.com/vyrodovalexey/tenantgate/internal/upload"
)

// Handler is the application callback invoked once the pipeline has
// admitted a request. A returned error is translated to an HTTP error
// response; a nil return means the handler wrote the response itself.
type Handler func(w http.ResponseWriter, r *http.Request, rc *RequestContext) error

// RequestContext carries the pipeline's per-request results into the
// handler.
type RequestContext struct {
	// TenantID is the tenant resolved from the request host.
	TenantID int64

	// Tenant is the immutable tenant snapshot taken at admission.
	// Handlers read it once; a concurrent invalidation produces a new
	// snapshot for later requests, never a mutation of this one.
	Tenant *config.TenantConfig

	// Session is the resolved identity, nil for anonymous callers.
	Session *session.Session

	// Payload is the sanitized request body, set when the route
	// declares a body template.
	Payload any

	// Upload is the descriptor of the received chunk, set on upload
	// routes when the request carried a file.
	Upload *upload.UploadedFile
}

// Route declares one gated endpoint as data. The pipeline reads these
// flags; handlers never re-implement gating logic.
type Route struct {
	// Name identifies the handler in logs, metrics and alerts.
	Name string

	// Method and Path place the route in the HTTP mux.
	Method string
	Path   string

	// Roles is the allow-list checked by the access gate. Use
	// authz.RoleAny for public routes and authz.RoleUnauthenticated
	// for routes reserved to anonymous callers.
	Roles []string

	// Handler is the application callback.
	Handler Handler

	// BodyTemplate, when set, makes the pipeline decode and sanitize
	// the JSON body against it before calling the handler.
	BodyTemplate any

	// UploadHandler marks routes accepting chunked multipart uploads.
	UploadHandler bool

	// UniformAnswerTime pads the response latency to a fixed minimum
	// so timing reveals nothing about the branch taken.
	UniformAnswerTime bool

	// BypassBasicAuth exempts the route from the tenant's basic-auth
	// gate.
	BypassBasicAuth bool

	// RootTenantOnly restricts the route to the primary tenant.
	RootTenantOnly bool

	// InvalidateTenantState refreshes the tenant's cached snapshot
	// after the handler succeeds.
	InvalidateTenantState bool

	// ExecThreshold overrides the governor's slow-handler threshold
	// for this route. Zero means the default.
	ExecThreshold time.Duration
}
