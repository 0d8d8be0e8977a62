package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vyrodovalexey/tenantgate/internal/auth"
	"github.com/vyrodovalexey/tenantgate/internal/observability"
	"github.com/vyrodovalexey/tenantgate/internal/stream"
	"github.com/vyrodovalexey/tenantgate/internal/tenant"
	"github.com/vyrodovalexey/tenantgate/internal/upload"
	"github.com/vyrodovalexey/tenantgate/internal/validate"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Key     string `json:"key,omitempty"`
	LimitMB int64  `json:"limit_mb,omitempty"`
}

// WriteError maps a pipeline or handler error to its HTTP response.
// Authentication-required failures carry a basic-auth re-challenge.
func WriteError(w http.ResponseWriter, logger observability.Logger, err error) {
	status, body := classifyError(err)

	if status == http.StatusInternalServerError {
		logger.Error("request failed", observability.Error(err))
	} else {
		logger.Debug("request rejected",
			observability.Int("status", status),
			observability.Error(err))
	}

	if errors.Is(err, auth.ErrAuthenticationRequired) {
		w.Header().Set("WWW-Authenticate", `Basic realm="tenantgate"`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func classifyError(err error) (int, errorBody) {
	var (
		validationErr *validate.Error
		tooBigErr     *upload.FileTooBigError
	)

	switch {
	case errors.Is(err, auth.ErrAuthenticationRequired):
		return http.StatusUnauthorized, errorBody{Error: "authentication required"}

	case errors.Is(err, auth.ErrNotAuthenticated):
		return http.StatusUnauthorized, errorBody{Error: "not authenticated"}

	case errors.Is(err, auth.ErrInvalidAuthentication):
		return http.StatusForbidden, errorBody{Error: "invalid authentication"}

	case errors.Is(err, auth.ErrRootTenantOnly):
		return http.StatusForbidden, errorBody{Error: "invalid authentication"}

	case errors.As(err, &validationErr):
		return http.StatusBadRequest, errorBody{
			Error: validationErr.Error(),
			Key:   validationErr.Key,
		}

	case errors.Is(err, upload.ErrMalformedUpload):
		return http.StatusBadRequest, errorBody{Error: "malformed upload request"}

	case errors.As(err, &tooBigErr):
		return http.StatusRequestEntityTooLarge, errorBody{
			Error:   "file too big",
			LimitMB: tooBigErr.LimitMB,
		}

	case errors.Is(err, stream.ErrResourceNotFound):
		return http.StatusNotFound, errorBody{Error: "resource not found"}

	case errors.Is(err, tenant.ErrTenantNotFound):
		return http.StatusNotFound, errorBody{Error: "resource not found"}

	default:
		return http.StatusInternalServerError, errorBody{Error: "internal server error"}
	}
}
