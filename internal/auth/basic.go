package auth

import (
	"net/http"

	"github.com/vyrodovalexey/tenantgate/internal/config"
)

// CheckBasicAuth enforces the tenant's basic-auth gate. It returns
// ErrAuthenticationRequired when the Authorization header is absent or
// does not carry the tenant's credentials; the HTTP layer turns that
// into a 401 with a Basic re-challenge. Comparison is constant time for
// both username and password.
func CheckBasicAuth(req *http.Request, tc *config.TenantConfig) error {
	user, pass, ok := req.BasicAuth()
	if !ok {
		return ErrAuthenticationRequired
	}

	userOK := SecretsEqual([]byte(user), []byte(tc.BasicAuthUsername))
	passOK := SecretsEqual([]byte(pass), []byte(tc.BasicAuthPassword))

	if !userOK || !passOK {
		return ErrAuthenticationRequired
	}

	return nil
}
