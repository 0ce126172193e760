package providers

import (
	"net/http"
	"strings"

	"mercator-hq/helios/pkg/gateway"
)

// bearerToken validates and returns the Authorization header of an inbound
// request. The header must be present and carry a non-empty Bearer token.
func bearerToken(headers http.Header, provider gateway.ProviderID) (string, error) {
	auth := headers.Get("Authorization")
	if auth == "" {
		return "", gateway.NewError(gateway.ErrInvalidCredentials,
			string(provider)+": missing Authorization header")
	}
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) == "" {
		return "", gateway.NewError(gateway.ErrInvalidCredentials,
			string(provider)+": Authorization header must be a non-empty Bearer token")
	}
	return auth, nil
}
