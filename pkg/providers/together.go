package providers

import (
	"net/http"

	"mercator-hq/helios/pkg/gateway"
)

// Together proxies to api.together.xyz. Paths pass through unchanged.
type Together struct {
	base
}

// NewTogether creates the Together strategy.
func NewTogether() *Together { return &Together{} }

func (*Together) Name() gateway.ProviderID { return gateway.ProviderTogether }

func (*Together) BaseURL(_ *gateway.ProxyRequest) string { return "https://api.together.xyz" }

func (*Together) TransformPath(path string, _ *gateway.ProxyRequest) string { return path }

func (*Together) ProcessHeaders(headers http.Header) (http.Header, error) {
	auth, err := bearerToken(headers, gateway.ProviderTogether)
	if err != nil {
		return nil, err
	}

	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	out.Set("Authorization", auth)
	return out, nil
}
