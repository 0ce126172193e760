package providers

import (
	"net/http"
	"strings"

	"mercator-hq/helios/pkg/gateway"
)

// Fireworks proxies to the Fireworks inference endpoint. The base URL ends
// in /inference/v1, so a leading /v1 on the incoming path is stripped.
type Fireworks struct {
	base
}

// NewFireworks creates the Fireworks strategy.
func NewFireworks() *Fireworks { return &Fireworks{} }

func (*Fireworks) Name() gateway.ProviderID { return gateway.ProviderFireworks }

func (*Fireworks) BaseURL(_ *gateway.ProxyRequest) string {
	return "https://api.fireworks.ai/inference/v1"
}

func (*Fireworks) TransformPath(path string, _ *gateway.ProxyRequest) string {
	if strings.HasPrefix(path, "/v1/") {
		return strings.TrimPrefix(path, "/v1")
	}
	return path
}

func (*Fireworks) ProcessHeaders(headers http.Header) (http.Header, error) {
	auth, err := bearerToken(headers, gateway.ProviderFireworks)
	if err != nil {
		return nil, err
	}

	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	out.Set("Accept", "application/json")
	out.Set("Authorization", auth)
	return out, nil
}
