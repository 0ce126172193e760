package providers

import (
	"net/http"

	"mercator-hq/helios/pkg/gateway"
)

// OpenAI proxies to api.openai.com. Paths pass through unchanged; the
// caller's Bearer token is forwarded as-is.
type OpenAI struct {
	base
}

// NewOpenAI creates the OpenAI strategy.
func NewOpenAI() *OpenAI { return &OpenAI{} }

func (*OpenAI) Name() gateway.ProviderID { return gateway.ProviderOpenAI }

func (*OpenAI) BaseURL(_ *gateway.ProxyRequest) string { return "https://api.openai.com" }

func (*OpenAI) TransformPath(path string, _ *gateway.ProxyRequest) string { return path }

// ProcessHeaders forwards authentication and forces a JSON content type.
// An x-magicapi-api-key header is accepted as an alternative credential and
// translated to a Bearer token.
func (*OpenAI) ProcessHeaders(headers http.Header) (http.Header, error) {
	out := make(http.Header)
	out.Set("Content-Type", "application/json")

	if key := headers.Get("x-magicapi-api-key"); key != "" {
		out.Set("Authorization", "Bearer "+key)
		return out, nil
	}

	auth := headers.Get("Authorization")
	if auth == "" {
		return nil, gateway.NewError(gateway.ErrInvalidCredentials, "openai: missing Authorization header")
	}
	out.Set("Authorization", auth)
	return out, nil
}
