package providers

import (
	"net/http"
	"strings"

	"mercator-hq/helios/pkg/gateway"
)

const anthropicVersion = "2023-06-01"

// Anthropic proxies to the Anthropic Messages API. The OpenAI-format chat
// path is rewritten to /v1/messages and Bearer authentication is translated
// to the x-api-key scheme.
type Anthropic struct {
	base
}

// NewAnthropic creates the Anthropic strategy.
func NewAnthropic() *Anthropic { return &Anthropic{} }

func (*Anthropic) Name() gateway.ProviderID { return gateway.ProviderAnthropic }

func (*Anthropic) BaseURL(_ *gateway.ProxyRequest) string { return "https://api.anthropic.com" }

func (*Anthropic) TransformPath(path string, _ *gateway.ProxyRequest) string {
	if strings.Contains(path, "/chat/completions") {
		return "/v1/messages"
	}
	return path
}

func (*Anthropic) ProcessHeaders(headers http.Header) (http.Header, error) {
	auth, err := bearerToken(headers, gateway.ProviderAnthropic)
	if err != nil {
		return nil, err
	}

	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	out.Set("anthropic-version", anthropicVersion)
	out.Set("x-api-key", strings.TrimPrefix(auth, "Bearer "))
	return out, nil
}

func (*Anthropic) ExtractUsage(payload []byte) *gateway.TokenUsage {
	return ExtractAnthropicUsage(payload)
}

func (*Anthropic) ExtractProviderRequestID(headers http.Header, respBody []byte) string {
	if id := headers.Get("request-id"); id != "" {
		return id
	}
	return extractOpenAIRequestID(headers, respBody)
}
