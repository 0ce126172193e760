package providers

import (
	"net/http"

	"mercator-hq/helios/pkg/gateway"
)

// Groq proxies to GROQ's OpenAI-compatible endpoint. The base URL already
// carries the /openai prefix, so paths pass through unchanged.
type Groq struct {
	base
}

// NewGroq creates the GROQ strategy.
func NewGroq() *Groq { return &Groq{} }

func (*Groq) Name() gateway.ProviderID { return gateway.ProviderGroq }

func (*Groq) BaseURL(_ *gateway.ProxyRequest) string { return "https://api.groq.com/openai" }

func (*Groq) TransformPath(path string, _ *gateway.ProxyRequest) string { return path }

func (*Groq) ProcessHeaders(headers http.Header) (http.Header, error) {
	auth, err := bearerToken(headers, gateway.ProviderGroq)
	if err != nil {
		return nil, err
	}

	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	out.Set("Authorization", auth)
	return out, nil
}

func (*Groq) ExtractUsage(payload []byte) *gateway.TokenUsage {
	return ExtractGroqUsage(payload)
}
