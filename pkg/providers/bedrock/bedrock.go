// Package bedrock implements the AWS Bedrock provider strategy: Converse
// request/response translation, SigV4 request signing, and decoding of the
// event-stream response framing into SSE.
package bedrock

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/tidwall/gjson"

	"mercator-hq/helios/pkg/config"
	"mercator-hq/helios/pkg/gateway"
	"mercator-hq/helios/pkg/providers"
)

// defaultModel is used when a request carries no model field.
const defaultModel = "amazon.titan-text-premier-v1:0"

// Strategy is the Bedrock provider strategy.
type Strategy struct {
	defaults config.AWSConfig
	signer   *v4.Signer

	// fallback is the SDK default credential chain (instance roles, shared
	// config, SSO), consulted when neither the request headers nor the
	// gateway environment carry static credentials. Nil when the chain
	// could not be assembled at startup.
	fallback aws.CredentialsProvider
}

// New creates the Bedrock strategy. The SDK default credential chain is
// resolved once at startup; failures are tolerated because most deployments
// pass credentials per request.
func New(ctx context.Context, cfg config.AWSConfig) *Strategy {
	s := &Strategy{defaults: cfg, signer: v4.NewSigner()}
	if awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region)); err == nil {
		s.fallback = awsCfg.Credentials
	}
	return s
}

func (*Strategy) Name() gateway.ProviderID { return gateway.ProviderBedrock }

// region picks the signing region: per-request header first, then the
// configured default.
func (s *Strategy) region(headers http.Header) string {
	if r := headers.Get("x-aws-region"); r != "" {
		return r
	}
	return s.defaults.Region
}

func (s *Strategy) BaseURL(req *gateway.ProxyRequest) string {
	region := s.defaults.Region
	if req != nil {
		region = s.region(req.Headers)
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)
}

// TransformPath derives the Bedrock model path from the request. The model
// id is path-escaped because Bedrock accepts full ARNs. Already-transformed
// paths pass through unchanged.
func (s *Strategy) TransformPath(path string, req *gateway.ProxyRequest) string {
	if strings.HasPrefix(path, "/model/") {
		return path
	}

	model := defaultModel
	streaming := false
	if req != nil {
		if req.Model != "" {
			model = req.Model
		}
		streaming = req.Stream
	}
	escaped := url.PathEscape(model)

	if s.defaults.UseInvoke {
		if streaming {
			return fmt.Sprintf("/model/%s/invoke-with-response-stream", escaped)
		}
		return fmt.Sprintf("/model/%s/invoke", escaped)
	}
	if streaming {
		return fmt.Sprintf("/model/%s/converse-stream", escaped)
	}
	return fmt.Sprintf("/model/%s/converse", escaped)
}

// ProcessHeaders keeps the x-aws-* credential headers on the outbound set;
// Sign consumes and removes them before the request leaves the gateway.
func (*Strategy) ProcessHeaders(headers http.Header) (http.Header, error) {
	out := make(http.Header)
	out.Set("Content-Type", "application/json")
	for name, values := range headers {
		if strings.HasPrefix(strings.ToLower(name), "x-aws-") {
			for _, v := range values {
				out.Add(name, v)
			}
		}
	}
	return out, nil
}

func (*Strategy) TransformRequestBody(_ string, body []byte) ([]byte, error) {
	return transformChatRequest(body)
}

func (*Strategy) ResponseFraming(contentType string, streamingRequested bool) gateway.Framing {
	if strings.Contains(contentType, "vnd.amazon.eventstream") {
		return gateway.FramingAWSEventStream
	}
	if contentType == "" && streamingRequested {
		return gateway.FramingAWSEventStream
	}
	return gateway.FramingJSON
}

func (*Strategy) TransformResponseBody(body []byte, req *gateway.ProxyRequest) ([]byte, error) {
	model := ""
	if req != nil {
		model = req.Model
	}
	return transformConverseResponse(body, model)
}

func (*Strategy) NewChunkTranslator(req *gateway.ProxyRequest) providers.ChunkTranslator {
	model := defaultModel
	if req != nil && req.Model != "" {
		model = req.Model
	}
	return newChunkTranslator(model)
}

func (*Strategy) ExtractModel(reqBody, respBody []byte) string {
	if m := gjson.GetBytes(reqBody, "model"); m.Exists() {
		return m.String()
	}
	if m := gjson.GetBytes(respBody, "model"); m.Exists() {
		return m.String()
	}
	return ""
}

func (*Strategy) ExtractUsage(payload []byte) *gateway.TokenUsage {
	return providers.ExtractBedrockUsage(payload)
}

func (*Strategy) ExtractProviderRequestID(headers http.Header, respBody []byte) string {
	if id := headers.Get("x-amzn-requestid"); id != "" {
		return id
	}
	if id := gjson.GetBytes(respBody, "requestId"); id.Exists() {
		return id.String()
	}
	if id := gjson.GetBytes(respBody, "id"); id.Exists() {
		return id.String()
	}
	return ""
}
