package bedrock

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"

	"mercator-hq/helios/pkg/gateway"
)

// signingService is the SigV4 service name for the Bedrock runtime.
const signingService = "bedrock"

// credentialHeaders are consumed by the signer and never forwarded upstream.
var credentialHeaders = []string{
	"x-aws-access-key-id",
	"x-aws-secret-access-key",
	"x-aws-session-token",
	"x-aws-region",
}

// Sign applies AWS SigV4 over the outbound request. The x-aws-* credential
// headers are resolved (headers first, gateway environment second, SDK
// default chain last) and stripped from the outbound set; the signer adds
// host, x-amz-date, x-amz-security-token when a session token is present,
// and the Authorization header.
func (s *Strategy) Sign(ctx context.Context, method, rawURL string, headers http.Header, body []byte) (http.Header, error) {
	creds, region, err := s.resolveCredentials(ctx, headers)
	if err != nil {
		return nil, err
	}

	out := headers.Clone()
	if out == nil {
		out = make(http.Header)
	}
	for _, name := range credentialHeaders {
		out.Del(name)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrInternal, "bedrock: cannot build signing request", err)
	}
	req.Header = out
	req.ContentLength = int64(len(body))

	payloadHash := sha256.Sum256(body)
	if err := s.signer.SignHTTP(ctx, creds, req,
		hex.EncodeToString(payloadHash[:]), signingService, region, time.Now().UTC()); err != nil {
		return nil, gateway.WrapError(gateway.ErrInvalidCredentials, "bedrock: signing failed", err)
	}

	// SignHTTP records host on the request, not the header map; the engine
	// rebuilds the request from the same URL so the signature stays valid,
	// but the header must travel with the rewritten request.
	req.Header.Set("Host", req.URL.Host)
	return req.Header, nil
}

// resolveCredentials sources signing credentials in priority order:
// per-request x-aws-* headers, then the gateway's environment, then the SDK
// default chain.
func (s *Strategy) resolveCredentials(ctx context.Context, headers http.Header) (aws.Credentials, string, error) {
	region := s.region(headers)

	accessKey := headers.Get("x-aws-access-key-id")
	secretKey := headers.Get("x-aws-secret-access-key")
	sessionToken := headers.Get("x-aws-session-token")

	if accessKey != "" || secretKey != "" {
		if accessKey == "" || secretKey == "" {
			return aws.Credentials{}, "", gateway.NewError(gateway.ErrInvalidCredentials,
				"bedrock: x-aws-access-key-id and x-aws-secret-access-key must be supplied together")
		}
		creds, err := credentials.NewStaticCredentialsProvider(accessKey, secretKey, sessionToken).Retrieve(ctx)
		if err != nil {
			return aws.Credentials{}, "", gateway.WrapError(gateway.ErrInvalidCredentials,
				"bedrock: invalid request credentials", err)
		}
		return creds, region, nil
	}

	if s.defaults.AccessKeyID != "" && s.defaults.SecretAccessKey != "" {
		creds, err := credentials.NewStaticCredentialsProvider(
			s.defaults.AccessKeyID, s.defaults.SecretAccessKey, s.defaults.SessionToken).Retrieve(ctx)
		if err != nil {
			return aws.Credentials{}, "", gateway.WrapError(gateway.ErrInvalidCredentials,
				"bedrock: invalid environment credentials", err)
		}
		return creds, region, nil
	}

	if s.fallback != nil {
		creds, err := s.fallback.Retrieve(ctx)
		if err == nil && creds.HasKeys() {
			return creds, region, nil
		}
	}

	return aws.Credentials{}, "", gateway.NewError(gateway.ErrInvalidCredentials,
		"bedrock: no AWS credentials in request headers or environment")
}
