package bedrock

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"testing"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"

	"mercator-hq/helios/pkg/config"
	"mercator-hq/helios/pkg/gateway"
)

func signingStrategy(cfg config.AWSConfig) *Strategy {
	return &Strategy{defaults: cfg, signer: v4.NewSigner()}
}

const signURL = "https://bedrock-runtime.us-east-1.amazonaws.com/model/anthropic.claude-v2/converse"

func TestSignWithHeaderCredentials(t *testing.T) {
	s := signingStrategy(config.AWSConfig{Region: "us-east-1"})

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	headers.Set("x-aws-access-key-id", "AKIDEXAMPLE")
	headers.Set("x-aws-secret-access-key", "secret")

	signed, err := s.Sign(context.Background(), http.MethodPost, signURL, headers, []byte(`{"messages":[]}`))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	auth := signed.Get("Authorization")
	if !strings.HasPrefix(auth, "AWS4-HMAC-SHA256 Credential=AKIDEXAMPLE/") {
		t.Errorf("Authorization = %q, want AWS4-HMAC-SHA256 with AKIDEXAMPLE credential", auth)
	}
	if !strings.Contains(auth, "/us-east-1/bedrock/aws4_request") {
		t.Errorf("credential scope missing region/service: %q", auth)
	}
	if signed.Get("X-Amz-Date") == "" {
		t.Error("X-Amz-Date header missing")
	}

	// The credential headers must never leave the gateway.
	for _, name := range credentialHeaders {
		if signed.Get(name) != "" {
			t.Errorf("credential header %s leaked into signed request", name)
		}
	}

	// SignedHeaders lists exactly the signed names, lowercased and
	// semicolon-joined in lexical order.
	signedHeaders := extractSignedHeaders(t, auth)
	if !sort.StringsAreSorted(signedHeaders) {
		t.Errorf("SignedHeaders not in lexical order: %v", signedHeaders)
	}
	want := map[string]bool{"host": false, "x-amz-date": false}
	for _, name := range signedHeaders {
		if name != strings.ToLower(name) {
			t.Errorf("SignedHeaders entry not lowercase: %q", name)
		}
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("SignedHeaders missing %q: %v", name, signedHeaders)
		}
	}
}

func TestSignWithSessionToken(t *testing.T) {
	s := signingStrategy(config.AWSConfig{Region: "us-east-1"})

	headers := http.Header{}
	headers.Set("x-aws-access-key-id", "AKIDEXAMPLE")
	headers.Set("x-aws-secret-access-key", "secret")
	headers.Set("x-aws-session-token", "token-123")

	signed, err := s.Sign(context.Background(), http.MethodPost, signURL, headers, nil)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}

	if signed.Get("X-Amz-Security-Token") != "token-123" {
		t.Errorf("X-Amz-Security-Token = %q", signed.Get("X-Amz-Security-Token"))
	}
	signedHeaders := extractSignedHeaders(t, signed.Get("Authorization"))
	found := false
	for _, name := range signedHeaders {
		if name == "x-amz-security-token" {
			found = true
		}
	}
	if !found {
		t.Errorf("x-amz-security-token not in SignedHeaders: %v", signedHeaders)
	}
}

func TestSignWithEnvironmentCredentials(t *testing.T) {
	s := signingStrategy(config.AWSConfig{
		Region:          "eu-west-1",
		AccessKeyID:     "AKIDENV",
		SecretAccessKey: "envsecret",
	})

	signed, err := s.Sign(context.Background(), http.MethodPost,
		"https://bedrock-runtime.eu-west-1.amazonaws.com/model/m/converse", http.Header{}, []byte("{}"))
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	auth := signed.Get("Authorization")
	if !strings.Contains(auth, "Credential=AKIDENV/") {
		t.Errorf("environment credentials not used: %q", auth)
	}
	if !strings.Contains(auth, "/eu-west-1/bedrock/aws4_request") {
		t.Errorf("wrong region in scope: %q", auth)
	}
}

func TestSignRegionHeaderOverride(t *testing.T) {
	s := signingStrategy(config.AWSConfig{Region: "us-east-1"})

	headers := http.Header{}
	headers.Set("x-aws-access-key-id", "AKIDEXAMPLE")
	headers.Set("x-aws-secret-access-key", "secret")
	headers.Set("x-aws-region", "ap-southeast-2")

	signed, err := s.Sign(context.Background(), http.MethodPost,
		"https://bedrock-runtime.ap-southeast-2.amazonaws.com/model/m/converse", headers, nil)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if !strings.Contains(signed.Get("Authorization"), "/ap-southeast-2/bedrock/aws4_request") {
		t.Errorf("region header not honored: %q", signed.Get("Authorization"))
	}
}

func TestSignMissingCredentials(t *testing.T) {
	tests := []struct {
		name    string
		headers http.Header
	}{
		{"no credentials anywhere", http.Header{}},
		{"access key without secret", http.Header{"X-Aws-Access-Key-Id": {"AKID"}}},
		{"secret without access key", http.Header{"X-Aws-Secret-Access-Key": {"s"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := signingStrategy(config.AWSConfig{Region: "us-east-1"})
			_, err := s.Sign(context.Background(), http.MethodPost, signURL, tt.headers, nil)
			if gateway.TypeOf(err) != gateway.ErrInvalidCredentials {
				t.Errorf("expected invalid-credentials, got %v", err)
			}
		})
	}
}

// extractSignedHeaders parses the SignedHeaders list out of a SigV4
// Authorization header.
func extractSignedHeaders(t *testing.T, auth string) []string {
	t.Helper()
	const marker = "SignedHeaders="
	idx := strings.Index(auth, marker)
	if idx < 0 {
		t.Fatalf("no SignedHeaders in %q", auth)
	}
	rest := auth[idx+len(marker):]
	if end := strings.Index(rest, ","); end >= 0 {
		rest = rest[:end]
	}
	return strings.Split(strings.TrimSpace(rest), ";")
}
