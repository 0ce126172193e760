package providers

import (
	"net/http"
	"testing"

	"mercator-hq/helios/pkg/gateway"
)

func TestAnthropicTransformPath(t *testing.T) {
	s := NewAnthropic()

	tests := []struct {
		name string
		path string
		want string
	}{
		{"chat completions rewritten", "/v1/chat/completions", "/v1/messages"},
		{"already transformed", "/v1/messages", "/v1/messages"},
		{"other paths unchanged", "/v1/models", "/v1/models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.TransformPath(tt.path, nil)
			if got != tt.want {
				t.Errorf("TransformPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
			if again := s.TransformPath(got, nil); again != got {
				t.Errorf("TransformPath is not idempotent: %q -> %q", got, again)
			}
		})
	}
}

func TestAnthropicProcessHeaders(t *testing.T) {
	s := NewAnthropic()

	headers := http.Header{"Authorization": {"Bearer sk-ant-XYZ"}}
	out, err := s.ProcessHeaders(headers)
	if err != nil {
		t.Fatalf("ProcessHeaders() error: %v", err)
	}

	if got := out.Get("x-api-key"); got != "sk-ant-XYZ" {
		t.Errorf("x-api-key = %q, want sk-ant-XYZ", got)
	}
	if got := out.Get("anthropic-version"); got != "2023-06-01" {
		t.Errorf("anthropic-version = %q, want 2023-06-01", got)
	}
	if got := out.Get("Authorization"); got != "" {
		t.Errorf("Authorization should be removed, got %q", got)
	}
	if got := out.Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestAnthropicProcessHeadersMissingAuth(t *testing.T) {
	s := NewAnthropic()
	if _, err := s.ProcessHeaders(http.Header{}); gateway.TypeOf(err) != gateway.ErrInvalidCredentials {
		t.Errorf("expected invalid-credentials, got %v", err)
	}
}

func TestAnthropicExtractUsage(t *testing.T) {
	s := NewAnthropic()

	tests := []struct {
		name    string
		payload string
		wantIn  int64
		wantOut int64
		total   bool
	}{
		{
			name:    "both counts present",
			payload: `{"usage":{"input_tokens":10,"output_tokens":5}}`,
			wantIn:  10, wantOut: 5, total: true,
		},
		{
			name:    "message_delta with output only",
			payload: `{"type":"message_delta","usage":{"output_tokens":15}}`,
			wantOut: 15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := s.ExtractUsage([]byte(tt.payload))
			if u == nil {
				t.Fatal("ExtractUsage() = nil")
			}
			if tt.wantIn > 0 && (u.InputTokens == nil || *u.InputTokens != tt.wantIn) {
				t.Errorf("InputTokens = %v, want %d", u.InputTokens, tt.wantIn)
			}
			if tt.wantIn == 0 && u.InputTokens != nil {
				t.Errorf("InputTokens should be absent, got %d", *u.InputTokens)
			}
			if u.OutputTokens == nil || *u.OutputTokens != tt.wantOut {
				t.Errorf("OutputTokens = %v, want %d", u.OutputTokens, tt.wantOut)
			}
			if tt.total {
				if u.TotalTokens == nil || *u.TotalTokens != tt.wantIn+tt.wantOut {
					t.Errorf("TotalTokens = %v, want %d", u.TotalTokens, tt.wantIn+tt.wantOut)
				}
			} else if u.TotalTokens != nil {
				t.Errorf("TotalTokens should be absent, got %d", *u.TotalTokens)
			}
		})
	}
}
