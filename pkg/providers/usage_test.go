package providers

import (
	"testing"
)

func TestExtractOpenAIUsage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantNil bool
		in, out int64
		total   int64
	}{
		{
			name:    "complete usage",
			payload: `{"usage":{"prompt_tokens":3,"completion_tokens":5,"total_tokens":8}}`,
			in:      3, out: 5, total: 8,
		},
		{
			name:    "no usage block",
			payload: `{"choices":[{"delta":{"content":"hi"}}]}`,
			wantNil: true,
		},
		{
			name:    "not json",
			payload: `garbage`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ExtractOpenAIUsage([]byte(tt.payload))
			if tt.wantNil {
				if u != nil {
					t.Fatalf("want nil usage, got %+v", u)
				}
				return
			}
			if u == nil {
				t.Fatal("want usage, got nil")
			}
			if *u.InputTokens != tt.in || *u.OutputTokens != tt.out || *u.TotalTokens != tt.total {
				t.Errorf("usage = {%d %d %d}, want {%d %d %d}",
					*u.InputTokens, *u.OutputTokens, *u.TotalTokens, tt.in, tt.out, tt.total)
			}
			// The counts must be arithmetically consistent when all three
			// are present.
			if *u.InputTokens+*u.OutputTokens != *u.TotalTokens {
				t.Errorf("input + output != total: %d + %d != %d",
					*u.InputTokens, *u.OutputTokens, *u.TotalTokens)
			}
		})
	}
}

func TestExtractGroqUsage(t *testing.T) {
	payload := `{"choices":[],"x_groq":{"id":"req_01","usage":{"prompt_tokens":12,"completion_tokens":4,"total_tokens":16}}}`
	u := ExtractGroqUsage([]byte(payload))
	if u == nil {
		t.Fatal("want usage, got nil")
	}
	if *u.InputTokens != 12 || *u.OutputTokens != 4 || *u.TotalTokens != 16 {
		t.Errorf("usage = {%v %v %v}", *u.InputTokens, *u.OutputTokens, *u.TotalTokens)
	}
}

func TestExtractGroqUsageFallsBackToOpenAI(t *testing.T) {
	payload := `{"usage":{"prompt_tokens":1,"completion_tokens":2,"total_tokens":3}}`
	u := ExtractGroqUsage([]byte(payload))
	if u == nil || *u.TotalTokens != 3 {
		t.Fatalf("fallback extraction failed: %+v", u)
	}
}

func TestExtractBedrockUsage(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantNil bool
		in, out int64
		total   int64
	}{
		{
			name:    "converse usage",
			payload: `{"usage":{"inputTokens":25,"outputTokens":50,"totalTokens":75}}`,
			in:      25, out: 50, total: 75,
		},
		{
			name:    "translated openai usage",
			payload: `{"usage":{"prompt_tokens":25,"completion_tokens":50,"total_tokens":75}}`,
			in:      25, out: 50, total: 75,
		},
		{
			name:    "delta chunk without usage",
			payload: `{"delta":{"text":"hi"}}`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := ExtractBedrockUsage([]byte(tt.payload))
			if tt.wantNil {
				if u != nil {
					t.Fatalf("want nil, got %+v", u)
				}
				return
			}
			if u == nil {
				t.Fatal("want usage, got nil")
			}
			if *u.InputTokens != tt.in || *u.OutputTokens != tt.out || *u.TotalTokens != tt.total {
				t.Errorf("usage = {%d %d %d}", *u.InputTokens, *u.OutputTokens, *u.TotalTokens)
			}
		})
	}
}

func TestExtractModel(t *testing.T) {
	tests := []struct {
		name     string
		reqBody  string
		respBody string
		want     string
	}{
		{"from request", `{"model":"gpt-4"}`, `{}`, "gpt-4"},
		{"from response", `{}`, `{"model":"gpt-4-0613"}`, "gpt-4-0613"},
		{"request wins", `{"model":"gpt-4"}`, `{"model":"gpt-4-0613"}`, "gpt-4"},
		{"neither", `{}`, `{}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractModel([]byte(tt.reqBody), []byte(tt.respBody)); got != tt.want {
				t.Errorf("extractModel() = %q, want %q", got, tt.want)
			}
		})
	}
}
