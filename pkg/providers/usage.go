package providers

import (
	"net/http"

	"github.com/tidwall/gjson"

	"mercator-hq/helios/pkg/gateway"
)

// extractModel returns the model from the request body, falling back to the
// response body. Either may be empty or non-JSON.
func extractModel(reqBody, respBody []byte) string {
	if m := gjson.GetBytes(reqBody, "model"); m.Exists() {
		return m.String()
	}
	if m := gjson.GetBytes(respBody, "model"); m.Exists() {
		return m.String()
	}
	return ""
}

// ExtractOpenAIUsage reads the OpenAI-format usage block
// (prompt_tokens/completion_tokens/total_tokens). Chunks without a usage
// block yield nil.
func ExtractOpenAIUsage(payload []byte) *gateway.TokenUsage {
	return usageFromObject(gjson.GetBytes(payload, "usage"))
}

// ExtractGroqUsage reads GROQ streaming usage, which lives under
// x_groq.usage on the final chunk, falling back to the plain OpenAI block.
func ExtractGroqUsage(payload []byte) *gateway.TokenUsage {
	if u := usageFromObject(gjson.GetBytes(payload, "x_groq.usage")); u != nil {
		return u
	}
	return ExtractOpenAIUsage(payload)
}

// ExtractAnthropicUsage reads the Anthropic usage block
// (input_tokens/output_tokens). The total is derived only when both counts
// are present; message_delta events that report output_tokens alone keep
// input and total absent.
func ExtractAnthropicUsage(payload []byte) *gateway.TokenUsage {
	obj := gjson.GetBytes(payload, "usage")
	if !obj.Exists() {
		return nil
	}
	u := &gateway.TokenUsage{}
	if v := obj.Get("input_tokens"); v.Exists() {
		u.InputTokens = gateway.Int64(v.Int())
	}
	if v := obj.Get("output_tokens"); v.Exists() {
		u.OutputTokens = gateway.Int64(v.Int())
	}
	if u.InputTokens != nil && u.OutputTokens != nil {
		u.TotalTokens = gateway.Int64(*u.InputTokens + *u.OutputTokens)
	}
	if u.IsZero() {
		return nil
	}
	return u
}

// ExtractBedrockUsage reads the Converse usage block
// (inputTokens/outputTokens/totalTokens), falling back to the OpenAI block
// for payloads that were already translated.
func ExtractBedrockUsage(payload []byte) *gateway.TokenUsage {
	obj := gjson.GetBytes(payload, "usage")
	if !obj.Exists() {
		return nil
	}
	u := &gateway.TokenUsage{}
	if v := obj.Get("inputTokens"); v.Exists() {
		u.InputTokens = gateway.Int64(v.Int())
	}
	if v := obj.Get("outputTokens"); v.Exists() {
		u.OutputTokens = gateway.Int64(v.Int())
	}
	if v := obj.Get("totalTokens"); v.Exists() {
		u.TotalTokens = gateway.Int64(v.Int())
	}
	if u.IsZero() {
		return usageFromObject(obj)
	}
	return u
}

func usageFromObject(obj gjson.Result) *gateway.TokenUsage {
	if !obj.Exists() {
		return nil
	}
	u := &gateway.TokenUsage{}
	if v := obj.Get("prompt_tokens"); v.Exists() {
		u.InputTokens = gateway.Int64(v.Int())
	}
	if v := obj.Get("completion_tokens"); v.Exists() {
		u.OutputTokens = gateway.Int64(v.Int())
	}
	if v := obj.Get("total_tokens"); v.Exists() {
		u.TotalTokens = gateway.Int64(v.Int())
	}
	if u.IsZero() {
		return nil
	}
	return u
}

func extractOpenAIRequestID(headers http.Header, respBody []byte) string {
	if id := headers.Get("x-request-id"); id != "" {
		return id
	}
	if id := gjson.GetBytes(respBody, "id"); id.Exists() {
		return id.String()
	}
	return ""
}
