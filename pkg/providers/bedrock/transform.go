package bedrock

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"mercator-hq/helios/pkg/gateway"
)

// converseRequest is the Bedrock Converse request shape produced from an
// OpenAI-format chat completion request.
type converseRequest struct {
	Messages        []converseMessage `json:"messages"`
	System          []converseText    `json:"system,omitempty"`
	InferenceConfig *inferenceConfig  `json:"inferenceConfig,omitempty"`
}

type converseMessage struct {
	Role    string         `json:"role"`
	Content []converseText `json:"content"`
}

type converseText struct {
	Text string `json:"text"`
}

type inferenceConfig struct {
	MaxTokens     *int64   `json:"maxTokens,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
	TopK          *int64   `json:"topK,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`
}

// transformChatRequest rewrites an OpenAI chat body into Converse shape.
// System messages are hoisted into the top-level system array; sampling
// parameters move under inferenceConfig. Bodies already in Converse shape
// pass through unchanged, as do bodies the gateway cannot interpret; the
// provider rejects those with its own error, which the engine forwards.
func transformChatRequest(body []byte) ([]byte, error) {
	if gjson.GetBytes(body, "inferenceConfig").Exists() {
		return body, nil
	}
	messages := gjson.GetBytes(body, "messages")
	if !messages.IsArray() {
		return body, nil
	}

	out := converseRequest{Messages: []converseMessage{}}
	messages.ForEach(func(_, msg gjson.Result) bool {
		role := msg.Get("role").String()
		if role == "" {
			role = "user"
		}
		content := msg.Get("content").String()

		if role == "system" {
			out.System = append(out.System, converseText{Text: content})
		} else {
			out.Messages = append(out.Messages, converseMessage{
				Role:    role,
				Content: []converseText{{Text: content}},
			})
		}
		return true
	})

	cfg := &inferenceConfig{}
	if v := gjson.GetBytes(body, "max_tokens"); v.Exists() {
		n := v.Int()
		cfg.MaxTokens = &n
	}
	if v := gjson.GetBytes(body, "temperature"); v.Exists() {
		f := v.Float()
		cfg.Temperature = &f
	}
	if v := gjson.GetBytes(body, "top_p"); v.Exists() {
		f := v.Float()
		cfg.TopP = &f
	}
	if v := gjson.GetBytes(body, "top_k"); v.Exists() {
		n := v.Int()
		cfg.TopK = &n
	}
	if v := gjson.GetBytes(body, "stop"); v.Exists() {
		if v.IsArray() {
			for _, s := range v.Array() {
				cfg.StopSequences = append(cfg.StopSequences, s.String())
			}
		} else {
			cfg.StopSequences = []string{v.String()}
		}
	}
	// The stream flag is consumed by path selection, never embedded.
	if cfg.MaxTokens != nil || cfg.Temperature != nil || cfg.TopP != nil ||
		cfg.TopK != nil || cfg.StopSequences != nil {
		out.InferenceConfig = cfg
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrInternal, "bedrock: cannot encode converse request", err)
	}
	return encoded, nil
}

// openAIResponse is the chat.completion shape returned to clients for
// non-streaming Bedrock calls.
type openAIResponse struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"`
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	Choices           []openAIChoice `json:"choices"`
	Usage             *openAIUsage   `json:"usage,omitempty"`
	SystemFingerprint string         `json:"system_fingerprint,omitempty"`
}

type openAIChoice struct {
	Index        int           `json:"index"`
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

// transformConverseResponse reshapes a non-streaming Converse reply into the
// OpenAI chat.completion format. Bodies without Converse output (errors,
// already-translated bodies) pass through unchanged.
func transformConverseResponse(body []byte, model string) ([]byte, error) {
	output := gjson.GetBytes(body, "output")
	if !output.Exists() {
		return body, nil
	}

	content := output.Get("message.content.0.text").String()
	stopReason := gjson.GetBytes(body, "stopReason").String()

	resp := openAIResponse{
		ID:                "chatcmpl-" + shortID(10),
		Object:            "chat.completion",
		Created:           time.Now().Unix(),
		Model:             model,
		SystemFingerprint: "fp_" + shortID(10),
		Choices: []openAIChoice{{
			Index:        0,
			Message:      openAIMessage{Role: "assistant", Content: content},
			FinishReason: mapFinishReason(stopReason),
		}},
	}

	if usage := gjson.GetBytes(body, "usage"); usage.Exists() {
		resp.Usage = &openAIUsage{
			PromptTokens:     usage.Get("inputTokens").Int(),
			CompletionTokens: usage.Get("outputTokens").Int(),
			TotalTokens:      usage.Get("totalTokens").Int(),
		}
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		return nil, gateway.WrapError(gateway.ErrInternal, "bedrock: cannot encode chat completion", err)
	}
	return encoded, nil
}

// mapFinishReason translates Converse stop reasons to OpenAI finish reasons.
func mapFinishReason(stopReason string) string {
	switch stopReason {
	case "max_tokens":
		return "length"
	case "end_turn", "stop_sequence", "":
		return "stop"
	default:
		return "stop"
	}
}

// shortID returns the first n hex characters of a fresh UUID.
func shortID(n int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if n > len(id) {
		n = len(id)
	}
	return id[:n]
}
