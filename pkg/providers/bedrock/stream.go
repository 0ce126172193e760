package bedrock

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"
	"github.com/tidwall/gjson"

	"mercator-hq/helios/pkg/gateway"
	"mercator-hq/helios/pkg/providers"
)

const (
	// preludeLen is total_len(4) + headers_len(4) + prelude_crc(4).
	preludeLen = 12

	// minFrameLen is the prelude plus the trailing message CRC.
	minFrameLen = 16

	// maxFrameLen rejects absurd frame lengths, which indicate the framing
	// was lost; Bedrock payloads are far below this.
	maxFrameLen = 16 << 20
)

// chunkTranslator converts Bedrock event-stream frames into OpenAI-format
// SSE chunks. One translator serves one request; it buffers partial frames
// across reads.
type chunkTranslator struct {
	buf         []byte
	dec         *eventstream.Decoder
	id          string
	model       string
	fingerprint string
	created     int64
	sentRole    bool
}

func newChunkTranslator(model string) *chunkTranslator {
	return &chunkTranslator{
		dec:         eventstream.NewDecoder(),
		id:          "chatcmpl-" + shortID(10),
		model:       model,
		fingerprint: "fp_" + shortID(8),
		created:     time.Now().Unix(),
	}
}

// Translate consumes upstream bytes and emits SSE for every complete frame.
// Frames that fail to decode (bad CRC, malformed headers) are skipped and
// counted; the stream continues at the next frame boundary. A frame length
// outside sane bounds means the framing itself is lost and fails the stream.
func (t *chunkTranslator) Translate(p []byte) (providers.TranslateResult, error) {
	t.buf = append(t.buf, p...)
	var res providers.TranslateResult

	for {
		if len(t.buf) < preludeLen {
			return res, nil
		}
		total := binary.BigEndian.Uint32(t.buf[:4])
		if total < minFrameLen || total > maxFrameLen {
			return res, gateway.NewError(gateway.ErrProtocolError, "bedrock: event-stream frame length out of range")
		}
		if uint32(len(t.buf)) < total {
			return res, nil
		}

		frame := t.buf[:total]
		t.buf = t.buf[total:]

		msg, err := t.dec.Decode(bytes.NewReader(frame), nil)
		if err != nil {
			res.DecodeErrors++
			continue
		}
		if err := t.handleMessage(&msg, &res); err != nil {
			return res, err
		}
	}
}

func (t *chunkTranslator) handleMessage(msg *eventstream.Message, res *providers.TranslateResult) error {
	if h := msg.Headers.Get(":message-type"); h != nil {
		if mt := h.String(); mt != "" && mt != "event" {
			kind := mt
			if exc := msg.Headers.Get(":exception-type"); exc != nil && exc.String() != "" {
				kind = exc.String()
			}
			return gateway.NewError(gateway.ErrProtocolError, "bedrock: stream "+kind+": "+string(msg.Payload))
		}
	}

	eventType := ""
	if h := msg.Headers.Get(":event-type"); h != nil {
		eventType = h.String()
	}

	payload := make([]byte, len(msg.Payload))
	copy(payload, msg.Payload)

	switch eventType {
	case "messageStart":
		// Skipped: it produces no client chunk and no log entry. The
		// assistant role is attached to the first delta chunk instead.

	case "contentBlockDelta":
		text := gjson.GetBytes(payload, "delta.text")
		if !text.Exists() {
			return nil
		}
		content := text.String()
		delta := chunkDelta{Content: &content}
		if !t.sentRole {
			delta.Role = "assistant"
			t.sentRole = true
		}
		res.Client = append(res.Client, t.encodeChunk(delta, nil)...)
		res.Chunks = append(res.Chunks, payload)

	case "messageStop":
		reason := mapFinishReason(gjson.GetBytes(payload, "stopReason").String())
		res.Client = append(res.Client, t.encodeChunk(chunkDelta{}, &reason)...)
		res.Chunks = append(res.Chunks, payload)

	case "metadata":
		res.Usage = providers.ExtractBedrockUsage(payload)
		res.Chunks = append(res.Chunks, payload)
		res.Done = true
	}
	return nil
}

// streamChunk is the OpenAI chat.completion.chunk shape.
type streamChunk struct {
	ID                string         `json:"id"`
	Object            string         `json:"object"`
	Created           int64          `json:"created"`
	Model             string         `json:"model"`
	Choices           []streamChoice `json:"choices"`
	SystemFingerprint string         `json:"system_fingerprint,omitempty"`
}

type streamChoice struct {
	Index        int        `json:"index"`
	Delta        chunkDelta `json:"delta"`
	FinishReason *string    `json:"finish_reason"`
}

type chunkDelta struct {
	Role    string  `json:"role,omitempty"`
	Content *string `json:"content,omitempty"`
}

func (t *chunkTranslator) encodeChunk(delta chunkDelta, finishReason *string) []byte {
	chunk := streamChunk{
		ID:                t.id,
		Object:            "chat.completion.chunk",
		Created:           t.created,
		Model:             t.model,
		SystemFingerprint: t.fingerprint,
		Choices:           []streamChoice{{Index: 0, Delta: delta, FinishReason: finishReason}},
	}
	encoded, err := json.Marshal(chunk)
	if err != nil {
		return nil
	}
	return []byte("data: " + string(encoded) + "\n\n")
}
