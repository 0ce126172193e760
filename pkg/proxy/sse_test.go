package proxy

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStreamSSEPassThroughAndTap(t *testing.T) {
	upstream := "data: {\"choices\":[{\"delta\":{\"content\":\"a\"}}]}\n\n" +
		": keep-alive comment\n" +
		"data: {\"choices\":[{\"delta\":{\"content\":\"b\"}}]}\n\n" +
		"data: [DONE]\n\n"

	rec := httptest.NewRecorder()
	dst := newSSEWriter(rec, time.Second)

	var tapped []string
	err := streamSSE(dst, strings.NewReader(upstream), func(payload []byte) {
		tapped = append(tapped, string(payload))
	})
	if err != nil {
		t.Fatalf("streamSSE() error: %v", err)
	}

	// Byte-for-byte pass-through, including comments and the sentinel.
	if got := rec.Body.String(); got != upstream {
		t.Errorf("client bytes differ from upstream:\ngot  %q\nwant %q", got, upstream)
	}

	// The tap sees the data payloads only, minus [DONE].
	if len(tapped) != 2 {
		t.Fatalf("tapped %d payloads, want 2: %v", len(tapped), tapped)
	}
	if !strings.Contains(tapped[0], `"a"`) || !strings.Contains(tapped[1], `"b"`) {
		t.Errorf("tap order or content wrong: %v", tapped)
	}
}

func TestStreamSSEConcatInvariant(t *testing.T) {
	// For a well-formed SSE upstream, re-encoding the tapped payloads as
	// SSE and appending the sentinel reproduces the client bytes.
	chunks := []string{
		`{"choices":[{"delta":{"content":"one"}}]}`,
		`{"choices":[{"delta":{"content":"two"}}]}`,
		`{"choices":[{"delta":{"content":"three"}}]}`,
	}
	var upstream strings.Builder
	for _, c := range chunks {
		upstream.WriteString("data: " + c + "\n\n")
	}
	upstream.WriteString("data: [DONE]\n\n")

	rec := httptest.NewRecorder()
	var tapped []string
	err := streamSSE(newSSEWriter(rec, 0), strings.NewReader(upstream.String()), func(p []byte) {
		tapped = append(tapped, string(p))
	})
	if err != nil {
		t.Fatal(err)
	}

	var rebuilt strings.Builder
	for _, c := range tapped {
		rebuilt.WriteString("data: " + c + "\n\n")
	}
	rebuilt.WriteString("data: [DONE]\n\n")

	if rebuilt.String() != rec.Body.String() {
		t.Errorf("concat(streamed_data) + sentinel != client bytes\ngot  %q\nwant %q",
			rebuilt.String(), rec.Body.String())
	}
}

func TestStreamSSEWithoutTrailingNewline(t *testing.T) {
	rec := httptest.NewRecorder()
	var tapped int
	err := streamSSE(newSSEWriter(rec, 0), strings.NewReader("data: {\"x\":1}"), func([]byte) {
		tapped++
	})
	if err != nil {
		t.Fatalf("streamSSE() error: %v", err)
	}
	if tapped != 1 {
		t.Errorf("tapped = %d, want 1 (final unterminated line)", tapped)
	}
	if rec.Body.String() != "data: {\"x\":1}" {
		t.Errorf("client bytes = %q", rec.Body.String())
	}
}
