package proxy

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"mercator-hq/helios/pkg/gateway"
)

var (
	ssePrefix = []byte("data:")
	sseDone   = []byte("[DONE]")
)

// sseWriter writes streamed bytes to the client with a per-write deadline
// so a stalled client cannot pin the upstream connection forever.
type sseWriter struct {
	w           http.ResponseWriter
	rc          *http.ResponseController
	idleTimeout time.Duration
}

func newSSEWriter(w http.ResponseWriter, idleTimeout time.Duration) *sseWriter {
	return &sseWriter{w: w, rc: http.NewResponseController(w), idleTimeout: idleTimeout}
}

// Write forwards p and flushes. A write-deadline expiry maps to
// client-stalled; any other write failure means the client went away.
func (s *sseWriter) Write(p []byte) error {
	if s.idleTimeout > 0 {
		_ = s.rc.SetWriteDeadline(time.Now().Add(s.idleTimeout))
	}
	if _, err := s.w.Write(p); err != nil {
		if isTimeout(err) {
			return gateway.WrapError(gateway.ErrClientStalled, "client write deadline exceeded", err)
		}
		return gateway.WrapError(gateway.ErrClientDisconnect, "client write failed", err)
	}
	_ = s.rc.Flush()
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// streamSSE forwards a text/event-stream body byte for byte, invoking tap
// with the payload of every data: line except the terminal [DONE] sentinel.
// The tap must never block; it only appends to the request's accumulator.
func streamSSE(dst *sseWriter, upstream io.Reader, tap func(payload []byte)) error {
	reader := bufio.NewReaderSize(upstream, 32*1024)

	for {
		line, err := reader.ReadBytes('\n')

		if len(line) > 0 {
			if werr := dst.Write(line); werr != nil {
				return werr
			}

			trimmed := bytes.TrimSpace(line)
			if bytes.HasPrefix(trimmed, ssePrefix) {
				payload := bytes.TrimSpace(bytes.TrimPrefix(trimmed, ssePrefix))
				if len(payload) > 0 && !bytes.Equal(payload, sseDone) {
					tap(payload)
				}
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return gateway.WrapError(gateway.ErrProtocolError, "upstream stream read failed", err)
		}
	}
}
