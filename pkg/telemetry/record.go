// Package telemetry assembles one structured log record per proxied request
// and dispatches it to the configured exporters without ever blocking the
// data path.
package telemetry

import (
	"encoding/json"
	"time"

	"mercator-hq/helios/pkg/gateway"
)

// Request status values recorded on the telemetry record.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusAborted = "aborted"
)

// RequestMetrics accumulates everything observed about one request. It is
// created when the dispatcher accepts the request, mutated only by the
// goroutine driving that request, and becomes immutable once handed to the
// collector.
type RequestMetrics struct {
	ID       string
	ThreadID string

	Provider string
	Model    string
	Path     string
	Method   string

	ProjectID    string
	OrgID        string
	UserID       string
	ExperimentID string

	// RequestBody and ResponseBody are retained verbatim when they are
	// valid JSON.
	RequestBody  json.RawMessage
	ResponseBody json.RawMessage

	// StreamedData holds the decoded chunk payloads in receive order,
	// capped at maxChunks; overflow sets Truncated without touching the
	// client stream.
	StreamedData []json.RawMessage
	Truncated    bool
	maxChunks    int

	RequestSize  int
	ResponseSize int

	StatusCode         int
	ProviderStatusCode int

	Start           time.Time
	TotalLatency    time.Duration
	ProviderLatency time.Duration

	Usage gateway.TokenUsage
	Cost  *float64

	Status             string
	ErrorType          string
	ErrorCount         int
	ProviderErrorType  string
	ProviderErrorCount int

	ProviderRequestID string
	DecodeErrors      int
}

// NewRequestMetrics creates an accumulator for one request.
func NewRequestMetrics(id string, maxChunks int) *RequestMetrics {
	return &RequestMetrics{
		ID:        id,
		Start:     time.Now(),
		maxChunks: maxChunks,
	}
}

// SetRequestBody retains the request body when it is valid JSON.
func (m *RequestMetrics) SetRequestBody(body []byte) {
	m.RequestSize = len(body)
	if json.Valid(body) {
		m.RequestBody = json.RawMessage(body)
	}
}

// SetResponseBody retains the response body when it is valid JSON.
func (m *RequestMetrics) SetResponseBody(body []byte) {
	if json.Valid(body) {
		m.ResponseBody = json.RawMessage(body)
	}
}

// AppendChunk records one decoded streamed chunk, bounded by the configured
// cap. The terminal [DONE] sentinel is never passed here.
func (m *RequestMetrics) AppendChunk(payload []byte) {
	if m.maxChunks > 0 && len(m.StreamedData) >= m.maxChunks {
		m.Truncated = true
		return
	}
	chunk := make([]byte, len(payload))
	copy(chunk, payload)
	m.StreamedData = append(m.StreamedData, json.RawMessage(chunk))
}

// SetError marks the request failed with a gateway error type.
func (m *RequestMetrics) SetError(t gateway.ErrorType) {
	m.Status = StatusError
	m.ErrorType = string(t)
	m.ErrorCount++
}

// SetProviderError records an upstream non-2xx outcome.
func (m *RequestMetrics) SetProviderError(statusCode int) {
	m.Status = StatusError
	m.ErrorType = string(gateway.ErrProviderError)
	m.ErrorCount++
	m.ProviderErrorType = string(gateway.ErrProviderError)
	m.ProviderErrorCount++
	m.ProviderStatusCode = statusCode
}

// SetAborted marks the request aborted by the client side.
func (m *RequestMetrics) SetAborted(t gateway.ErrorType) {
	m.Status = StatusAborted
	m.ErrorType = string(t)
}

// Finalize stamps the total latency and resolves the status: a record that
// saw no failure is a success.
func (m *RequestMetrics) Finalize() {
	m.TotalLatency = time.Since(m.Start)
	if m.Status == "" {
		m.Status = StatusSuccess
	}
}

// Resource identifies the emitting service on every log record.
type Resource struct {
	ServiceName    string `json:"service.name"`
	ServiceVersion string `json:"service.version"`
	Environment    string `json:"deployment.environment"`
}

// LogRecord is the exported per-request document.
type LogRecord struct {
	Timestamp  time.Time  `json:"timestamp"`
	Resource   Resource   `json:"resource"`
	Name       string     `json:"name"`
	Attributes Attributes `json:"attributes"`
}

// Attributes is the attribute block of a log record.
type Attributes struct {
	ID           string `json:"id"`
	ThreadID     string `json:"thread_id,omitempty"`
	OrgID        string `json:"org_id,omitempty"`
	UserID       string `json:"user_id,omitempty"`
	ProjectID    string `json:"project_id,omitempty"`
	ExperimentID string `json:"experiment_id,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`

	Request  json.RawMessage `json:"request,omitempty"`
	Response map[string]any  `json:"response,omitempty"`

	Metadata Metadata `json:"metadata"`
}

// Metadata is the metrics block of a log record. Latencies are in
// milliseconds.
type Metadata struct {
	Latency         int64 `json:"latency"`
	ProviderLatency int64 `json:"provider_latency"`

	Tokens *gateway.TokenUsage `json:"tokens,omitempty"`
	Cost   *float64            `json:"cost,omitempty"`

	Status string `json:"status"`
	Path   string `json:"path"`
	Method string `json:"method"`

	RequestSize  int `json:"request_size"`
	ResponseSize int `json:"response_size"`

	StatusCode         int `json:"status_code"`
	ProviderStatusCode int `json:"provider_status_code,omitempty"`

	ErrorCount         int    `json:"error_count"`
	ErrorType          string `json:"error_type,omitempty"`
	ProviderErrorCount int    `json:"provider_error_count"`
	ProviderErrorType  string `json:"provider_error_type,omitempty"`

	ProviderRequestID string `json:"provider_request_id,omitempty"`
	DecodeErrors      int    `json:"decode_errors,omitempty"`
	Truncated         bool   `json:"truncated"`
}

// BuildLogRecord assembles the exported document from a finalized
// accumulator. The response block carries the final JSON body's fields with
// streamed_data appended for streaming requests.
func BuildLogRecord(m *RequestMetrics, res Resource) *LogRecord {
	rec := &LogRecord{
		Timestamp: time.Now().UTC(),
		Resource:  res,
		Name:      "ai_gateway_request_log",
		Attributes: Attributes{
			ID:           m.ID,
			ThreadID:     m.ThreadID,
			OrgID:        m.OrgID,
			UserID:       m.UserID,
			ProjectID:    m.ProjectID,
			ExperimentID: m.ExperimentID,
			Provider:     m.Provider,
			Model:        m.Model,
			Request:      m.RequestBody,
			Response:     buildResponseBlock(m),
			Metadata: Metadata{
				Latency:            m.TotalLatency.Milliseconds(),
				ProviderLatency:    m.ProviderLatency.Milliseconds(),
				Cost:               m.Cost,
				Status:             m.Status,
				Path:               m.Path,
				Method:             m.Method,
				RequestSize:        m.RequestSize,
				ResponseSize:       m.ResponseSize,
				StatusCode:         m.StatusCode,
				ProviderStatusCode: m.ProviderStatusCode,
				ErrorCount:         m.ErrorCount,
				ErrorType:          m.ErrorType,
				ProviderErrorCount: m.ProviderErrorCount,
				ProviderErrorType:  m.ProviderErrorType,
				ProviderRequestID:  m.ProviderRequestID,
				DecodeErrors:       m.DecodeErrors,
				Truncated:          m.Truncated,
			},
		},
	}
	if !m.Usage.IsZero() {
		usage := m.Usage
		rec.Attributes.Metadata.Tokens = &usage
	}
	return rec
}

func buildResponseBlock(m *RequestMetrics) map[string]any {
	if m.ResponseBody == nil && m.StreamedData == nil {
		return nil
	}

	block := make(map[string]any)
	if m.ResponseBody != nil {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(m.ResponseBody, &fields); err == nil {
			for k, v := range fields {
				block[k] = v
			}
		} else {
			block["body"] = m.ResponseBody
		}
	}
	if m.StreamedData != nil {
		block["streamed_data"] = m.StreamedData
	}
	return block
}
