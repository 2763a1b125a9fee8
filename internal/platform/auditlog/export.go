package auditlog

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/animus-labs/animus-mlops/internal/platform/env"
)

const (
	ExportNone   = "none"
	ExportStdout = "stdout"
	ExportStderr = "stderr"
)

// ExportConfig selects the NDJSON sink used when no database is configured.
type ExportConfig struct {
	Format      string
	Destination string
}

func ExportConfigFromEnv() (ExportConfig, error) {
	cfg := ExportConfig{
		Format:      strings.ToLower(strings.TrimSpace(env.String("AUDIT_EXPORT_FORMAT", "ndjson"))),
		Destination: strings.ToLower(strings.TrimSpace(env.String("AUDIT_EXPORT_DESTINATION", ExportNone))),
	}
	if err := cfg.Validate(); err != nil {
		return ExportConfig{}, err
	}
	return cfg, nil
}

func (c ExportConfig) Validate() error {
	if c.Format != "ndjson" {
		return fmt.Errorf("unsupported audit export format: %s", c.Format)
	}
	switch c.Destination {
	case ExportNone, ExportStdout, ExportStderr:
		return nil
	default:
		return fmt.Errorf("unsupported audit export destination: %s", c.Destination)
	}
}

// NDJSONExporter writes audit events as newline-delimited JSON.
type NDJSONExporter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewNDJSONExporter(w io.Writer) *NDJSONExporter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	return &NDJSONExporter{enc: enc}
}

type exportEvent struct {
	OccurredAt      string          `json:"occurred_at"`
	Actor           string          `json:"actor"`
	Action          string          `json:"action"`
	ResourceType    string          `json:"resource_type"`
	ResourceID      string          `json:"resource_id"`
	RequestID       string          `json:"request_id,omitempty"`
	Payload         json.RawMessage `json:"payload"`
	IntegritySHA256 string          `json:"integrity_sha256"`
}

func (e *NDJSONExporter) Export(event Event) error {
	if err := event.Validate(); err != nil {
		return err
	}
	payload := event.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	integrity, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(exportEvent{
		OccurredAt:      event.OccurredAt.UTC().Format(time.RFC3339Nano),
		Actor:           strings.TrimSpace(event.Actor),
		Action:          strings.TrimSpace(event.Action),
		ResourceType:    strings.TrimSpace(event.ResourceType),
		ResourceID:      strings.TrimSpace(event.ResourceID),
		RequestID:       strings.TrimSpace(event.RequestID),
		Payload:         payloadJSON,
		IntegritySHA256: integrity,
	})
}
