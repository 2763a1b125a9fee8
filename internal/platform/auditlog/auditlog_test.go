package auditlog

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestComputeIntegritySHA256_Deterministic(t *testing.T) {
	occurredAt := time.Unix(1700000000, 0).UTC()
	event := Event{
		OccurredAt:   occurredAt,
		Actor:        "launcher",
		Action:       "training_launch.succeeded",
		ResourceType: "training_job",
		ResourceID:   "mlops-abalone-exec-1",
		RequestID:    "req-123",
	}
	payloadJSON := []byte(`{"a":1,"b":"x"}`)

	a, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, payloadJSON)
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a != b {
		t.Fatalf("integrity mismatch: %q vs %q", a, b)
	}
}

func TestComputeIntegritySHA256_ChangesOnPayload(t *testing.T) {
	occurredAt := time.Unix(1700000000, 0).UTC()
	event := Event{
		OccurredAt:   occurredAt,
		Actor:        "evaluator",
		Action:       "evaluation.completed",
		ResourceType: "endpoint",
		ResourceID:   "abalone-dev",
	}

	a, err := ComputeIntegritySHA256(event, []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	b, err := ComputeIntegritySHA256(event, []byte(`{"a":2}`))
	if err != nil {
		t.Fatalf("ComputeIntegritySHA256() err=%v", err)
	}
	if a == b {
		t.Fatalf("expected integrity to differ")
	}
}

func TestEventValidate(t *testing.T) {
	event := Event{OccurredAt: time.Now(), Actor: "launcher", Action: "a", ResourceType: "t"}
	if err := event.Validate(); err == nil {
		t.Fatalf("Validate() expected error without ResourceID")
	}
	event.ResourceID = "r"
	if err := event.Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
}

func TestLedger_NilDiscards(t *testing.T) {
	l := NewLedger(nil, "launcher")
	if l != nil {
		t.Fatalf("NewLedger(nil) = %v, want nil", l)
	}
	if err := l.Record(context.Background(), Event{}); err != nil {
		t.Fatalf("Record() on nil ledger err=%v", err)
	}
}

func TestExportLedger_WritesNDJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewExportLedger(&buf, "evaluator")
	l.now = func() time.Time { return time.Unix(1700000000, 0) }

	event := Event{
		Action:       "endpoint.evaluate",
		ResourceType: "endpoint",
		ResourceID:   "churn-endpoint",
		RequestID:    "req-1",
		Payload:      map[string]any{"rmse": 0.5},
	}
	if err := l.Record(context.Background(), event); err != nil {
		t.Fatalf("Record() err=%v", err)
	}
	if err := l.Record(context.Background(), event); err != nil {
		t.Fatalf("Record() err=%v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("lines=%d, want 2", len(lines))
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["actor"] != "evaluator" || got["occurred_at"] != "2023-11-14T22:13:20Z" {
		t.Fatalf("event=%v", got)
	}
	if got["integrity_sha256"] == "" || lines[0] != lines[1] {
		t.Fatalf("expected identical lines with integrity, got %q vs %q", lines[0], lines[1])
	}
}

func TestExportLedger_RejectsInvalidEvent(t *testing.T) {
	var buf bytes.Buffer
	l := NewExportLedger(&buf, "launcher")
	if err := l.Record(context.Background(), Event{Action: "training.launch"}); err == nil {
		t.Fatalf("expected validation error")
	}
	if buf.Len() != 0 {
		t.Fatalf("nothing should be written, got %q", buf.String())
	}
}

func TestExportConfigFromEnv(t *testing.T) {
	t.Setenv("AUDIT_EXPORT_FORMAT", "ndjson")
	t.Setenv("AUDIT_EXPORT_DESTINATION", "stderr")
	cfg, err := ExportConfigFromEnv()
	if err != nil {
		t.Fatalf("ExportConfigFromEnv() err=%v", err)
	}
	if cfg.Destination != ExportStderr {
		t.Fatalf("Destination=%q", cfg.Destination)
	}
	t.Setenv("AUDIT_EXPORT_DESTINATION", "http")
	if _, err := ExportConfigFromEnv(); err == nil {
		t.Fatalf("expected error for http destination")
	}
}
