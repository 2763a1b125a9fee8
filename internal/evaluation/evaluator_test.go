package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/platform/auditlog"
	"github.com/animus-labs/animus-mlops/internal/platform/objectstore"
)

type memoryStore struct {
	objects map[string][]byte
	gets    int
	putErr  error
}

func (m *memoryStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, objectstore.ObjectInfo, error) {
	m.gets++
	data, ok := m.objects[bucket+"/"+key]
	if !ok {
		return nil, objectstore.ObjectInfo{}, objectstore.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), objectstore.ObjectInfo{Key: key, Size: int64(len(data))}, nil
}

func (m *memoryStore) Put(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) error {
	if m.putErr != nil {
		return m.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.objects[bucket+"/"+key] = data
	return nil
}

// scriptedInvoker records payloads in call order and answers call i with respond.
type scriptedInvoker struct {
	payloads []string
	respond  func(i int, payload string) ([]byte, error)
}

func (s *scriptedInvoker) Invoke(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	i := len(s.payloads)
	s.payloads = append(s.payloads, string(payload))
	return s.respond(i, string(payload))
}

type recordingAudit struct {
	events []auditlog.Event
}

func (r *recordingAudit) Record(ctx context.Context, event auditlog.Event) error {
	r.events = append(r.events, event)
	return nil
}

const testDataset = "1,3,4\n0,1,0\n1,0,2\n"

func testEvaluationEvent() Event {
	return Event{Bucket: "mlops", Key: "exec-1/testing/test.csv", OutputKey: "exec-1/evaluation", EndpointName: "abalone-dev"}
}

func newTestEvaluator(t *testing.T, store *memoryStore, inv *scriptedInvoker, audit *recordingAudit) *Evaluator {
	t.Helper()
	deps := Deps{Store: store, Invoker: inv}
	if audit != nil {
		deps.Audit = audit
	}
	e, err := NewEvaluator(deps)
	if err != nil {
		t.Fatalf("NewEvaluator() err=%v", err)
	}
	return e
}

func TestEvaluator_Run(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"mlops/exec-1/testing/test.csv": []byte(testDataset)}}
	inv := &scriptedInvoker{respond: func(i int, payload string) ([]byte, error) { return []byte("0.5\n"), nil }}
	audit := &recordingAudit{}
	e := newTestEvaluator(t, store, inv, audit)

	out, err := e.Run(context.Background(), testEvaluationEvent(), "req-1")
	if err != nil {
		t.Fatalf("Run() err=%v", err)
	}

	wantPayloads := []string{"0.6,0.8", "1,0", "0,1"}
	if len(inv.payloads) != len(wantPayloads) {
		t.Fatalf("invocations=%d, want %d", len(inv.payloads), len(wantPayloads))
	}
	for i, want := range wantPayloads {
		if inv.payloads[i] != want {
			t.Fatalf("payload[%d]=%q, want %q", i, inv.payloads[i], want)
		}
	}

	if math.Abs(out.Metrics.MSE-0.25) > 1e-12 || math.Abs(out.Summary.Result-0.5) > 1e-12 {
		t.Fatalf("metrics=%+v summary=%+v", out.Metrics, out.Summary)
	}
	if out.Summary.StatusCode != 200 || !strings.HasSuffix(out.Summary.AvgResponseTime, " seconds") {
		t.Fatalf("summary=%+v", out.Summary)
	}
	if out.ReportKey != "exec-1/evaluation/evaluation.json" {
		t.Fatalf("report key=%q", out.ReportKey)
	}

	raw, ok := store.objects["mlops/exec-1/evaluation/evaluation.json"]
	if !ok {
		t.Fatalf("report not written")
	}
	var report map[string]map[string]map[string]float64
	if err := json.Unmarshal(raw, &report); err != nil {
		t.Fatalf("report is not json: %v", err)
	}
	mse := report["regression_metrics"]["mse"]
	if math.Abs(mse["value"]-0.25) > 1e-12 || math.Abs(mse["standard_deviation"]-math.Sqrt(2.0)/3) > 1e-12 {
		t.Fatalf("report=%s", raw)
	}
	if !bytes.Contains(raw, []byte("\n    \"regression_metrics\"")) {
		t.Fatalf("report is not indented: %s", raw)
	}
	if len(audit.events) != 1 || audit.events[0].ResourceID != "abalone-dev" {
		t.Fatalf("audit=%+v", audit.events)
	}
}

func TestEvaluator_FailsFastWithoutReport(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"mlops/exec-1/testing/test.csv": []byte(testDataset)}}
	inv := &scriptedInvoker{respond: func(i int, payload string) ([]byte, error) {
		if i == 1 {
			return nil, errors.New("ModelError: received server error (500)")
		}
		return []byte("1"), nil
	}}
	e := newTestEvaluator(t, store, inv, nil)

	_, err := e.Run(context.Background(), testEvaluationEvent(), "req-2")
	if !faults.Is(err, faults.KindEndpointInvocation) {
		t.Fatalf("Run() err=%v, want EndpointInvocationError", err)
	}
	if len(inv.payloads) != 2 {
		t.Fatalf("invocations=%d, want 2", len(inv.payloads))
	}
	if _, ok := store.objects["mlops/exec-1/evaluation/evaluation.json"]; ok {
		t.Fatalf("report written after a failed invocation")
	}
}

func TestEvaluator_UnparseablePrediction(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"mlops/exec-1/testing/test.csv": []byte(testDataset)}}
	inv := &scriptedInvoker{respond: func(i int, payload string) ([]byte, error) { return []byte("not-a-number"), nil }}
	e := newTestEvaluator(t, store, inv, nil)

	if _, err := e.Run(context.Background(), testEvaluationEvent(), "req-3"); !faults.Is(err, faults.KindEndpointInvocation) {
		t.Fatalf("Run() err=%v, want EndpointInvocationError", err)
	}
	if len(inv.payloads) != 1 {
		t.Fatalf("invocations=%d, want 1", len(inv.payloads))
	}
}

func TestEvaluator_InvalidEventMakesNoCalls(t *testing.T) {
	for _, field := range requiredFields {
		t.Run(field, func(t *testing.T) {
			store := &memoryStore{objects: map[string][]byte{}}
			inv := &scriptedInvoker{respond: func(int, string) ([]byte, error) { return []byte("0"), nil }}
			e := newTestEvaluator(t, store, inv, nil)

			ev := testEvaluationEvent()
			switch field {
			case "Bucket":
				ev.Bucket = ""
			case "Key":
				ev.Key = ""
			case "Output_Key":
				ev.OutputKey = ""
			case "Endpoint_Name":
				ev.EndpointName = ""
			}
			_, err := e.Run(context.Background(), ev, "req-4")
			if !faults.Is(err, faults.KindInputValidation) {
				t.Fatalf("Run() err=%v, want InputValidationError", err)
			}
			if store.gets != 0 || len(inv.payloads) != 0 {
				t.Fatalf("gets=%d invocations=%d, want none", store.gets, len(inv.payloads))
			}
		})
	}
}

func TestEvaluator_DatasetErrors(t *testing.T) {
	inv := &scriptedInvoker{respond: func(int, string) ([]byte, error) { return []byte("0"), nil }}

	missing := newTestEvaluator(t, &memoryStore{objects: map[string][]byte{}}, inv, nil)
	if _, err := missing.Run(context.Background(), testEvaluationEvent(), "req-5"); !faults.Is(err, faults.KindDataset) {
		t.Fatalf("Run(missing) err=%v, want DatasetError", err)
	}

	bad := newTestEvaluator(t, &memoryStore{objects: map[string][]byte{"mlops/exec-1/testing/test.csv": []byte("y,a,b\n")}}, inv, nil)
	if _, err := bad.Run(context.Background(), testEvaluationEvent(), "req-6"); !faults.Is(err, faults.KindDataset) {
		t.Fatalf("Run(header) err=%v, want DatasetError", err)
	}
	if len(inv.payloads) != 0 {
		t.Fatalf("invocations=%d, want 0", len(inv.payloads))
	}
}

func TestEvaluator_OversizedDataset(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		wantErr bool
	}{
		{name: "cut on a line boundary", limit: 12, wantErr: true},
		{name: "cut inside a value", limit: 16, wantErr: true},
		{name: "one byte short", limit: int64(len(testDataset)) - 1, wantErr: true},
		{name: "exact size", limit: int64(len(testDataset))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store := &memoryStore{objects: map[string][]byte{"mlops/exec-1/testing/test.csv": []byte(testDataset)}}
			inv := &scriptedInvoker{respond: func(int, string) ([]byte, error) { return []byte("1"), nil }}
			e := newTestEvaluator(t, store, inv, nil)
			e.maxDatasetBytes = tc.limit

			_, err := e.Run(context.Background(), testEvaluationEvent(), "req-8")
			if !tc.wantErr {
				if err != nil {
					t.Fatalf("Run() err=%v", err)
				}
				if len(inv.payloads) != 3 {
					t.Fatalf("invocations=%d, want 3", len(inv.payloads))
				}
				return
			}
			if !faults.Is(err, faults.KindDataset) || !errors.Is(err, ErrDatasetTooLarge) {
				t.Fatalf("Run() err=%v, want DatasetError wrapping ErrDatasetTooLarge", err)
			}
			if len(inv.payloads) != 0 {
				t.Fatalf("invocations=%d, want 0", len(inv.payloads))
			}
			if _, ok := store.objects["mlops/exec-1/evaluation/evaluation.json"]; ok {
				t.Fatalf("report written for an oversized dataset")
			}
		})
	}
}

func TestEvaluator_ReportPersistError(t *testing.T) {
	store := &memoryStore{
		objects: map[string][]byte{"mlops/exec-1/testing/test.csv": []byte(testDataset)},
		putErr:  fmt.Errorf("AccessDenied"),
	}
	inv := &scriptedInvoker{respond: func(int, string) ([]byte, error) { return []byte("1"), nil }}
	audit := &recordingAudit{}
	e := newTestEvaluator(t, store, inv, audit)

	_, err := e.Run(context.Background(), testEvaluationEvent(), "req-7")
	if !faults.Is(err, faults.KindReportPersist) {
		t.Fatalf("Run() err=%v, want ReportPersistError", err)
	}
	if len(audit.events) != 1 {
		t.Fatalf("audit events=%d, want 1", len(audit.events))
	}
}

func TestReportKey(t *testing.T) {
	if got := ReportKey("exec-1/evaluation/"); got != "exec-1/evaluation/evaluation.json" {
		t.Fatalf("ReportKey()=%q", got)
	}
}
