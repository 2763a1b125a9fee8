package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/pipeline"
	"github.com/animus-labs/animus-mlops/internal/platform/requestid"
)

func invoke(t *testing.T, runner eventRunner, body string) (*httptest.ResponseRecorder, invokeResponse) {
	t.Helper()
	mux := http.NewServeMux()
	newLauncherAPI(discardLogger(), runner).register(mux)

	req := httptest.NewRequest(http.MethodPost, "http://example.test/invoke", strings.NewReader(body))
	req = req.WithContext(requestid.WithContext(req.Context(), "rid-1"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var resp invokeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v (body=%s)", err, rec.Body.String())
	}
	return rec, resp
}

func TestLauncherAPI_InvokeSuccess(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{
		State:       pipeline.StateReportingSuccess,
		Trace:       []pipeline.State{pipeline.StateIdle, pipeline.StateReportingSuccess},
		ExecutionID: "exec-1",
		JobName:     "mlops-churn-exec-1",
		Reported:    true,
	}}
	rec, resp := invoke(t, runner, testEvent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if resp.Result != pipeline.Done || resp.RequestID != "rid-1" {
		t.Fatalf("resp=%+v", resp)
	}
	if resp.JobName != "mlops-churn-exec-1" || len(resp.Trace) != 2 {
		t.Fatalf("resp=%+v", resp)
	}
	if runner.requestIDs[0] != "rid-1" {
		t.Fatalf("runner request id=%q, want rid-1", runner.requestIDs[0])
	}
}

func TestLauncherAPI_InvokeReportedFailureIs200(t *testing.T) {
	runner := &fakeRunner{result: pipeline.Result{
		State:    pipeline.StateReportingFailure,
		Err:      faults.Errorf(faults.KindArtifactNotFound, "'trainingjob.json' not found"),
		Reported: true,
	}}
	rec, resp := invoke(t, runner, testEvent)
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rec.Code)
	}
	if resp.ErrorKind != string(faults.KindArtifactNotFound) {
		t.Fatalf("error_kind=%q", resp.ErrorKind)
	}
}

func TestLauncherAPI_InvokeBadEvent(t *testing.T) {
	rec, resp := invoke(t, &fakeRunner{}, `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rec.Code)
	}
	if resp.ErrorKind != string(faults.KindInputValidation) {
		t.Fatalf("error_kind=%q", resp.ErrorKind)
	}
}
