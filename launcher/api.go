package main

import (
	"log/slog"
	"net/http"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/pipeline"
	"github.com/animus-labs/animus-mlops/internal/platform/httpserver"
	"github.com/animus-labs/animus-mlops/internal/platform/requestid"
)

type launcherAPI struct {
	logger  *slog.Logger
	handler *lambdaHandler
}

func newLauncherAPI(logger *slog.Logger, runner eventRunner) *launcherAPI {
	return &launcherAPI{logger: logger, handler: newLambdaHandler(logger, runner)}
}

func (api *launcherAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /invoke", api.handleInvoke)
}

type invokeResponse struct {
	Result      string   `json:"result"`
	RequestID   string   `json:"request_id"`
	State       string   `json:"state"`
	Trace       []string `json:"trace,omitempty"`
	ExecutionID string   `json:"execution_id,omitempty"`
	JobName     string   `json:"job_name,omitempty"`
	Duplicate   bool     `json:"duplicate,omitempty"`
	Reported    bool     `json:"reported"`
	Error       string   `json:"error,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
}

// handleInvoke mirrors the lambda contract: the launch outcome is reported to
// the pipeline, so every decoded request answers 200 with the run summary.
func (api *launcherAPI) handleInvoke(w http.ResponseWriter, r *http.Request) {
	reqID, _ := requestid.FromContext(r.Context())
	if reqID == "" {
		reqID = requestid.New()
	}
	body, err := httpserver.ReadBody(r)
	if err != nil {
		httpserver.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "body_too_large", "request_id": reqID})
		return
	}

	res := api.handler.run(r.Context(), body, reqID)
	resp := invokeResponse{
		Result:      pipeline.Done,
		RequestID:   reqID,
		State:       string(res.State),
		ExecutionID: res.ExecutionID,
		JobName:     res.JobName,
		Duplicate:   res.Duplicate,
		Reported:    res.Reported,
	}
	for _, s := range res.Trace {
		resp.Trace = append(resp.Trace, string(s))
	}
	if res.Err != nil {
		resp.Error = res.Err.Error()
		resp.ErrorKind = string(faults.KindOf(res.Err))
	}
	status := http.StatusOK
	if faults.KindOf(res.Err) == faults.KindInputValidation && !res.Reported {
		status = http.StatusBadRequest
	}
	httpserver.WriteJSON(w, status, resp)
}
