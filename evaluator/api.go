package main

import (
	"log/slog"
	"net/http"

	"github.com/animus-labs/animus-mlops/internal/faults"
	"github.com/animus-labs/animus-mlops/internal/platform/httpserver"
	"github.com/animus-labs/animus-mlops/internal/platform/requestid"
)

type evaluatorAPI struct {
	logger  *slog.Logger
	handler *lambdaHandler
}

func newEvaluatorAPI(logger *slog.Logger, runner eventRunner) *evaluatorAPI {
	return &evaluatorAPI{logger: logger, handler: newLambdaHandler(logger, runner)}
}

func (api *evaluatorAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /invoke", api.handleInvoke)
}

func (api *evaluatorAPI) handleInvoke(w http.ResponseWriter, r *http.Request) {
	reqID, _ := requestid.FromContext(r.Context())
	if reqID == "" {
		reqID = requestid.New()
	}
	body, err := httpserver.ReadBody(r)
	if err != nil {
		httpserver.WriteJSON(w, http.StatusRequestEntityTooLarge, map[string]any{"error": "body_too_large", "request_id": reqID})
		return
	}

	out, err := api.handler.run(r.Context(), body, reqID)
	if err != nil {
		kind := faults.KindOf(err)
		httpserver.WriteJSON(w, statusForKind(kind), map[string]any{
			"error":      string(kind),
			"message":    err.Error(),
			"request_id": reqID,
		})
		return
	}
	httpserver.WriteJSON(w, http.StatusOK, out.Summary)
}

func statusForKind(kind faults.Kind) int {
	switch kind {
	case faults.KindInputValidation:
		return http.StatusBadRequest
	case faults.KindDataset:
		return http.StatusUnprocessableEntity
	case faults.KindEndpointInvocation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
