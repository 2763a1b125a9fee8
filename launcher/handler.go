package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/animus-labs/animus-mlops/internal/pipeline"
	"github.com/animus-labs/animus-mlops/internal/platform/requestid"
)

type eventRunner interface {
	Run(ctx context.Context, ev pipeline.Event, requestID string) pipeline.Result
}

type lambdaHandler struct {
	logger *slog.Logger
	runner eventRunner
}

func newLambdaHandler(logger *slog.Logger, runner eventRunner) *lambdaHandler {
	return &lambdaHandler{logger: logger, runner: runner}
}

// Handle never returns an error: the outcome is reported to the pipeline, and
// an event that cannot be decoded has no job id to report against.
func (h *lambdaHandler) Handle(ctx context.Context, raw json.RawMessage) (string, error) {
	reqID := lambdaRequestID(ctx)
	h.run(ctx, raw, reqID)
	return pipeline.Done, nil
}

func (h *lambdaHandler) run(ctx context.Context, raw []byte, reqID string) pipeline.Result {
	ev, err := pipeline.DecodeEvent(raw)
	if err != nil {
		h.logger.Error("job event rejected", "request_id", reqID, "error", err)
		return pipeline.Result{State: pipeline.StateReportingFailure, Err: err}
	}
	return h.runner.Run(requestid.WithContext(ctx, reqID), ev, reqID)
}

func lambdaRequestID(ctx context.Context) string {
	if lc, ok := lambdacontext.FromContext(ctx); ok && lc.AwsRequestID != "" {
		return lc.AwsRequestID
	}
	if id, ok := requestid.FromContext(ctx); ok {
		return id
	}
	return requestid.New()
}
