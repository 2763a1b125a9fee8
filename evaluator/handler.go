package main

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/aws/aws-lambda-go/lambdacontext"

	"github.com/animus-labs/animus-mlops/internal/evaluation"
	"github.com/animus-labs/animus-mlops/internal/platform/requestid"
)

type eventRunner interface {
	Run(ctx context.Context, ev evaluation.Event, requestID string) (evaluation.Outcome, error)
}

type lambdaHandler struct {
	logger *slog.Logger
	runner eventRunner
}

func newLambdaHandler(logger *slog.Logger, runner eventRunner) *lambdaHandler {
	return &lambdaHandler{logger: logger, runner: runner}
}

// Handle returns the summary on success. Every failure is returned to the
// runtime after it has been logged.
func (h *lambdaHandler) Handle(ctx context.Context, raw json.RawMessage) (evaluation.Summary, error) {
	out, err := h.run(ctx, raw, lambdaRequestID(ctx))
	if err != nil {
		return evaluation.Summary{}, err
	}
	return out.Summary, nil
}

func (h *lambdaHandler) run(ctx context.Context, raw []byte, reqID string) (evaluation.Outcome, error) {
	ev, err := evaluation.DecodeEvent(raw)
	if err != nil {
		h.logger.Error("evaluation event rejected", "request_id", reqID, "error", err)
		return evaluation.Outcome{}, err
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
