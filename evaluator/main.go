package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/animus-labs/animus-mlops/internal/app"
	"github.com/animus-labs/animus-mlops/internal/platform/auth"
	"github.com/animus-labs/animus-mlops/internal/platform/httpserver"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.EvaluatorConfigFromEnv()
	if err != nil {
		logger.Error("invalid evaluator config", "error", err)
		os.Exit(2)
	}

	rt, err := app.NewEvaluatorRuntime(ctx, logger, cfg)
	if err != nil {
		logger.Error("evaluator init failed", "error", err)
		os.Exit(1)
	}
	defer func() { _ = rt.Close() }()

	if cfg.Mode == app.ModeLambda {
		lambda.StartWithOptions(newLambdaHandler(logger, rt.Evaluator).Handle, lambda.WithContext(ctx))
		return
	}

	authn, err := cfg.HTTP.Authenticator(ctx)
	if err != nil {
		logger.Error("invalid auth config", "error", err)
		os.Exit(2)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", httpserver.Healthz("evaluator"))
	mux.HandleFunc("/readyz", httpserver.ReadyzWithChecks("evaluator", rt.Checks...))
	mux.Handle("GET /metrics", rt.Metrics.Handler())
	newEvaluatorAPI(logger, rt.Evaluator).register(mux)

	handler := auth.Middleware{
		Logger:        logger,
		Authenticator: authn,
		SkipPrefixes:  []string{"/healthz", "/readyz", "/metrics"},
	}.Wrap(mux)

	serverCfg := httpserver.Config{
		Service:         "evaluator",
		Addr:            cfg.HTTP.Addr,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		WriteTimeout:    cfg.HTTP.WriteTimeout,
	}
	if err := httpserver.Run(ctx, logger, serverCfg, httpserver.Wrap(logger, handler)); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}
