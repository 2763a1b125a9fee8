package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"

	"github.com/animus-labs/animus-mlops/internal/evaluation"
	"github.com/animus-labs/animus-mlops/internal/inference"
	"github.com/animus-labs/animus-mlops/internal/platform/auditlog"
	"github.com/animus-labs/animus-mlops/internal/platform/awsclient"
	"github.com/animus-labs/animus-mlops/internal/platform/httpserver"
	"github.com/animus-labs/animus-mlops/internal/platform/metrics"
	"github.com/animus-labs/animus-mlops/internal/platform/objectstore"
	"github.com/animus-labs/animus-mlops/internal/platform/postgres"
)

type EvaluatorConfig struct {
	Mode      string
	AWS       awsclient.Config
	Inference inference.Config
	Store     objectstore.Config
	DB        postgres.Config
	Audit     auditlog.ExportConfig
	HTTP      HTTPConfig
}

func EvaluatorConfigFromEnv() (EvaluatorConfig, error) {
	var cfg EvaluatorConfig
	var err error

	if cfg.Mode, err = ModeFromEnv("EVALUATOR_MODE"); err != nil {
		return EvaluatorConfig{}, err
	}
	if cfg.AWS, err = awsclient.ConfigFromEnv(); err != nil {
		return EvaluatorConfig{}, err
	}
	if cfg.Inference, err = inference.ConfigFromEnv(); err != nil {
		return EvaluatorConfig{}, err
	}
	if cfg.Store, err = objectstore.ConfigFromEnv(); err != nil {
		return EvaluatorConfig{}, fmt.Errorf("object store: %w", err)
	}
	if cfg.DB, err = postgres.ConfigFromEnv(); err != nil {
		return EvaluatorConfig{}, err
	}
	if cfg.Audit, err = auditlog.ExportConfigFromEnv(); err != nil {
		return EvaluatorConfig{}, err
	}
	if cfg.Mode == ModeHTTP {
		if cfg.HTTP, err = httpConfigFromEnv("EVALUATOR", ":8081", 15*time.Minute); err != nil {
			return EvaluatorConfig{}, err
		}
	}
	return cfg, nil
}

type EvaluatorRuntime struct {
	Evaluator *evaluation.Evaluator
	Metrics   *metrics.Metrics
	Checks    []httpserver.ReadinessCheck

	db *sql.DB
}

func (r *EvaluatorRuntime) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func NewEvaluatorRuntime(ctx context.Context, logger *slog.Logger, cfg EvaluatorConfig) (*EvaluatorRuntime, error) {
	invoker, err := newInvoker(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store, err := objectstore.NewMinioStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	ledger, db, err := openLedger(ctx, logger, cfg.DB, cfg.Audit, "evaluator")
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	ev, err := evaluation.NewEvaluator(evaluation.Deps{
		Store:   store,
		Invoker: invoker,
		Audit:   ledger,
		Metrics: m,
		Logger:  logger,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	var checks []httpserver.ReadinessCheck
	if db != nil {
		checks = append(checks, dbCheck(db))
	}
	logger.Info("evaluator ready", "inference_backend", cfg.Inference.Backend, "region", cfg.AWS.Region)
	return &EvaluatorRuntime{Evaluator: ev, Metrics: m, Checks: checks, db: db}, nil
}

func newInvoker(ctx context.Context, cfg EvaluatorConfig) (inference.Invoker, error) {
	switch cfg.Inference.Backend {
	case inference.BackendSageMaker:
		awsCfg, err := awsclient.Load(ctx, cfg.AWS)
		if err != nil {
			return nil, err
		}
		return newSageMakerInvoker(awsCfg)
	case inference.BackendHTTP:
		return inference.NewHTTPInvoker(ctx, cfg.Inference.HTTP, nil)
	default:
		return nil, fmt.Errorf("unsupported inference backend %q", cfg.Inference.Backend)
	}
}

func newSageMakerInvoker(awsCfg aws.Config) (*inference.SageMakerInvoker, error) {
	return inference.NewSageMakerInvoker(sagemakerruntime.NewFromConfig(awsCfg))
}
