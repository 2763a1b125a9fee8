package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/animus-labs/animus-mlops/internal/jobspec"
	"github.com/animus-labs/animus-mlops/internal/pipeline"
	"github.com/animus-labs/animus-mlops/internal/platform/auditlog"
	"github.com/animus-labs/animus-mlops/internal/platform/awsclient"
	"github.com/animus-labs/animus-mlops/internal/platform/env"
	"github.com/animus-labs/animus-mlops/internal/platform/httpserver"
	"github.com/animus-labs/animus-mlops/internal/platform/k8s"
	"github.com/animus-labs/animus-mlops/internal/platform/metrics"
	"github.com/animus-labs/animus-mlops/internal/platform/objectstore"
	"github.com/animus-labs/animus-mlops/internal/platform/postgres"
	"github.com/animus-labs/animus-mlops/internal/training"
)

type LauncherConfig struct {
	PipelineName    string
	ModelName       string
	TrainStage      string
	TrainAction     string
	SourceArtifact  string
	SpecEntry       string
	DuplicatePolicy pipeline.DuplicatePolicy
	ProfileFile     string
	Mode            string

	AWS      awsclient.Config
	Training training.Config
	Store    objectstore.Config
	DB       postgres.Config
	Audit    auditlog.ExportConfig
	HTTP     HTTPConfig
}

func LauncherConfigFromEnv() (LauncherConfig, error) {
	var cfg LauncherConfig
	var err error

	if cfg.PipelineName, err = env.Required("PIPELINE_NAME"); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.ModelName, err = env.Required("MODEL_NAME"); err != nil {
		return LauncherConfig{}, err
	}
	cfg.TrainStage = strings.TrimSpace(env.String("LAUNCHER_TRAIN_STAGE", "Train"))
	cfg.TrainAction = strings.TrimSpace(env.String("LAUNCHER_TRAIN_ACTION", "TrainModel"))
	cfg.SourceArtifact = strings.TrimSpace(env.String("LAUNCHER_SOURCE_ARTIFACT", "ModelSourceOutput"))
	cfg.SpecEntry = strings.TrimSpace(env.String("LAUNCHER_SPEC_ENTRY", jobspec.DefaultEntryName))
	cfg.ProfileFile = strings.TrimSpace(env.String("LAUNCHER_CONFIG_FILE", ""))
	if cfg.DuplicatePolicy, err = pipeline.ParseDuplicatePolicy(env.String("LAUNCHER_DUPLICATE_POLICY", "")); err != nil {
		return LauncherConfig{}, fmt.Errorf("LAUNCHER_DUPLICATE_POLICY: %w", err)
	}
	if cfg.Mode, err = ModeFromEnv("LAUNCHER_MODE"); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.AWS, err = awsclient.ConfigFromEnv(); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.Training, err = training.ConfigFromEnv(); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.Store, err = objectstore.ConfigFromEnv(); err != nil {
		return LauncherConfig{}, fmt.Errorf("object store: %w", err)
	}
	if cfg.DB, err = postgres.ConfigFromEnv(); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.Audit, err = auditlog.ExportConfigFromEnv(); err != nil {
		return LauncherConfig{}, err
	}
	if cfg.Mode == ModeHTTP {
		if cfg.HTTP, err = httpConfigFromEnv("LAUNCHER", ":8080", 2*time.Minute); err != nil {
			return LauncherConfig{}, err
		}
	}
	return cfg, nil
}

// Settings returns the launcher settings for the resolved account.
func (c LauncherConfig) Settings(accountID string) pipeline.Settings {
	return pipeline.Settings{
		PipelineName:   c.PipelineName,
		TrainStage:     c.TrainStage,
		TrainAction:    c.TrainAction,
		SourceArtifact: c.SourceArtifact,
		Identity: jobspec.Identity{
			AccountID: accountID,
			Region:    c.AWS.Region,
			ModelName: c.ModelName,
		},
		DuplicatePolicy: c.DuplicatePolicy,
	}
}

// LauncherRuntime is a fully wired launcher plus the handles http mode needs.
type LauncherRuntime struct {
	Launcher *pipeline.Launcher
	Metrics  *metrics.Metrics
	Checks   []httpserver.ReadinessCheck
	Backend  string

	db *sql.DB
}

func (r *LauncherRuntime) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func NewLauncherRuntime(ctx context.Context, logger *slog.Logger, cfg LauncherConfig) (*LauncherRuntime, error) {
	awsCfg, err := awsclient.Load(ctx, cfg.AWS)
	if err != nil {
		return nil, err
	}
	accountID, err := awsclient.AccountID(ctx, cfg.AWS, sts.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	settings := cfg.Settings(accountID)

	profile, err := LoadProfile(cfg.ProfileFile)
	if err != nil {
		return nil, err
	}
	composer, err := profile.Composer()
	if err != nil {
		return nil, err
	}

	store, err := objectstore.NewMinioStore(cfg.Store)
	if err != nil {
		return nil, err
	}
	extractor, err := jobspec.NewExtractor(store, cfg.SpecEntry)
	if err != nil {
		return nil, err
	}
	orchestrator, err := pipeline.NewCodePipeline(codepipeline.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	svc, err := newTrainingService(cfg.Training, awsCfg)
	if err != nil {
		return nil, err
	}

	ledger, db, err := openLedger(ctx, logger, cfg.DB, cfg.Audit, "launcher")
	if err != nil {
		return nil, err
	}
	m := metrics.New()

	launcher, err := pipeline.NewLauncher(settings, pipeline.Deps{
		Orchestrator: orchestrator,
		Extractor:    extractor,
		Composer:     composer,
		Training:     svc,
		Audit:        ledger,
		Metrics:      m,
		Logger:       logger,
	})
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return nil, err
	}

	bucket := composer.Names(settings.Identity, jobspec.Execution{PipelineName: settings.PipelineName}).Bucket
	checks := []httpserver.ReadinessCheck{{
		Name: "objectstore",
		Check: func(ctx context.Context) error {
			checkCtx, cancel := context.WithTimeout(ctx, 750*time.Millisecond)
			defer cancel()
			return store.BucketExists(checkCtx, bucket)
		},
	}}
	if db != nil {
		checks = append(checks, dbCheck(db))
	}

	logger.Info("launcher ready",
		"pipeline", settings.PipelineName,
		"model", settings.Identity.ModelName,
		"region", settings.Identity.Region,
		"account_id", accountID,
		"backend", svc.Kind(),
		"duplicate_policy", string(settings.DuplicatePolicy),
		"bucket", bucket,
	)
	return &LauncherRuntime{Launcher: launcher, Metrics: m, Checks: checks, Backend: svc.Kind(), db: db}, nil
}

func newTrainingService(cfg training.Config, awsCfg aws.Config) (training.Service, error) {
	switch cfg.Backend {
	case training.BackendSageMaker:
		return training.NewSageMakerService(sagemaker.NewFromConfig(awsCfg), eventbridge.NewFromConfig(awsCfg), cfg.MonitorBus)
	case training.BackendKubernetes:
		client, err := newK8sClient(cfg)
		if err != nil {
			return nil, err
		}
		namespace := cfg.K8sNamespace
		if namespace == "" {
			namespace = client.Namespace()
		}
		return training.NewKubernetesService(client, namespace, int32(cfg.K8sJobTTL), cfg.K8sServiceAccount)
	default:
		return nil, fmt.Errorf("unsupported training backend %q", cfg.Backend)
	}
}

func newK8sClient(cfg training.Config) (*k8s.Client, error) {
	if cfg.K8sAPIURL == "" {
		return k8s.NewInClusterClient()
	}
	if cfg.K8sToken == "" {
		return nil, errors.New("TRAINING_K8S_TOKEN is required with TRAINING_K8S_API_URL")
	}
	return k8s.NewClient(cfg.K8sAPIURL, cfg.K8sToken, cfg.K8sNamespace, nil)
}
