package training

import (
	"errors"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/platform/env"
)

const (
	BackendSageMaker  = "sagemaker"
	BackendKubernetes = "kubernetes"
)

type Config struct {
	Backend           string
	MonitorBus        string
	K8sNamespace      string
	K8sAPIURL         string
	K8sToken          string
	K8sJobTTL         int
	K8sServiceAccount string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Backend:           strings.ToLower(strings.TrimSpace(env.String("TRAINING_BACKEND", BackendSageMaker))),
		MonitorBus:        strings.TrimSpace(env.String("TRAINING_MONITOR_EVENT_BUS", "")),
		K8sNamespace:      strings.TrimSpace(env.String("TRAINING_K8S_NAMESPACE", "")),
		K8sAPIURL:         strings.TrimSpace(env.String("TRAINING_K8S_API_URL", "")),
		K8sToken:          strings.TrimSpace(env.String("TRAINING_K8S_TOKEN", "")),
		K8sServiceAccount: strings.TrimSpace(env.String("TRAINING_K8S_SERVICE_ACCOUNT", "")),
	}
	ttl, err := env.Int("TRAINING_K8S_JOB_TTL_SECONDS", 86400)
	if err != nil {
		return Config{}, err
	}
	cfg.K8sJobTTL = ttl
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSageMaker, BackendKubernetes:
	default:
		return errors.New("TRAINING_BACKEND must be sagemaker or kubernetes")
	}
	if c.K8sJobTTL < 0 {
		return errors.New("TRAINING_K8S_JOB_TTL_SECONDS must be non-negative")
	}
	return nil
}
