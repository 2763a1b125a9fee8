package inference

import (
	"errors"
	"strings"
	"time"

	"github.com/animus-labs/animus-mlops/internal/platform/env"
)

const (
	BackendSageMaker = "sagemaker"
	BackendHTTP      = "http"
)

type Config struct {
	Backend string
	HTTP    HTTPConfig
}

func ConfigFromEnv() (Config, error) {
	timeout, err := env.Duration("INFERENCE_HTTP_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Backend: strings.ToLower(strings.TrimSpace(env.String("INFERENCE_BACKEND", BackendSageMaker))),
		HTTP: HTTPConfig{
			URLTemplate:  strings.TrimSpace(env.String("INFERENCE_HTTP_URL_TEMPLATE", "")),
			Timeout:      timeout,
			TokenURL:     strings.TrimSpace(env.String("INFERENCE_OAUTH_TOKEN_URL", "")),
			ClientID:     strings.TrimSpace(env.String("INFERENCE_OAUTH_CLIENT_ID", "")),
			ClientSecret: env.String("INFERENCE_OAUTH_CLIENT_SECRET", ""),
			Scopes:       env.List("INFERENCE_OAUTH_SCOPES", nil),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Backend {
	case BackendSageMaker:
		return nil
	case BackendHTTP:
		return c.HTTP.Validate()
	default:
		return errors.New("INFERENCE_BACKEND must be sagemaker or http")
	}
}
