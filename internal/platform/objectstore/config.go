package objectstore

import (
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/platform/env"
)

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

func ConfigFromEnv() (Config, error) {
	useSSL, err := env.Bool("OBJECTSTORE_USE_SSL", true)
	if err != nil {
		return Config{}, err
	}
	region := env.String("OBJECTSTORE_REGION", "")
	if strings.TrimSpace(region) == "" {
		region = env.String("AWS_REGION", "eu-west-1")
	}
	cfg := Config{
		Endpoint:  env.String("OBJECTSTORE_ENDPOINT", "s3.amazonaws.com"),
		AccessKey: env.String("OBJECTSTORE_ACCESS_KEY", ""),
		SecretKey: env.String("OBJECTSTORE_SECRET_KEY", ""),
		Region:    region,
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("endpoint is required")
	}
	if strings.TrimSpace(c.Region) == "" {
		return errors.New("region is required")
	}
	if (strings.TrimSpace(c.AccessKey) == "") != (strings.TrimSpace(c.SecretKey) == "") {
		return errors.New("access key and secret key must be set together")
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("endpoint must not include scheme: %q", c.Endpoint)
	}
	return nil
}

// StaticCredentials reports whether the config carries its own key pair.
func (c Config) StaticCredentials() bool {
	return strings.TrimSpace(c.AccessKey) != ""
}
