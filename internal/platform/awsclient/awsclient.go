// Package awsclient loads the shared AWS configuration and resolves the
// identity of the account the handlers run in.
package awsclient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/platform/env"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

const DefaultRegion = "eu-west-1"

type Config struct {
	Region string
	// AccountID skips the caller identity lookup when set.
	AccountID string
}

func ConfigFromEnv() (Config, error) {
	cfg := Config{
		Region:    strings.TrimSpace(env.String("AWS_REGION", DefaultRegion)),
		AccountID: strings.TrimSpace(env.String("AWS_ACCOUNT_ID", "")),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Region == "" {
		return errors.New("AWS_REGION is required")
	}
	if c.AccountID != "" && !validAccountID(c.AccountID) {
		return fmt.Errorf("AWS_ACCOUNT_ID must be 12 digits (got %q)", c.AccountID)
	}
	return nil
}

func Load(ctx context.Context, cfg Config) (aws.Config, error) {
	if err := cfg.Validate(); err != nil {
		return aws.Config{}, err
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("load aws config: %w", err)
	}
	return awsCfg, nil
}

type CallerIdentityAPI interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AccountID returns the configured account id, falling back to the caller identity.
func AccountID(ctx context.Context, cfg Config, api CallerIdentityAPI) (string, error) {
	if cfg.AccountID != "" {
		return cfg.AccountID, nil
	}
	if api == nil {
		return "", errors.New("caller identity client is required")
	}
	out, err := api.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", fmt.Errorf("get caller identity: %w", err)
	}
	account := strings.TrimSpace(aws.ToString(out.Account))
	if !validAccountID(account) {
		return "", fmt.Errorf("caller identity returned invalid account %q", account)
	}
	return account, nil
}

func validAccountID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
