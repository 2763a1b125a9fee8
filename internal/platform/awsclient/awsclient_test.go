package awsclient

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

type fakeSTS struct {
	account string
	err     error
	calls   int
}

func (f *fakeSTS) GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &sts.GetCallerIdentityOutput{Account: aws.String(f.account)}, nil
}

func TestConfigFromEnv_DefaultRegion(t *testing.T) {
	t.Setenv("AWS_REGION", DefaultRegion)
	t.Setenv("AWS_ACCOUNT_ID", "")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Region != "eu-west-1" {
		t.Fatalf("Region=%q, want eu-west-1", cfg.Region)
	}
}

func TestConfigValidate_AccountID(t *testing.T) {
	if err := (Config{Region: "eu-west-1", AccountID: "12345"}).Validate(); err == nil {
		t.Fatalf("expected error for short account id")
	}
	if err := (Config{Region: "eu-west-1", AccountID: "123456789012"}).Validate(); err != nil {
		t.Fatalf("Validate() err=%v", err)
	}
	if err := (Config{}).Validate(); err == nil {
		t.Fatalf("expected error for missing region")
	}
}

func TestAccountID_PrefersConfigured(t *testing.T) {
	api := &fakeSTS{account: "999999999999"}
	got, err := AccountID(context.Background(), Config{Region: "eu-west-1", AccountID: "123456789012"}, api)
	if err != nil {
		t.Fatalf("AccountID() err=%v", err)
	}
	if got != "123456789012" || api.calls != 0 {
		t.Fatalf("AccountID()=%q calls=%d", got, api.calls)
	}
}

func TestAccountID_CallerIdentity(t *testing.T) {
	api := &fakeSTS{account: "123456789012"}
	got, err := AccountID(context.Background(), Config{Region: "eu-west-1"}, api)
	if err != nil {
		t.Fatalf("AccountID() err=%v", err)
	}
	if got != "123456789012" {
		t.Fatalf("AccountID()=%q", got)
	}
}

func TestAccountID_Errors(t *testing.T) {
	if _, err := AccountID(context.Background(), Config{Region: "eu-west-1"}, &fakeSTS{err: errors.New("denied")}); err == nil {
		t.Fatalf("expected error from sts")
	}
	if _, err := AccountID(context.Background(), Config{Region: "eu-west-1"}, &fakeSTS{account: "n/a"}); err == nil {
		t.Fatalf("expected error for invalid account")
	}
	if _, err := AccountID(context.Background(), Config{Region: "eu-west-1"}, nil); err == nil {
		t.Fatalf("expected error for nil client")
	}
}
