package inference

import "testing"

func TestConfigFromEnv_Backend(t *testing.T) {
	t.Setenv("INFERENCE_BACKEND", "")
	t.Setenv("INFERENCE_HTTP_URL_TEMPLATE", "")
	cfg, err := ConfigFromEnv()
	if err == nil {
		t.Fatalf("expected error for empty backend, got cfg=%+v", cfg)
	}

	t.Setenv("INFERENCE_BACKEND", "SageMaker")
	cfg, err = ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if cfg.Backend != BackendSageMaker {
		t.Fatalf("Backend=%q, want sagemaker", cfg.Backend)
	}
}

func TestConfigFromEnv_HTTP(t *testing.T) {
	t.Setenv("INFERENCE_BACKEND", "http")
	t.Setenv("INFERENCE_HTTP_URL_TEMPLATE", "http://models.svc/{endpoint}/predict")
	t.Setenv("INFERENCE_OAUTH_SCOPES", "predict, read")
	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() err=%v", err)
	}
	if len(cfg.HTTP.Scopes) != 2 || cfg.HTTP.Scopes[1] != "read" {
		t.Fatalf("Scopes=%v", cfg.HTTP.Scopes)
	}

	t.Setenv("INFERENCE_HTTP_URL_TEMPLATE", "http://models.svc/predict")
	if _, err := ConfigFromEnv(); err == nil {
		t.Fatalf("expected error for template without {endpoint}")
	}
}
