package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const templatePath = "../../internal/jobspec/testdata/trainingjob.json"

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func composeArgs(extra ...string) []string {
	args := []string{
		"compose",
		"--template", templatePath,
		"--account", "123456789012",
		"--region", "eu-west-1",
		"--model", "churn",
		"--execution-id", "exec-1",
		"--job-id", "job-1",
	}
	return append(args, extra...)
}

func TestCompose_Spec(t *testing.T) {
	out, err := execute(t, composeArgs()...)
	if err != nil {
		t.Fatalf("compose err=%v", err)
	}
	var spec map[string]any
	if err := json.Unmarshal([]byte(out), &spec); err != nil {
		t.Fatalf("unmarshal output: %v", err)
	}
	if spec["TrainingJobName"] != "mlops-churn-exec-1" {
		t.Fatalf("TrainingJobName=%v", spec["TrainingJobName"])
	}
	if spec["RoleArn"] != "arn:aws:iam::123456789012:role/churn" {
		t.Fatalf("RoleArn=%v", spec["RoleArn"])
	}
	if !strings.Contains(out, `"Key": "jobid"`) {
		t.Fatalf("expected jobid tag in output:\n%s", out)
	}
}

func TestCompose_Deterministic(t *testing.T) {
	a, err := execute(t, composeArgs()...)
	if err != nil {
		t.Fatalf("compose err=%v", err)
	}
	b, err := execute(t, composeArgs()...)
	if err != nil {
		t.Fatalf("compose err=%v", err)
	}
	if a != b {
		t.Fatalf("compose output differs between runs")
	}
}

func TestCompose_SageMakerAndKubernetes(t *testing.T) {
	out, err := execute(t, composeArgs("--output", "sagemaker")...)
	if err != nil {
		t.Fatalf("compose --output sagemaker err=%v", err)
	}
	if !strings.Contains(out, `"TrainingImage": "123456789012.dkr.ecr.eu-west-1.amazonaws.com/bankmarketing-churn:latest"`) {
		t.Fatalf("unexpected sagemaker output:\n%s", out)
	}

	out, err = execute(t, composeArgs("--output", "kubernetes", "--namespace", "ml")...)
	if err != nil {
		t.Fatalf("compose --output kubernetes err=%v", err)
	}
	if !strings.Contains(out, `"namespace": "ml"`) || !strings.Contains(out, "SM_HP_EPOCHS") {
		t.Fatalf("unexpected kubernetes output:\n%s", out)
	}

	if _, err := execute(t, composeArgs("--output", "yaml")...); err == nil {
		t.Fatalf("expected error for unknown output")
	}
}

func TestCompose_WithProfile(t *testing.T) {
	profile := filepath.Join(t.TempDir(), "profile.yaml")
	body := "naming:\n  job_name: \"{model}-{execution_id}\"\nhyperparameters:\n  epochs: 10\n"
	if err := os.WriteFile(profile, []byte(body), 0o600); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	out, err := execute(t, composeArgs("--profile", profile)...)
	if err != nil {
		t.Fatalf("compose err=%v", err)
	}
	if !strings.Contains(out, `"TrainingJobName": "churn-exec-1"`) || !strings.Contains(out, `"epochs": "10"`) {
		t.Fatalf("profile not applied:\n%s", out)
	}
}

func TestCompose_MissingFlags(t *testing.T) {
	_, err := execute(t, "compose", "--template", templatePath)
	if err == nil || !strings.Contains(err.Error(), "--account") {
		t.Fatalf("compose err=%v, want missing --account", err)
	}
}

func TestHyperParams(t *testing.T) {
	out, err := execute(t, "hyperparams", templatePath)
	if err != nil {
		t.Fatalf("hyperparams err=%v", err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines=%d, want header + 4:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[1], "batch_size") || !strings.Contains(lines[1], "int") {
		t.Fatalf("first row=%q", lines[1])
	}
}

func TestReadEventFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "event.yaml")
	body := "Bucket: mlops-eu-west-1-churn\nKey: exec-1/test.csv\nOutput_Key: exec-1/eval\nEndpoint_Name: churn\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write event: %v", err)
	}
	raw, err := readEventFile(&cobra.Command{}, path)
	if err != nil {
		t.Fatalf("readEventFile() err=%v", err)
	}
	var got map[string]string
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got["Output_Key"] != "exec-1/eval" || got["Endpoint_Name"] != "churn" {
		t.Fatalf("event=%v", got)
	}
}

func TestReadEventFile_JSONPassthrough(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(`{"CodePipeline.job": {"id": "job-1"}}`))
	raw, err := readEventFile(cmd, "-")
	if err != nil {
		t.Fatalf("readEventFile() err=%v", err)
	}
	if !strings.Contains(string(raw), `"CodePipeline.job"`) {
		t.Fatalf("raw=%s", raw)
	}
}
