package jobspec

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"
)

// Naming holds the templates every derived identifier is built from.
// Templates may reference {account}, {region}, {model}, {pipeline} and
// {execution_id}; Bucket may not reference {execution_id}.
type Naming struct {
	Bucket      string `yaml:"bucket"`
	Image       string `yaml:"image"`
	Role        string `yaml:"role"`
	JobName     string `yaml:"job_name"`
	MonitorRule string `yaml:"monitor_rule"`
	InputPrefix string `yaml:"input_prefix"`
}

func DefaultNaming() Naming {
	return Naming{
		Bucket:      "mlops-{region}-{model}",
		Image:       "{account}.dkr.ecr.{region}.amazonaws.com/bankmarketing-{model}:latest",
		Role:        "arn:aws:iam::{account}:role/{model}",
		JobName:     "mlops-{model}-{execution_id}",
		MonitorRule: "training-job-monitor-{model}",
		InputPrefix: "input/training",
	}
}

// WithDefaults fills empty templates from DefaultNaming.
func (n Naming) WithDefaults() Naming {
	d := DefaultNaming()
	if strings.TrimSpace(n.Bucket) == "" {
		n.Bucket = d.Bucket
	}
	if strings.TrimSpace(n.Image) == "" {
		n.Image = d.Image
	}
	if strings.TrimSpace(n.Role) == "" {
		n.Role = d.Role
	}
	if strings.TrimSpace(n.JobName) == "" {
		n.JobName = d.JobName
	}
	if strings.TrimSpace(n.MonitorRule) == "" {
		n.MonitorRule = d.MonitorRule
	}
	if strings.TrimSpace(n.InputPrefix) == "" {
		n.InputPrefix = d.InputPrefix
	}
	return n
}

var placeholderPattern = regexp.MustCompile(`\{[^{}]*\}`)

var knownPlaceholders = map[string]bool{
	"{account}":      true,
	"{region}":       true,
	"{model}":        true,
	"{pipeline}":     true,
	"{execution_id}": true,
}

func (n Naming) Validate() error {
	fields := []struct {
		name  string
		value string
	}{
		{"bucket", n.Bucket},
		{"image", n.Image},
		{"role", n.Role},
		{"job_name", n.JobName},
		{"monitor_rule", n.MonitorRule},
	}
	var issues []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			issues = append(issues, f.name+" is required")
			continue
		}
		for _, ph := range placeholderPattern.FindAllString(f.value, -1) {
			if !knownPlaceholders[ph] {
				issues = append(issues, fmt.Sprintf("%s: unknown placeholder %s", f.name, ph))
			}
		}
	}
	if strings.Contains(n.Bucket, "{execution_id}") {
		issues = append(issues, "bucket must not depend on {execution_id}")
	}
	if !strings.Contains(n.JobName, "{execution_id}") {
		issues = append(issues, "job_name must include {execution_id}")
	}
	if len(issues) > 0 {
		return errors.New("invalid naming: " + strings.Join(issues, "; "))
	}
	return nil
}

// Identity is the static identity of the deployment the launcher runs in.
type Identity struct {
	AccountID string
	Region    string
	ModelName string
}

// Execution is the pipeline execution context of one launcher invocation.
type Execution struct {
	PipelineName     string
	ExecutionID      string
	JobID            string
	TriggerAccountID string
}

// Names are the resolved identifiers for one execution.
type Names struct {
	Bucket      string
	Image       string
	Role        string
	JobName     string
	MonitorRule string
	OutputPath  string
	InputURI    string
}

func (n Naming) Resolve(id Identity, exec Execution) Names {
	r := strings.NewReplacer(
		"{account}", id.AccountID,
		"{region}", id.Region,
		"{model}", id.ModelName,
		"{pipeline}", exec.PipelineName,
		"{execution_id}", exec.ExecutionID,
	)
	bucket := r.Replace(n.Bucket)
	return Names{
		Bucket:      bucket,
		Image:       r.Replace(n.Image),
		Role:        r.Replace(n.Role),
		JobName:     r.Replace(n.JobName),
		MonitorRule: r.Replace(n.MonitorRule),
		OutputPath:  s3URI(bucket, exec.ExecutionID),
		InputURI:    s3URI(bucket, exec.ExecutionID, r.Replace(n.InputPrefix)),
	}
}

func s3URI(bucket string, parts ...string) string {
	return "s3://" + path.Join(append([]string{bucket}, parts...)...)
}

var jobNamePattern = regexp.MustCompile(`^[a-zA-Z0-9](-*[a-zA-Z0-9]){0,62}$`)

// ValidJobName reports whether name is accepted by the training service.
func ValidJobName(name string) bool {
	return jobNamePattern.MatchString(name)
}
