package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/animus-labs/animus-mlops/internal/jobspec"
	"github.com/animus-labs/animus-mlops/internal/platform/k8s"
)

const (
	labelName      = "app.kubernetes.io/name"
	labelComponent = "app.kubernetes.io/component"
	labelJobID     = "mlops.animus/job-id"
	annotationTags = "mlops.animus/tags"
	annotationType = "mlops.animus/instance-type"
	annotationRole = "mlops.animus/role-arn"
)

// JobClient is the subset of the Kubernetes client used by the backend.
type JobClient interface {
	Namespace() string
	CreateJob(ctx context.Context, namespace string, job k8s.Job) error
	SetCronJobSuspended(ctx context.Context, namespace string, name string, suspended bool) error
}

// KubernetesService runs a composed spec as a batch/v1 Job. The container sees
// hyperparameters and channels through SM_HP_* and SM_CHANNEL_* variables, the
// same contract the managed training service gives its images. The monitor is a
// suspended CronJob named after the rule.
type KubernetesService struct {
	client         JobClient
	namespace      string
	jobTTLSeconds  int32
	serviceAccount string
}

func NewKubernetesService(client JobClient, namespace string, jobTTLSeconds int32, serviceAccount string) (*KubernetesService, error) {
	if client == nil {
		return nil, errors.New("k8s client is required")
	}
	namespace = strings.TrimSpace(namespace)
	if namespace == "" {
		namespace = strings.TrimSpace(client.Namespace())
	}
	if namespace == "" {
		return nil, errors.New("training namespace is required")
	}
	if jobTTLSeconds < 0 {
		return nil, errors.New("job ttl must be non-negative")
	}
	return &KubernetesService{
		client:         client,
		namespace:      namespace,
		jobTTLSeconds:  jobTTLSeconds,
		serviceAccount: strings.TrimSpace(serviceAccount),
	}, nil
}

func (s *KubernetesService) Kind() string {
	return BackendKubernetes
}

func (s *KubernetesService) Submit(ctx context.Context, spec jobspec.Spec) (Submission, error) {
	job, err := s.BuildJob(spec)
	if err != nil {
		return Submission{}, err
	}
	sub := Submission{JobName: spec.TrainingJobName, Ref: s.namespace + "/" + job.Metadata.Name}
	if err := s.client.CreateJob(ctx, s.namespace, job); err != nil {
		if errors.Is(err, k8s.ErrAlreadyExists) {
			return sub, fmt.Errorf("%w: %s", ErrDuplicateJob, job.Metadata.Name)
		}
		return Submission{}, fmt.Errorf("create job %s: %w", job.Metadata.Name, err)
	}
	return sub, nil
}

func (s *KubernetesService) EnableMonitor(ctx context.Context, rule string) error {
	name := resourceName(rule)
	if name == "" {
		return errors.New("monitor rule name is required")
	}
	if err := s.client.SetCronJobSuspended(ctx, s.namespace, name, false); err != nil {
		return fmt.Errorf("resume cronjob %s: %w", name, err)
	}
	return nil
}

// BuildJob translates a composed spec into the Job manifest submitted by Submit.
func (s *KubernetesService) BuildJob(spec jobspec.Spec) (k8s.Job, error) {
	name := resourceName(spec.TrainingJobName)
	if name == "" {
		return k8s.Job{}, errors.New("training job name is required")
	}
	if spec.AlgorithmSpecification == nil || strings.TrimSpace(spec.AlgorithmSpecification.TrainingImage) == "" {
		return k8s.Job{}, errors.New("training image is required")
	}

	labels := map[string]string{
		labelName:      "animus-mlops",
		labelComponent: "training-job",
	}
	if jobID, ok := spec.TagValue(jobspec.JobIDTagKey); ok {
		if v := labelValue(jobID); v != "" {
			labels[labelJobID] = v
		}
	}

	annotations := map[string]string{}
	if len(spec.Tags) > 0 {
		tags, err := json.Marshal(spec.Tags)
		if err != nil {
			return k8s.Job{}, fmt.Errorf("marshal tags: %w", err)
		}
		annotations[annotationTags] = string(tags)
	}
	if spec.RoleArn != "" {
		annotations[annotationRole] = spec.RoleArn
	}
	if spec.ResourceConfig != nil && spec.ResourceConfig.InstanceType != "" {
		annotations[annotationType] = spec.ResourceConfig.InstanceType
	}

	container := k8s.Container{
		Name:  "trainer",
		Image: spec.AlgorithmSpecification.TrainingImage,
		Args:  []string{"train"},
		Env:   jobEnv(spec),
	}

	podSpec := k8s.PodSpec{
		RestartPolicy:      "Never",
		Containers:         []k8s.Container{container},
		ServiceAccountName: s.serviceAccount,
	}
	if podSpec.ServiceAccountName == "" {
		podSpec.ServiceAccountName = resourceName(roleName(spec.RoleArn))
	}

	backoff := int32(0)
	var ttl *int32
	if s.jobTTLSeconds > 0 {
		ttl = &s.jobTTLSeconds
	}
	var deadline *int64
	if spec.StoppingCondition != nil && spec.StoppingCondition.MaxRuntimeInSeconds > 0 {
		d := int64(spec.StoppingCondition.MaxRuntimeInSeconds)
		deadline = &d
	}

	return k8s.Job{
		Metadata: k8s.ObjectMeta{
			Name:        name,
			Namespace:   s.namespace,
			Labels:      labels,
			Annotations: annotations,
		},
		Spec: k8s.JobSpec{
			BackoffLimit:            &backoff,
			ActiveDeadlineSeconds:   deadline,
			TTLSecondsAfterFinished: ttl,
			Template: k8s.PodTemplateSpec{
				Metadata: k8s.ObjectMeta{Labels: labels},
				Spec:     podSpec,
			},
		},
	}, nil
}

func jobEnv(spec jobspec.Spec) []k8s.EnvVar {
	var out []k8s.EnvVar
	out = append(out, k8s.EnvVar{Name: "TRAINING_JOB_NAME", Value: spec.TrainingJobName})
	if spec.OutputDataConfig != nil {
		out = append(out, k8s.EnvVar{Name: "SM_OUTPUT_S3_PATH", Value: spec.OutputDataConfig.S3OutputPath})
	}
	for _, ch := range spec.InputDataConfig {
		if ch.DataSource == nil || ch.DataSource.S3DataSource == nil {
			continue
		}
		out = append(out, k8s.EnvVar{Name: "SM_CHANNEL_" + envName(ch.ChannelName), Value: ch.DataSource.S3DataSource.S3Uri})
	}
	for _, name := range sortedKeys(spec.HyperParameters) {
		out = append(out, k8s.EnvVar{Name: "SM_HP_" + envName(name), Value: spec.HyperParameters[name]})
	}
	for _, name := range sortedKeys(spec.Environment) {
		if isReservedJobEnvKey(name) {
			continue
		}
		out = append(out, k8s.EnvVar{Name: name, Value: spec.Environment[name]})
	}
	return out
}

func isReservedJobEnvKey(key string) bool {
	key = strings.ToUpper(strings.TrimSpace(key))
	return key == "" || key == "TRAINING_JOB_NAME" || strings.HasPrefix(key, "SM_")
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var (
	nonEnvChars   = regexp.MustCompile(`[^A-Z0-9_]+`)
	nonDNSChars   = regexp.MustCompile(`[^a-z0-9-]+`)
	nonLabelChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

func envName(s string) string {
	return nonEnvChars.ReplaceAllString(strings.ToUpper(strings.TrimSpace(s)), "_")
}

// resourceName lowercases s into a DNS-1123 label.
func resourceName(s string) string {
	s = nonDNSChars.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	if len(s) > 63 {
		s = s[:63]
	}
	return strings.Trim(s, "-")
}

func labelValue(s string) string {
	s = nonLabelChars.ReplaceAllString(strings.TrimSpace(s), "-")
	if len(s) > 63 {
		s = s[:63]
	}
	return strings.Trim(s, "-_.")
}

// roleName returns the last path segment of an IAM role ARN.
func roleName(arn string) string {
	if i := strings.LastIndex(arn, "/"); i >= 0 {
		return arn[i+1:]
	}
	return ""
}
