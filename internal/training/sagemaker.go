package training

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	smtypes "github.com/aws/aws-sdk-go-v2/service/sagemaker/types"
	"github.com/aws/smithy-go"

	"github.com/animus-labs/animus-mlops/internal/jobspec"
)

// SageMakerAPI is the subset of the SageMaker client used for submission.
type SageMakerAPI interface {
	CreateTrainingJob(ctx context.Context, in *sagemaker.CreateTrainingJobInput, optFns ...func(*sagemaker.Options)) (*sagemaker.CreateTrainingJobOutput, error)
}

// RuleAPI is the subset of the EventBridge client used to enable the monitor rule.
type RuleAPI interface {
	EnableRule(ctx context.Context, in *eventbridge.EnableRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.EnableRuleOutput, error)
}

type SageMakerService struct {
	jobs     SageMakerAPI
	rules    RuleAPI
	eventBus string
}

func NewSageMakerService(jobs SageMakerAPI, rules RuleAPI, eventBus string) (*SageMakerService, error) {
	if jobs == nil {
		return nil, errors.New("sagemaker client is required")
	}
	if rules == nil {
		return nil, errors.New("eventbridge client is required")
	}
	return &SageMakerService{jobs: jobs, rules: rules, eventBus: strings.TrimSpace(eventBus)}, nil
}

func (s *SageMakerService) Kind() string {
	return BackendSageMaker
}

func (s *SageMakerService) Submit(ctx context.Context, spec jobspec.Spec) (Submission, error) {
	if strings.TrimSpace(spec.TrainingJobName) == "" {
		return Submission{}, errors.New("training job name is required")
	}
	in, err := CreateTrainingJobInput(spec)
	if err != nil {
		return Submission{}, err
	}
	out, err := s.jobs.CreateTrainingJob(ctx, in)
	if err != nil {
		if isDuplicateJob(err) {
			return Submission{JobName: spec.TrainingJobName}, fmt.Errorf("%w: %s", ErrDuplicateJob, spec.TrainingJobName)
		}
		return Submission{}, fmt.Errorf("create training job %s: %w", spec.TrainingJobName, err)
	}
	return Submission{JobName: spec.TrainingJobName, Ref: aws.ToString(out.TrainingJobArn)}, nil
}

func (s *SageMakerService) EnableMonitor(ctx context.Context, rule string) error {
	rule = strings.TrimSpace(rule)
	if rule == "" {
		return errors.New("monitor rule name is required")
	}
	in := &eventbridge.EnableRuleInput{Name: aws.String(rule)}
	if s.eventBus != "" {
		in.EventBusName = aws.String(s.eventBus)
	}
	if _, err := s.rules.EnableRule(ctx, in); err != nil {
		return fmt.Errorf("enable rule %s: %w", rule, err)
	}
	return nil
}

// isDuplicateJob recognises the service's rejection of a reused job name. The
// service reports it either as ResourceInUse or as a ValidationException whose
// message says the job already exists.
func isDuplicateJob(err error) bool {
	var inUse *smtypes.ResourceInUse
	if errors.As(err, &inUse) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ValidationException" &&
			strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "already exists")
	}
	return false
}

// CreateTrainingJobInput maps a composed spec onto the service request. Spec
// members carry the request's field names, so modelled and verbatim members
// alike land on their request fields.
func CreateTrainingJobInput(spec jobspec.Spec) (*sagemaker.CreateTrainingJobInput, error) {
	raw, err := jobspec.Canonical(spec)
	if err != nil {
		return nil, fmt.Errorf("encode job spec: %w", err)
	}
	var in sagemaker.CreateTrainingJobInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, fmt.Errorf("map job spec onto request: %w", err)
	}
	return &in, nil
}
