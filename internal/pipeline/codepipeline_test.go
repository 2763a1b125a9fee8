package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
)

type fakeCodePipeline struct {
	state    *codepipeline.GetPipelineStateOutput
	success  []*codepipeline.PutJobSuccessResultInput
	failure  []*codepipeline.PutJobFailureResultInput
	stateErr error
}

func (f *fakeCodePipeline) GetPipelineState(ctx context.Context, in *codepipeline.GetPipelineStateInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineStateOutput, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	return f.state, nil
}

func (f *fakeCodePipeline) PutJobSuccessResult(ctx context.Context, in *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error) {
	f.success = append(f.success, in)
	return &codepipeline.PutJobSuccessResultOutput{}, nil
}

func (f *fakeCodePipeline) PutJobFailureResult(ctx context.Context, in *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error) {
	f.failure = append(f.failure, in)
	return &codepipeline.PutJobFailureResultOutput{}, nil
}

func TestCodePipeline_PipelineState(t *testing.T) {
	api := &fakeCodePipeline{state: &codepipeline.GetPipelineStateOutput{
		StageStates: []cptypes.StageState{
			{StageName: aws.String("Source"), ActionStates: []cptypes.ActionState{{ActionName: aws.String("ModelSource")}}},
			{
				StageName:       aws.String("Train"),
				LatestExecution: &cptypes.StageExecution{PipelineExecutionId: aws.String(testExecutionID), Status: cptypes.StageExecutionStatusInProgress},
				ActionStates:    []cptypes.ActionState{{ActionName: aws.String("TrainModel")}},
			},
		},
	}}
	cp, err := NewCodePipeline(api)
	if err != nil {
		t.Fatalf("NewCodePipeline() err=%v", err)
	}
	states, err := cp.PipelineState(context.Background(), "abalone-pipeline")
	if err != nil {
		t.Fatalf("PipelineState() err=%v", err)
	}
	id, err := ResolveExecution(states, "Train", "TrainModel")
	if err != nil || id != testExecutionID {
		t.Fatalf("ResolveExecution()=%q err=%v", id, err)
	}

	api.stateErr = errors.New("AccessDenied")
	if _, err := cp.PipelineState(context.Background(), "abalone-pipeline"); err == nil {
		t.Fatalf("PipelineState() err=nil, want error")
	}
}

func TestCodePipeline_Results(t *testing.T) {
	api := &fakeCodePipeline{}
	cp, err := NewCodePipeline(api)
	if err != nil {
		t.Fatalf("NewCodePipeline() err=%v", err)
	}
	if err := cp.PutJobSuccess(context.Background(), "job-42"); err != nil {
		t.Fatalf("PutJobSuccess() err=%v", err)
	}
	if len(api.success) != 1 || aws.ToString(api.success[0].JobId) != "job-42" {
		t.Fatalf("success=%+v", api.success)
	}

	err = cp.PutJobFailure(context.Background(), "job-42", Failure{
		Type:                FailureTypeConfiguration,
		Message:             "ArtifactNotFound: 'trainingjob.json' not found",
		ExternalExecutionID: "req-1",
	})
	if err != nil {
		t.Fatalf("PutJobFailure() err=%v", err)
	}
	details := api.failure[0].FailureDetails
	if details.Type != cptypes.FailureTypeConfigurationError {
		t.Fatalf("type=%q", details.Type)
	}
	if aws.ToString(details.ExternalExecutionId) != "req-1" || aws.ToString(details.Message) == "" {
		t.Fatalf("details=%+v", details)
	}
}
