package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/codepipeline"
	cptypes "github.com/aws/aws-sdk-go-v2/service/codepipeline/types"
)

// CodePipelineAPI is the subset of the CodePipeline client used by the adapter.
type CodePipelineAPI interface {
	GetPipelineState(ctx context.Context, in *codepipeline.GetPipelineStateInput, optFns ...func(*codepipeline.Options)) (*codepipeline.GetPipelineStateOutput, error)
	PutJobSuccessResult(ctx context.Context, in *codepipeline.PutJobSuccessResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobSuccessResultOutput, error)
	PutJobFailureResult(ctx context.Context, in *codepipeline.PutJobFailureResultInput, optFns ...func(*codepipeline.Options)) (*codepipeline.PutJobFailureResultOutput, error)
}

type CodePipeline struct {
	api CodePipelineAPI
}

func NewCodePipeline(api CodePipelineAPI) (*CodePipeline, error) {
	if api == nil {
		return nil, errors.New("codepipeline client is required")
	}
	return &CodePipeline{api: api}, nil
}

func (c *CodePipeline) PipelineState(ctx context.Context, pipeline string) ([]StageState, error) {
	out, err := c.api.GetPipelineState(ctx, &codepipeline.GetPipelineStateInput{Name: aws.String(pipeline)})
	if err != nil {
		return nil, fmt.Errorf("get pipeline state %s: %w", pipeline, err)
	}
	states := make([]StageState, 0, len(out.StageStates))
	for _, st := range out.StageStates {
		s := StageState{Name: aws.ToString(st.StageName)}
		if st.LatestExecution != nil {
			s.LatestExecutionID = aws.ToString(st.LatestExecution.PipelineExecutionId)
		}
		for _, a := range st.ActionStates {
			s.Actions = append(s.Actions, aws.ToString(a.ActionName))
		}
		states = append(states, s)
	}
	return states, nil
}

func (c *CodePipeline) PutJobSuccess(ctx context.Context, jobID string) error {
	_, err := c.api.PutJobSuccessResult(ctx, &codepipeline.PutJobSuccessResultInput{JobId: aws.String(jobID)})
	if err != nil {
		return fmt.Errorf("put job success %s: %w", jobID, err)
	}
	return nil
}

func (c *CodePipeline) PutJobFailure(ctx context.Context, jobID string, failure Failure) error {
	details := &cptypes.FailureDetails{
		Type:    cptypes.FailureType(failure.Type),
		Message: aws.String(truncateMessage(failure.Message)),
	}
	if id := strings.TrimSpace(failure.ExternalExecutionID); id != "" {
		details.ExternalExecutionId = aws.String(id)
	}
	_, err := c.api.PutJobFailureResult(ctx, &codepipeline.PutJobFailureResultInput{
		JobId:          aws.String(jobID),
		FailureDetails: details,
	})
	if err != nil {
		return fmt.Errorf("put job failure %s: %w", jobID, err)
	}
	return nil
}
