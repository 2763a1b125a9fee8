package inference

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sagemakerruntime"
)

type RuntimeAPI interface {
	InvokeEndpoint(ctx context.Context, in *sagemakerruntime.InvokeEndpointInput, optFns ...func(*sagemakerruntime.Options)) (*sagemakerruntime.InvokeEndpointOutput, error)
}

type SageMakerInvoker struct {
	api RuntimeAPI
}

func NewSageMakerInvoker(api RuntimeAPI) (*SageMakerInvoker, error) {
	if api == nil {
		return nil, errors.New("sagemaker runtime client is required")
	}
	return &SageMakerInvoker{api: api}, nil
}

func (s *SageMakerInvoker) Invoke(ctx context.Context, endpoint string, payload []byte) ([]byte, error) {
	out, err := s.api.InvokeEndpoint(ctx, &sagemakerruntime.InvokeEndpointInput{
		EndpointName: aws.String(endpoint),
		ContentType:  aws.String(ContentTypeCSV),
		Body:         payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke endpoint %s: %w", endpoint, err)
	}
	return out.Body, nil
}
