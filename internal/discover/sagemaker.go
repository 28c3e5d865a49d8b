package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sagemaker"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// SageMakerAPI is the narrow subset of *sagemaker.Client this discoverer
// calls.
type SageMakerAPI interface {
	ListNotebookInstances(ctx context.Context, in *sagemaker.ListNotebookInstancesInput, opts ...func(*sagemaker.Options)) (*sagemaker.ListNotebookInstancesOutput, error)
	ListEndpoints(ctx context.Context, in *sagemaker.ListEndpointsInput, opts ...func(*sagemaker.Options)) (*sagemaker.ListEndpointsOutput, error)
}

// SageMakerDiscoverer enumerates notebook instances and endpoints.
type SageMakerDiscoverer struct {
	client SageMakerAPI
}

func NewSageMakerDiscoverer(client SageMakerAPI) *SageMakerDiscoverer {
	return &SageMakerDiscoverer{client: client}
}

func (d *SageMakerDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var nextToken *string
	for {
		out, err := d.client.ListNotebookInstances(ctx, &sagemaker.ListNotebookInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, nb := range out.NotebookInstances {
			if nb.NotebookInstanceName == nil {
				continue
			}
			refs = append(refs, newRef(*nb.NotebookInstanceName, "notebook-instance", h, region, map[string]any{
				"status": string(nb.NotebookInstanceStatus),
			}))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	nextToken = nil
	for {
		out, err := d.client.ListEndpoints(ctx, &sagemaker.ListEndpointsInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, ep := range out.Endpoints {
			if ep.EndpointName == nil {
				continue
			}
			refs = append(refs, newRef(*ep.EndpointName, "endpoint", h, region, nil))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return refs, nil
}
