package executor

import (
	"context"
	"fmt"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/awsclient"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/discover"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
)

// RegistryFor builds a discover.Registry over every service the planner
// can enumerate, wired against client's per-service SDK clients. One
// Registry is built per (handle, region) the pool discovers against, since
// each awsclient.Client is itself already scoped to one region.
func RegistryFor(client *awsclient.Client) discover.Registry {
	return discover.Registry{
		"ec2":            discover.NewEC2Discoverer(client.EC2),
		"eks":            discover.NewEKSDiscoverer(client.EKS),
		"iam":            discover.NewIAMDiscoverer(client.IAM),
		"s3":             discover.NewS3Discoverer(client.S3),
		"eventbridge":    discover.NewEventBridgeDiscoverer(client.EventBridge),
		"redshift":       discover.NewRedshiftDiscoverer(client.Redshift),
		"sfn":            discover.NewSFNDiscoverer(client.SFN),
		"sagemaker":      discover.NewSageMakerDiscoverer(client.SageMaker),
		"mq":             discover.NewMQDiscoverer(client.MQ),
		"fsx":            discover.NewFSxDiscoverer(client.FSx),
		"storagegateway": discover.NewStorageGatewayDiscoverer(client.StorageGateway),
	}
}

// RunDiscovery runs a discoverResources task: enumerates service's
// resources for task's (handle, region) and appends the resulting
// delete-task children directly onto plan's live graph, so the pool's next
// Graph.WaitForReady() call picks them up without a separate scheduling
// pass.
func RunDiscovery(ctx context.Context, registry discover.Registry, plan *planner.Plan, task *model.Task) ([]model.ResourceRef, []*model.Task, error) {
	service, _ := task.Payload["service"].(string)
	if service == "" {
		return nil, nil, fmt.Errorf("discoverResources task %s has no service in its payload", task.ID)
	}

	refs, err := registry.Discover(ctx, service, task.Credential, task.Region)
	if err != nil {
		return nil, nil, fmt.Errorf("discover %s in %s/%s: %w", service, task.Credential.DisplayName(), task.Region, err)
	}

	children := plan.ExpandDeletes(task.ID, service, task.Credential, task.Region, refs)
	return refs, children, nil
}
