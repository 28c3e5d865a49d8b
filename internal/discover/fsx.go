package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/fsx"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// FSxAPI is the narrow subset of *fsx.Client this discoverer calls.
type FSxAPI interface {
	DescribeFileSystems(ctx context.Context, in *fsx.DescribeFileSystemsInput, opts ...func(*fsx.Options)) (*fsx.DescribeFileSystemsOutput, error)
}

// FSxDiscoverer enumerates FSx file systems.
type FSxDiscoverer struct {
	client FSxAPI
}

func NewFSxDiscoverer(client FSxAPI) *FSxDiscoverer {
	return &FSxDiscoverer{client: client}
}

func (d *FSxDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var nextToken *string
	for {
		out, err := d.client.DescribeFileSystems(ctx, &fsx.DescribeFileSystemsInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, fs := range out.FileSystems {
			if fs.FileSystemId == nil {
				continue
			}
			refs = append(refs, newRef(*fs.FileSystemId, "fsx-filesystem", h, region, map[string]any{
				"lifecycle": string(fs.Lifecycle),
			}))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return refs, nil
}
