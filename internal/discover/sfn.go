package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sfn"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// SFNAPI is the narrow subset of *sfn.Client this discoverer calls.
type SFNAPI interface {
	ListStateMachines(ctx context.Context, in *sfn.ListStateMachinesInput, opts ...func(*sfn.Options)) (*sfn.ListStateMachinesOutput, error)
}

// SFNDiscoverer enumerates Step Functions state machines.
type SFNDiscoverer struct {
	client SFNAPI
}

func NewSFNDiscoverer(client SFNAPI) *SFNDiscoverer {
	return &SFNDiscoverer{client: client}
}

func (d *SFNDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var nextToken *string
	for {
		out, err := d.client.ListStateMachines(ctx, &sfn.ListStateMachinesInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, sm := range out.StateMachines {
			if sm.Name == nil || sm.StateMachineArn == nil {
				continue
			}
			refs = append(refs, newRef(*sm.StateMachineArn, "state-machine", h, region, map[string]any{"name": *sm.Name}))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return refs, nil
}
