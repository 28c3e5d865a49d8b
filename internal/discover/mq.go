package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/mq"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// MQAPI is the narrow subset of *mq.Client this discoverer calls.
type MQAPI interface {
	ListBrokers(ctx context.Context, in *mq.ListBrokersInput, opts ...func(*mq.Options)) (*mq.ListBrokersOutput, error)
}

// MQDiscoverer enumerates Amazon MQ brokers.
type MQDiscoverer struct {
	client MQAPI
}

func NewMQDiscoverer(client MQAPI) *MQDiscoverer {
	return &MQDiscoverer{client: client}
}

func (d *MQDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var nextToken *string
	for {
		out, err := d.client.ListBrokers(ctx, &mq.ListBrokersInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, b := range out.BrokerSummaries {
			if b.BrokerId == nil {
				continue
			}
			refs = append(refs, newRef(*b.BrokerId, "mq-broker", h, region, map[string]any{
				"state": string(b.BrokerState),
			}))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return refs, nil
}
