package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/storagegateway"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// StorageGatewayAPI is the narrow subset of *storagegateway.Client this
// discoverer calls.
type StorageGatewayAPI interface {
	ListGateways(ctx context.Context, in *storagegateway.ListGatewaysInput, opts ...func(*storagegateway.Options)) (*storagegateway.ListGatewaysOutput, error)
}

// StorageGatewayDiscoverer enumerates Storage Gateway gateways.
type StorageGatewayDiscoverer struct {
	client StorageGatewayAPI
}

func NewStorageGatewayDiscoverer(client StorageGatewayAPI) *StorageGatewayDiscoverer {
	return &StorageGatewayDiscoverer{client: client}
}

func (d *StorageGatewayDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var marker *string
	for {
		out, err := d.client.ListGateways(ctx, &storagegateway.ListGatewaysInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, gw := range out.Gateways {
			if gw.GatewayId == nil {
				continue
			}
			refs = append(refs, newRef(*gw.GatewayId, "storage-gateway", h, region, nil))
		}
		if out.Marker == nil {
			break
		}
		marker = out.Marker
	}

	return refs, nil
}
