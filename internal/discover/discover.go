// Package discover implements the ResourceDiscoverer: per-service,
// paginated, read-only enumeration of AWS resources and their
// cross-references. Discovery is idempotent; failures in a single region
// are reported to the caller and do not abort the session.
package discover

import (
	"context"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// Discoverer is a per-service resource enumerator. Each service
// implementation in this package satisfies this interface against a narrow
// AWS SDK client subset, so it can be exercised in tests without a live
// AWS account.
type Discoverer interface {
	Discover(ctx context.Context, handle model.CredentialHandle, region string) ([]model.ResourceRef, error)
}

// DiscovererFunc adapts a plain function to the Discoverer interface.
type DiscovererFunc func(ctx context.Context, handle model.CredentialHandle, region string) ([]model.ResourceRef, error)

func (f DiscovererFunc) Discover(ctx context.Context, handle model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	return f(ctx, handle, region)
}

// Registry maps a service name (as named in the CLI's cleanup-<service>
// subcommands) to its Discoverer.
type Registry map[string]Discoverer

// Discover runs the named service's discoverer. A missing service name is
// a caller bug, not a runtime condition to recover from gracefully.
func (r Registry) Discover(ctx context.Context, service string, handle model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	d, ok := r[service]
	if !ok {
		return nil, &model.ErrInvalidConfiguration{Message: "no discoverer registered for service " + service}
	}
	return d.Discover(ctx, handle, region)
}

func newRef(resourceID, resourceType string, h model.CredentialHandle, region string, metadata map[string]any) model.ResourceRef {
	return model.ResourceRef{
		ResourceID:   resourceID,
		ResourceType: resourceType,
		AccountName:  h.AccountName,
		AccountID:    h.AccountID,
		Region:       region,
		Metadata:     metadata,
	}
}
