package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/iam"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// IAMAPI is the narrow subset of *iam.Client this discoverer calls.
type IAMAPI interface {
	ListUsers(ctx context.Context, in *iam.ListUsersInput, opts ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListGroups(ctx context.Context, in *iam.ListGroupsInput, opts ...func(*iam.Options)) (*iam.ListGroupsOutput, error)
	ListGroupsForUser(ctx context.Context, in *iam.ListGroupsForUserInput, opts ...func(*iam.Options)) (*iam.ListGroupsForUserOutput, error)
}

// IAMDiscoverer enumerates IAM users and groups. IAM has no region concept;
// the region parameter is accepted for interface symmetry and is only
// recorded on the returned refs.
type IAMDiscoverer struct {
	client IAMAPI
}

func NewIAMDiscoverer(client IAMAPI) *IAMDiscoverer {
	return &IAMDiscoverer{client: client}
}

func (d *IAMDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var marker *string
	for {
		out, err := d.client.ListUsers(ctx, &iam.ListUsersInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, u := range out.Users {
			if u.UserName == nil {
				continue
			}
			var groups []string
			if g, err := d.client.ListGroupsForUser(ctx, &iam.ListGroupsForUserInput{UserName: u.UserName}); err == nil {
				for _, grp := range g.Groups {
					if grp.GroupName != nil {
						groups = append(groups, *grp.GroupName)
					}
				}
			}
			refs = append(refs, newRef(*u.UserName, "iam-user", h, region, map[string]any{"groups": groups}))
		}
		if out.Marker == nil || !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	marker = nil
	for {
		out, err := d.client.ListGroups(ctx, &iam.ListGroupsInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, g := range out.Groups {
			if g.GroupName == nil {
				continue
			}
			refs = append(refs, newRef(*g.GroupName, "iam-group", h, region, nil))
		}
		if out.Marker == nil || !out.IsTruncated {
			break
		}
		marker = out.Marker
	}

	return refs, nil
}
