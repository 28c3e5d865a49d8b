package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// EC2API is the narrow subset of *ec2.Client this discoverer calls.
type EC2API interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
	DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
}

// EC2Discoverer enumerates EC2 instances and security groups, correlating
// each instance to the security groups it references.
type EC2Discoverer struct {
	client EC2API
}

func NewEC2Discoverer(client EC2API) *EC2Discoverer {
	return &EC2Discoverer{client: client}
}

func (d *EC2Discoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef
	instanceSGs := map[string][]string{} // sgID -> attached instance ids

	var nextToken *string
	for {
		out, err := d.client.DescribeInstances(ctx, &ec2.DescribeInstancesInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				if inst.InstanceId == nil {
					continue
				}
				if inst.State != nil && inst.State.Name == types.InstanceStateNameTerminated {
					continue
				}
				var sgIDs []string
				for _, sg := range inst.SecurityGroups {
					if sg.GroupId != nil {
						sgIDs = append(sgIDs, *sg.GroupId)
						instanceSGs[*sg.GroupId] = append(instanceSGs[*sg.GroupId], *inst.InstanceId)
					}
				}
				refs = append(refs, newRef(*inst.InstanceId, "instance", h, region, map[string]any{
					"securityGroupIds": sgIDs,
				}))
			}
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	nextToken = nil
	for {
		out, err := d.client.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, sg := range out.SecurityGroups {
			if sg.GroupId == nil {
				continue
			}
			isDefault := sg.GroupName != nil && *sg.GroupName == "default"
			refs = append(refs, newRef(*sg.GroupId, "security-group", h, region, map[string]any{
				"attachedInstanceIds": instanceSGs[*sg.GroupId],
				"isDefault":           isDefault,
			}))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return refs, nil
}
