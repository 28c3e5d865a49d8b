package discover

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

type fakeEC2API struct {
	instances []types.Reservation
	groups    []types.SecurityGroup
}

func (f *fakeEC2API) DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error) {
	return &ec2.DescribeInstancesOutput{Reservations: f.instances}, nil
}

func (f *fakeEC2API) DescribeSecurityGroups(ctx context.Context, in *ec2.DescribeSecurityGroupsInput, opts ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error) {
	return &ec2.DescribeSecurityGroupsOutput{SecurityGroups: f.groups}, nil
}

func TestEC2DiscovererCorrelatesInstancesToSecurityGroups(t *testing.T) {
	fake := &fakeEC2API{
		instances: []types.Reservation{{
			Instances: []types.Instance{{
				InstanceId:     aws.String("i-X"),
				State:          &types.InstanceState{Name: types.InstanceStateNameRunning},
				SecurityGroups: []types.GroupIdentifier{{GroupId: aws.String("sg-A")}},
			}},
		}},
		groups: []types.SecurityGroup{
			{GroupId: aws.String("sg-A"), GroupName: aws.String("custom-sg")},
			{GroupId: aws.String("sg-default"), GroupName: aws.String("default")},
		},
	}

	d := NewEC2Discoverer(fake)
	refs, err := d.Discover(context.Background(), model.CredentialHandle{AccountName: "account01"}, "us-east-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}

	var sgA, sgDefault *model.ResourceRef
	for i := range refs {
		switch refs[i].ResourceID {
		case "sg-A":
			sgA = &refs[i]
		case "sg-default":
			sgDefault = &refs[i]
		}
	}
	if sgA == nil || sgDefault == nil {
		t.Fatalf("expected both security groups discovered, got %+v", refs)
	}

	attached, _ := sgA.Metadata["attachedInstanceIds"].([]string)
	if len(attached) != 1 || attached[0] != "i-X" {
		t.Errorf("expected sg-A attached to i-X, got %v", attached)
	}
	if isDefault, _ := sgDefault.Metadata["isDefault"].(bool); !isDefault {
		t.Error("expected sg-default flagged as default")
	}
	if isDefault, _ := sgA.Metadata["isDefault"].(bool); isDefault {
		t.Error("expected sg-A not flagged as default")
	}
}

func TestEC2DiscovererSkipsTerminatedInstances(t *testing.T) {
	fake := &fakeEC2API{
		instances: []types.Reservation{{
			Instances: []types.Instance{{
				InstanceId: aws.String("i-terminated"),
				State:      &types.InstanceState{Name: types.InstanceStateNameTerminated},
			}},
		}},
	}

	d := NewEC2Discoverer(fake)
	refs, err := d.Discover(context.Background(), model.CredentialHandle{}, "us-east-1")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	for _, r := range refs {
		if r.ResourceID == "i-terminated" {
			t.Error("expected terminated instance to be excluded from discovery")
		}
	}
}
