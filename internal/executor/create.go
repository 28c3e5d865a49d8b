package executor

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	asgtypes "github.com/aws/aws-sdk-go-v2/service/autoscaling/types"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/google/uuid"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/spotadvisor"
)

// CreateEC2API is the narrow EC2 subset createEc2/createAsg tasks call.
type CreateEC2API interface {
	KeyPairAPI
	RunInstances(ctx context.Context, in *ec2.RunInstancesInput, opts ...func(*ec2.Options)) (*ec2.RunInstancesOutput, error)
	CreateTags(ctx context.Context, in *ec2.CreateTagsInput, opts ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error)
	CreateLaunchTemplate(ctx context.Context, in *ec2.CreateLaunchTemplateInput, opts ...func(*ec2.Options)) (*ec2.CreateLaunchTemplateOutput, error)
}

// CreateASGAPI is the narrow Auto Scaling subset createAsg tasks call.
type CreateASGAPI interface {
	CreateAutoScalingGroup(ctx context.Context, in *autoscaling.CreateAutoScalingGroupInput, opts ...func(*autoscaling.Options)) (*autoscaling.CreateAutoScalingGroupOutput, error)
}

// SelectInstanceType resolves the instance type a createEc2/createAsg
// task should use. The planner selects instance type once against the
// first handle's region and replicates it to every task's payload
// ("instanceType"); a task with that payload key already set bypasses
// SpotAdvisor entirely, so SelectInstanceType only runs for tasks the
// planner left to decide at execution time.
func SelectInstanceType(ctx context.Context, advisor *spotadvisor.Advisor, region string, targetVcpu int) (string, error) {
	if advisor == nil {
		return "", fmt.Errorf("no spot advisor configured and no pre-selected instance type on task payload")
	}
	candidates, err := advisor.Analyze(ctx, region, spotadvisor.WorkloadGeneral, spotadvisor.Filters{TargetCapacityVCPU: targetVcpu})
	if err != nil {
		return "", fmt.Errorf("spot advisor analysis for %s: %w", region, err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("spot advisor returned no candidates for %s", region)
	}
	return candidates[0].InstanceType, nil
}

// CreateEC2 runs a createEc2 task: ensures the session's key pair exists in
// the target region, then launches one instance of the resolved instance
// type, tagging it with the session id so the ledger entry and the
// instance agree on provenance.
func CreateEC2(ctx context.Context, client CreateEC2API, keypairs *KeyPairCache, sessionID string, task *model.Task) (model.ResourceRef, error) {
	region := task.Region
	instanceType, _ := task.Payload["instanceType"].(string)
	ami, _ := task.Payload["ami"].(string)
	keyName, _ := task.Payload["keyName"].(string)
	publicKey, _ := task.Payload["publicKeyMaterial"].(string)

	if instanceType == "" {
		return model.ResourceRef{}, fmt.Errorf("createEc2 task %s has no resolved instance type", task.ID)
	}
	if ami == "" {
		return model.ResourceRef{}, fmt.Errorf("createEc2 task %s has no AMI for region %s", task.ID, region)
	}

	if keyName != "" && publicKey != "" {
		if err := keypairs.Ensure(ctx, client, region, keyName, []byte(publicKey)); err != nil {
			return model.ResourceRef{}, err
		}
	}

	in := &ec2.RunInstancesInput{
		ImageId:      aws.String(ami),
		InstanceType: ec2types.InstanceType(instanceType),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		TagSpecifications: []ec2types.TagSpecification{{
			ResourceType: ec2types.ResourceTypeInstance,
			Tags: []ec2types.Tag{
				{Key: aws.String("orchestrator-session"), Value: aws.String(sessionID)},
				{Key: aws.String("Name"), Value: aws.String("orchestrator-" + sessionID)},
			},
		}},
	}
	if keyName != "" {
		in.KeyName = aws.String(keyName)
	}

	out, err := client.RunInstances(ctx, in)
	if err != nil {
		return model.ResourceRef{}, err
	}
	if len(out.Instances) == 0 || out.Instances[0].InstanceId == nil {
		return model.ResourceRef{}, fmt.Errorf("RunInstances returned no instance id")
	}

	return model.ResourceRef{
		ResourceID:   *out.Instances[0].InstanceId,
		ResourceType: "ec2-instance",
		AccountName:  task.Credential.AccountName,
		AccountID:    task.Credential.AccountID,
		Region:       region,
		SessionID:    sessionID,
		Metadata:     map[string]any{"instanceType": instanceType},
	}, nil
}

// CreateASG runs a createAsg task: builds a launch template from the
// task's resolved instance type and AMI, then a single-AZ-agnostic Auto
// Scaling Group referencing it.
func CreateASG(ctx context.Context, ec2Client CreateEC2API, asgClient CreateASGAPI, sessionID string, task *model.Task) (model.ResourceRef, model.ResourceRef, error) {
	region := task.Region
	instanceType, _ := task.Payload["instanceType"].(string)
	ami, _ := task.Payload["ami"].(string)
	minSize, _ := task.Payload["minSize"].(int)
	maxSize, _ := task.Payload["maxSize"].(int)
	desired, _ := task.Payload["desiredCapacity"].(int)
	subnets, _ := task.Payload["subnetIds"].([]string)

	if instanceType == "" || ami == "" {
		return model.ResourceRef{}, model.ResourceRef{}, fmt.Errorf("createAsg task %s missing instance type or AMI", task.ID)
	}
	if maxSize == 0 {
		maxSize = 1
	}
	if desired == 0 {
		desired = minSize
	}

	ltName := "orchestrator-lt-" + sessionID + "-" + uuid.NewString()[:8]
	ltOut, err := ec2Client.CreateLaunchTemplate(ctx, &ec2.CreateLaunchTemplateInput{
		LaunchTemplateName: aws.String(ltName),
		LaunchTemplateData: &ec2types.RequestLaunchTemplateData{
			ImageId:      aws.String(ami),
			InstanceType: ec2types.InstanceType(instanceType),
		},
	})
	if err != nil {
		return model.ResourceRef{}, model.ResourceRef{}, fmt.Errorf("create launch template: %w", err)
	}
	ltID := *ltOut.LaunchTemplate.LaunchTemplateId

	asgName := "orchestrator-asg-" + sessionID + "-" + uuid.NewString()[:8]
	_, err = asgClient.CreateAutoScalingGroup(ctx, &autoscaling.CreateAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(asgName),
		MinSize:              aws.Int32(int32(minSize)),
		MaxSize:              aws.Int32(int32(maxSize)),
		DesiredCapacity:      aws.Int32(int32(desired)),
		LaunchTemplate: &asgtypes.LaunchTemplateSpecification{
			LaunchTemplateId: aws.String(ltID),
			Version:          aws.String("$Latest"),
		},
		VPCZoneIdentifier: joinSubnets(subnets),
		Tags: []asgtypes.Tag{{
			Key:   aws.String("orchestrator-session"),
			Value: aws.String(sessionID),
		}},
	})
	if err != nil {
		return model.ResourceRef{}, model.ResourceRef{}, fmt.Errorf("create auto scaling group: %w", err)
	}

	ltRef := model.ResourceRef{
		ResourceID:   ltID,
		ResourceType: "launch-template",
		AccountName:  task.Credential.AccountName,
		AccountID:    task.Credential.AccountID,
		Region:       region,
		SessionID:    sessionID,
		Metadata:     map[string]any{"name": ltName},
	}
	asgRef := model.ResourceRef{
		ResourceID:   asgName,
		ResourceType: "asg",
		AccountName:  task.Credential.AccountName,
		AccountID:    task.Credential.AccountID,
		Region:       region,
		SessionID:    sessionID,
		Metadata:     map[string]any{"launchTemplateId": ltID},
	}
	return ltRef, asgRef, nil
}

func joinSubnets(subnets []string) *string {
	if len(subnets) == 0 {
		return nil
	}
	s := subnets[0]
	for _, sub := range subnets[1:] {
		s += "," + sub
	}
	return &s
}
