package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/fsx"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/mq"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/storagegateway"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/awsclient"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// DeleteOutcome is what a single-resource delete handler reports back to
// the pool, which folds it into a ledger Retired or FailedRetire entry.
type DeleteOutcome struct {
	AlreadyAbsent bool
}

// DeleteHandler deletes exactly one resource, described by ref, using the
// AWS clients in c. A NotFound-classified error from the underlying call
// is the caller's responsibility to translate into a success outcome; each
// handler below does that translation itself so the pool only needs to
// check the returned error.
type DeleteHandler func(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error)

// DeleteHandlers maps every delete-style TaskKind the planner emits to its
// handler.
var DeleteHandlers = map[model.TaskKind]DeleteHandler{
	model.TaskDeleteEC2:             deleteEC2Instance,
	model.TaskDeleteSG:              deleteSecurityGroup,
	model.TaskRemoveReplication:     removeBucketReplication,
	model.TaskDisableVersioning:     disableBucketVersioning,
	model.TaskEmptyBucket:           emptyBucket,
	model.TaskDeleteBucket:          deleteBucket,
	model.TaskDeleteIAMUser:         deleteIAMUser,
	model.TaskDeleteIAMGroup:        deleteIAMGroup,
	model.TaskDeleteRuleTargets:     deleteRuleTargets,
	model.TaskDeleteRule:            deleteRule,
	model.TaskDeleteEventBus:        deleteEventBus,
	model.TaskDeleteRedshiftCluster: deleteRedshiftCluster,
	model.TaskDeleteSubnetGroup:     deleteRedshiftSubnetGroup,
	model.TaskDeleteParameterGroup:  deleteRedshiftParameterGroup,
	model.TaskDeleteStateMachine:    deleteStateMachine,
	model.TaskStopNotebook:          stopNotebook,
	model.TaskDeleteNotebook:        deleteNotebook,
	model.TaskDeleteSageMakerEndpoint: deleteSageMakerEndpoint,
	model.TaskDeleteMQBroker:        deleteMQBroker,
	model.TaskDeleteFSx:             deleteFSx,
	model.TaskDeleteStorageGateway:  deleteStorageGateway,
	model.TaskDeleteASG:             deleteASG,
	model.TaskDeleteLaunchTemplate:  deleteLaunchTemplate,
}

func notFoundOutcome(err error) (DeleteOutcome, error) {
	if Classify(err) == model.ErrKindNotFound {
		return DeleteOutcome{AlreadyAbsent: true}, nil
	}
	return DeleteOutcome{}, err
}

// deleteEC2Instance terminates an instance and, if force-delete is not
// requested, returns immediately; force-delete polling (used by the
// security-group DependencyViolation retry loop) is driven by
// pollInstanceTerminated, called separately from deleteSecurityGroup.
func deleteEC2Instance(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.EC2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{InstanceIds: []string{ref.ResourceID}})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func pollInstanceTerminated(ctx context.Context, c *awsclient.Client, instanceID string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		out, err := c.EC2.DescribeInstances(ctx, &ec2.DescribeInstancesInput{InstanceIds: []string{instanceID}})
		if err != nil {
			if Classify(err) == model.ErrKindNotFound {
				return nil
			}
			return err
		}
		terminated := true
		for _, res := range out.Reservations {
			for _, inst := range res.Instances {
				if inst.State != nil && inst.State.Name != ec2types.InstanceStateNameTerminated {
					terminated = false
				}
			}
		}
		if terminated {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(5 * time.Second):
		}
	}
	return fmt.Errorf("instance %s did not terminate within %s", instanceID, timeout)
}

// deleteSecurityGroup implements the scenario named in the specification:
// a force-deleted security group waits for any attached instance to
// terminate, clears its ingress/egress rules one by one (skipping the
// default egress-all rule, which AWS recreates implicitly on delete
// anyway), then deletes the group. A plain (non-forced) delete just
// attempts DeleteSecurityGroup and lets DependencyViolation surface to the
// Executor's retry loop.
func deleteSecurityGroup(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	forceDelete, _ := ref.Metadata["forceDelete"].(bool)
	if forceDelete {
		attached, _ := ref.Metadata["attachedInstanceIds"].([]string)
		for _, instanceID := range attached {
			if err := pollInstanceTerminated(ctx, c, instanceID, 5*time.Minute); err != nil {
				return DeleteOutcome{}, err
			}
		}
		if err := clearSecurityGroupRules(ctx, c, ref.ResourceID); err != nil {
			return DeleteOutcome{}, err
		}
	}

	_, err := c.EC2.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{GroupId: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func clearSecurityGroupRules(ctx context.Context, c *awsclient.Client, groupID string) error {
	out, err := c.EC2.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{GroupIds: []string{groupID}})
	if err != nil {
		return err
	}
	if len(out.SecurityGroups) == 0 {
		return nil
	}
	sg := out.SecurityGroups[0]

	for _, perm := range sg.IpPermissions {
		if _, err := c.EC2.RevokeSecurityGroupIngress(ctx, &ec2.RevokeSecurityGroupIngressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{perm},
		}); err != nil && Classify(err) != model.ErrKindNotFound {
			return err
		}
	}

	for _, perm := range nonDefaultEgressRules(sg.IpPermissionsEgress) {
		if _, err := c.EC2.RevokeSecurityGroupEgress(ctx, &ec2.RevokeSecurityGroupEgressInput{
			GroupId:       aws.String(groupID),
			IpPermissions: []ec2types.IpPermission{perm},
		}); err != nil && Classify(err) != model.ErrKindNotFound {
			return err
		}
	}
	return nil
}

// nonDefaultEgressRules filters out the implicit allow-all egress rule
// every security group is created with, which the specification's rule
// clearing step is explicit about skipping.
func nonDefaultEgressRules(perms []ec2types.IpPermission) []ec2types.IpPermission {
	var out []ec2types.IpPermission
	for _, p := range perms {
		isAllowAll := p.IpProtocol != nil && *p.IpProtocol == "-1" && len(p.IpRanges) == 1 &&
			p.IpRanges[0].CidrIp != nil && *p.IpRanges[0].CidrIp == "0.0.0.0/0"
		if isAllowAll {
			continue
		}
		out = append(out, p)
	}
	return out
}

func removeBucketReplication(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.S3.DeleteBucketReplication(ctx, &s3.DeleteBucketReplicationInput{Bucket: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func disableBucketVersioning(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	versioned, _ := ref.Metadata["versioned"].(bool)
	if !versioned {
		return DeleteOutcome{AlreadyAbsent: true}, nil
	}
	_, err := c.S3.PutBucketVersioning(ctx, &s3.PutBucketVersioningInput{
		Bucket: aws.String(ref.ResourceID),
		VersioningConfiguration: &s3types.VersioningConfiguration{
			Status: s3types.BucketVersioningStatusSuspended,
		},
	})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func emptyBucket(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	var keyMarker, versionIDMarker *string
	for {
		out, err := c.S3.ListObjectVersions(ctx, &s3.ListObjectVersionsInput{
			Bucket:          aws.String(ref.ResourceID),
			KeyMarker:       keyMarker,
			VersionIdMarker: versionIDMarker,
		})
		if err != nil {
			return notFoundOutcome(err)
		}

		var ids []s3types.ObjectIdentifier
		for _, v := range out.Versions {
			ids = append(ids, s3types.ObjectIdentifier{Key: v.Key, VersionId: v.VersionId})
		}
		for _, m := range out.DeleteMarkers {
			ids = append(ids, s3types.ObjectIdentifier{Key: m.Key, VersionId: m.VersionId})
		}
		if len(ids) > 0 {
			if _, err := c.S3.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(ref.ResourceID),
				Delete: &s3types.Delete{Objects: ids},
			}); err != nil {
				return notFoundOutcome(err)
			}
		}

		if out.IsTruncated == nil || !*out.IsTruncated {
			break
		}
		keyMarker = out.NextKeyMarker
		versionIDMarker = out.NextVersionIdMarker
	}
	return DeleteOutcome{}, nil
}

func deleteBucket(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.S3.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteIAMUser(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	groups, _ := ref.Metadata["groups"].([]string)
	for _, g := range groups {
		_, _ = c.IAM.RemoveUserFromGroup(ctx, &iam.RemoveUserFromGroupInput{UserName: aws.String(ref.ResourceID), GroupName: aws.String(g)})
	}
	keys, err := c.IAM.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: aws.String(ref.ResourceID)})
	if err == nil {
		for _, k := range keys.AccessKeyMetadata {
			_, _ = c.IAM.DeleteAccessKey(ctx, &iam.DeleteAccessKeyInput{UserName: aws.String(ref.ResourceID), AccessKeyId: k.AccessKeyId})
		}
	}
	_, err = c.IAM.DeleteUser(ctx, &iam.DeleteUserInput{UserName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteIAMGroup(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.IAM.DeleteGroup(ctx, &iam.DeleteGroupInput{GroupName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteRuleTargets(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	ruleName, _ := ref.Metadata["ruleName"].(string)
	busName, _ := ref.Metadata["eventBusName"].(string)
	in := &eventbridge.RemoveTargetsInput{Rule: aws.String(ruleName), Ids: []string{ref.ResourceID}}
	if busName != "" {
		in.EventBusName = aws.String(busName)
	}
	_, err := c.EventBridge.RemoveTargets(ctx, in)
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteRule(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	busName, _ := ref.Metadata["eventBusName"].(string)
	in := &eventbridge.DeleteRuleInput{Name: aws.String(ref.ResourceID), Force: true}
	if busName != "" {
		in.EventBusName = aws.String(busName)
	}
	_, err := c.EventBridge.DeleteRule(ctx, in)
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteEventBus(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.EventBridge.DeleteEventBus(ctx, &eventbridge.DeleteEventBusInput{Name: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteRedshiftCluster(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.Redshift.DeleteCluster(ctx, &redshift.DeleteClusterInput{
		ClusterIdentifier:      aws.String(ref.ResourceID),
		SkipFinalClusterSnapshot: true,
	})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteRedshiftSubnetGroup(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.Redshift.DeleteClusterSubnetGroup(ctx, &redshift.DeleteClusterSubnetGroupInput{ClusterSubnetGroupName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteRedshiftParameterGroup(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.Redshift.DeleteClusterParameterGroup(ctx, &redshift.DeleteClusterParameterGroupInput{ParameterGroupName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteStateMachine(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.SFN.DeleteStateMachine(ctx, &sfn.DeleteStateMachineInput{StateMachineArn: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func stopNotebook(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.SageMaker.StopNotebookInstance(ctx, &sagemaker.StopNotebookInstanceInput{NotebookInstanceName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, waitNotebookStopped(ctx, c, ref.ResourceID)
}

func waitNotebookStopped(ctx context.Context, c *awsclient.Client, name string) error {
	deadline := time.Now().Add(10 * time.Minute)
	for time.Now().Before(deadline) {
		out, err := c.SageMaker.DescribeNotebookInstance(ctx, &sagemaker.DescribeNotebookInstanceInput{NotebookInstanceName: aws.String(name)})
		if err != nil {
			if Classify(err) == model.ErrKindNotFound {
				return nil
			}
			return err
		}
		if out.NotebookInstanceStatus == "Stopped" || out.NotebookInstanceStatus == "Failed" {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Second):
		}
	}
	return fmt.Errorf("notebook %s did not stop in time", name)
}

func deleteNotebook(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.SageMaker.DeleteNotebookInstance(ctx, &sagemaker.DeleteNotebookInstanceInput{NotebookInstanceName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteSageMakerEndpoint(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.SageMaker.DeleteEndpoint(ctx, &sagemaker.DeleteEndpointInput{EndpointName: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteMQBroker(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.MQ.DeleteBroker(ctx, &mq.DeleteBrokerInput{BrokerId: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteFSx(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.FSx.DeleteFileSystem(ctx, &fsx.DeleteFileSystemInput{FileSystemId: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteStorageGateway(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.StorageGateway.DeleteGateway(ctx, &storagegateway.DeleteGatewayInput{GatewayARN: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

// deleteASG and deleteLaunchTemplate only run as rollback tasks: the
// reverse of createAsg tears the group down, then the launch template it
// referenced.
func deleteASG(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.AutoScaling.DeleteAutoScalingGroup(ctx, &autoscaling.DeleteAutoScalingGroupInput{
		AutoScalingGroupName: aws.String(ref.ResourceID),
		ForceDelete:          aws.Bool(true),
	})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

func deleteLaunchTemplate(ctx context.Context, c *awsclient.Client, ref model.ResourceRef) (DeleteOutcome, error) {
	_, err := c.EC2.DeleteLaunchTemplate(ctx, &ec2.DeleteLaunchTemplateInput{LaunchTemplateId: aws.String(ref.ResourceID)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}
