// Package awsclient builds per-service AWS SDK v2 clients for a validated
// CredentialHandle. One Client bundles every service client a discoverer
// or executor task might need for a single (account, region) pair.
package awsclient

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/autoscaling"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/fsx"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/mq"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sagemaker"
	"github.com/aws/aws-sdk-go-v2/service/sfn"
	"github.com/aws/aws-sdk-go-v2/service/storagegateway"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// Client bundles every per-service AWS SDK client an orchestrator
// operation can need for one (credential, region) pair.
type Client struct {
	cfg aws.Config

	EC2            *ec2.Client
	EKS            *eks.Client
	IAM            *iam.Client
	S3             *s3.Client
	EventBridge    *eventbridge.Client
	Redshift       *redshift.Client
	SFN            *sfn.Client
	SageMaker      *sagemaker.Client
	MQ             *mq.Client
	FSx            *fsx.Client
	StorageGateway *storagegateway.Client
	AutoScaling    *autoscaling.Client
	CloudWatch     *cloudwatch.Client
	CloudWatchLogs *cloudwatchlogs.Client
	STS            *sts.Client
}

// New builds a Client for h in region, preferring h's explicit access
// key/secret (the form every account-config and IAM-credentials-file entry
// takes per the specification) and falling back to the default credential
// chain when h carries none, e.g. when ambient instance/task credentials
// are intended.
func New(ctx context.Context, h model.CredentialHandle, region string) (*Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(region),
	}
	if h.AccessKey != "" && h.SecretKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(h.AccessKey, h.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config for %s/%s: %w", h.DisplayName(), region, err)
	}

	return fromConfig(cfg), nil
}

func fromConfig(cfg aws.Config) *Client {
	return &Client{
		cfg:            cfg,
		EC2:            ec2.NewFromConfig(cfg),
		EKS:            eks.NewFromConfig(cfg),
		IAM:            iam.NewFromConfig(cfg),
		S3:             s3.NewFromConfig(cfg),
		EventBridge:    eventbridge.NewFromConfig(cfg),
		Redshift:       redshift.NewFromConfig(cfg),
		SFN:            sfn.NewFromConfig(cfg),
		SageMaker:      sagemaker.NewFromConfig(cfg),
		MQ:             mq.NewFromConfig(cfg),
		FSx:            fsx.NewFromConfig(cfg),
		StorageGateway: storagegateway.NewFromConfig(cfg),
		AutoScaling:    autoscaling.NewFromConfig(cfg),
		CloudWatch:     cloudwatch.NewFromConfig(cfg),
		CloudWatchLogs: cloudwatchlogs.NewFromConfig(cfg),
		STS:            sts.NewFromConfig(cfg),
	}
}

// Region returns the region this Client was configured for.
func (c *Client) Region() string {
	return c.cfg.Region
}

// IdentityLookup adapts Client.VerifyIdentity to the credentials package's
// IdentityLookup function type, so handle validation can reuse the same
// client construction path the executor uses. STS is a global-ish service;
// any region the handle is authorized for works, so the first one is used.
func IdentityLookup(ctx context.Context, h model.CredentialHandle) (accountID string, err error) {
	region := "us-east-1"
	if len(h.Regions) > 0 {
		region = h.Regions[0]
	}
	c, err := New(ctx, h, region)
	if err != nil {
		return "", err
	}
	return c.VerifyIdentity(ctx)
}

// VerifyIdentity calls STS GetCallerIdentity and returns the resolved
// account id.
func (c *Client) VerifyIdentity(ctx context.Context) (string, error) {
	out, err := c.STS.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", err
	}
	if out.Account == nil {
		return "", fmt.Errorf("sts GetCallerIdentity returned no account id")
	}
	return *out.Account, nil
}
