package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// S3API is the narrow subset of *s3.Client this discoverer calls.
type S3API interface {
	ListBuckets(ctx context.Context, in *s3.ListBucketsInput, opts ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetBucketLocation(ctx context.Context, in *s3.GetBucketLocationInput, opts ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	GetBucketVersioning(ctx context.Context, in *s3.GetBucketVersioningInput, opts ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
	GetBucketReplication(ctx context.Context, in *s3.GetBucketReplicationInput, opts ...func(*s3.Options)) (*s3.GetBucketReplicationOutput, error)
}

// S3Discoverer enumerates S3 buckets, resolving each bucket's home region
// so deletes can be issued against a regionally-scoped client.
type S3Discoverer struct {
	client S3API
}

func NewS3Discoverer(client S3API) *S3Discoverer {
	return &S3Discoverer{client: client}
}

func (d *S3Discoverer) Discover(ctx context.Context, h model.CredentialHandle, homeRegion string) ([]model.ResourceRef, error) {
	out, err := d.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, err
	}

	var refs []model.ResourceRef
	for _, b := range out.Buckets {
		if b.Name == nil {
			continue
		}

		bucketRegion := homeRegion
		if loc, err := d.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{Bucket: b.Name}); err == nil {
			if r := string(loc.LocationConstraint); r != "" {
				bucketRegion = r
			}
		}

		hasVersioning := false
		if v, err := d.client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: b.Name}); err == nil {
			hasVersioning = string(v.Status) == "Enabled"
		}

		hasReplication := false
		if _, err := d.client.GetBucketReplication(ctx, &s3.GetBucketReplicationInput{Bucket: b.Name}); err == nil {
			hasReplication = true
		}

		refs = append(refs, newRef(*b.Name, "bucket", h, bucketRegion, map[string]any{
			"hasVersioning":  hasVersioning,
			"hasReplication": hasReplication,
		}))
	}
	return refs, nil
}
