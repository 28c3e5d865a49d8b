package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/redshift"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// RedshiftAPI is the narrow subset of *redshift.Client this discoverer
// calls.
type RedshiftAPI interface {
	DescribeClusters(ctx context.Context, in *redshift.DescribeClustersInput, opts ...func(*redshift.Options)) (*redshift.DescribeClustersOutput, error)
	DescribeClusterSubnetGroups(ctx context.Context, in *redshift.DescribeClusterSubnetGroupsInput, opts ...func(*redshift.Options)) (*redshift.DescribeClusterSubnetGroupsOutput, error)
	DescribeClusterParameterGroups(ctx context.Context, in *redshift.DescribeClusterParameterGroupsInput, opts ...func(*redshift.Options)) (*redshift.DescribeClusterParameterGroupsOutput, error)
}

// RedshiftDiscoverer enumerates clusters, subnet groups, and parameter
// groups.
type RedshiftDiscoverer struct {
	client RedshiftAPI
}

func NewRedshiftDiscoverer(client RedshiftAPI) *RedshiftDiscoverer {
	return &RedshiftDiscoverer{client: client}
}

func (d *RedshiftDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var marker *string
	for {
		out, err := d.client.DescribeClusters(ctx, &redshift.DescribeClustersInput{Marker: marker})
		if err != nil {
			return nil, err
		}
		for _, c := range out.Clusters {
			if c.ClusterIdentifier == nil {
				continue
			}
			refs = append(refs, newRef(*c.ClusterIdentifier, "cluster", h, region, nil))
		}
		if out.Marker == nil {
			break
		}
		marker = out.Marker
	}

	if sgOut, err := d.client.DescribeClusterSubnetGroups(ctx, &redshift.DescribeClusterSubnetGroupsInput{}); err == nil {
		for _, sg := range sgOut.ClusterSubnetGroups {
			if sg.ClusterSubnetGroupName == nil {
				continue
			}
			refs = append(refs, newRef(*sg.ClusterSubnetGroupName, "subnet-group", h, region, nil))
		}
	}

	if pgOut, err := d.client.DescribeClusterParameterGroups(ctx, &redshift.DescribeClusterParameterGroupsInput{}); err == nil {
		for _, pg := range pgOut.ParameterGroups {
			if pg.ParameterGroupName == nil {
				continue
			}
			refs = append(refs, newRef(*pg.ParameterGroupName, "parameter-group", h, region, nil))
		}
	}

	return refs, nil
}
