package discover

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// EKSAPI is the narrow subset of *eks.Client this discoverer calls.
type EKSAPI interface {
	ListClusters(ctx context.Context, in *eks.ListClustersInput, opts ...func(*eks.Options)) (*eks.ListClustersOutput, error)
	DescribeCluster(ctx context.Context, in *eks.DescribeClusterInput, opts ...func(*eks.Options)) (*eks.DescribeClusterOutput, error)
	ListNodegroups(ctx context.Context, in *eks.ListNodegroupsInput, opts ...func(*eks.Options)) (*eks.ListNodegroupsOutput, error)
}

// EKSDiscoverer enumerates EKS clusters and nodegroups.
type EKSDiscoverer struct {
	client EKSAPI
}

func NewEKSDiscoverer(client EKSAPI) *EKSDiscoverer {
	return &EKSDiscoverer{client: client}
}

func (d *EKSDiscoverer) Discover(ctx context.Context, h model.CredentialHandle, region string) ([]model.ResourceRef, error) {
	var refs []model.ResourceRef

	var nextToken *string
	for {
		out, err := d.client.ListClusters(ctx, &eks.ListClustersInput{NextToken: nextToken})
		if err != nil {
			return nil, err
		}
		for _, name := range out.Clusters {
			desc, err := d.client.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: &name})
			authMode := ""
			if err == nil && desc.Cluster != nil && desc.Cluster.AccessConfig != nil {
				authMode = string(desc.Cluster.AccessConfig.AuthenticationMode)
			}

			ngOut, _ := d.client.ListNodegroups(ctx, &eks.ListNodegroupsInput{ClusterName: &name})
			var nodegroups []string
			if ngOut != nil {
				nodegroups = ngOut.Nodegroups
			}

			refs = append(refs, newRef(name, "eks-cluster", h, region, map[string]any{
				"authMode":   authMode,
				"nodegroups": nodegroups,
				"createdBy":  classifyClusterCreator(name),
			}))
		}
		if out.NextToken == nil {
			break
		}
		nextToken = out.NextToken
	}

	return refs, nil
}

// classifyClusterCreator implements the naming rule from the specification:
// a cluster name containing "-root-" was created by the root account;
// any other name is classified as IAM-created. It returns only the class
// ("root" or "iam"), not the IAM username.
func classifyClusterCreator(clusterName string) string {
	if containsRootMarker(clusterName) {
		return "root"
	}
	return "iam"
}

func containsRootMarker(name string) bool {
	const marker = "-root-"
	for i := 0; i+len(marker) <= len(name); i++ {
		if name[i:i+len(marker)] == marker {
			return true
		}
	}
	return false
}
