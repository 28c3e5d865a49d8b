package executor

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	ekstypes "github.com/aws/aws-sdk-go-v2/service/eks/types"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/awsclient"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/kube"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

const clusterAdminAccessPolicyARN = "arn:aws:eks::aws:cluster-access-policy/AmazonEKSClusterAdminPolicy"

// clusterNameUserPattern extracts the creating IAM username from the
// cluster naming convention used across the discovered fleet:
// eks-cluster-<username>-<region>-<suffix>.
var clusterNameUserPattern = regexp.MustCompile(`^eks-cluster-(.+)-([a-z]{2}-[a-z]+-\d)-[a-zA-Z0-9]+$`)

// extractIAMUsername pulls the username out of an IAM-created cluster's
// name, per the specification's naming-convention scenario.
func extractIAMUsername(clusterName string) (string, bool) {
	if strings.Contains(clusterName, "-root-") {
		return "", false // root-created cluster: no IAM creator to map
	}
	m := clusterNameUserPattern.FindStringSubmatch(clusterName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func rootAccountARN(accountID string) string {
	return fmt.Sprintf("arn:aws:iam::%s:root", accountID)
}

func iamUserARN(accountID, username string) string {
	return fmt.Sprintf("arn:aws:iam::%s:user/%s", accountID, username)
}

// DeleteEKSAutoscaler runs a deleteEksAutoscaler task: tears down the
// cluster-autoscaler's RBAC objects via kubectl, then deletes the EKS
// cluster itself. Nodegroups recorded on the ref are drained first, since
// EKS refuses to delete a cluster that still owns managed nodegroups.
func DeleteEKSAutoscaler(ctx context.Context, c *awsclient.Client, kubectlFor func(clusterName string) (*kube.Kubectl, error), ref model.ResourceRef) (DeleteOutcome, error) {
	clusterName := ref.ResourceID

	if kubectlFor != nil {
		if kctl, err := kubectlFor(clusterName); err == nil && kctl != nil {
			_ = kctl.DeleteAutoscaler(ctx, "kube-system")
		}
	}

	nodegroups, _ := ref.Metadata["nodegroups"].([]string)
	for _, ng := range nodegroups {
		_, err := c.EKS.DeleteNodegroup(ctx, &eks.DeleteNodegroupInput{
			ClusterName:   aws.String(clusterName),
			NodegroupName: aws.String(ng),
		})
		if err != nil && Classify(err) != model.ErrKindNotFound {
			return DeleteOutcome{}, fmt.Errorf("delete nodegroup %s: %w", ng, err)
		}
	}

	_, err := c.EKS.DeleteCluster(ctx, &eks.DeleteClusterInput{Name: aws.String(clusterName)})
	if err != nil {
		return notFoundOutcome(err)
	}
	return DeleteOutcome{}, nil
}

// ConfigureEKSAuth runs a configureEksAuth task, implementing the
// specification's canonical access-entry/ConfigMap duality: auth mode API
// or API_AND_CONFIG_MAP gets access entries via the EKS API; mode
// CONFIG_MAP or API_AND_CONFIG_MAP additionally gets the aws-auth ConfigMap
// written with both the cluster's creating IAM user (when its name can be
// extracted from the cluster name) and the account root, each granted
// system:masters.
func ConfigureEKSAuth(ctx context.Context, c *awsclient.Client, cmManager *kube.ConfigMapManager, ref model.ResourceRef, accountID string) error {
	clusterName := ref.ResourceID
	authMode, _ := ref.Metadata["authMode"].(string)

	principals := []string{rootAccountARN(accountID)}
	if username, ok := extractIAMUsername(clusterName); ok {
		principals = append(principals, iamUserARN(accountID, username))
	}

	if authMode == string(ekstypes.AuthenticationModeApi) || authMode == string(ekstypes.AuthenticationModeApiAndConfigMap) {
		for _, arn := range principals {
			if err := createAccessEntry(ctx, c, clusterName, arn); err != nil {
				return fmt.Errorf("create access entry for %s on %s: %w", arn, clusterName, err)
			}
		}
	}

	if authMode == string(ekstypes.AuthenticationModeConfigMap) || authMode == string(ekstypes.AuthenticationModeApiAndConfigMap) {
		if cmManager == nil {
			return fmt.Errorf("configureEksAuth: cluster %s needs a ConfigMap but no kube client was provided", clusterName)
		}
		mappings := make([]kube.UserMapping, 0, len(principals))
		for _, arn := range principals {
			mappings = append(mappings, kube.UserMapping{UserARN: arn, Groups: []string{"system:masters"}})
		}
		if err := cmManager.ReconcileUsers(ctx, mappings); err != nil {
			return fmt.Errorf("reconcile aws-auth configmap for %s: %w", clusterName, err)
		}
	}

	return nil
}

// isAccessEntryExists reports whether err is EKS's ResourceInUseException,
// returned when an access entry for the principal already exists —
// treated as success since CreateAccessEntry/AssociateAccessPolicy must be
// idempotent across repeated configureEksAuth runs.
func isAccessEntryExists(err error) bool {
	var ec awsErrorCode
	if errors.As(err, &ec) {
		return ec.ErrorCode() == "ResourceInUseException"
	}
	return false
}

func createAccessEntry(ctx context.Context, c *awsclient.Client, clusterName, principalARN string) error {
	_, err := c.EKS.CreateAccessEntry(ctx, &eks.CreateAccessEntryInput{
		ClusterName:  aws.String(clusterName),
		PrincipalArn: aws.String(principalARN),
	})
	if err != nil && !isAccessEntryExists(err) {
		return err
	}

	_, err = c.EKS.AssociateAccessPolicy(ctx, &eks.AssociateAccessPolicyInput{
		ClusterName:  aws.String(clusterName),
		PrincipalArn: aws.String(principalARN),
		PolicyArn:    aws.String(clusterAdminAccessPolicyARN),
		AccessScope: &ekstypes.AccessScope{
			Type: ekstypes.AccessScopeTypeCluster,
		},
	})
	return err
}
