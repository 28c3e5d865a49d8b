package executor

import (
	"context"
	"fmt"

	"k8s.io/client-go/kubernetes"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/awsclient"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/kube"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// DefaultEKSAuthFor builds a Pool.EKSAuthFor implementation against a real
// cluster endpoint: it mints a rest.Config via kube.RESTConfigForCluster
// (no kubeconfig file ever touches disk), builds a clientset from it for
// the ConfigMapManager, and shells out to kubectl for the autoscaler
// teardown steps. kubectl gets kubeconfigPath via --kubeconfig when it is
// non-empty (otherwise its own default kubeconfig) and the cluster name via
// --context; no kubeconfig is generated for it.
func DefaultEKSAuthFor(kubeconfigPath string, debug bool) func(ctx context.Context, client *awsclient.Client, h model.CredentialHandle, region, clusterName, endpoint, caDataBase64 string) (*kube.Kubectl, *kube.ConfigMapManager, error) {
	return func(ctx context.Context, client *awsclient.Client, h model.CredentialHandle, region, clusterName, endpoint, caDataBase64 string) (*kube.Kubectl, *kube.ConfigMapManager, error) {
		if endpoint == "" {
			return nil, nil, fmt.Errorf("cluster %s has no endpoint to authenticate against", clusterName)
		}

		restCfg, err := kube.RESTConfigForCluster(endpoint, caDataBase64, region, clusterName, h.AccessKey, h.SecretKey)
		if err != nil {
			return nil, nil, fmt.Errorf("build rest config for %s: %w", clusterName, err)
		}

		clientset, err := kubernetes.NewForConfig(restCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("build kubernetes clientset for %s: %w", clusterName, err)
		}
		cmManager := kube.NewConfigMapManager(clientset)

		kctl := kube.NewKubectl(kubeconfigPath, clusterName, debug)
		return kctl, cmManager, nil
	}
}
