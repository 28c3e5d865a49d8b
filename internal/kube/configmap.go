package kube

import (
	"context"
	"fmt"

	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	"sigs.k8s.io/yaml"
)

const (
	authConfigMapName      = "aws-auth"
	authConfigMapNamespace = "kube-system"
	fieldManager           = "aws-infra-orchestrator"
)

// ConfigMapManager reconciles the aws-auth ConfigMap that maps IAM
// principals to Kubernetes RBAC identities on a cluster that still uses the
// ConfigMap-based authentication mode.
type ConfigMapManager struct {
	clientset kubernetes.Interface
}

// NewConfigMapManagerFromKubeconfig builds a ConfigMapManager from raw
// kubeconfig bytes supplied by the caller.
func NewConfigMapManagerFromKubeconfig(kubeconfigYAML []byte) (*ConfigMapManager, error) {
	restCfg, err := clientcmd.RESTConfigFromKubeConfig(kubeconfigYAML)
	if err != nil {
		return nil, fmt.Errorf("parse kubeconfig: %w", err)
	}
	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("build kubernetes client: %w", err)
	}
	return &ConfigMapManager{clientset: cs}, nil
}

// NewConfigMapManager wraps an already-constructed clientset, for tests and
// for callers that already hold a kubernetes.Interface.
func NewConfigMapManager(cs kubernetes.Interface) *ConfigMapManager {
	return &ConfigMapManager{clientset: cs}
}

// entriesToYAML renders AwsAuthMapping entries into the
// mapRoles YAML blob the aws-auth ConfigMap's "data" field expects.
func entriesToYAML(entries []authMapRole) (string, error) {
	b, err := yaml.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// authMapRole is one entry of the aws-auth ConfigMap's mapRoles/mapUsers
// list.
type authMapRole struct {
	RoleARN  string   `json:"rolearn,omitempty"`
	UserARN  string   `json:"userarn,omitempty"`
	Username string   `json:"username"`
	Groups   []string `json:"groups"`
}

// Reconcile writes mapRoles to the aws-auth ConfigMap: it reads the
// ConfigMap and creates it if it does not exist; otherwise it tries a plain
// Update (the common case, an existing ConfigMap with drifted data); if
// Update fails (a conflicting resourceVersion, a webhook rejection), it
// deletes and re-creates the ConfigMap; if that fails too, it falls back to
// server-side apply, which can reconcile around field ownership conflicts a
// plain Update cannot.
func (m *ConfigMapManager) Reconcile(ctx context.Context, roleARNs []string, username string, groups []string) error {
	entries := make([]authMapRole, 0, len(roleARNs))
	for _, arn := range roleARNs {
		entries = append(entries, authMapRole{RoleARN: arn, Username: username, Groups: groups})
	}
	mapRolesYAML, err := entriesToYAML(entries)
	if err != nil {
		return fmt.Errorf("render mapRoles: %w", err)
	}
	return m.reconcileDataKey(ctx, "mapRoles", mapRolesYAML)
}

// UserMapping is one mapUsers entry: an IAM user or root-account ARN
// granted the listed Kubernetes groups.
type UserMapping struct {
	UserARN string
	Groups  []string
}

// ReconcileUsers writes mapUsers to the aws-auth ConfigMap, used for
// clusters whose auth mode includes CONFIG_MAP: the specification's
// IAM-created-cluster scenario grants both the creating IAM user and the
// account root system:masters this way.
func (m *ConfigMapManager) ReconcileUsers(ctx context.Context, mappings []UserMapping) error {
	entries := make([]authMapRole, 0, len(mappings))
	for _, mp := range mappings {
		entries = append(entries, authMapRole{UserARN: mp.UserARN, Groups: mp.Groups})
	}
	mapUsersYAML, err := entriesToYAML(entries)
	if err != nil {
		return fmt.Errorf("render mapUsers: %w", err)
	}
	return m.reconcileDataKey(ctx, "mapUsers", mapUsersYAML)
}

func (m *ConfigMapManager) reconcileDataKey(ctx context.Context, dataKey, yamlBlob string) error {
	cmClient := m.clientset.CoreV1().ConfigMaps(authConfigMapNamespace)

	existing, getErr := cmClient.Get(ctx, authConfigMapName, metav1.GetOptions{})
	if apierrors.IsNotFound(getErr) {
		_, err := cmClient.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: authConfigMapName, Namespace: authConfigMapNamespace},
			Data:       map[string]string{dataKey: yamlBlob},
		}, metav1.CreateOptions{})
		return err
	}
	if getErr != nil {
		return fmt.Errorf("get aws-auth configmap: %w", getErr)
	}

	updated := existing.DeepCopy()
	if updated.Data == nil {
		updated.Data = map[string]string{}
	}
	updated.Data[dataKey] = yamlBlob

	if _, err := cmClient.Update(ctx, updated, metav1.UpdateOptions{}); err == nil {
		return nil
	}

	// Update failed for a reason other than "it doesn't exist" (already
	// handled above) — try delete-and-create, then server-side apply, in
	// that order, before giving up.
	if delErr := cmClient.Delete(ctx, authConfigMapName, metav1.DeleteOptions{}); delErr == nil {
		_, createErr := cmClient.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: authConfigMapName, Namespace: authConfigMapNamespace},
			Data:       map[string]string{dataKey: yamlBlob},
		}, metav1.CreateOptions{})
		if createErr == nil {
			return nil
		}
	}

	return m.serverSideApply(ctx, cmClient, dataKey, yamlBlob)
}

func (m *ConfigMapManager) serverSideApply(ctx context.Context, cmClient interface {
	Patch(ctx context.Context, name string, pt types.PatchType, data []byte, opts metav1.PatchOptions, subresources ...string) (*corev1.ConfigMap, error)
}, dataKey, yamlBlob string) error {
	patch := map[string]any{
		"apiVersion": "v1",
		"kind":       "ConfigMap",
		"metadata": map[string]any{
			"name":      authConfigMapName,
			"namespace": authConfigMapNamespace,
		},
		"data": map[string]string{dataKey: yamlBlob},
	}
	data, err := yaml.Marshal(patch)
	if err != nil {
		return fmt.Errorf("render server-side-apply patch: %w", err)
	}
	_, err = cmClient.Patch(ctx, authConfigMapName, types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: fieldManager,
		Force:        boolPtr(true),
	})
	return err
}

func boolPtr(b bool) *bool { return &b }
