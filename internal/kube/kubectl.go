// Package kube drives the two Kubernetes-facing operations the
// orchestrator performs against an EKS cluster before it is deleted: tearing
// down the cluster-autoscaler's RBAC objects via a kubectl subprocess, and
// reconciling the aws-auth ConfigMap via the programmatic client-go API.
package kube

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// Kubectl wraps kubectl invocations against one cluster's kubeconfig, in
// the style of the cluster client this engine's autoscaler teardown is
// modeled on.
type Kubectl struct {
	kubeconfig string
	context    string
	namespace  string
	debug      bool
}

// NewKubectl builds a Kubectl bound to a kubeconfig path and context name.
// An empty kubeconfig omits --kubeconfig, so kubectl uses its default
// kubeconfig; an empty context omits --context.
func NewKubectl(kubeconfig, kubeContext string, debug bool) *Kubectl {
	return &Kubectl{kubeconfig: kubeconfig, context: kubeContext, namespace: "kube-system", debug: debug}
}

// DeleteIgnoreNotFound deletes one named resource, treating a NotFound
// response as success: the autoscaler-deletion sequence runs each of its
// steps unconditionally, and a resource that was never created (or already
// removed by an earlier partial run) must not abort the sequence.
func (k *Kubectl) DeleteIgnoreNotFound(ctx context.Context, resourceType, name, namespace string) error {
	args := k.buildArgs(namespace, []string{"delete", resourceType, name, "--ignore-not-found=true"})
	_, err := k.run(ctx, args)
	return err
}

// run executes kubectl with args and returns combined stdout.
func (k *Kubectl) run(ctx context.Context, args []string) (string, error) {
	if k.debug {
		fmt.Printf("[kubectl] %s\n", strings.Join(args, " "))
	}

	cmd := exec.CommandContext(ctx, "kubectl", args...)
	cmd.Env = os.Environ()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("kubectl command failed: %w, stderr: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

func (k *Kubectl) buildArgs(namespace string, args []string) []string {
	cmdArgs := make([]string, 0, len(args)+6)
	if k.kubeconfig != "" {
		cmdArgs = append(cmdArgs, "--kubeconfig", k.kubeconfig)
	}
	if k.context != "" {
		cmdArgs = append(cmdArgs, "--context", k.context)
	}
	ns := namespace
	if ns == "" {
		ns = k.namespace
	}
	if ns != "" && ns != "all" {
		cmdArgs = append(cmdArgs, "-n", ns)
	}
	cmdArgs = append(cmdArgs, args...)
	return cmdArgs
}

// AutoscalerTeardownSteps is the ordered sequence of cluster-autoscaler
// RBAC/workload objects this cluster deletion flow removes before the EKS
// cluster itself is deleted. Each step is independent of the others
// succeeding: every call uses --ignore-not-found so a partially-applied
// autoscaler (or one already torn down by a previous attempt) does not
// abort the sequence.
var AutoscalerTeardownSteps = []struct {
	ResourceType string
	Name         string
}{
	{"deployment", "cluster-autoscaler"},
	{"serviceaccount", "cluster-autoscaler"},
	{"clusterrole", "cluster-autoscaler"},
	{"clusterrolebinding", "cluster-autoscaler"},
	{"role", "cluster-autoscaler"},
	{"rolebinding", "cluster-autoscaler"},
	{"secret", "cluster-autoscaler-aws-credentials"},
}

// DeleteAutoscaler runs every AutoscalerTeardownSteps entry in order,
// continuing past individual failures and returning the first error
// encountered (if any) after all steps have been attempted; the caller
// decides whether a partial teardown still permits cluster deletion to
// proceed.
func (k *Kubectl) DeleteAutoscaler(ctx context.Context, namespace string) error {
	var firstErr error
	for _, step := range AutoscalerTeardownSteps {
		if err := k.DeleteIgnoreNotFound(ctx, step.ResourceType, step.Name, namespace); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IsKubectlAvailable reports whether a kubectl binary is on PATH.
func IsKubectlAvailable() bool {
	_, err := exec.LookPath("kubectl")
	return err == nil
}
