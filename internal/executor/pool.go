package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/awsclient"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/kube"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/ledger"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/spotadvisor"
)

// ClientCache builds and reuses one *awsclient.Client per (handle, region)
// pair for the lifetime of a session, since every task against the same
// account/region shares the same underlying SDK clients.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*awsclient.Client
}

// NewClientCache builds an empty cache.
func NewClientCache() *ClientCache {
	return &ClientCache{clients: make(map[string]*awsclient.Client)}
}

// Get returns the cached client for (h, region), building it with
// awsclient.New on first use.
func (c *ClientCache) Get(ctx context.Context, h model.CredentialHandle, region string) (*awsclient.Client, error) {
	key := h.AccountID + "/" + h.Username + "/" + region
	c.mu.Lock()
	defer c.mu.Unlock()
	if cl, ok := c.clients[key]; ok {
		return cl, nil
	}
	cl, err := awsclient.New(ctx, h, region)
	if err != nil {
		return nil, err
	}
	c.clients[key] = cl
	return cl, nil
}

// Pool is the Executor: a bounded worker pool that drains a
// dependency.Graph, dispatches each ready task to the handler for its
// TaskKind, retries classified-retryable failures, and records every
// outcome to the session ledger.
type Pool struct {
	Plan     *planner.Plan
	Clients  *ClientCache
	Ledger   *ledger.Ledger
	Progress *ProgressWriter
	KeyPairs *KeyPairCache
	Advisor  *spotadvisor.Advisor
	Confirm  ConfirmPolicy
	Workers  int
	DryRun   bool
	SessionID string

	// EKSAuthFor builds the Kubectl/ConfigMapManager pair for an EKS
	// cluster. nil disables kubectl-driven autoscaler teardown and
	// ConfigMap reconciliation (DeleteCluster/CreateAccessEntry calls
	// still run).
	EKSAuthFor func(ctx context.Context, client *awsclient.Client, h model.CredentialHandle, region, clusterName, endpoint, caDataBase64 string) (*kube.Kubectl, *kube.ConfigMapManager, error)

	// TaskDeadline bounds any single task's execution, per the
	// specification's per-task deadline; zero disables the bound.
	TaskDeadline time.Duration

	mu       sync.Mutex
	skipAll  bool // set once cancellation is requested; remaining pending tasks are skipped, not run
}

// Run drains the graph until every task reaches a terminal state, fanning
// work out across Workers goroutines. It returns once the graph is fully
// drained or ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	workers := p.Workers
	if workers <= 0 {
		workers = 1
	}

	var wg sync.WaitGroup
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := p.workerLoop(ctx); err != nil {
				errs <- err
			}
		}()
	}

	wg.Wait()
	close(errs)

	var firstErr error
	for err := range errs {
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pool) workerLoop(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			p.markCancelling()
		}

		ready := p.Plan.Graph.WaitForReady()
		if len(ready) == 0 {
			return nil
		}

		var taskID string
		var claimed bool
		for _, id := range ready {
			if p.Plan.Graph.Claim(id) {
				taskID = id
				claimed = true
				break
			}
		}
		if !claimed {
			continue
		}

		task, ok := p.Plan.Graph.Task(taskID)
		if !ok {
			continue
		}

		p.runOneTask(ctx, task)
		p.Plan.Graph.Signal()
	}
}

func (p *Pool) markCancelling() {
	p.mu.Lock()
	p.skipAll = true
	p.mu.Unlock()
}

func (p *Pool) isCancelling() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipAll
}

// runOneTask dispatches one claimed task, retries it per the classified
// error kind of its own failures, and records the terminal outcome to the
// ledger and the dependency graph.
func (p *Pool) runOneTask(ctx context.Context, task *model.Task) {
	start := time.Now()
	account := task.Credential.DisplayName()
	if p.Progress != nil {
		p.Progress.TaskStart(task.ID, string(task.Kind), account, task.Region)
	}

	taskCtx := ctx
	var cancel context.CancelFunc
	if p.TaskDeadline > 0 {
		taskCtx, cancel = context.WithTimeout(ctx, p.TaskDeadline)
		defer cancel()
	}

	if p.isCancelling() {
		p.finish(task, model.TaskSkipped, 0, &model.ClassifiedError{Kind: model.ErrKindCancelled, Err: ctx.Err()})
		return
	}

	refs, attempts, err := p.dispatch(taskCtx, task)
	elapsed := time.Since(start)

	if err != nil {
		kind := Classify(err)
		if p.Progress != nil {
			p.Progress.TaskDone(task.ID, "failed", attempts, elapsed)
		}
		p.recordFailure(task, kind, err)
		p.finish(task, model.TaskFailed, attempts, err)
		return
	}

	if p.Progress != nil {
		p.Progress.TaskDone(task.ID, "succeeded", attempts, elapsed)
	}
	p.recordSuccess(task, refs)
	p.finish(task, model.TaskSucceeded, attempts, nil)
}

func (p *Pool) finish(task *model.Task, status model.TaskStatus, attempts int, err error) {
	task.Attempts = attempts
	task.Err = err
	p.Plan.Graph.Complete(task.ID, status)
}

// dispatch routes a task to its handler and returns whatever resource refs
// it produced (creates append one; discovery produces the discovered set;
// deletes produce the single ref they acted on, for ledger recording) with
// the attempt count spent reaching its outcome.
func (p *Pool) dispatch(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	switch task.Kind {
	case model.TaskCreateEC2:
		return p.dispatchCreateEC2(ctx, task)
	case model.TaskCreateASG:
		return p.dispatchCreateASG(ctx, task)
	case model.TaskDiscoverResources:
		return p.dispatchDiscovery(ctx, task)
	case model.TaskDeleteEKSAutoscaler:
		return p.dispatchEKSAutoscalerDelete(ctx, task)
	case model.TaskConfigureEKSAuth:
		return p.dispatchEKSAuth(ctx, task)
	default:
		return p.dispatchDelete(ctx, task)
	}
}

func (p *Pool) clientFor(ctx context.Context, task *model.Task) (*awsclient.Client, error) {
	if p.DryRun {
		return nil, nil
	}
	return p.Clients.Get(ctx, task.Credential, task.Region)
}

func (p *Pool) dispatchCreateEC2(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	if p.DryRun {
		return []model.ResourceRef{p.dryRunRef(task, "ec2-instance")}, 1, nil
	}
	client, err := p.clientFor(ctx, task)
	if err != nil {
		return nil, 0, err
	}
	if instanceType, _ := task.Payload["instanceType"].(string); instanceType == "" {
		resolved, selErr := SelectInstanceType(ctx, p.Advisor, task.Region, 0)
		if selErr != nil {
			return nil, 0, selErr
		}
		task.Payload["instanceType"] = resolved
	}
	ref, attempts, err := Retry(ctx, task.ID, p.Progress, DefaultMaxAttempts, func(int) (model.ResourceRef, error) {
		return CreateEC2(ctx, client.EC2, p.KeyPairs, p.SessionID, task)
	})
	if err != nil {
		return nil, attempts, err
	}
	return []model.ResourceRef{ref}, attempts, nil
}

func (p *Pool) dispatchCreateASG(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	if p.DryRun {
		return []model.ResourceRef{p.dryRunRef(task, "asg"), p.dryRunRef(task, "launch-template")}, 1, nil
	}
	client, err := p.clientFor(ctx, task)
	if err != nil {
		return nil, 0, err
	}
	if instanceType, _ := task.Payload["instanceType"].(string); instanceType == "" {
		resolved, selErr := SelectInstanceType(ctx, p.Advisor, task.Region, 0)
		if selErr != nil {
			return nil, 0, selErr
		}
		task.Payload["instanceType"] = resolved
	}
	type asgResult struct{ lt, asg model.ResourceRef }
	res, attempts, err := Retry(ctx, task.ID, p.Progress, DefaultMaxAttempts, func(int) (asgResult, error) {
		lt, asg, err := CreateASG(ctx, client.EC2, client.AutoScaling, p.SessionID, task)
		return asgResult{lt, asg}, err
	})
	if err != nil {
		return nil, attempts, err
	}
	return []model.ResourceRef{res.lt, res.asg}, attempts, nil
}

func (p *Pool) dispatchDiscovery(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	client, err := p.clientFor(ctx, task)
	if err != nil {
		return nil, 0, err
	}
	registry := RegistryFor(client)
	refs, _, err := RunDiscovery(ctx, registry, p.Plan, task)
	if err != nil {
		return nil, 1, err
	}
	return refs, 1, nil
}

// dispatchDelete handles every plain single-resource delete task: those the
// planner expanded from a discovery task (payload key "resourceRef") and
// those a rollback task built directly (payload key "resourceId").
func (p *Pool) dispatchDelete(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	handler, ok := DeleteHandlers[task.Kind]
	if !ok {
		return nil, 0, fmt.Errorf("no delete handler registered for task kind %q", task.Kind)
	}

	ref := p.resolveDeleteRef(task)

	if planner.IsProductionMarked(task.Credential.AccountName) && !p.Confirm.AllowDestructive(task.Credential.AccountName) {
		return nil, 0, &model.ClassifiedError{Kind: model.ErrKindAuth, Err: fmt.Errorf("destructive action against production-marked account %s was not confirmed", task.Credential.AccountName)}
	}

	if p.DryRun {
		ref.Retired = true
		return []model.ResourceRef{ref}, 1, nil
	}

	client, err := p.clientFor(ctx, task)
	if err != nil {
		return nil, 0, err
	}

	outcome, attempts, err := Retry(ctx, task.ID, p.Progress, DefaultMaxAttempts, func(int) (DeleteOutcome, error) {
		return handler(ctx, client, ref)
	})
	if err != nil {
		return nil, attempts, err
	}
	ref.Retired = true
	if outcome.AlreadyAbsent {
		ref.Metadata = withAlreadyAbsent(ref.Metadata)
	}
	return []model.ResourceRef{ref}, attempts, nil
}

func (p *Pool) resolveDeleteRef(task *model.Task) model.ResourceRef {
	if ref, ok := task.Payload["resourceRef"].(model.ResourceRef); ok {
		return ref
	}
	resourceID, _ := task.Payload["resourceId"].(string)
	return model.ResourceRef{
		ResourceID:  resourceID,
		AccountName: task.Credential.AccountName,
		AccountID:   task.Credential.AccountID,
		Region:      task.Region,
		SessionID:   p.SessionID,
	}
}

func (p *Pool) dispatchEKSAutoscalerDelete(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	ref := p.resolveDeleteRef(task)
	if p.DryRun {
		ref.Retired = true
		return []model.ResourceRef{ref}, 1, nil
	}
	client, err := p.clientFor(ctx, task)
	if err != nil {
		return nil, 0, err
	}

	kubectlFor := func(clusterName string) (*kube.Kubectl, error) {
		if p.EKSAuthFor == nil {
			return nil, nil
		}
		endpoint, caData := describeClusterEndpoint(ctx, client, clusterName)
		kctl, _, authErr := p.EKSAuthFor(ctx, client, task.Credential, task.Region, clusterName, endpoint, caData)
		return kctl, authErr
	}

	outcome, attempts, err := Retry(ctx, task.ID, p.Progress, DefaultMaxAttempts, func(int) (DeleteOutcome, error) {
		return DeleteEKSAutoscaler(ctx, client, kubectlFor, ref)
	})
	if err != nil {
		return nil, attempts, err
	}
	ref.Retired = true
	if outcome.AlreadyAbsent {
		ref.Metadata = withAlreadyAbsent(ref.Metadata)
	}
	return []model.ResourceRef{ref}, attempts, nil
}

func withAlreadyAbsent(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	out["alreadyAbsent"] = true
	return out
}

func (p *Pool) dispatchEKSAuth(ctx context.Context, task *model.Task) ([]model.ResourceRef, int, error) {
	ref := p.resolveDeleteRef(task)
	if p.DryRun {
		return []model.ResourceRef{ref}, 1, nil
	}
	client, err := p.clientFor(ctx, task)
	if err != nil {
		return nil, 0, err
	}
	if p.EKSAuthFor == nil {
		return nil, 1, fmt.Errorf("configureEksAuth task %s: no EKS auth provider configured", task.ID)
	}
	endpoint, caData := describeClusterEndpoint(ctx, client, ref.ResourceID)
	_, cmManager, err := p.EKSAuthFor(ctx, client, task.Credential, task.Region, ref.ResourceID, endpoint, caData)
	if err != nil {
		return nil, 1, err
	}
	if err := ConfigureEKSAuth(ctx, client, cmManager, ref, task.Credential.AccountID); err != nil {
		return nil, 1, err
	}
	return []model.ResourceRef{ref}, 1, nil
}

func (p *Pool) dryRunRef(task *model.Task, resourceType string) model.ResourceRef {
	return model.ResourceRef{
		ResourceID:   "dry-run-" + task.ID,
		ResourceType: resourceType,
		AccountName:  task.Credential.AccountName,
		AccountID:    task.Credential.AccountID,
		Region:       task.Region,
		SessionID:    p.SessionID,
		CreatedAt:    time.Now(),
	}
}

func (p *Pool) recordSuccess(task *model.Task, refs []model.ResourceRef) {
	if p.Ledger == nil {
		return
	}
	isDelete := task.Kind != model.TaskCreateEC2 && task.Kind != model.TaskCreateASG && task.Kind != model.TaskDiscoverResources && task.Kind != model.TaskConfigureEKSAuth
	for _, ref := range refs {
		ref.SessionID = p.SessionID
		ref.CreatedAt = time.Now()
		if isDelete {
			_ = p.Ledger.Retired(ref, ref.Metadata != nil && ref.Metadata["alreadyAbsent"] == true)
			continue
		}
		_ = p.Ledger.Created(ref)
	}
}

func (p *Pool) recordFailure(task *model.Task, kind model.ErrKind, err error) {
	if p.Ledger == nil {
		return
	}
	ref := p.resolveDeleteRef(task)
	isDelete := task.Kind != model.TaskCreateEC2 && task.Kind != model.TaskCreateASG && task.Kind != model.TaskDiscoverResources
	if isDelete {
		_ = p.Ledger.FailedRetire(ref, kind)
		return
	}
	_ = p.Ledger.Failed(ref, kind)
}

// describeClusterEndpoint fetches an EKS cluster's API endpoint and base64
// CA certificate, the inputs RESTConfigForCluster needs; failures are
// swallowed here (the caller's EKSAuthFor decides how to react to an empty
// endpoint) since a cluster already mid-deletion may no longer describe
// cleanly.
func describeClusterEndpoint(ctx context.Context, client *awsclient.Client, clusterName string) (endpoint, caDataBase64 string) {
	out, err := client.EKS.DescribeCluster(ctx, &eks.DescribeClusterInput{Name: aws.String(clusterName)})
	if err != nil || out.Cluster == nil {
		return "", ""
	}
	if out.Cluster.Endpoint != nil {
		endpoint = *out.Cluster.Endpoint
	}
	if out.Cluster.CertificateAuthority != nil && out.Cluster.CertificateAuthority.Data != nil {
		caDataBase64 = *out.Cluster.CertificateAuthority.Data
	}
	return endpoint, caDataBase64
}
