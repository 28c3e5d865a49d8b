package orchestrator

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/config"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/dependency"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/executor"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/ledger"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/report"
)

// RollbackRequest drives a session's reverse teardown from a past ledger
// file.
type RollbackRequest struct {
	LedgerPath string
	ConfigLoad config.Paths

	Confirm      executor.ConfirmPolicy
	Workers      int
	DryRun       bool
	TaskDeadline time.Duration

	ReportDir      string
	KubeconfigPath string
	KubeDebug      bool
}

// Rollback replays ledgerPath in reverse and tears down everything it
// recorded as created-and-not-retired. It is best-effort: one task's
// failure does not stop the remaining ones, since the whole point of
// rollback is to claw back as much as possible even in a degraded session.
func (c *Core) Rollback(parent context.Context, req RollbackRequest) (*Result, error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt)
	defer stop()

	src, err := ledger.Open(req.LedgerPath)
	if err != nil {
		return nil, asConfigError(fmt.Errorf("opening ledger %s: %w", req.LedgerPath, err))
	}
	header, entries := src.Snapshot()
	rollbackTasks := ledger.BuildRollbackTasks(header, entries)
	if len(rollbackTasks) == 0 {
		return &Result{SessionID: header.SessionID, ExitCode: ExitSuccess}, nil
	}

	loaded, err := config.Load(req.ConfigLoad, true)
	if err != nil {
		return nil, asConfigError(err)
	}

	if err := resolveRollbackCredentials(rollbackTasks, loaded); err != nil {
		return nil, asConfigError(err)
	}

	graph := dependency.New()
	var prevID string
	for _, t := range rollbackTasks {
		graph.AddTask(t, dependency.PriorityResourceDelete)
		if prevID != "" {
			// Soft edge: preserves BuildRollbackTasks' computed ordering
			// without letting one failed rollback task skip everything
			// queued after it.
			graph.AddEdge(t.ID, prevID, true)
		}
		prevID = t.ID
	}
	plan := &planner.Plan{Tasks: rollbackTasks, Graph: graph}

	sessionID := header.SessionID + "-rollback"
	rollbackLedger, err := ledger.New(req.ReportDir, sessionID, header.User, req.DryRun, map[string]any{
		"rollbackOf": header.SessionID,
	})
	if err != nil {
		return nil, asConfigError(err)
	}

	pool := &executor.Pool{
		Plan:         plan,
		Clients:      executor.NewClientCache(),
		Ledger:       rollbackLedger,
		Progress:     executor.NewProgressWriter(c.Progress, c.Debug),
		KeyPairs:     executor.NewKeyPairCache(),
		Confirm:      req.Confirm,
		Workers:      req.Workers,
		DryRun:       req.DryRun,
		SessionID:    sessionID,
		TaskDeadline: req.TaskDeadline,
		EKSAuthFor:   executor.DefaultEKSAuthFor(req.KubeconfigPath, req.KubeDebug),
	}

	runErr := pool.Run(ctx)

	rHeader, rEntries := rollbackLedger.Snapshot()
	doc := report.Build(rHeader, rEntries, time.Now())
	if err := writeReportOutputs(req.ReportDir, sessionID, doc); err != nil {
		return nil, fmt.Errorf("writing rollback report outputs: %w", err)
	}

	exitCode := computeExitCode(plan.Graph.AllTasks(), ctx.Err() != nil)
	return &Result{SessionID: sessionID, ExitCode: exitCode, Report: doc}, runErr
}

// resolveRollbackCredentials fills in the AccessKey/SecretKey/Regions a
// bare AccountName/AccountID-only CredentialHandle from BuildRollbackTasks
// needs to actually run against AWS: root credentials from the accounts
// config take priority (a rollback should use the same identity a fresh
// session would default to); if the account isn't present there, the first
// IAM user in that account from the IAM credentials file stands in, since
// the resources may have been created under an IAM identity.
func resolveRollbackCredentials(tasks []*model.Task, loaded *config.Loaded) error {
	for _, t := range tasks {
		accountName := t.Credential.AccountName
		if acct, ok := loaded.Resolver.AccountByName(accountName); ok {
			t.Credential.AccessKey = acct.AccessKey
			t.Credential.SecretKey = acct.SecretKey
			t.Credential.Kind = model.CredentialKindRoot
			t.Credential.Regions = []string{t.Region}
			continue
		}

		if loaded.Iam != nil {
			if user, ok := loaded.Iam.FirstUserForAccount(accountName, t.Region); ok {
				t.Credential.AccessKey = user.AccessKeyID
				t.Credential.SecretKey = user.SecretAccessKey
				t.Credential.Kind = model.CredentialKindIAM
				t.Credential.Username = user.Username
				t.Credential.Regions = []string{t.Region}
				continue
			}
		}

		return fmt.Errorf("rollback: no credentials available for account %q to delete %s in %s", accountName, t.ID, t.Region)
	}
	return nil
}
