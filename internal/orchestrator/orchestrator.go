// Package orchestrator implements OrchestratorCore: the single place that
// drives credentials -> plan -> execute -> ledger -> report end to end,
// owns the root cancellation context, and computes the session's exit
// code.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/google/uuid"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/awsclient"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/config"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/credentials"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/executor"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/ledger"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/report"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/spotadvisor"
)

// Exit codes, per the specification's external-interfaces section.
const (
	ExitSuccess         = 0
	ExitPartialFailure  = 1
	ExitAllFailed       = 2
	ExitCancelled       = 3
	ExitConfigError     = 4
)

// Request bundles everything one CLI invocation needs to drive a session:
// which accounts/regions/credential kind to resolve, what work the planner
// should expand, and the executor-facing policy knobs section 6 names as
// shared CLI flags.
type Request struct {
	ConfigPaths      config.Paths
	CredentialKind   model.CredentialKind
	AccountSelection string
	RegionSelection  credentials.RegionChoice
	Intent           planner.Intent

	Confirm      executor.ConfirmPolicy
	Workers      int
	DryRun       bool
	NoFailFast   bool // permits SpotAdvisor to return degraded results instead of gating them out
	TaskDeadline time.Duration

	LedgerDir      string
	ReportDir      string
	SpotCacheDir   string
	KubeconfigPath string
	KubeDebug      bool

	User string
}

// Result is a completed session's outcome.
type Result struct {
	SessionID string
	ExitCode  int
	Report    report.Document
}

// Core is OrchestratorCore.
type Core struct {
	Progress io.Writer
	Debug    bool
}

// NewCore builds a Core that writes executor progress lines to progress.
func NewCore(progress io.Writer, debug bool) *Core {
	return &Core{Progress: progress, Debug: debug}
}

// Run executes one session: resolves credentials, validates them against
// STS, plans the requested work, runs it through the Executor, and writes
// the session's report. It installs its own SIGINT/SIGTERM handling around
// parent so a second Ctrl-C during an already-cancelling run does not hang
// the process waiting for in-flight tasks.
func (c *Core) Run(parent context.Context, req Request) (*Result, error) {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// Restore default signal handling once cancelling, so a second
		// Ctrl-C terminates the process.
		<-ctx.Done()
		stop()
	}()

	iamOptional := req.CredentialKind == model.CredentialKindRoot
	loaded, err := config.Load(req.ConfigPaths, iamOptional)
	if err != nil {
		return nil, asConfigError(err)
	}

	accountNames, err := loaded.Resolver.SelectAccounts(req.AccountSelection)
	if err != nil {
		return nil, asConfigError(err)
	}
	if len(accountNames) == 0 {
		return nil, asConfigError(model.NewInvalidConfiguration("account selection %q matched no accounts", req.AccountSelection))
	}

	handles, err := credentials.BuildHandles(accountNames, loaded.Resolver, loaded.Iam, req.CredentialKind, req.RegionSelection)
	if err != nil {
		return nil, asConfigError(err)
	}

	validHandles, _, err := credentials.ValidateAll(ctx, handles, awsclient.IdentityLookup)
	if err != nil {
		// Every handle failed validation: no credentials to operate with,
		// the same dead end a missing/empty config file leaves the engine
		// in, so it surfaces through the same ConfigError exit path.
		return nil, &model.ClassifiedError{Kind: model.ErrKindConfig, Err: err}
	}

	plan, err := planner.Plan(validHandles, req.Intent)
	if err != nil {
		return nil, asConfigError(err)
	}

	sessionID := uuid.NewString()
	user := req.User
	if user == "" {
		user = currentUser()
	}

	invocationConfig := map[string]any{
		"dryRun":           req.DryRun,
		"workers":          req.Workers,
		"accountSelection": req.AccountSelection,
		"credentialKind":   string(req.CredentialKind),
	}
	sessionLedger, err := ledger.New(req.LedgerDir, sessionID, user, req.DryRun, invocationConfig)
	if err != nil {
		return nil, asConfigError(err)
	}

	clients := executor.NewClientCache()
	advisor := c.buildAdvisor(ctx, req, loaded, validHandles, clients)

	pool := &executor.Pool{
		Plan:         plan,
		Clients:      clients,
		Ledger:       sessionLedger,
		Progress:     executor.NewProgressWriter(c.Progress, c.Debug),
		KeyPairs:     executor.NewKeyPairCache(),
		Advisor:      advisor,
		Confirm:      req.Confirm,
		Workers:      req.Workers,
		DryRun:       req.DryRun,
		SessionID:    sessionID,
		TaskDeadline: req.TaskDeadline,
		EKSAuthFor:   executor.DefaultEKSAuthFor(req.KubeconfigPath, req.KubeDebug),
	}

	runErr := pool.Run(ctx)

	header, entries := sessionLedger.Snapshot()
	doc := report.Build(header, entries, time.Now())

	if err := writeReportOutputs(req.ReportDir, sessionID, doc); err != nil {
		return nil, fmt.Errorf("writing report outputs: %w", err)
	}

	exitCode := computeExitCode(plan.Graph.AllTasks(), ctx.Err() != nil)
	return &Result{SessionID: sessionID, ExitCode: exitCode, Report: doc}, runErr
}

// buildAdvisor wires a spotadvisor.Advisor against live EC2 data when the
// intent needs one, resolving region-scoped EC2 clients through the first
// validated handle (spot market data is account-agnostic; see
// spotadvisor.ClientFor). Intents that never create anything skip the
// catalogue fetch entirely.
func (c *Core) buildAdvisor(ctx context.Context, req Request, loaded *config.Loaded, handles []model.CredentialHandle, clients *executor.ClientCache) *spotadvisor.Advisor {
	if !req.Intent.CreateEC2 && !req.Intent.CreateASG {
		return nil
	}
	if len(handles) == 0 {
		return nil
	}
	primary := handles[0]

	ec2ClientFor := spotadvisor.ClientFor(func(ctx context.Context, region string) (*ec2.Client, error) {
		cl, err := clients.Get(ctx, primary, region)
		if err != nil {
			return nil, err
		}
		return cl.EC2, nil
	})

	var candidates []string
	if loaded.AMIMapping != nil {
		candidates = loaded.AMIMapping.AllowedInstanceTypes
	}

	catalogue := c.buildCatalogue(ctx, ec2ClientFor, primary.Regions, candidates)

	return spotadvisor.New(
		req.SpotCacheDir,
		catalogue,
		spotadvisor.NewEC2PriceSource(ec2ClientFor),
		spotadvisor.NewEC2PlacementSource(ec2ClientFor),
		spotadvisor.NewHTTPAdvisorSource(nil),
		spotadvisor.Policy{FailFast: !req.NoFailFast},
	)
}

// buildCatalogue fetches instance-type specs for candidates from the first
// region in regions that answers successfully; instance specs (vCPU,
// memory, family) do not vary by region, so one successful describe call
// is enough to seed the whole session's catalogue. A region outage at
// startup falls through to the next region rather than failing the
// session; if every region fails, Advisor runs with an empty catalogue and
// Analyze degrades to returning no candidates for callers that ask.
func (c *Core) buildCatalogue(ctx context.Context, clientFor spotadvisor.ClientFor, regions, candidates []string) []spotadvisor.InstanceCatalogueEntry {
	if len(candidates) == 0 {
		return nil
	}
	for _, region := range regions {
		client, err := clientFor(ctx, region)
		if err != nil {
			continue
		}
		catalogue, err := spotadvisor.NewEC2Catalogue(ctx, client, candidates)
		if err != nil || len(catalogue) == 0 {
			continue
		}
		return catalogue
	}
	return nil
}

// writeReportOutputs renders doc in every format the external-interfaces
// section names, under dir/<format>/session_<id>.<ext>.
func writeReportOutputs(dir, sessionID string, doc report.Document) error {
	for _, sub := range []string{"json", "html", "csv"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return err
		}
	}

	jsonPath := filepath.Join(dir, "json", "session_"+sessionID+".json")
	if err := writeWith(jsonPath, func(w io.Writer) error { return report.WriteJSON(w, doc) }); err != nil {
		return err
	}

	htmlPath := filepath.Join(dir, "html", "session_"+sessionID+".html")
	if err := writeWith(htmlPath, func(w io.Writer) error { return report.WriteHTML(w, doc) }); err != nil {
		return err
	}

	csvPath := filepath.Join(dir, "csv", "session_"+sessionID+".csv")
	return writeWith(csvPath, func(w io.Writer) error { return report.WriteCSV(w, doc) })
}

func writeWith(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return fn(f)
}

func asConfigError(err error) error {
	return &model.ClassifiedError{Kind: model.ErrKindConfig, Err: err}
}

// computeExitCode folds every task's terminal status into the exit code
// section 6 specifies. cancelled takes priority over the task tally since
// a cancelled run's remaining tasks are skipped rather than genuinely
// failed.
func computeExitCode(tasks []*model.Task, cancelled bool) int {
	if cancelled {
		return ExitCancelled
	}
	if len(tasks) == 0 {
		return ExitSuccess
	}

	var failed int
	for _, t := range tasks {
		if t.Status == model.TaskFailed {
			failed++
		}
	}
	switch {
	case failed == 0:
		return ExitSuccess
	case failed == len(tasks):
		return ExitAllFailed
	default:
		return ExitPartialFailure
	}
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "unknown"
}
