package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/config"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/credentials"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/executor"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/orchestrator"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
)

// configPaths resolves the ConfigProvider file locations from the
// persistent flags shared by every subcommand.
func configPaths(cmd *cobra.Command) config.Paths {
	p := config.DefaultPaths()
	if v, _ := cmd.Flags().GetString("config"); v != "" {
		p.AccountsConfig = v
	}
	if v, _ := cmd.Flags().GetString("iam-credentials"); v != "" {
		p.IamCredentials = v
	}
	if v, _ := cmd.Flags().GetString("user-mapping"); v != "" {
		p.UserMapping = v
	}
	if v, _ := cmd.Flags().GetString("ami-mapping"); v != "" {
		p.AMIMapping = v
	}
	return p
}

// accountSelection turns explicit --account names into the index-based
// selection expression Resolver.SelectAccounts expects, resolving names
// against resolver's own sorted account list; an empty --account list
// means "all accounts" (the empty-string expression).
func accountSelection(resolver *credentials.Resolver, names []string) (string, error) {
	if len(names) == 0 {
		return "", nil
	}
	available := resolver.Accounts()
	indexOf := make(map[string]int, len(available))
	for i, name := range available {
		indexOf[name] = i + 1
	}

	indices := make([]string, 0, len(names))
	for _, name := range names {
		idx, ok := indexOf[name]
		if !ok {
			return "", fmt.Errorf("account %q not found in accounts config", name)
		}
		indices = append(indices, strconv.Itoa(idx))
	}
	return strings.Join(indices, ","), nil
}

// regionChoice builds a RegionChoice that resolves to exactly the supplied
// literal regions: Catalogue holds the caller's own list (rather than a
// fixed AWS region catalogue used for range/percent selection), so
// Resolve's empty-expression "all" case returns precisely those regions in
// the order given. Falls back to user_settings.user_regions when the
// caller supplied none.
func regionChoice(resolver *credentials.Resolver, regions []string) (credentials.RegionChoice, error) {
	if len(regions) == 0 {
		regions = resolver.UserRegions()
	}
	if len(regions) == 0 {
		return credentials.RegionChoice{}, fmt.Errorf("no regions given via --region and none configured under user_settings.user_regions")
	}
	return credentials.RegionChoice{Catalogue: regions}, nil
}

// buildRequest assembles an orchestrator.Request from the persistent flags
// every subcommand shares, plus the workflow-specific Intent.
func buildRequest(cmd *cobra.Command, intent planner.Intent) (orchestrator.Request, error) {
	paths := configPaths(cmd)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	workers, _ := cmd.Flags().GetInt("workers")
	maxResources, _ := cmd.Flags().GetInt("max-resources")
	accounts, _ := cmd.Flags().GetStringArray("account")
	regions, _ := cmd.Flags().GetStringArray("region")
	noFailFast, _ := cmd.Flags().GetBool("no-fail-fast")
	nonInteractive, _ := cmd.Flags().GetBool("non-interactive")
	allowProduction, _ := cmd.Flags().GetBool("allow-production")
	autoRollback, _ := cmd.Flags().GetBool("auto-rollback")
	debug, _ := cmd.Flags().GetBool("debug")
	ledgerDir, _ := cmd.Flags().GetString("ledger-dir")
	reportDir, _ := cmd.Flags().GetString("report-dir")
	kubeconfig, _ := cmd.Flags().GetString("kubeconfig")

	credResolver, err := credentials.LoadAccounts(paths.AccountsConfig)
	if err != nil {
		return orchestrator.Request{}, err
	}

	selection, err := accountSelection(credResolver, accounts)
	if err != nil {
		return orchestrator.Request{}, err
	}

	regionSel, err := regionChoice(credResolver, regions)
	if err != nil {
		return orchestrator.Request{}, err
	}

	intent.NonInteractive = nonInteractive
	intent.AllowProduction = allowProduction
	intent.MaxResourcesPerSession = maxResources

	return orchestrator.Request{
		ConfigPaths:      paths,
		CredentialKind:   model.CredentialKindRoot,
		AccountSelection: selection,
		RegionSelection:  regionSel,
		Intent:           intent,
		Confirm: executor.ConfirmPolicy{
			NonInteractive:  nonInteractive,
			AllowProduction: allowProduction,
			AutoRollback:    autoRollback,
			Confirm:         promptConfirm,
		},
		Workers:        workers,
		DryRun:         dryRun,
		NoFailFast:     noFailFast,
		LedgerDir:      ledgerDir,
		ReportDir:      reportDir,
		SpotCacheDir:   ledgerDir,
		KubeconfigPath: kubeconfig,
		KubeDebug:      debug,
	}, nil
}

// promptConfirm asks an interactive yes/no question on stdin/stdout; wired
// as ConfirmPolicy.Confirm so production-account destructive actions
// default to a real prompt rather than a silent refusal.
func promptConfirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	var answer string
	fmt.Scanln(&answer)
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
