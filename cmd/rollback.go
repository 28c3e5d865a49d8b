package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/executor"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/orchestrator"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <ledger-file>",
	Short: "Tear down everything a past session's ledger recorded as created-and-not-retired",
	Long: `rollback opens a session ledger file written by a previous provision or
cleanup run and replays its entries in reverse, deleting anything still
outstanding. It is best-effort: one task failing does not stop the rest.`,
	Args: cobra.ExactArgs(1),
	RunE: runRollback,
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	paths := configPaths(cmd)

	dryRun, _ := cmd.Flags().GetBool("dry-run")
	workers, _ := cmd.Flags().GetInt("workers")
	nonInteractive, _ := cmd.Flags().GetBool("non-interactive")
	allowProduction, _ := cmd.Flags().GetBool("allow-production")
	autoRollback, _ := cmd.Flags().GetBool("auto-rollback")
	debug, _ := cmd.Flags().GetBool("debug")
	reportDir, _ := cmd.Flags().GetString("report-dir")
	kubeconfig, _ := cmd.Flags().GetString("kubeconfig")

	req := orchestrator.RollbackRequest{
		LedgerPath: args[0],
		ConfigLoad: paths,
		Confirm: executor.ConfirmPolicy{
			NonInteractive:  nonInteractive,
			AllowProduction: allowProduction,
			AutoRollback:    autoRollback,
			Confirm:         promptConfirm,
		},
		Workers:        workers,
		DryRun:         dryRun,
		ReportDir:      reportDir,
		KubeconfigPath: kubeconfig,
		KubeDebug:      debug,
	}

	core := orchestrator.NewCore(os.Stdout, debug)
	result, err := core.Rollback(cmd.Context(), req)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "rollback session %s finished with exit code %d\n", result.SessionID, result.ExitCode)
	os.Exit(result.ExitCode)
	return nil
}
