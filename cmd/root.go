package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/config"
)

var cfgFile string

// rootCmd is the base command when aws-orchestrator is called without a
// subcommand.
var rootCmd = &cobra.Command{
	Use:   "aws-orchestrator",
	Short: "Multi-account, multi-region AWS resource orchestrator",
	Long: `aws-orchestrator provisions and reclaims AWS resources across a
selected set of accounts and regions: create EC2 instances and Auto Scaling
Groups, or discover and delete EC2, security group, S3, EKS, IAM,
EventBridge, Redshift, Step Functions, SageMaker, MQ, FSx, and Storage
Gateway resources, with dependency-ordered teardown and session-ledgered
rollback.`,
}

// Execute adds all child commands to rootCmd and runs it.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "accounts config file (default ./aws_accounts_config.json)")
	rootCmd.PersistentFlags().String("iam-credentials", ".", "IAM credentials file or directory (newest iam_users_credentials_*.json wins)")
	rootCmd.PersistentFlags().String("user-mapping", "user_mapping.json", "user mapping file")
	rootCmd.PersistentFlags().String("ami-mapping", "ec2-region-ami-mapping.json", "AMI mapping file")
	rootCmd.PersistentFlags().Bool("dry-run", false, "simulate; no AWS mutations, ledger still written with dry-run- prefixed ids")
	rootCmd.PersistentFlags().Int("max-resources", 50, "abort if expected resource count exceeds this")
	rootCmd.PersistentFlags().Int("workers", 5, "worker pool size")
	rootCmd.PersistentFlags().StringArray("region", nil, "region to operate in (repeatable); defaults to user_settings.user_regions")
	rootCmd.PersistentFlags().StringArray("account", nil, "account name to operate on (repeatable); defaults to all loaded accounts")
	rootCmd.PersistentFlags().Bool("no-fail-fast", false, "allow SpotAdvisor to return degraded results instead of gating them out")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "forbid prompts; every choice must already be settled by flags")
	rootCmd.PersistentFlags().Bool("allow-production", false, "permit destructive actions against production-marked accounts without an interactive prompt")
	rootCmd.PersistentFlags().Bool("auto-rollback", false, "perform rollback automatically when a session ends in partial or total failure")
	rootCmd.PersistentFlags().Bool("debug", false, "enable verbose per-task progress output")
	rootCmd.PersistentFlags().String("ledger-dir", ".", "directory session ledger files are written to")
	rootCmd.PersistentFlags().String("report-dir", "aws", "root directory report outputs are written under (aws/<service>/reports/{json|html|csv})")
	rootCmd.PersistentFlags().String("kubeconfig", "", "kubeconfig path for kubectl-driven EKS autoscaler teardown (empty uses kubectl's default kubeconfig, selecting the cluster name as context)")

	if err := config.BindFlags(viper.GetViper(), rootCmd.PersistentFlags()); err != nil {
		fmt.Fprintf(os.Stderr, "binding flags: %v\n", err)
		os.Exit(4)
	}
}

func initConfig() {
	viper.AutomaticEnv()
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err == nil {
			if viper.GetBool("debug") {
				fmt.Println("using config file:", viper.ConfigFileUsed())
			}
		}
	}
}
