package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/orchestrator"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
)

// cleanupServices maps each cleanup-<name> subcommand to the discovery
// registry service key it drives (internal/executor/discovery.go's
// RegistryFor); most match one-for-one, "stepfunctions" is the one naming
// exception, spelled out in full for the CLI surface while the registry key
// stays the AWS SDK's short "sfn".
var cleanupServices = []struct {
	use        string
	serviceKey string
	short      string
}{
	{"cleanup-ec2", "ec2", "Discover and delete EC2 instances and their security groups"},
	{"cleanup-s3", "s3", "Discover and delete S3 buckets"},
	{"cleanup-eks", "eks", "Discover and delete EKS clusters and node groups"},
	{"cleanup-iam", "iam", "Discover and delete IAM users, roles, and policies created by this tool"},
	{"cleanup-eventbridge", "eventbridge", "Discover and delete EventBridge rules and targets"},
	{"cleanup-redshift", "redshift", "Discover and delete Redshift clusters"},
	{"cleanup-stepfunctions", "sfn", "Discover and delete Step Functions state machines"},
	{"cleanup-sagemaker", "sagemaker", "Discover and delete SageMaker notebook instances and endpoints"},
	{"cleanup-mq", "mq", "Discover and delete Amazon MQ brokers"},
	{"cleanup-fsx", "fsx", "Discover and delete FSx file systems"},
	{"cleanup-storagegateway", "storagegateway", "Discover and delete Storage Gateway gateways"},
}

func init() {
	for _, svc := range cleanupServices {
		rootCmd.AddCommand(newCleanupCmd(svc.use, svc.serviceKey, svc.short))
	}
}

func newCleanupCmd(use, serviceKey, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			intent := planner.Intent{DeleteServices: []string{serviceKey}}

			req, err := buildRequest(cmd, intent)
			if err != nil {
				return err
			}

			debug, _ := cmd.Flags().GetBool("debug")
			core := orchestrator.NewCore(os.Stdout, debug)
			result, err := core.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "session %s finished with exit code %d\n", result.SessionID, result.ExitCode)
			os.Exit(result.ExitCode)
			return nil
		},
	}
}
