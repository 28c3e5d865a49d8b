package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/orchestrator"
	"github.com/varadharajaan/aws-infra-orchestrator/internal/planner"
)

var provisionASG bool

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Create EC2 instances (or an Auto Scaling Group) across the selected accounts and regions",
	Long: `provision launches one EC2 instance per selected account/region pair,
choosing an instance type and AMI through SpotAdvisor unless --instance-type
pins one explicitly. With --asg it creates an Auto Scaling Group instead of a
single instance.`,
	RunE: runProvision,
}

func init() {
	provisionCmd.Flags().BoolVar(&provisionASG, "asg", false, "create an Auto Scaling Group instead of standalone instances")
	provisionCmd.Flags().String("instance-type", "", "pin the instance type instead of letting SpotAdvisor choose")
	rootCmd.AddCommand(provisionCmd)
}

func runProvision(cmd *cobra.Command, args []string) error {
	instanceType, _ := cmd.Flags().GetString("instance-type")

	intent := planner.Intent{
		CreateEC2:    !provisionASG,
		CreateASG:    provisionASG,
		InstanceType: instanceType,
	}

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
}
