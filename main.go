package main

import (
	"fmt"
	"os"

	"github.com/varadharajaan/aws-infra-orchestrator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(4)
	}
}
