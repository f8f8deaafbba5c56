// cuclarkd coordinates CuCLARK metagenomic classification across a cluster
// of GPU nodes: preflight checks, config distribution, per-node classify
// and abundance runs, result collection, and the aggregate report.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "cuclarkd",
		Short:         "CuCLARK cluster classification coordinator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newRunCmd(),
		newPreflightCmd(),
		newWorkerCmd(),
		newVerifyCmd(),
		newDatabaseCmd(),
		newSummarizeCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
