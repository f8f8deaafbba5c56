package main

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/ardaicoz/jn-cuclark/internal/job"
	"github.com/ardaicoz/jn-cuclark/internal/report"
	"github.com/ardaicoz/jn-cuclark/internal/verify"
)

func newVerifyCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the local CuCLARK installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, ready := verify.Installation(dir)
			fmt.Print(text)
			if !ready {
				return errors.New("installation is not ready")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "CuCLARK installation directory")

	return cmd
}

func newDatabaseCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "database <path>",
		Short: "Check a classification database and bind it to this installation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := verify.SetupDatabase(cmd.Context(), dir, args[0], job.LocalShell{}); err != nil {
				return err
			}
			fmt.Println("Database is ready.")
			return nil
		},
	}

	cmd.Flags().StringVar(&dir, "dir", ".", "CuCLARK installation directory")

	return cmd
}

func newSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize <abundance-file>",
		Short: "Render the pathogen summary for an abundance file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := report.Summarize(args[0])
			if err != nil {
				return err
			}
			fmt.Print(text)
			return nil
		},
	}
}
