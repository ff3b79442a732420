package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/autorunkit/pkg/types"
)

var abandonReason string

func init() {
	rootCmd.AddCommand(newRollbackCmd())
	rootCmd.AddCommand(newCommitCmd())
	abandon := newAbandonCmd()
	abandon.Flags().StringVar(&abandonReason, "reason", "abandoned by operator", "Reason recorded in the transaction")
	rootCmd.AddCommand(abandon)
}

func newRollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <id>",
		Short: "Restore the state captured by a committed transaction",
		Long: `The rollback command writes the captured values or files back and marks
the transaction RolledBack. A failed restore marks it Failed.

Example:
  autorunctl rollback 20240301T120000Z-9f3c...`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRollback(cmd.Context(), args[0])
		},
	}
}

func runRollback(ctx context.Context, id string) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	res, err := a.mgr.Rollback(ctx, id)
	if err != nil {
		return err
	}
	return reportResult(res, "Rolled back")
}

func newCommitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "commit <id>",
		Short: "Commit a pending transaction",
		Long: `The commit command marks a Pending transaction Committed. Use it when a
change was applied by another tool after the transaction was opened.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommit(cmd.Context(), args[0])
		},
	}
}

func runCommit(ctx context.Context, id string) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	if err := a.mgr.Commit(ctx, id); err != nil {
		return err
	}
	printInfo("Committed %s\n", id)
	return nil
}

func newAbandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon <id>",
		Short: "Mark a pending transaction as failed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAbandon(cmd.Context(), args[0])
		},
	}
}

func runAbandon(ctx context.Context, id string) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	if err := a.mgr.Abandon(ctx, id, abandonReason); err != nil {
		return err
	}
	printInfo("Abandoned %s\n", id)
	return nil
}

// reportResult prints res and turns a failed result into an error so the
// process exits non-zero.
func reportResult(res types.ActionResult, verb string) error {
	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
	} else if res.Success {
		name := ""
		if res.Entry != nil {
			name = res.Entry.DisplayName
		}
		printInfo("%s %s\n", verb, name)
		printInfo("  Transaction: %s\n", res.TransactionID)
		if res.Entry != nil {
			printVerbose("  Source:      %s\n", res.Entry.SourcePath)
			printVerbose("  Status:      %s\n", res.Entry.Status)
		}
	}
	if !res.Success {
		return fmt.Errorf("%s: %s", res.Code, res.Error)
	}
	return nil
}
