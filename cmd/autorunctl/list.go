package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var listLimit int

func init() {
	cmd := newListCmd()
	cmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "Show at most this many transactions (0 = all)")
	rootCmd.AddCommand(cmd)
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded transactions, newest first",
		Long: `The list command shows every transaction in the store, newest first.

Example:
  autorunctl list
  autorunctl list --limit 10 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd.Context())
		},
	}
	return cmd
}

func runList(ctx context.Context) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	views, err := a.mgr.List(ctx, listLimit)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(views)
	}

	if len(views) == 0 {
		printInfo("No transactions in %s\n", a.store.BaseDir())
		return nil
	}

	printInfo("%-53s  %-10s  %-7s  %-15s  %-19s  %s\n", "ID", "STATUS", "ACTION", "KIND", "TIME", "ENTRY")
	for _, v := range views {
		rollback := ""
		if v.CanRollback {
			rollback = "  *"
		}
		printInfo("%-53s  %-10s  %-7s  %-15s  %-19s  %s%s\n",
			v.ID, v.Status, v.Action, v.Kind,
			v.Timestamp.Local().Format(time.DateTime), v.DisplayName, rollback)
	}
	printVerbose("\n* can be rolled back\n")
	return nil
}
