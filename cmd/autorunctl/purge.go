package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var (
	purgeMaxAge   time.Duration
	purgeMaxCount int
)

func init() {
	cmd := newPurgeCmd()
	cmd.Flags().DurationVar(&purgeMaxAge, "max-age", -1, "Remove transactions older than this (default from config)")
	cmd.Flags().IntVar(&purgeMaxCount, "max-count", -1, "Keep at most this many transactions (default from config)")
	rootCmd.AddCommand(cmd)
}

func newPurgeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete old transactions",
		Long: `The purge command removes transactions that are older than the maximum
age or beyond the maximum count, whichever removes more. Limits default to
the retention section of the configuration; 0 means unlimited.

Example:
  autorunctl purge
  autorunctl purge --max-age 720h --max-count 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd.Context())
		},
	}
	return cmd
}

func runPurge(ctx context.Context) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	opts := a.cfg.PurgeOptions()
	if purgeMaxAge >= 0 {
		opts.MaxAge = purgeMaxAge
	}
	if purgeMaxCount >= 0 {
		opts.MaxCount = purgeMaxCount
	}
	printVerbose("Purging with max age %s, max count %d\n", opts.MaxAge, opts.MaxCount)

	n, err := a.mgr.PurgeOld(ctx, opts)
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(map[string]int{"purged": n})
	}
	printInfo("Purged %d transaction(s)\n", n)
	return nil
}
