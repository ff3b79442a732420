package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joshuapare/autorunkit/pkg/store"
)

func init() {
	rootCmd.AddCommand(newVerifyCmd())
}

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [id...]",
		Short: "Check manifest integrity sidecars",
		Long: `The verify command checks each manifest against its integrity sidecar.
Without arguments every transaction in the store is checked.

Statuses:
  valid      sidecar matches
  legacy     no sidecar (written before signing was introduced)
  mismatch   edited, or written on another machine or by another account
  malformed  sidecar is not a valid tag

The command fails when any manifest is mismatched, malformed or unreadable.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd.Context(), args)
		},
	}
	return cmd
}

type verifyResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func runVerify(ctx context.Context, ids []string) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	if len(ids) == 0 {
		ids, err = a.store.ListIDs(ctx)
		if err != nil {
			return err
		}
	}

	results := make([]verifyResult, 0, len(ids))
	bad := 0
	for _, id := range ids {
		status, err := a.store.VerifyManifest(ctx, id)
		r := verifyResult{ID: id}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.Status = "error"
			r.Error = err.Error()
			bad++
		default:
			r.Status = status.String()
			if status == store.IntegrityMismatch || status == store.IntegrityMalformed {
				bad++
			}
		}
		results = append(results, r)
	}

	if jsonOut {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Error != "" {
				printInfo("%-53s  %s (%s)\n", r.ID, r.Status, r.Error)
				continue
			}
			printInfo("%-53s  %s\n", r.ID, r.Status)
		}
	}

	if bad > 0 {
		return fmt.Errorf("%d of %d transaction(s) failed verification", bad, len(results))
	}
	return nil
}
