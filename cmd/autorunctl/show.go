package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/internal/regtext"
	"github.com/joshuapare/autorunkit/pkg/store"
)

var (
	showReg      bool
	showEncoding string
	showOutput   string
)

func init() {
	cmd := newShowCmd()
	cmd.Flags().BoolVar(&showReg, "reg", false, "Export the captured registry values as a .reg script")
	cmd.Flags().StringVar(&showEncoding, "encoding", regtext.EncodingUTF16LE,
		"Encoding of the .reg script: UTF-16LE, UTF-8 or WINDOWS-1252")
	cmd.Flags().StringVarP(&showOutput, "output", "o", "", "Write the .reg script to this file instead of stdout")
	rootCmd.AddCommand(cmd)
}

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Long: `The show command prints the details of a transaction. With --reg it
renders the registry values captured by the transaction as a script regedit
can import.

Example:
  autorunctl show 20240301T120000Z-9f3c...
  autorunctl show 20240301T120000Z-9f3c... --reg --encoding UTF-8 -o backup.reg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd.Context(), args[0])
		},
	}
	return cmd
}

func runShow(ctx context.Context, id string) (err error) {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	if showReg {
		return exportReg(ctx, a, id)
	}

	v, err := a.mgr.Get(ctx, id)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(v)
	}

	printInfo("\nTransaction %s\n", v.ID)
	printInfo("  Status:      %s\n", v.Status)
	printInfo("  Action:      %s\n", v.Action)
	printInfo("  Time:        %s\n", v.Timestamp.Local().Format(time.RFC3339))
	printInfo("  Actor:       %s", v.Actor.Name)
	if v.Actor.Machine != "" {
		printInfo(" on %s", v.Actor.Machine)
	}
	printInfo("\n")
	printInfo("\nEntry:\n")
	printInfo("  Name:        %s\n", v.DisplayName)
	printInfo("  ID:          %s\n", v.EntryID)
	printInfo("  Kind:        %s (%s)\n", v.Kind, v.Scope)
	printInfo("  Source:      %s\n", v.SourcePath)
	if v.SourceName != "" {
		printInfo("  Value:       %s\n", v.SourceName)
	}
	if v.OriginalValue != "" {
		printInfo("  Original:    %s\n", v.OriginalValue)
	}
	printInfo("  Was:         %s\n", v.OriginalStatus)
	printInfo("\nRestore:\n")
	printInfo("  Eligible:    %t\n", v.RestoreEligible)
	printInfo("  Rollback:    %t\n", v.CanRollback)
	printInfo("  Payloads:    %d\n", len(v.Payloads))
	for _, ref := range v.Payloads {
		printVerbose("    %s\n", ref)
	}
	if v.Note != "" {
		printInfo("  Note:        %s\n", v.Note)
	}
	if v.CompletedAt != nil {
		printInfo("  Completed:   %s\n", v.CompletedAt.Local().Format(time.RFC3339))
	}
	if v.Error != "" {
		printInfo("  Error:       %s\n", v.Error)
	}
	return nil
}

func exportReg(ctx context.Context, a *app, id string) error {
	v, err := a.mgr.Get(ctx, id)
	if err != nil {
		return err
	}

	var payloads []*store.TypedPayload
	for _, ref := range v.Payloads {
		if !store.IsTypedPayloadRef(ref) {
			continue
		}
		p, err := a.store.LoadTypedPayload(ctx, id, ref)
		if err != nil {
			return err
		}
		payloads = append(payloads, p)
	}
	if len(payloads) == 0 {
		return fmt.Errorf("transaction %s captured no registry values", id)
	}

	data, err := regtext.ExportPayloads(payloads, regtext.Options{
		Encoding: showEncoding,
		Comment:  fmt.Sprintf("autorunkit transaction %s: %s %s", id, v.Action, v.DisplayName),
	})
	if err != nil {
		return err
	}

	if showOutput != "" {
		printVerbose("Writing %d bytes to %s\n", len(data), showOutput)
		return fsync.WriteFile(showOutput, data, 0o644, a.cfg.FlushMode())
	}
	_, err = os.Stdout.Write(data)
	return err
}
