package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/joshuapare/autorunkit/pkg/action"
	"github.com/joshuapare/autorunkit/pkg/types"
)

var (
	entryKind        kindFlag
	entryScope       = scopeFlag(types.ScopeCurrentUser)
	entryPath        string
	entryName        string
	entryID          string
	entryDisplayName string
)

func init() {
	rootCmd.AddCommand(newMutateCmd(types.ActionDisable, "Disable an auto-start entry",
		`The disable command backs up the entry and moves it to its AutorunsDisabled
location (services are set to Start=4, disabled, instead).

Example:
  autorunctl disable --kind RegistryRun --path 'HKCU\Software\Microsoft\Windows\CurrentVersion\Run' --name Updater
  autorunctl disable --kind StartupFolder --path "$APPDATA/Microsoft/Windows/Start Menu/Programs/Startup/App.lnk"
  autorunctl disable --kind Service --scope LocalMachine --path Spooler`))
	rootCmd.AddCommand(newMutateCmd(types.ActionEnable, "Re-enable a disabled auto-start entry",
		`The enable command backs up the disabled entry and moves it back to its
active location. --path names the AutorunsDisabled location for Run keys and
startup items, and the service for services.

Example:
  autorunctl enable --kind RegistryRun --path 'HKCU\Software\Microsoft\Windows\CurrentVersion\Run\AutorunsDisabled' --name Updater`))
	rootCmd.AddCommand(newMutateCmd(types.ActionDelete, "Delete an auto-start entry after backing it up",
		`The delete command backs up the entry and removes it. Services and
Winlogon values cannot be deleted.

Example:
  autorunctl delete --kind RegistryRunOnce --path 'HKCU\Software\Microsoft\Windows\CurrentVersion\RunOnce' --name Setup`))
}

func newMutateCmd(act types.ActionKind, short, long string) *cobra.Command {
	use := map[types.ActionKind]string{
		types.ActionDisable: "disable",
		types.ActionEnable:  "enable",
		types.ActionDelete:  "delete",
	}[act]
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutate(cmd.Context(), act)
		},
	}
	cmd.Flags().Var(&entryKind, "kind", "Entry kind: RegistryRun, RegistryRunOnce, Winlogon, StartupFolder, Service")
	cmd.Flags().Var(&entryScope, "scope", "Entry scope: CurrentUser or LocalMachine")
	cmd.Flags().StringVar(&entryPath, "path", "", "Registry key, file path or service name")
	cmd.Flags().StringVar(&entryName, "name", "", "Registry value name (Run-style keys)")
	cmd.Flags().StringVar(&entryID, "id", "", "Entry id recorded in the transaction (default derived)")
	cmd.Flags().StringVar(&entryDisplayName, "display-name", "", "Display name recorded in the transaction")
	return cmd
}

func runMutate(ctx context.Context, act types.ActionKind) (err error) {
	e, err := entryFromFlags(act)
	if err != nil {
		return err
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer closeApp(a, &err)

	if e.Kind.Backing() == types.BackingKeyValue {
		if v, err := a.acc.GetValue(ctx, e.SourcePath, e.SourceName); err == nil {
			e.RawValue = v.Display()
		} else if !errors.Is(err, types.ErrNotFound) {
			return err
		}
	}
	printVerbose("%s %s entry %s\n", act, e.Kind, e.ID)

	res := action.NewGuarded(a.mgr, a.exec, a.log.With("component", "guarded")).Run(ctx, e, act)
	return reportResult(res, pastTense(act))
}

func entryFromFlags(act types.ActionKind) (types.Entry, error) {
	kind := types.EntryKind(entryKind)
	if kind == 0 {
		return types.Entry{}, errors.New("--kind is required")
	}
	if entryPath == "" && kind.Backing() != types.BackingExternal {
		return types.Entry{}, fmt.Errorf("--path is required for %s entries", kind)
	}

	label := entryName
	if label == "" {
		label = filepath.Base(entryPath)
	}
	e := types.Entry{
		ID:          entryID,
		DisplayName: entryDisplayName,
		Kind:        kind,
		Scope:       types.Scope(entryScope),
		SourcePath:  entryPath,
		SourceName:  entryName,
		Status:      types.EntryEnabled,
	}
	if e.ID == "" {
		e.ID = kind.String() + ":" + label
	}
	if e.DisplayName == "" {
		e.DisplayName = label
	}
	if act == types.ActionEnable {
		e.Status = types.EntryDisabled
	}
	return e, nil
}

func pastTense(act types.ActionKind) string {
	switch act {
	case types.ActionDisable:
		return "Disabled"
	case types.ActionEnable:
		return "Enabled"
	case types.ActionDelete:
		return "Deleted"
	}
	return act.String()
}
