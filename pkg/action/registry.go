package action

import (
	"context"
	"fmt"

	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// RegistryStrategy handles Run, RunOnce and Winlogon values. Disable moves
// the value into the key's AutorunsDisabled subkey and Enable moves it back,
// keeping its type and data.
type RegistryStrategy struct {
	acc configstore.Accessor
}

// NewRegistryStrategy returns a strategy that edits values through acc.
func NewRegistryStrategy(acc configstore.Accessor) *RegistryStrategy {
	return &RegistryStrategy{acc: acc}
}

func (s *RegistryStrategy) CanDisable(e types.Entry) bool {
	return e.SourcePath != ""
}

// CanDelete is false for Winlogon. Disable parks Shell or Userinit under
// AutorunsDisabled where Enable can move it back; Delete leaves only the
// transaction backup.
func (s *RegistryStrategy) CanDelete(e types.Entry) bool {
	return e.SourcePath != "" && e.Kind != types.KindWinlogon
}

func (s *RegistryStrategy) RequiresAdmin(e types.Entry) bool {
	return e.Scope == types.ScopeLocalMachine
}

func (s *RegistryStrategy) Disable(ctx context.Context, e types.Entry) (types.Entry, error) {
	if types.IsDisabledKeyPath(e.SourcePath) {
		return e, types.Errorf(types.ErrKindInvalidState, "%s is already disabled", e.ID)
	}
	return s.move(ctx, e, types.EntryDisabled)
}

func (s *RegistryStrategy) Enable(ctx context.Context, e types.Entry) (types.Entry, error) {
	if !types.IsDisabledKeyPath(e.SourcePath) {
		return e, types.Errorf(types.ErrKindInvalidState, "%s is not disabled", e.ID)
	}
	return s.move(ctx, e, types.EntryEnabled)
}

// move copies the value to the counterpart key before deleting the
// original, so a failure in between leaves a duplicate rather than nothing.
func (s *RegistryStrategy) move(ctx context.Context, e types.Entry, status types.EntryStatus) (types.Entry, error) {
	dest := types.MirrorKeyPath(e.SourcePath)
	v, err := s.acc.GetValue(ctx, e.SourcePath, e.SourceName)
	if err != nil {
		return e, err
	}
	if err := s.acc.SetValue(ctx, dest, e.SourceName, v); err != nil {
		return e, fmt.Errorf("write %s: %w", dest, err)
	}
	if err := s.acc.DeleteValue(ctx, e.SourcePath, e.SourceName); err != nil {
		return e, fmt.Errorf("remove from %s: %w", e.SourcePath, err)
	}
	e.SourcePath = dest
	e.Status = status
	return e, nil
}

func (s *RegistryStrategy) Delete(ctx context.Context, e types.Entry) error {
	return s.acc.DeleteValue(ctx, e.SourcePath, e.SourceName)
}
