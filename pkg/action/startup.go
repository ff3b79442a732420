package action

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// StartupFolderStrategy handles files in a Startup folder. Disable moves the
// file into <folder>/AutorunsDisabled/ and Enable moves it back.
type StartupFolderStrategy struct{}

// NewStartupFolderStrategy returns the startup-folder strategy.
func NewStartupFolderStrategy() *StartupFolderStrategy { return &StartupFolderStrategy{} }

func (s *StartupFolderStrategy) CanDisable(e types.Entry) bool { return e.SourcePath != "" }
func (s *StartupFolderStrategy) CanDelete(e types.Entry) bool  { return e.SourcePath != "" }

// RequiresAdmin is true for the all-users Startup folder.
func (s *StartupFolderStrategy) RequiresAdmin(e types.Entry) bool {
	return e.Scope == types.ScopeLocalMachine
}

func (s *StartupFolderStrategy) Disable(ctx context.Context, e types.Entry) (types.Entry, error) {
	if types.IsDisabledFilePath(e.SourcePath) {
		return e, types.Errorf(types.ErrKindInvalidState, "%s is already disabled", e.ID)
	}
	return s.move(ctx, e, types.EntryDisabled)
}

func (s *StartupFolderStrategy) Enable(ctx context.Context, e types.Entry) (types.Entry, error) {
	if !types.IsDisabledFilePath(e.SourcePath) {
		return e, types.Errorf(types.ErrKindInvalidState, "%s is not disabled", e.ID)
	}
	return s.move(ctx, e, types.EntryEnabled)
}

func (s *StartupFolderStrategy) move(ctx context.Context, e types.Entry, status types.EntryStatus) (types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return e, err
	}
	dest := types.MirrorFilePath(e.SourcePath)
	if _, err := os.Stat(e.SourcePath); err != nil {
		return e, statError(e.SourcePath, err)
	}
	if _, err := os.Lstat(dest); err == nil {
		return e, fmt.Errorf("%s already exists", dest)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return e, err
	}
	if err := os.Rename(e.SourcePath, dest); err != nil {
		return e, err
	}
	e.SourcePath = dest
	e.Status = status
	return e, nil
}

func (s *StartupFolderStrategy) Delete(ctx context.Context, e types.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(e.SourcePath); err != nil {
		return statError(e.SourcePath, err)
	}
	return nil
}

func statError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return types.Wrap(types.ErrKindNotFound, err, "%s not found", path)
	}
	return err
}
