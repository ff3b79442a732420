package txn

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// Service value names captured for BackingService entries.
const (
	serviceStartValue   = "Start"
	serviceDelayedValue = "DelayedAutostart"
)

// backingOps pairs a capture routine with the restore routine that undoes
// it. Declaring both in one table keeps every captured backing restorable.
type backingOps struct {
	capture func(ctx context.Context, m *Manager, tx *store.Manifest, entry types.Entry) error
	restore func(ctx context.Context, m *Manager, tx *store.Manifest) error
}

var dispatch = map[types.Backing]backingOps{
	types.BackingKeyValue: {capture: captureKeyValue, restore: restoreKeyValue},
	types.BackingFile:     {capture: captureFile, restore: restoreFile},
	types.BackingService:  {capture: captureService, restore: restoreService},
	types.BackingExternal: {capture: captureExternal, restore: restoreExternal},
}

// -----------------------------------------------------------------------------
// Key-value
// -----------------------------------------------------------------------------

func captureKeyValue(ctx context.Context, m *Manager, tx *store.Manifest, entry types.Entry) error {
	v, err := m.acc.GetValue(ctx, entry.SourcePath, entry.SourceName)
	if errors.Is(err, types.ErrNotFound) {
		markUnrestorable(tx, fmt.Sprintf("value %s not present at capture time", valueLabel(entry.SourcePath, entry.SourceName)))
		return nil
	}
	if err != nil {
		return err
	}
	ref, err := m.store.BackupTypedValue(ctx, tx.ID, entry.SourcePath, entry.SourceName, v)
	if err != nil {
		return err
	}
	tx.AddPayload(ref)
	return nil
}

func restoreKeyValue(ctx context.Context, m *Manager, tx *store.Manifest) error {
	if err := m.writeTypedPayloads(ctx, tx); err != nil {
		return err
	}
	if !movesEntry(tx.Action) {
		return nil
	}
	// Disable/Enable moved the value to the counterpart key; drop that copy.
	mirror := types.MirrorKeyPath(tx.Source.Path)
	err := m.acc.DeleteValue(ctx, mirror, tx.Source.Name)
	if err != nil && !errors.Is(err, types.ErrNotFound) {
		return fmt.Errorf("remove %s: %w", valueLabel(mirror, tx.Source.Name), err)
	}
	return nil
}

// writeTypedPayloads writes every captured value back with its original kind.
func (m *Manager) writeTypedPayloads(ctx context.Context, tx *store.Manifest) error {
	if len(tx.Payloads) == 0 {
		return fmt.Errorf("transaction %s has no captured values", tx.ID)
	}
	for _, ref := range tx.Payloads {
		p, err := m.store.LoadTypedPayload(ctx, tx.ID, ref)
		if err != nil {
			return err
		}
		v, defaulted, err := p.Value()
		if err != nil {
			return err
		}
		if defaulted {
			m.log.Warn("captured numeric value missing or unparsable, restoring zero",
				"id", tx.ID, "key", p.KeyPath, "value", p.ValueName, "kind", p.Kind)
		}
		if err := m.acc.SetValue(ctx, p.KeyPath, p.ValueName, v); err != nil {
			return fmt.Errorf("write %s: %w", valueLabel(p.KeyPath, p.ValueName), err)
		}
	}
	return nil
}

// -----------------------------------------------------------------------------
// File
// -----------------------------------------------------------------------------

func captureFile(ctx context.Context, m *Manager, tx *store.Manifest, entry types.Entry) error {
	ref, err := m.store.BackupFile(ctx, tx.ID, entry.SourcePath, "")
	if errors.Is(err, types.ErrNotFound) {
		markUnrestorable(tx, fmt.Sprintf("file %s not present at capture time", entry.SourcePath))
		return nil
	}
	if err != nil {
		return err
	}
	tx.AddPayload(ref)
	return nil
}

func restoreFile(ctx context.Context, m *Manager, tx *store.Manifest) error {
	if len(tx.Payloads) != 1 {
		return fmt.Errorf("transaction %s has %d file payloads, want 1", tx.ID, len(tx.Payloads))
	}
	src, err := m.store.PayloadPath(tx.ID, tx.Payloads[0])
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fsync.CopyFile(tx.Source.Path, src, m.store.FlushMode()); err != nil {
		return fmt.Errorf("restore %s: %w", tx.Source.Path, err)
	}
	if !movesEntry(tx.Action) {
		return nil
	}
	mirror := types.MirrorFilePath(tx.Source.Path)
	if err := os.Remove(mirror); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", mirror, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

func captureService(ctx context.Context, m *Manager, tx *store.Manifest, entry types.Entry) error {
	key := configstore.ServiceKeyPath(entry.SourcePath)

	start, err := m.acc.GetValue(ctx, key, serviceStartValue)
	if errors.Is(err, types.ErrNotFound) {
		markUnrestorable(tx, fmt.Sprintf("service %s has no %s value", key, serviceStartValue))
		return nil
	}
	if err != nil {
		return err
	}
	delayed, err := m.acc.GetValue(ctx, key, serviceDelayedValue)
	if errors.Is(err, types.ErrNotFound) {
		delayed = types.DWordValue(0)
	} else if err != nil {
		return err
	}

	for _, c := range []struct {
		name string
		v    types.Value
	}{{serviceStartValue, start}, {serviceDelayedValue, delayed}} {
		ref, err := m.store.BackupTypedValue(ctx, tx.ID, key, c.name, c.v)
		if err != nil {
			return err
		}
		tx.AddPayload(ref)
	}
	return nil
}

func restoreService(ctx context.Context, m *Manager, tx *store.Manifest) error {
	return m.writeTypedPayloads(ctx, tx)
}

// -----------------------------------------------------------------------------
// External
// -----------------------------------------------------------------------------

func captureExternal(ctx context.Context, m *Manager, tx *store.Manifest, entry types.Entry) error {
	if m.external == nil {
		tx.Note = fmt.Sprintf("%s state is managed externally; nothing captured", entry.Kind)
		return nil
	}
	refs, err := m.external.Capture(ctx, m.store, tx.ID, entry)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		tx.AddPayload(ref)
	}
	return nil
}

func restoreExternal(ctx context.Context, m *Manager, tx *store.Manifest) error {
	if m.external == nil {
		m.log.Info("no external handler configured, rollback is a no-op", "id", tx.ID, "kind", tx.Target.Kind)
		return nil
	}
	return m.external.Restore(ctx, m.store, tx)
}

// -----------------------------------------------------------------------------
// helpers
// -----------------------------------------------------------------------------

func markUnrestorable(tx *store.Manifest, note string) {
	tx.RestoreEligible = false
	tx.Note = note
}

// movesEntry reports whether the action parks the entry in its
// AutorunsDisabled counterpart.
func movesEntry(a types.ActionKind) bool {
	return a == types.ActionDisable || a == types.ActionEnable
}

func valueLabel(keyPath, name string) string {
	if name == "" {
		name = store.DefaultValueFile
	}
	return keyPath + `\` + name
}
