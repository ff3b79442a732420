// Package txn wraps every mutation of an auto-start entry in a durable
// transaction: the entry's state is captured before the mutation, the
// transaction is committed after it, and a committed transaction can later be
// rolled back to the captured state, including after a process restart.
//
// Lifecycle:
//
//	Create   -> Pending   (state captured)
//	Commit   -> Committed (mutation succeeded)
//	Abandon  -> Failed    (mutation failed; nothing to undo)
//	Rollback -> RolledBack, or Failed when the restore itself fails
package txn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joshuapare/autorunkit/internal/clock"
	"github.com/joshuapare/autorunkit/internal/identity"
	"github.com/joshuapare/autorunkit/internal/metrics"
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// idTimeLayout prefixes ids so that directory listings sort chronologically.
const idTimeLayout = "20060102T150405Z"

// ExternalHandler captures and restores entries whose state is owned outside
// the configuration store, such as scheduled tasks.
type ExternalHandler interface {
	// Capture stores whatever the handler needs under transaction id and
	// returns the payload references to record.
	Capture(ctx context.Context, st *store.Store, id string, entry types.Entry) ([]string, error)
	// Restore undoes the mutation recorded by m.
	Restore(ctx context.Context, st *store.Store, m *store.Manifest) error
}

// Options configures a Manager.
type Options struct {
	Store    *store.Store         // required
	Accessor configstore.Accessor // required
	Identity identity.Provider    // default: identity.NewOS()
	Clock    clock.Clock          // default: clock.Real()

	// Classifier maps an entry kind to its backing. Default:
	// types.EntryKind.Backing.
	Classifier func(types.EntryKind) types.Backing

	// External handles BackingExternal entries. Without one, such entries
	// are recorded without a capture and roll back as a no-op.
	External ExternalHandler

	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// IDs generates the random part of transaction ids. Default: uuid.NewString.
	IDs func() string
}

// Manager creates, commits and rolls back transactions.
type Manager struct {
	store    *store.Store
	acc      configstore.Accessor
	identity identity.Provider
	clock    clock.Clock
	classify func(types.EntryKind) types.Backing
	external ExternalHandler
	log      *slog.Logger
	metrics  *metrics.Metrics
	ids      func() string
}

// NewManager validates opts and returns a Manager.
func NewManager(opts Options) (*Manager, error) {
	if opts.Store == nil {
		return nil, errors.New("txn: store is required")
	}
	if opts.Accessor == nil {
		return nil, errors.New("txn: configuration accessor is required")
	}
	m := &Manager{
		store:    opts.Store,
		acc:      opts.Accessor,
		identity: opts.Identity,
		clock:    opts.Clock,
		classify: opts.Classifier,
		external: opts.External,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		ids:      opts.IDs,
	}
	if m.identity == nil {
		m.identity = identity.NewOS()
	}
	if m.clock == nil {
		m.clock = clock.Real()
	}
	if m.classify == nil {
		m.classify = types.EntryKind.Backing
	}
	if m.log == nil {
		m.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.ids == nil {
		m.ids = uuid.NewString
	}
	return m, nil
}

// Store returns the underlying transaction store.
func (m *Manager) Store() *store.Store { return m.store }

func (m *Manager) newID() string {
	return m.clock.Now().UTC().Format(idTimeLayout) + "-" + m.ids()
}

// Create captures the current state of entry ahead of action and persists a
// Pending transaction.
//
// A key-value or file entry whose source no longer exists is recorded as not
// restore-eligible rather than failing. Any other capture error aborts
// Create and removes the partial transaction directory.
func (m *Manager) Create(ctx context.Context, entry types.Entry, action types.ActionKind) (View, error) {
	if err := ctx.Err(); err != nil {
		return View{}, err
	}
	if action == 0 {
		return View{}, types.Errorf(types.ErrKindUnknownAction, "transaction for %s has no action", entry.ID)
	}
	backing := m.classify(entry.Kind)
	ops, ok := dispatch[backing]
	if !ok {
		return View{}, types.Errorf(types.ErrKindUnsupported, "entry kind %s (%s backing) cannot be captured", entry.Kind, backing)
	}
	if backing != types.BackingExternal && entry.SourcePath == "" {
		return View{}, fmt.Errorf("entry %s has no source path", entry.ID)
	}

	id := m.newID()
	if err := m.store.CreateDirectory(id); err != nil {
		return View{}, err
	}
	tx := store.NewManifest(id, m.clock.Now(), m.identity.Current(), action, entry)

	if err := ops.capture(ctx, m, tx, entry); err != nil {
		m.discard(id)
		return View{}, fmt.Errorf("capture %s: %w", entry.ID, err)
	}
	if err := m.store.SaveManifest(ctx, tx); err != nil {
		m.discard(id)
		return View{}, err
	}

	m.metrics.TransactionStatus(action.String(), tx.Status.String())
	m.log.Info("transaction created",
		"id", id, "action", action, "entry", entry.ID, "kind", entry.Kind,
		"payloads", len(tx.Payloads), "restore_eligible", tx.RestoreEligible)
	return viewOf(tx), nil
}

func (m *Manager) discard(id string) {
	if err := m.store.DeleteTransaction(id); err != nil {
		m.log.Warn("failed to remove partial transaction", "id", id, "error", err)
	}
}

// Commit marks transaction id Committed. A missing transaction is logged and
// ignored; committing an already committed transaction does nothing.
func (m *Manager) Commit(ctx context.Context, id string) error {
	if err := store.ValidateID(id); err != nil {
		return err
	}
	tx, err := m.store.LoadManifest(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		m.log.Warn("commit of unknown transaction ignored", "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if tx.Status == types.StatusCommitted {
		return nil
	}
	if err := tx.Transition(types.StatusCommitted, m.clock.Now()); err != nil {
		return err
	}
	if err := m.store.SaveManifest(ctx, tx); err != nil {
		return err
	}
	m.metrics.TransactionStatus(tx.Action.String(), tx.Status.String())
	m.log.Info("transaction committed", "id", id)
	return nil
}

// Abandon marks a Pending transaction Failed with reason. It is the failure
// leg of the caller's envelope: the mutation did not happen, so nothing is
// restored. A missing transaction is ignored; abandoning twice does nothing.
func (m *Manager) Abandon(ctx context.Context, id, reason string) error {
	if err := store.ValidateID(id); err != nil {
		return err
	}
	tx, err := m.store.LoadManifest(ctx, id)
	if errors.Is(err, types.ErrNotFound) {
		m.log.Warn("abandon of unknown transaction ignored", "id", id)
		return nil
	}
	if err != nil {
		return err
	}
	if tx.Status == types.StatusFailed {
		return nil
	}
	if tx.Status != types.StatusPending {
		return types.Errorf(types.ErrKindInvalidState, "transaction %s is %s, only Pending transactions can be abandoned", id, tx.Status)
	}
	if err := tx.Transition(types.StatusFailed, m.clock.Now()); err != nil {
		return err
	}
	tx.Error = reason
	if err := m.store.SaveManifest(ctx, tx); err != nil {
		return err
	}
	m.metrics.TransactionStatus(tx.Action.String(), tx.Status.String())
	m.log.Warn("transaction abandoned", "id", id, "reason", reason)
	return nil
}

// Rollback restores the state captured by transaction id.
//
// Only an invalid id is returned as an error. Every other outcome is
// reported in the result: NotFound, CannotRestore (not restore-eligible),
// InvalidState (not Committed) or RestoreFailed. A failed restore moves the
// transaction to Failed.
func (m *Manager) Rollback(ctx context.Context, id string) (types.ActionResult, error) {
	if err := store.ValidateID(id); err != nil {
		return types.Failed(err, id), err
	}
	tx, err := m.store.LoadManifest(ctx, id)
	if err != nil {
		m.metrics.Rollback("", codeOf(err), 0)
		return types.Failed(err, id), nil
	}
	if !tx.RestoreEligible {
		err := types.Errorf(types.ErrKindCannotRestore, "transaction %s cannot be restored: %s", id, noteOr(tx.Note, "no state was captured"))
		m.metrics.Rollback("", codeOf(err), 0)
		return types.Failed(err, id), nil
	}
	if tx.Status != types.StatusCommitted {
		err := types.Errorf(types.ErrKindInvalidState, "transaction %s is %s, only Committed transactions can be rolled back", id, tx.Status)
		m.metrics.Rollback("", codeOf(err), 0)
		return types.Failed(err, id), nil
	}

	backing := m.classify(tx.Target.Kind)
	start := time.Now()
	restoreErr := m.restore(ctx, backing, tx)
	elapsed := time.Since(start)

	if restoreErr != nil {
		if err := tx.Transition(types.StatusFailed, m.clock.Now()); err != nil {
			return types.Failed(err, id), nil
		}
		tx.Error = restoreErr.Error()
		if err := m.store.SaveManifest(ctx, tx); err != nil {
			m.log.Error("failed to record restore failure", "id", id, "error", err)
		}
		wrapped := types.Wrap(types.ErrKindRestoreFailed, restoreErr, "rollback of %s failed", id)
		m.metrics.TransactionStatus(tx.Action.String(), tx.Status.String())
		m.metrics.Rollback(backing.String(), codeOf(wrapped), elapsed)
		m.log.Error("rollback failed", "id", id, "error", restoreErr)
		return types.Failed(wrapped, id), nil
	}

	if err := tx.Transition(types.StatusRolledBack, m.clock.Now()); err != nil {
		return types.Failed(err, id), nil
	}
	if err := m.store.SaveManifest(ctx, tx); err != nil {
		return types.Failed(err, id), nil
	}
	m.metrics.TransactionStatus(tx.Action.String(), tx.Status.String())
	m.metrics.Rollback(backing.String(), "", elapsed)
	m.log.Info("transaction rolled back", "id", id, "entry", tx.Target.ID)

	restored := restoredEntry(tx)
	return types.Succeeded(&restored, id), nil
}

func (m *Manager) restore(ctx context.Context, backing types.Backing, tx *store.Manifest) error {
	ops, ok := dispatch[backing]
	if !ok {
		return fmt.Errorf("no restore routine for %s backing", backing)
	}
	return ops.restore(ctx, m, tx)
}

// List returns up to limit transactions, newest first. limit <= 0 returns
// all of them.
func (m *Manager) List(ctx context.Context, limit int) ([]View, error) {
	all, err := m.store.ListAllManifests(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	views := make([]View, len(all))
	for i, tx := range all {
		views[i] = viewOf(tx)
	}
	return views, nil
}

// Get returns the view of transaction id.
func (m *Manager) Get(ctx context.Context, id string) (View, error) {
	tx, err := m.store.LoadManifest(ctx, id)
	if err != nil {
		return View{}, err
	}
	return viewOf(tx), nil
}

// PurgeOld applies retention limits. See store.Store.Purge.
func (m *Manager) PurgeOld(ctx context.Context, opts store.PurgeOptions) (int, error) {
	n, err := m.store.Purge(ctx, opts)
	if n > 0 {
		m.log.Info("purged old transactions", "count", n)
	}
	return n, err
}

func codeOf(err error) string {
	if kind, ok := types.KindOf(err); ok {
		return kind.String()
	}
	return "Error"
}

func noteOr(note, fallback string) string {
	if note != "" {
		return note
	}
	return fallback
}

// restoredEntry describes the entry as it stands after a successful restore.
func restoredEntry(tx *store.Manifest) types.Entry {
	return types.Entry{
		ID:          tx.Target.ID,
		DisplayName: tx.Target.DisplayName,
		Kind:        tx.Target.Kind,
		Scope:       tx.Target.Scope,
		SourcePath:  tx.Source.Path,
		SourceName:  tx.Source.Name,
		RawValue:    tx.OriginalValue,
		Status:      tx.OriginalStatus,
	}
}
