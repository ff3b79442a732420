package txn

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/autorunkit/internal/clock"
	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/internal/identity"
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/integrity"
	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/types"
)

const runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var alice = types.Actor{Name: "alice", ID: "1000", Machine: "WORKSTATION"}

type env struct {
	mgr   *Manager
	store *store.Store
	acc   *configstore.Memory
	clock *clock.FakeClock
	logs  *bytes.Buffer
}

type envOption func(*Options)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	clk := clock.Fake(t0)
	logs := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, nil))
	st, err := store.New(store.Options{
		BaseDir: filepath.Join(t.TempDir(), "backups"),
		Guard:   integrity.New(alice.Machine, alice.Name),
		Clock:   clk,
		Logger:  logger,
		Flush:   fsync.FlushNone,
	})
	require.NoError(t, err)

	acc := configstore.NewMemory()
	n := 0
	o := Options{
		Store:    st,
		Accessor: acc,
		Identity: identity.Static(alice),
		Clock:    clk,
		Logger:   logger,
		IDs: func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		},
	}
	for _, fn := range opts {
		fn(&o)
	}
	mgr, err := NewManager(o)
	require.NoError(t, err)
	return &env{mgr: mgr, store: st, acc: acc, clock: clk, logs: logs}
}

func runEntry() types.Entry {
	return types.Entry{
		ID:          "run:app",
		DisplayName: "App",
		Kind:        types.KindRegistryRun,
		Scope:       types.ScopeCurrentUser,
		SourcePath:  runKey,
		SourceName:  "App",
		RawValue:    `C:\app.exe`,
		Status:      types.EntryEnabled,
	}
}

func TestNewManager_Validation(t *testing.T) {
	_, err := NewManager(Options{Accessor: configstore.NewMemory()})
	require.Error(t, err)

	e := newEnv(t)
	_, err = NewManager(Options{Store: e.store})
	require.Error(t, err)
}

func TestCreate_KeyValue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)

	assert.Equal(t, "20240301T120000Z-id-1", v.ID)
	assert.NoError(t, store.ValidateID(v.ID))
	assert.Equal(t, types.StatusPending, v.Status)
	assert.Equal(t, alice, v.Actor)
	assert.Equal(t, types.ActionDisable, v.Action)
	assert.Equal(t, "run:app", v.EntryID)
	assert.True(t, v.RestoreEligible)
	assert.False(t, v.CanRollback)
	require.Equal(t, []string{"registry/App.json"}, v.Payloads)

	tx, err := e.store.LoadManifest(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, v.Payloads, tx.Payloads)
	p, err := e.store.LoadTypedPayload(ctx, v.ID, v.Payloads[0])
	require.NoError(t, err)
	assert.Equal(t, types.ValueString, p.Kind)
}

func TestCreate_UsesRandomIDs(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, func(o *Options) { o.IDs = nil })
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	a, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	b, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, strings.HasPrefix(a.ID, "20240301T120000Z-"))
}

func TestCreate_Validation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	_, err := e.mgr.Create(ctx, runEntry(), 0)
	assert.ErrorIs(t, err, types.ErrUnknownAction)

	unknown := runEntry()
	unknown.Kind = types.EntryKind(99)
	_, err = e.mgr.Create(ctx, unknown, types.ActionDisable)
	assert.ErrorIs(t, err, types.ErrUnsupported)

	noPath := runEntry()
	noPath.SourcePath = ""
	_, err = e.mgr.Create(ctx, noPath, types.ActionDisable)
	require.Error(t, err)

	list, err := e.mgr.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// moveValue mimics what the registry strategy does on Disable/Enable.
func moveValue(t *testing.T, acc configstore.Accessor, from, to, name string) {
	t.Helper()
	ctx := context.Background()
	v, err := acc.GetValue(ctx, from, name)
	require.NoError(t, err)
	require.NoError(t, acc.SetValue(ctx, to, name, v))
	require.NoError(t, acc.DeleteValue(ctx, from, name))
}

func TestDisableCommitRollback_RunValue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	original := types.StringValue(`C:\app.exe`)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", original))

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)

	disabledKey := types.MirrorKeyPath(runKey)
	moveValue(t, e.acc, runKey, disabledKey, "App")

	e.clock.Advance(time.Minute)
	require.NoError(t, e.mgr.Commit(ctx, v.ID))
	got, err := e.mgr.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusCommitted, got.Status)
	assert.True(t, got.CanRollback)

	e.clock.Advance(time.Minute)
	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, v.ID, res.TransactionID)
	require.NotNil(t, res.Entry)
	assert.Equal(t, types.EntryEnabled, res.Entry.Status)
	assert.Equal(t, runKey, res.Entry.SourcePath)

	restored, err := e.acc.GetValue(ctx, runKey, "App")
	require.NoError(t, err)
	assert.True(t, original.Equal(restored))
	_, err = e.acc.GetValue(ctx, disabledKey, "App")
	assert.ErrorIs(t, err, types.ErrNotFound)

	got, err = e.mgr.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRolledBack, got.Status)
	require.NotNil(t, got.CompletedAt)
	assert.Equal(t, t0.Add(2*time.Minute), *got.CompletedAt)

	// RolledBack is terminal.
	res, err = e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "InvalidState", res.Code)
}

func TestDeleteCommitRollback_PreservesKind(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	original := types.ExpandStringValue(`%ProgramFiles%\app.exe /background`)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", original))

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDelete)
	require.NoError(t, err)
	require.NoError(t, e.acc.DeleteValue(ctx, runKey, "App"))
	require.NoError(t, e.mgr.Commit(ctx, v.ID))

	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	restored, err := e.acc.GetValue(ctx, runKey, "App")
	require.NoError(t, err)
	assert.Equal(t, types.ValueExpandString, restored.Kind)
	assert.True(t, original.Equal(restored))
}

func TestCreate_AbsentSourceIsNotRestorable(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDelete)
	require.NoError(t, err)
	assert.False(t, v.RestoreEligible)
	assert.Contains(t, v.Note, "not present")
	assert.Empty(t, v.Payloads)

	require.NoError(t, e.mgr.Commit(ctx, v.ID))
	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "CannotRestore", res.Code)
}

func TestRollback_Outcomes(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	res, err := e.mgr.Rollback(ctx, "no-such-transaction")
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "NotFound", res.Code)

	res, err = e.mgr.Rollback(ctx, "../etc")
	assert.ErrorIs(t, err, types.ErrInvalidTransactionID)
	assert.False(t, res.Success)
	assert.Equal(t, "InvalidTransactionId", res.Code)

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	res, err = e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, "InvalidState", res.Code, "pending transactions cannot be rolled back")
}

func TestCommit_IdempotentAndMissing(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	require.NoError(t, e.mgr.Commit(ctx, "missing"))
	assert.Contains(t, e.logs.String(), "commit of unknown transaction ignored")
	assert.ErrorIs(t, e.mgr.Commit(ctx, "a/b"), types.ErrInvalidTransactionID)

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	require.NoError(t, e.mgr.Commit(ctx, v.ID))
	first, err := e.mgr.Get(ctx, v.ID)
	require.NoError(t, err)

	e.clock.Advance(time.Hour)
	require.NoError(t, e.mgr.Commit(ctx, v.ID))
	second, err := e.mgr.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, first.CompletedAt, second.CompletedAt)
}

func TestAbandon(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	require.NoError(t, e.mgr.Abandon(ctx, v.ID, "access denied"))
	require.NoError(t, e.mgr.Abandon(ctx, v.ID, "again"))

	got, err := e.mgr.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Equal(t, "access denied", got.Error)

	assert.ErrorIs(t, e.mgr.Commit(ctx, v.ID), types.ErrInvalidState)
	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "InvalidState", res.Code)
	require.NoError(t, e.mgr.Abandon(ctx, "missing", "x"))

	committed, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	require.NoError(t, e.mgr.Commit(ctx, committed.ID))
	assert.ErrorIs(t, e.mgr.Abandon(ctx, committed.ID, "late"), types.ErrInvalidState)
}

func TestStartupFolder_DisableRollback(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	folder := t.TempDir()
	path := filepath.Join(folder, "App.lnk")
	content := []byte("shortcut-bytes\x00\x01")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	entry := types.Entry{
		ID: "startup:app", DisplayName: "App", Kind: types.KindStartupFolder,
		Scope: types.ScopeCurrentUser, SourcePath: path, Status: types.EntryEnabled,
	}
	v, err := e.mgr.Create(ctx, entry, types.ActionDisable)
	require.NoError(t, err)
	assert.Len(t, v.Payloads, 1)

	mirror := types.MirrorFilePath(path)
	require.NoError(t, os.MkdirAll(filepath.Dir(mirror), 0o755))
	require.NoError(t, os.Rename(path, mirror))
	require.NoError(t, e.mgr.Commit(ctx, v.ID))

	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, content, got)
	_, err = os.Stat(mirror)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStartupFolder_MissingFile(t *testing.T) {
	e := newEnv(t)
	entry := types.Entry{
		ID: "startup:gone", Kind: types.KindStartupFolder,
		SourcePath: filepath.Join(t.TempDir(), "gone.lnk"),
	}
	v, err := e.mgr.Create(context.Background(), entry, types.ActionDelete)
	require.NoError(t, err)
	assert.False(t, v.RestoreEligible)
}

func serviceEntry() types.Entry {
	return types.Entry{
		ID: "svc:updater", DisplayName: "Updater", Kind: types.KindService,
		Scope: types.ScopeLocalMachine, SourcePath: "Updater", Status: types.EntryEnabled,
	}
}

func TestService_CapturesStartAndDelayed(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	key := configstore.ServiceKeyPath("Updater")
	require.NoError(t, e.acc.SetValue(ctx, key, "Start", types.DWordValue(2)))

	v, err := e.mgr.Create(ctx, serviceEntry(), types.ActionDisable)
	require.NoError(t, err)
	assert.Len(t, v.Payloads, 2)

	require.NoError(t, e.acc.SetValue(ctx, key, "Start", types.DWordValue(4)))
	require.NoError(t, e.acc.SetValue(ctx, key, "DelayedAutostart", types.DWordValue(1)))
	require.NoError(t, e.mgr.Commit(ctx, v.ID))

	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)

	start, err := e.acc.GetValue(ctx, key, "Start")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), start.DWord())
	delayed, err := e.acc.GetValue(ctx, key, "DelayedAutostart")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), delayed.DWord())
}

func TestService_UnparsableNumericRestoresZero(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	key := configstore.ServiceKeyPath("Updater")
	require.NoError(t, e.acc.SetValue(ctx, key, "Start", types.DWordValue(3)))

	v, err := e.mgr.Create(ctx, serviceEntry(), types.ActionDisable)
	require.NoError(t, err)
	require.NoError(t, e.mgr.Commit(ctx, v.ID))

	p, err := e.store.PayloadPath(v.ID, "registry/Start.json")
	require.NoError(t, err)
	data, err := os.ReadFile(p)
	require.NoError(t, err)
	data = bytes.Replace(data, []byte(`"dword": 3`), []byte(`"dword": "three"`), 1)
	require.NoError(t, os.WriteFile(p, data, 0o600))

	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	require.True(t, res.Success, res.Error)
	start, err := e.acc.GetValue(ctx, key, "Start")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), start.DWord())
	assert.Contains(t, e.logs.String(), "restoring zero")
}

type fakeExternal struct {
	captured []string
	restored []string
}

func (f *fakeExternal) Capture(_ context.Context, _ *store.Store, id string, entry types.Entry) ([]string, error) {
	f.captured = append(f.captured, entry.ID)
	return nil, nil
}

func (f *fakeExternal) Restore(_ context.Context, _ *store.Store, m *store.Manifest) error {
	f.restored = append(f.restored, m.ID)
	return nil
}

func TestExternal(t *testing.T) {
	ctx := context.Background()
	task := types.Entry{ID: "task:updater", Kind: types.KindScheduledTask, SourcePath: `\Updater`}

	t.Run("without handler", func(t *testing.T) {
		e := newEnv(t)
		v, err := e.mgr.Create(ctx, task, types.ActionDisable)
		require.NoError(t, err)
		assert.True(t, v.RestoreEligible)
		assert.Contains(t, v.Note, "managed externally")
		require.NoError(t, e.mgr.Commit(ctx, v.ID))

		res, err := e.mgr.Rollback(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, res.Success, res.Error)
	})

	t.Run("with handler", func(t *testing.T) {
		ext := &fakeExternal{}
		e := newEnv(t, func(o *Options) { o.External = ext })
		v, err := e.mgr.Create(ctx, task, types.ActionDisable)
		require.NoError(t, err)
		require.NoError(t, e.mgr.Commit(ctx, v.ID))
		res, err := e.mgr.Rollback(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, res.Success, res.Error)
		assert.Equal(t, []string{"task:updater"}, ext.captured)
		assert.Equal(t, []string{v.ID}, ext.restored)
	})
}

// flakyAccessor fails writes on demand.
type flakyAccessor struct {
	*configstore.Memory
	failGet error
	failSet error
}

func (f *flakyAccessor) GetValue(ctx context.Context, keyPath, name string) (types.Value, error) {
	if f.failGet != nil {
		return types.Value{}, f.failGet
	}
	return f.Memory.GetValue(ctx, keyPath, name)
}

func (f *flakyAccessor) SetValue(ctx context.Context, keyPath, name string, v types.Value) error {
	if f.failSet != nil {
		return f.failSet
	}
	return f.Memory.SetValue(ctx, keyPath, name, v)
}

func TestRollback_RestoreFailureMarksFailed(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyAccessor{Memory: configstore.NewMemory()}
	e := newEnv(t, func(o *Options) { o.Accessor = flaky })
	require.NoError(t, flaky.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.NoError(t, err)
	require.NoError(t, e.mgr.Commit(ctx, v.ID))

	flaky.failSet = errors.New("registry is read-only")
	res, err := e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "RestoreFailed", res.Code)
	assert.Contains(t, res.Error, "registry is read-only")

	got, err := e.mgr.Get(ctx, v.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, got.Status)
	assert.Contains(t, got.Error, "registry is read-only")

	flaky.failSet = nil
	res, err = e.mgr.Rollback(ctx, v.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "InvalidState", res.Code)
}

func TestCreate_CaptureErrorRemovesDirectory(t *testing.T) {
	ctx := context.Background()
	flaky := &flakyAccessor{Memory: configstore.NewMemory(), failGet: errors.New("access is denied")}
	e := newEnv(t, func(o *Options) { o.Accessor = flaky })

	_, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access is denied")

	entries, err := os.ReadDir(e.store.BaseDir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListGetPurge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	require.NoError(t, e.acc.SetValue(ctx, runKey, "App", types.StringValue(`C:\app.exe`)))

	var ids []string
	for i := 0; i < 3; i++ {
		v, err := e.mgr.Create(ctx, runEntry(), types.ActionDisable)
		require.NoError(t, err)
		ids = append(ids, v.ID)
		e.clock.Advance(24 * time.Hour)
	}

	all, err := e.mgr.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, ids[2], all[0].ID)

	two, err := e.mgr.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	_, err = e.mgr.Get(ctx, "missing")
	assert.ErrorIs(t, err, types.ErrNotFound)

	n, err := e.mgr.PurgeOld(ctx, store.PurgeOptions{MaxCount: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	left, err := e.mgr.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, ids[2], left[0].ID)
}

func TestDispatchCoversEveryBacking(t *testing.T) {
	for _, k := range types.EntryKinds() {
		ops, ok := dispatch[k.Backing()]
		require.True(t, ok, "kind %s", k)
		assert.NotNil(t, ops.capture, "kind %s", k)
		assert.NotNil(t, ops.restore, "kind %s", k)
	}
}
