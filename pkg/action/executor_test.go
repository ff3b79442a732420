package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// stubStrategy records calls and answers capability questions from fields.
type stubStrategy struct {
	canDisable, canDelete, admin bool
	err                          error
	calls                        []string
}

func (s *stubStrategy) CanDisable(types.Entry) bool    { return s.canDisable }
func (s *stubStrategy) CanDelete(types.Entry) bool     { return s.canDelete }
func (s *stubStrategy) RequiresAdmin(types.Entry) bool { return s.admin }

func (s *stubStrategy) Disable(_ context.Context, e types.Entry) (types.Entry, error) {
	s.calls = append(s.calls, "disable")
	e.Status = types.EntryDisabled
	return e, s.err
}

func (s *stubStrategy) Enable(_ context.Context, e types.Entry) (types.Entry, error) {
	s.calls = append(s.calls, "enable")
	e.Status = types.EntryEnabled
	return e, s.err
}

func (s *stubStrategy) Delete(context.Context, types.Entry) error {
	s.calls = append(s.calls, "delete")
	return s.err
}

func taskEntry() types.Entry {
	return types.Entry{ID: "task:x", Kind: types.KindScheduledTask, SourcePath: `\x`}
}

func TestExecutor_Resolve(t *testing.T) {
	x := NewExecutor(ExecutorOptions{})
	_, err := x.Resolve(types.KindScheduledTask)
	assert.ErrorIs(t, err, types.ErrNoStrategy)

	s := &stubStrategy{}
	x.Register(types.KindScheduledTask, s)
	got, err := x.Resolve(types.KindScheduledTask)
	require.NoError(t, err)
	assert.Same(t, s, got)
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name     string
		strategy *stubStrategy
		elevated func() bool
		action   types.ActionKind
		code     string
		calls    []string
	}{
		{"disable", &stubStrategy{canDisable: true}, nil, types.ActionDisable, "", []string{"disable"}},
		{"enable shares disable gate", &stubStrategy{canDisable: true}, nil, types.ActionEnable, "", []string{"enable"}},
		{"enable refused", &stubStrategy{canDelete: true}, nil, types.ActionEnable, "Unsupported", nil},
		{"delete", &stubStrategy{canDelete: true}, nil, types.ActionDelete, "", []string{"delete"}},
		{"delete refused", &stubStrategy{canDisable: true}, nil, types.ActionDelete, "Unsupported", nil},
		{"restore is not an executor action", &stubStrategy{canDisable: true}, nil, types.ActionRestore, "UnknownAction", nil},
		{"unset action", &stubStrategy{canDisable: true}, nil, 0, "UnknownAction", nil},
		{"admin without probe", &stubStrategy{canDisable: true, admin: true}, nil, types.ActionDisable, "", []string{"disable"}},
		{"admin elevated", &stubStrategy{canDisable: true, admin: true}, func() bool { return true }, types.ActionDisable, "", []string{"disable"}},
		{"admin not elevated", &stubStrategy{canDisable: true, admin: true}, func() bool { return false }, types.ActionDisable, "AccessDenied", nil},
		{"strategy error", &stubStrategy{canDisable: true, err: types.Errorf(types.ErrKindNotFound, "gone")}, nil, types.ActionDisable, "NotFound", []string{"disable"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := NewExecutor(ExecutorOptions{Elevated: tt.elevated})
			x.Register(types.KindScheduledTask, tt.strategy)

			res := x.Execute(context.Background(), taskEntry(), tt.action)
			assert.Equal(t, tt.code == "", res.Success, res.Error)
			assert.Equal(t, tt.code, res.Code)
			assert.Equal(t, tt.calls, tt.strategy.calls)
			if res.Success {
				require.NotNil(t, res.Entry)
				assert.Equal(t, "task:x", res.Entry.ID)
			}
		})
	}
}

func TestExecutor_NoStrategy(t *testing.T) {
	res := NewExecutor(ExecutorOptions{}).Execute(context.Background(), taskEntry(), types.ActionDisable)
	assert.False(t, res.Success)
	assert.Equal(t, "NoStrategy", res.Code)
}

func TestExecutor_UntypedStrategyError(t *testing.T) {
	x := NewExecutor(ExecutorOptions{})
	x.Register(types.KindScheduledTask, &stubStrategy{canDisable: true, err: errors.New("boom")})
	res := x.Execute(context.Background(), taskEntry(), types.ActionDisable)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Error)
	assert.Empty(t, res.Code)
}

func TestExecutor_CanceledContext(t *testing.T) {
	s := &stubStrategy{canDisable: true}
	x := NewExecutor(ExecutorOptions{})
	x.Register(types.KindScheduledTask, s)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := x.Execute(ctx, taskEntry(), types.ActionDisable)
	assert.False(t, res.Success)
	assert.Empty(t, s.calls)
}

func TestNewDefaultExecutor(t *testing.T) {
	x := NewDefaultExecutor(nil, ExecutorOptions{})
	for _, k := range []types.EntryKind{types.KindRegistryRun, types.KindRegistryRunOnce, types.KindWinlogon, types.KindStartupFolder, types.KindService} {
		_, err := x.Resolve(k)
		assert.NoError(t, err, k.String())
	}
	_, err := x.Resolve(types.KindScheduledTask)
	assert.ErrorIs(t, err, types.ErrNoStrategy)
}
