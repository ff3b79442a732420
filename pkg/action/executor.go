package action

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/joshuapare/autorunkit/internal/metrics"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// ExecutorOptions configures an Executor.
type ExecutorOptions struct {
	// Elevated reports whether the process runs with administrator rights.
	// When nil, RequiresAdmin is not enforced.
	Elevated func() bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Executor dispatches actions to the Strategy registered for each entry kind.
type Executor struct {
	mu         sync.RWMutex
	strategies map[types.EntryKind]Strategy
	elevated   func() bool
	log        *slog.Logger
	metrics    *metrics.Metrics
}

// NewExecutor returns an Executor with no strategies registered.
func NewExecutor(opts ExecutorOptions) *Executor {
	x := &Executor{
		strategies: make(map[types.EntryKind]Strategy),
		elevated:   opts.Elevated,
		log:        opts.Logger,
		metrics:    opts.Metrics,
	}
	if x.log == nil {
		x.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return x
}

// Register installs s for kind, replacing any previous strategy.
func (x *Executor) Register(kind types.EntryKind, s Strategy) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.strategies[kind] = s
}

// Resolve returns the strategy for kind, or a NoStrategy error.
func (x *Executor) Resolve(kind types.EntryKind) (Strategy, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	s, ok := x.strategies[kind]
	if !ok {
		return nil, types.Errorf(types.ErrKindNoStrategy, "no strategy registered for %s entries", kind)
	}
	return s, nil
}

// Check resolves the strategy for e and verifies that it accepts action,
// without mutating anything.
func (x *Executor) Check(e types.Entry, action types.ActionKind) (Strategy, error) {
	switch action {
	case types.ActionDisable, types.ActionEnable, types.ActionDelete:
	default:
		return nil, types.Errorf(types.ErrKindUnknownAction, "executor does not handle action %q", action.String())
	}
	s, err := x.Resolve(e.Kind)
	if err != nil {
		return nil, err
	}
	if action == types.ActionDelete {
		if !s.CanDelete(e) {
			return nil, types.Errorf(types.ErrKindUnsupported, "%s entry %s cannot be deleted", e.Kind, e.ID)
		}
	} else if !s.CanDisable(e) {
		return nil, types.Errorf(types.ErrKindUnsupported, "%s entry %s cannot be disabled or enabled", e.Kind, e.ID)
	}
	if s.RequiresAdmin(e) && x.elevated != nil && !x.elevated() {
		return nil, types.Errorf(types.ErrKindAccessDenied, "%s on %s requires administrator rights", action, e.ID)
	}
	return s, nil
}

// Execute applies action to e. Failures are reported in the result.
func (x *Executor) Execute(ctx context.Context, e types.Entry, action types.ActionKind) types.ActionResult {
	res := x.execute(ctx, e, action)
	x.metrics.Action(e.Kind.String(), action.String(), res.Code)
	if res.Success {
		x.log.Info("action applied", "action", action, "entry", e.ID, "kind", e.Kind)
	} else {
		x.log.Warn("action failed", "action", action, "entry", e.ID, "kind", e.Kind, "code", res.Code, "error", res.Error)
	}
	return res
}

func (x *Executor) execute(ctx context.Context, e types.Entry, action types.ActionKind) types.ActionResult {
	s, err := x.Check(e, action)
	if err != nil {
		return types.Failed(err, "")
	}
	if err := ctx.Err(); err != nil {
		return types.Failed(err, "")
	}

	var updated types.Entry
	switch action {
	case types.ActionDisable:
		updated, err = s.Disable(ctx, e)
	case types.ActionEnable:
		updated, err = s.Enable(ctx, e)
	case types.ActionDelete:
		err = s.Delete(ctx, e)
		updated = e
	}
	if err != nil {
		return types.Failed(err, "")
	}
	return types.Succeeded(&updated, "")
}
