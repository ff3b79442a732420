package action

import (
	"context"
	"io"
	"log/slog"

	"github.com/joshuapare/autorunkit/pkg/txn"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// Guarded runs executor actions inside transactions: capture, mutate, then
// commit, or abandon when the mutation fails.
type Guarded struct {
	mgr  *txn.Manager
	exec *Executor
	log  *slog.Logger
}

// NewGuarded pairs a transaction manager with an executor.
func NewGuarded(mgr *txn.Manager, exec *Executor, logger *slog.Logger) *Guarded {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Guarded{mgr: mgr, exec: exec, log: logger}
}

// Run applies action to e. Capability checks run before anything is
// captured, and capture completes before the mutation starts. The result
// carries the transaction id whenever a transaction was created.
func (g *Guarded) Run(ctx context.Context, e types.Entry, action types.ActionKind) types.ActionResult {
	if _, err := g.exec.Check(e, action); err != nil {
		return types.Failed(err, "")
	}
	view, err := g.mgr.Create(ctx, e, action)
	if err != nil {
		return types.Failed(err, "")
	}

	res := g.exec.Execute(ctx, e, action)
	res.TransactionID = view.ID
	if !res.Success {
		if err := g.mgr.Abandon(ctx, view.ID, res.Error); err != nil {
			g.log.Error("failed to abandon transaction", "id", view.ID, "error", err)
		}
		return res
	}
	if err := g.mgr.Commit(ctx, view.ID); err != nil {
		g.log.Error("mutation applied but commit failed", "id", view.ID, "entry", e.ID, "error", err)
		return types.Failed(err, view.ID)
	}
	return res
}
