// Package action applies Disable, Enable and Delete to auto-start entries.
//
// Each entry kind is handled by a Strategy registered with an Executor. The
// Executor only mutates; it never records anything. Wrap calls in Guarded to
// get a transaction around each mutation so it can be rolled back.
package action

import (
	"context"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// Strategy mutates one family of auto-start entries.
type Strategy interface {
	// CanDisable reports whether the entry can be disabled. Enable shares
	// this gate.
	CanDisable(e types.Entry) bool

	// CanDelete reports whether the entry can be removed outright.
	CanDelete(e types.Entry) bool

	// RequiresAdmin reports whether mutating the entry needs an elevated
	// process.
	RequiresAdmin(e types.Entry) bool

	// Disable parks the entry so it no longer starts, and returns the entry
	// as it now stands.
	Disable(ctx context.Context, e types.Entry) (types.Entry, error)

	// Enable reverses Disable.
	Enable(ctx context.Context, e types.Entry) (types.Entry, error)

	// Delete removes the entry.
	Delete(ctx context.Context, e types.Entry) error
}
