package txn

import (
	"time"

	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// View is the public, read-only summary of a transaction.
type View struct {
	ID              string            `json:"id"`
	Timestamp       time.Time         `json:"timestamp"`
	Actor           types.Actor       `json:"actor"`
	Action          types.ActionKind  `json:"action"`
	EntryID         string            `json:"entryId"`
	DisplayName     string            `json:"displayName"`
	Kind            types.EntryKind   `json:"kind"`
	Scope           types.Scope       `json:"scope"`
	SourcePath      string            `json:"sourcePath"`
	SourceName      string            `json:"sourceName,omitempty"`
	OriginalValue   string            `json:"originalValue,omitempty"`
	OriginalStatus  types.EntryStatus `json:"originalStatus"`
	Status          types.TxStatus    `json:"status"`
	RestoreEligible bool              `json:"restoreEligible"`
	CanRollback     bool              `json:"canRollback"`
	Payloads        []string          `json:"payloads,omitempty"`
	Note            string            `json:"note,omitempty"`
	CompletedAt     *time.Time        `json:"completedAt,omitempty"`
	Error           string            `json:"error,omitempty"`
}

func viewOf(tx *store.Manifest) View {
	return View{
		ID:              tx.ID,
		Timestamp:       tx.Timestamp,
		Actor:           tx.Actor,
		Action:          tx.Action,
		EntryID:         tx.Target.ID,
		DisplayName:     tx.Target.DisplayName,
		Kind:            tx.Target.Kind,
		Scope:           tx.Target.Scope,
		SourcePath:      tx.Source.Path,
		SourceName:      tx.Source.Name,
		OriginalValue:   tx.OriginalValue,
		OriginalStatus:  tx.OriginalStatus,
		Status:          tx.Status,
		RestoreEligible: tx.RestoreEligible,
		CanRollback:     tx.CanRollback(),
		Payloads:        append([]string(nil), tx.Payloads...),
		Note:            tx.Note,
		CompletedAt:     tx.CompletedAt,
		Error:           tx.Error,
	}
}
