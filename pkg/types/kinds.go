package types

import (
	"fmt"
	"strings"
)

// enumNames maps enum values to their stable string form. Parsing is
// case-insensitive; formatting always uses the canonical spelling. An unset
// (zero) value formats as "" and "" parses back to zero.
type enumNames[T ~int] struct {
	what  string
	names map[T]string
}

func (e enumNames[T]) format(v T) string {
	if s, ok := e.names[v]; ok {
		return s
	}
	if v == 0 {
		return ""
	}
	return fmt.Sprintf("%s(%d)", e.what, int(v))
}

func (e enumNames[T]) parse(s string) (T, error) {
	var zero T
	if s == "" {
		return zero, nil
	}
	for v, name := range e.names {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	return zero, fmt.Errorf("unknown %s %q", e.what, s)
}

// -----------------------------------------------------------------------------
// ActionKind
// -----------------------------------------------------------------------------

// ActionKind is the mutation a transaction guards.
type ActionKind int

const (
	ActionDisable ActionKind = iota + 1
	ActionEnable
	ActionDelete
	ActionRestore
)

var actionNames = enumNames[ActionKind]{what: "action", names: map[ActionKind]string{
	ActionDisable: "Disable",
	ActionEnable:  "Enable",
	ActionDelete:  "Delete",
	ActionRestore: "Restore",
}}

func (a ActionKind) String() string                { return actionNames.format(a) }
func (a ActionKind) MarshalText() ([]byte, error)  { return []byte(a.String()), nil }
func (a *ActionKind) UnmarshalText(b []byte) error { return unmarshalEnum(actionNames, a, b) }

// ParseActionKind parses the canonical or lower-case form of an action.
func ParseActionKind(s string) (ActionKind, error) { return actionNames.parse(s) }

// -----------------------------------------------------------------------------
// TxStatus
// -----------------------------------------------------------------------------

// TxStatus is the lifecycle state of a transaction manifest.
//
//	Pending -> Committed | Failed
//	Committed -> RolledBack | Failed
//
// RolledBack and Failed are terminal.
type TxStatus int

const (
	StatusPending TxStatus = iota + 1
	StatusCommitted
	StatusRolledBack
	StatusFailed
)

var statusNames = enumNames[TxStatus]{what: "status", names: map[TxStatus]string{
	StatusPending:    "Pending",
	StatusCommitted:  "Committed",
	StatusRolledBack: "RolledBack",
	StatusFailed:     "Failed",
}}

func (s TxStatus) String() string                { return statusNames.format(s) }
func (s TxStatus) MarshalText() ([]byte, error)  { return []byte(s.String()), nil }
func (s *TxStatus) UnmarshalText(b []byte) error { return unmarshalEnum(statusNames, s, b) }

// CanTransition reports whether moving from s to next is legal.
func (s TxStatus) CanTransition(next TxStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusCommitted || next == StatusFailed
	case StatusCommitted:
		return next == StatusRolledBack || next == StatusFailed
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s TxStatus) Terminal() bool {
	return s == StatusRolledBack || s == StatusFailed
}

// -----------------------------------------------------------------------------
// EntryKind and backing classification
// -----------------------------------------------------------------------------

// EntryKind classifies the configuration source of an auto-start entry.
type EntryKind int

const (
	KindRegistryRun EntryKind = iota + 1
	KindRegistryRunOnce
	KindWinlogon
	KindStartupFolder
	KindService
	KindScheduledTask
)

var entryKindNames = enumNames[EntryKind]{what: "entry kind", names: map[EntryKind]string{
	KindRegistryRun:     "RegistryRun",
	KindRegistryRunOnce: "RegistryRunOnce",
	KindWinlogon:        "Winlogon",
	KindStartupFolder:   "StartupFolder",
	KindService:         "Service",
	KindScheduledTask:   "ScheduledTask",
}}

func (k EntryKind) String() string                { return entryKindNames.format(k) }
func (k EntryKind) MarshalText() ([]byte, error)  { return []byte(k.String()), nil }
func (k *EntryKind) UnmarshalText(b []byte) error { return unmarshalEnum(entryKindNames, k, b) }

// ParseEntryKind parses an entry kind name.
func ParseEntryKind(s string) (EntryKind, error) { return entryKindNames.parse(s) }

// EntryKinds lists every known entry kind in declaration order.
func EntryKinds() []EntryKind {
	return []EntryKind{
		KindRegistryRun, KindRegistryRunOnce, KindWinlogon,
		KindStartupFolder, KindService, KindScheduledTask,
	}
}

// Backing describes where an entry kind's state lives, which decides how the
// transaction manager captures and restores it.
type Backing int

const (
	BackingUnknown  Backing = iota
	BackingKeyValue         // one typed registry value
	BackingFile             // one file on disk
	BackingService          // service Start + DelayedAutostart values
	BackingExternal         // owned by an external collaborator
)

func (b Backing) String() string {
	switch b {
	case BackingKeyValue:
		return "key-value"
	case BackingFile:
		return "file"
	case BackingService:
		return "service"
	case BackingExternal:
		return "external"
	default:
		return "unknown"
	}
}

// Backing returns the default classification of k.
func (k EntryKind) Backing() Backing {
	switch k {
	case KindRegistryRun, KindRegistryRunOnce, KindWinlogon:
		return BackingKeyValue
	case KindStartupFolder:
		return BackingFile
	case KindService:
		return BackingService
	case KindScheduledTask:
		return BackingExternal
	default:
		return BackingUnknown
	}
}

// -----------------------------------------------------------------------------
// Scope and EntryStatus
// -----------------------------------------------------------------------------

// Scope is the registry root or profile an entry belongs to.
type Scope int

const (
	ScopeCurrentUser Scope = iota + 1
	ScopeLocalMachine
)

var scopeNames = enumNames[Scope]{what: "scope", names: map[Scope]string{
	ScopeCurrentUser:  "CurrentUser",
	ScopeLocalMachine: "LocalMachine",
}}

func (s Scope) String() string                { return scopeNames.format(s) }
func (s Scope) MarshalText() ([]byte, error)  { return []byte(s.String()), nil }
func (s *Scope) UnmarshalText(b []byte) error { return unmarshalEnum(scopeNames, s, b) }

// ParseScope parses a scope name.
func ParseScope(s string) (Scope, error) { return scopeNames.parse(s) }

// EntryStatus is the observed state of an entry.
type EntryStatus int

const (
	EntryUnknown EntryStatus = iota
	EntryEnabled
	EntryDisabled
)

var entryStatusNames = enumNames[EntryStatus]{what: "entry status", names: map[EntryStatus]string{
	EntryUnknown:  "Unknown",
	EntryEnabled:  "Enabled",
	EntryDisabled: "Disabled",
}}

func (s EntryStatus) String() string                { return entryStatusNames.format(s) }
func (s EntryStatus) MarshalText() ([]byte, error)  { return []byte(s.String()), nil }
func (s *EntryStatus) UnmarshalText(b []byte) error { return unmarshalEnum(entryStatusNames, s, b) }

func unmarshalEnum[T ~int](names enumNames[T], dst *T, b []byte) error {
	v, err := names.parse(string(b))
	if err != nil {
		return err
	}
	*dst = v
	return nil
}
