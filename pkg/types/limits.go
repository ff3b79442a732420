package types

import (
	"path/filepath"
	"strings"
)

// ============================================================================
// Naming limits and conventions
// ============================================================================

const (
	// MaxTransactionIDLen bounds transaction ids so that <base>/<id>/manifest.json
	// stays well inside MAX_PATH on Windows.
	MaxTransactionIDLen = 128

	// WindowsMaxValueNameLen is the hard limit for registry value names
	// in Windows (measured in characters, not bytes).
	WindowsMaxValueNameLen = 16383

	// MaxPayloadFileNameLen bounds sanitized payload file names.
	MaxPayloadFileNameLen = 200
)

// DisabledSubkey is the counterpart location used to park disabled entries,
// following the Sysinternals Autoruns convention: a registry value moves to
// <key>\AutorunsDisabled and a startup-folder file moves to
// <folder>/AutorunsDisabled/.
const DisabledSubkey = "AutorunsDisabled"

// MirrorKeyPath returns the counterpart of a registry key path: the
// AutorunsDisabled subkey for an active key, and the parent key for a key
// that already is the AutorunsDisabled subkey.
func MirrorKeyPath(keyPath string) string {
	trimmed := strings.TrimRight(keyPath, `\`)
	idx := strings.LastIndex(trimmed, `\`)
	if idx >= 0 && strings.EqualFold(trimmed[idx+1:], DisabledSubkey) {
		return trimmed[:idx]
	}
	return trimmed + `\` + DisabledSubkey
}

// MirrorFilePath is the file-system equivalent of MirrorKeyPath.
func MirrorFilePath(path string) string {
	dir, base := filepath.Split(filepath.Clean(path))
	dir = filepath.Clean(dir)
	if strings.EqualFold(filepath.Base(dir), DisabledSubkey) {
		return filepath.Join(filepath.Dir(dir), base)
	}
	return filepath.Join(dir, DisabledSubkey, base)
}

// IsDisabledKeyPath reports whether keyPath is an AutorunsDisabled subkey.
func IsDisabledKeyPath(keyPath string) bool {
	trimmed := strings.TrimRight(keyPath, `\`)
	idx := strings.LastIndex(trimmed, `\`)
	return idx >= 0 && strings.EqualFold(trimmed[idx+1:], DisabledSubkey)
}

// IsDisabledFilePath reports whether path sits in an AutorunsDisabled folder.
func IsDisabledFilePath(path string) bool {
	return strings.EqualFold(filepath.Base(filepath.Dir(filepath.Clean(path))), DisabledSubkey)
}
