package configstore

import (
	"fmt"
	"strings"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// Canonical root abbreviations.
const (
	RootCurrentUser  = "HKCU"
	RootLocalMachine = "HKLM"
	RootUsers        = "HKU"
	RootClassesRoot  = "HKCR"
)

var rootAliases = map[string]string{
	"HKCU":               RootCurrentUser,
	"HKEY_CURRENT_USER":  RootCurrentUser,
	"HKLM":               RootLocalMachine,
	"HKEY_LOCAL_MACHINE": RootLocalMachine,
	"HKU":                RootUsers,
	"HKEY_USERS":         RootUsers,
	"HKCR":               RootClassesRoot,
	"HKEY_CLASSES_ROOT":  RootClassesRoot,
}

// RootForScope maps an entry scope to its registry root.
func RootForScope(scope types.Scope) string {
	if scope == types.ScopeLocalMachine {
		return RootLocalMachine
	}
	return RootCurrentUser
}

// SplitKeyPath returns the canonical root and the subkey path of keyPath.
// Forward slashes are accepted as separators; empty segments are dropped.
func SplitKeyPath(keyPath string) (root, sub string, err error) {
	parts := strings.FieldsFunc(keyPath, func(r rune) bool { return r == '\\' || r == '/' })
	if len(parts) == 0 {
		return "", "", fmt.Errorf("empty key path")
	}
	root, ok := rootAliases[strings.ToUpper(parts[0])]
	if !ok {
		return "", "", fmt.Errorf("key path %q does not start with a registry root", keyPath)
	}
	return root, strings.Join(parts[1:], `\`), nil
}

// NormalizeKeyPath returns keyPath in canonical form: abbreviated root,
// backslash separators, no trailing separator.
func NormalizeKeyPath(keyPath string) (string, error) {
	root, sub, err := SplitKeyPath(keyPath)
	if err != nil {
		return "", err
	}
	if sub == "" {
		return root, nil
	}
	return root + `\` + sub, nil
}

// LongRootName expands an abbreviated root for .reg output.
func LongRootName(root string) string {
	switch root {
	case RootCurrentUser:
		return "HKEY_CURRENT_USER"
	case RootLocalMachine:
		return "HKEY_LOCAL_MACHINE"
	case RootUsers:
		return "HKEY_USERS"
	case RootClassesRoot:
		return "HKEY_CLASSES_ROOT"
	}
	return root
}

// foldKey is the case-insensitive identity of a key path/value name pair.
func foldKey(keyPath string) (string, error) {
	norm, err := NormalizeKeyPath(keyPath)
	if err != nil {
		return "", err
	}
	return strings.ToLower(norm), nil
}

// ServicesKey is the parent key of every service's configuration.
const ServicesKey = `HKLM\SYSTEM\CurrentControlSet\Services`

// ServiceKeyPath returns the registry key of a service. source may already
// be a key path or just the service name.
func ServiceKeyPath(source string) string {
	if _, _, err := SplitKeyPath(source); err == nil {
		return source
	}
	return ServicesKey + `\` + source
}
