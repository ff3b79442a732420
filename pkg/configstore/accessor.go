// Package configstore provides typed read/write/delete access to
// hierarchical configuration values addressed by registry-style key paths
// ("HKCU\Software\Microsoft\Windows\CurrentVersion\Run").
//
// Three backends implement Accessor:
//   - Registry: the live Windows registry (Windows only).
//   - FileStore: a JSON document on disk, for offline use and non-Windows hosts.
//   - Memory: an in-process map for tests and dry runs.
package configstore

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// Accessor is the typed configuration store consumed by the transaction
// manager and the action strategies. Missing keys or values are reported as
// errors matching types.ErrNotFound.
type Accessor interface {
	GetValue(ctx context.Context, keyPath, name string) (types.Value, error)
	SetValue(ctx context.Context, keyPath, name string, v types.Value) error
	DeleteValue(ctx context.Context, keyPath, name string) error
}

// Backend names accepted by Open.
const (
	BackendAuto     = "auto"
	BackendRegistry = "registry"
	BackendFile     = "file"
	BackendMemory   = "memory"
)

// Open returns the Accessor for backend. BackendAuto selects the registry on
// Windows and the file store elsewhere; path is only used by the file store.
func Open(backend, path string) (Accessor, error) {
	switch strings.ToLower(backend) {
	case "", BackendAuto:
		if runtime.GOOS == "windows" {
			return openRegistry()
		}
		return openFile(path)
	case BackendRegistry:
		return openRegistry()
	case BackendFile:
		return openFile(path)
	case BackendMemory:
		return NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown configuration backend %q", backend)
}

func openRegistry() (Accessor, error) {
	r, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	return r, nil
}

func openFile(path string) (Accessor, error) {
	s, err := NewFileStore(path)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ErrRegistryUnavailable is returned by NewRegistry on non-Windows hosts.
var ErrRegistryUnavailable = errors.New("the Windows registry is not available on this platform")

func notFound(keyPath, name string) error {
	if name == "" {
		return types.Errorf(types.ErrKindNotFound, "value (Default) not found in %s", keyPath)
	}
	return types.Errorf(types.ErrKindNotFound, "value %q not found in %s", name, keyPath)
}
