//go:build windows

package configstore

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// Registry is the live Windows registry. All access goes through the 64-bit
// view so that a 32-bit build sees the same keys as the scanner.
type Registry struct{}

// NewRegistry returns the live registry accessor.
func NewRegistry() (*Registry, error) { return &Registry{}, nil }

func openRoot(keyPath string) (registry.Key, string, error) {
	root, sub, err := SplitKeyPath(keyPath)
	if err != nil {
		return 0, "", err
	}
	switch root {
	case RootCurrentUser:
		return registry.CURRENT_USER, sub, nil
	case RootLocalMachine:
		return registry.LOCAL_MACHINE, sub, nil
	case RootUsers:
		return registry.USERS, sub, nil
	case RootClassesRoot:
		return registry.CLASSES_ROOT, sub, nil
	}
	return 0, "", fmt.Errorf("unsupported root %s", root)
}

func mapRegistryErr(err error, keyPath, name string) error {
	if errors.Is(err, registry.ErrNotExist) {
		return notFound(keyPath, name)
	}
	return err
}

func (r *Registry) GetValue(ctx context.Context, keyPath, name string) (types.Value, error) {
	if err := ctx.Err(); err != nil {
		return types.Value{}, err
	}
	root, sub, err := openRoot(keyPath)
	if err != nil {
		return types.Value{}, err
	}
	k, err := registry.OpenKey(root, sub, registry.QUERY_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return types.Value{}, mapRegistryErr(err, keyPath, name)
	}
	defer k.Close()

	_, valType, err := k.GetValue(name, nil)
	if err != nil {
		return types.Value{}, mapRegistryErr(err, keyPath, name)
	}
	switch valType {
	case registry.SZ, registry.EXPAND_SZ:
		s, _, err := k.GetStringValue(name)
		if err != nil {
			return types.Value{}, err
		}
		if valType == registry.EXPAND_SZ {
			return types.ExpandStringValue(s), nil
		}
		return types.StringValue(s), nil
	case registry.DWORD:
		n, _, err := k.GetIntegerValue(name)
		if err != nil {
			return types.Value{}, err
		}
		return types.DWordValue(uint32(n)), nil
	case registry.QWORD:
		n, _, err := k.GetIntegerValue(name)
		if err != nil {
			return types.Value{}, err
		}
		return types.QWordValue(n), nil
	case registry.MULTI_SZ:
		ss, _, err := k.GetStringsValue(name)
		if err != nil {
			return types.Value{}, err
		}
		return types.MultiStringValue(ss...), nil
	case registry.BINARY:
		b, _, err := k.GetBinaryValue(name)
		if err != nil {
			return types.Value{}, err
		}
		return types.BinaryValue(b), nil
	}
	return types.Value{}, fmt.Errorf("%s\\%s: unsupported value type %d", keyPath, name, valType)
}

func (r *Registry) SetValue(ctx context.Context, keyPath, name string, v types.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, sub, err := openRoot(keyPath)
	if err != nil {
		return err
	}
	k, _, err := registry.CreateKey(root, sub, registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return err
	}
	defer k.Close()

	switch v.Kind {
	case types.ValueString:
		return k.SetStringValue(name, v.Str)
	case types.ValueExpandString:
		return k.SetExpandStringValue(name, v.Str)
	case types.ValueDWord:
		return k.SetDWordValue(name, v.DWord())
	case types.ValueQWord:
		return k.SetQWordValue(name, v.Int)
	case types.ValueMultiString:
		return k.SetStringsValue(name, v.Strings)
	case types.ValueBinary:
		return k.SetBinaryValue(name, v.Bytes)
	}
	return types.Errorf(types.ErrKindStorage, "cannot store value of kind %s", v.Kind)
}

func (r *Registry) DeleteValue(ctx context.Context, keyPath, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	root, sub, err := openRoot(keyPath)
	if err != nil {
		return err
	}
	k, err := registry.OpenKey(root, sub, registry.SET_VALUE|registry.WOW64_64KEY)
	if err != nil {
		return mapRegistryErr(err, keyPath, name)
	}
	defer k.Close()
	return mapRegistryErr(k.DeleteValue(name), keyPath, name)
}
