//go:build !windows

package configstore

import (
	"context"

	"github.com/joshuapare/autorunkit/pkg/types"
)

// Registry is only functional on Windows.
type Registry struct{}

// NewRegistry always fails outside Windows; use the file backend instead.
func NewRegistry() (*Registry, error) { return nil, ErrRegistryUnavailable }

func (r *Registry) GetValue(context.Context, string, string) (types.Value, error) {
	return types.Value{}, ErrRegistryUnavailable
}

func (r *Registry) SetValue(context.Context, string, string, types.Value) error {
	return ErrRegistryUnavailable
}

func (r *Registry) DeleteValue(context.Context, string, string) error {
	return ErrRegistryUnavailable
}
