package main

import (
	"github.com/spf13/pflag"

	"github.com/joshuapare/autorunkit/pkg/types"
)

var (
	_ pflag.Value = (*kindFlag)(nil)
	_ pflag.Value = (*scopeFlag)(nil)
)

// kindFlag adapts types.EntryKind to pflag.Value.
type kindFlag types.EntryKind

func (f *kindFlag) String() string {
	if f == nil {
		return ""
	}
	return types.EntryKind(*f).String()
}

func (f *kindFlag) Set(s string) error {
	k, err := types.ParseEntryKind(s)
	if err != nil {
		return err
	}
	*f = kindFlag(k)
	return nil
}

func (f *kindFlag) Type() string { return "kind" }

// scopeFlag adapts types.Scope to pflag.Value.
type scopeFlag types.Scope

func (f *scopeFlag) String() string {
	if f == nil {
		return ""
	}
	return types.Scope(*f).String()
}

func (f *scopeFlag) Set(s string) error {
	sc, err := types.ParseScope(s)
	if err != nil {
		return err
	}
	*f = scopeFlag(sc)
	return nil
}

func (f *scopeFlag) Type() string { return "scope" }
