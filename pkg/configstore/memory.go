package configstore

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/joshuapare/autorunkit/pkg/types"
)

type storedValue struct {
	name  string // original spelling
	value types.Value
}

// keyTable holds values per folded key path. Memory and FileStore share it.
type keyTable struct {
	keys map[string]*keyEntry
}

type keyEntry struct {
	path   string // canonical, original case
	values map[string]storedValue
}

func newKeyTable() *keyTable { return &keyTable{keys: make(map[string]*keyEntry)} }

func (t *keyTable) get(keyPath, name string) (types.Value, error) {
	fk, err := foldKey(keyPath)
	if err != nil {
		return types.Value{}, err
	}
	k, ok := t.keys[fk]
	if !ok {
		return types.Value{}, notFound(keyPath, name)
	}
	sv, ok := k.values[strings.ToLower(name)]
	if !ok {
		return types.Value{}, notFound(keyPath, name)
	}
	return cloneValue(sv.value), nil
}

func (t *keyTable) set(keyPath, name string, v types.Value) error {
	fk, err := foldKey(keyPath)
	if err != nil {
		return err
	}
	if !v.Kind.Valid() {
		return types.Errorf(types.ErrKindStorage, "cannot store value of kind %s", v.Kind)
	}
	k, ok := t.keys[fk]
	if !ok {
		norm, _ := NormalizeKeyPath(keyPath)
		k = &keyEntry{path: norm, values: make(map[string]storedValue)}
		t.keys[fk] = k
	}
	k.values[strings.ToLower(name)] = storedValue{name: name, value: cloneValue(v)}
	return nil
}

func (t *keyTable) delete(keyPath, name string) error {
	fk, err := foldKey(keyPath)
	if err != nil {
		return err
	}
	k, ok := t.keys[fk]
	if !ok {
		return notFound(keyPath, name)
	}
	lname := strings.ToLower(name)
	if _, ok := k.values[lname]; !ok {
		return notFound(keyPath, name)
	}
	delete(k.values, lname)
	if len(k.values) == 0 {
		delete(t.keys, fk)
	}
	return nil
}

func cloneValue(v types.Value) types.Value {
	v.Strings = slices.Clone(v.Strings)
	v.Bytes = bytes.Clone(v.Bytes)
	return v
}

// Memory is an in-process Accessor. Key paths and value names are
// case-insensitive, as in the registry.
type Memory struct {
	mu    sync.Mutex
	table *keyTable
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{table: newKeyTable()}
}

func (m *Memory) GetValue(ctx context.Context, keyPath, name string) (types.Value, error) {
	if err := ctx.Err(); err != nil {
		return types.Value{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.get(keyPath, name)
}

func (m *Memory) SetValue(ctx context.Context, keyPath, name string, v types.Value) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.set(keyPath, name, v)
}

func (m *Memory) DeleteValue(ctx context.Context, keyPath, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table.delete(keyPath, name)
}
