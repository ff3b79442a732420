package configstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// FileStore is an Accessor backed by a JSON document. Every mutation reloads
// the document, applies the change and rewrites it durably.
//
// Document shape:
//
//	{
//	  "keys": {
//	    "HKCU\\Software\\Microsoft\\Windows\\CurrentVersion\\Run": {
//	      "App": {"kind": "String", "string": "C:\\app.exe"}
//	    }
//	  }
//	}
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store persisted at path. The file does not need to
// exist yet.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file store path is empty")
	}
	return &FileStore{path: path}, nil
}

// Path returns the backing document path.
func (s *FileStore) Path() string { return s.path }

type fileDocument struct {
	Keys map[string]map[string]fileValue `json:"keys"`
}

type fileValue struct {
	Kind    types.ValueKind `json:"kind"`
	String  *string         `json:"string,omitempty"`
	Strings []string        `json:"strings,omitempty"`
	Int     *uint64         `json:"int,omitempty"`
	Binary  string          `json:"binary,omitempty"`
}

func encodeFileValue(v types.Value) fileValue {
	fv := fileValue{Kind: v.Kind}
	switch v.Kind {
	case types.ValueString, types.ValueExpandString:
		s := v.Str
		fv.String = &s
	case types.ValueMultiString:
		fv.Strings = append([]string{}, v.Strings...)
	case types.ValueDWord, types.ValueQWord:
		n := v.Int
		fv.Int = &n
	case types.ValueBinary:
		fv.Binary = base64.StdEncoding.EncodeToString(v.Bytes)
	}
	return fv
}

func (fv fileValue) decode() (types.Value, error) {
	v := types.Value{Kind: fv.Kind}
	switch fv.Kind {
	case types.ValueString, types.ValueExpandString:
		if fv.String != nil {
			v.Str = *fv.String
		}
	case types.ValueMultiString:
		v.Strings = fv.Strings
	case types.ValueDWord, types.ValueQWord:
		if fv.Int != nil {
			v.Int = *fv.Int
		}
	case types.ValueBinary:
		b, err := base64.StdEncoding.DecodeString(fv.Binary)
		if err != nil {
			return types.Value{}, fmt.Errorf("decode binary value: %w", err)
		}
		v.Bytes = b
	}
	return v, nil
}

func (s *FileStore) load() (*keyTable, error) {
	t := newKeyTable()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "read %s", s.path)
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "parse %s", s.path)
	}
	for keyPath, values := range doc.Keys {
		for name, fv := range values {
			v, err := fv.decode()
			if err != nil {
				return nil, types.Wrap(types.ErrKindStorage, err, "%s\\%s", keyPath, name)
			}
			if err := t.set(keyPath, name, v); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (s *FileStore) save(t *keyTable) error {
	doc := fileDocument{Keys: make(map[string]map[string]fileValue, len(t.keys))}
	for _, k := range t.keys {
		values := make(map[string]fileValue, len(k.values))
		for _, sv := range k.values {
			values[sv.name] = encodeFileValue(sv.value)
		}
		doc.Keys[k.path] = values
	}
	// encoding/json sorts map keys, so output is stable.
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "create %s", filepath.Dir(s.path))
	}
	if err := fsync.WriteFile(s.path, append(data, '\n'), 0o644, fsync.FlushAuto); err != nil {
		return types.Wrap(types.ErrKindStorage, err, "write %s", s.path)
	}
	return nil
}

func (s *FileStore) GetValue(ctx context.Context, keyPath, name string) (types.Value, error) {
	if err := ctx.Err(); err != nil {
		return types.Value{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	if err != nil {
		return types.Value{}, err
	}
	return t.get(keyPath, name)
}

func (s *FileStore) SetValue(ctx context.Context, keyPath, name string, v types.Value) error {
	return s.mutate(ctx, func(t *keyTable) error { return t.set(keyPath, name, v) })
}

func (s *FileStore) DeleteValue(ctx context.Context, keyPath, name string) error {
	return s.mutate(ctx, func(t *keyTable) error { return t.delete(keyPath, name) })
}

func (s *FileStore) mutate(ctx context.Context, fn func(*keyTable) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		return err
	}
	return s.save(t)
}
