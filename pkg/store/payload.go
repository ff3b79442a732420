package store

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joshuapare/autorunkit/internal/fsync"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// DefaultValueFile is the file stem used for the unnamed (default) value.
const DefaultValueFile = "(Default)"

// lenientUint decodes a JSON number or a quoted decimal. Anything else,
// including overflow, decodes to zero with ok=false rather than failing the
// whole payload.
type lenientUint struct {
	n  uint64
	ok bool
}

func (l lenientUint) MarshalJSON() ([]byte, error) {
	return strconv.AppendUint(nil, l.n, 10), nil
}

func (l *lenientUint) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		*l = lenientUint{}
		return nil
	}
	*l = lenientUint{n: n, ok: true}
	return nil
}

// TypedPayload is the captured state of one registry value. Exactly one of
// String, DWord, QWord, MultiString or Binary is populated, chosen by Kind.
type TypedPayload struct {
	KeyPath     string          `json:"keyPath"`
	ValueName   string          `json:"valueName"`
	Kind        types.ValueKind `json:"kind"`
	BackedUpAt  time.Time       `json:"backedUpAt"`
	String      *string         `json:"string,omitempty"`
	DWord       *lenientUint    `json:"dword,omitempty"`
	QWord       *lenientUint    `json:"qword,omitempty"`
	MultiString []string        `json:"multiString,omitempty"`
	Binary      *string         `json:"binary,omitempty"` // base64
}

// NewTypedPayload captures v as read from keyPath\name at time at.
func NewTypedPayload(keyPath, name string, v types.Value, at time.Time) (*TypedPayload, error) {
	p := &TypedPayload{KeyPath: keyPath, ValueName: name, Kind: v.Kind, BackedUpAt: at.UTC()}
	switch v.Kind {
	case types.ValueString, types.ValueExpandString:
		s := v.Str
		p.String = &s
	case types.ValueDWord:
		p.DWord = &lenientUint{n: uint64(v.DWord()), ok: true}
	case types.ValueQWord:
		p.QWord = &lenientUint{n: v.Int, ok: true}
	case types.ValueMultiString:
		p.MultiString = append([]string{}, v.Strings...)
	case types.ValueBinary:
		b := base64.StdEncoding.EncodeToString(v.Bytes)
		p.Binary = &b
	default:
		return nil, fmt.Errorf("cannot capture value of kind %s", v.Kind)
	}
	return p, nil
}

// Value reconstructs the captured value with its original kind. defaulted
// is true when a numeric field was absent or unparsable and zero was
// substituted.
func (p *TypedPayload) Value() (v types.Value, defaulted bool, err error) {
	switch p.Kind {
	case types.ValueString, types.ValueExpandString:
		v = types.Value{Kind: p.Kind}
		if p.String != nil {
			v.Str = *p.String
		}
		return v, false, nil
	case types.ValueDWord:
		n, ok := numeric(p.DWord)
		if n > 0xFFFFFFFF {
			n, ok = 0, false
		}
		return types.DWordValue(uint32(n)), !ok, nil
	case types.ValueQWord:
		n, ok := numeric(p.QWord)
		return types.QWordValue(n), !ok, nil
	case types.ValueMultiString:
		return types.MultiStringValue(p.MultiString...), false, nil
	case types.ValueBinary:
		var b []byte
		if p.Binary != nil {
			b, err = base64.StdEncoding.DecodeString(*p.Binary)
			if err != nil {
				return types.Value{}, false, fmt.Errorf("decode binary payload %s\\%s: %w", p.KeyPath, p.ValueName, err)
			}
		}
		return types.BinaryValue(b), false, nil
	}
	return types.Value{}, false, fmt.Errorf("payload %s\\%s has unsupported kind %s", p.KeyPath, p.ValueName, p.Kind)
}

func numeric(l *lenientUint) (uint64, bool) {
	if l == nil {
		return 0, false
	}
	return l.n, l.ok
}

// BackupTypedValue writes v to registry/<sanitized name>.json inside
// transaction id and returns the payload reference.
func (s *Store) BackupTypedValue(ctx context.Context, id, keyPath, valueName string, v types.Value) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := s.ResolvePath(id)
	if err != nil {
		return "", err
	}
	p, err := NewTypedPayload(keyPath, valueName, v, s.clock.Now())
	if err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return "", types.Wrap(types.ErrKindStorage, err, "serialize payload")
	}
	data = append(data, '\n')

	regDir := filepath.Join(dir, registryDir)
	if err := os.MkdirAll(regDir, 0o700); err != nil {
		return "", types.Wrap(types.ErrKindStorage, err, "create %s", regDir)
	}
	name, err := uniqueFileName(regDir, SanitizeValueName(valueName), ".json")
	if err != nil {
		return "", err
	}
	if err := fsync.WriteFile(filepath.Join(regDir, name), data, 0o600, s.flush); err != nil {
		return "", types.Wrap(types.ErrKindStorage, err, "write payload %s", name)
	}
	s.metrics.PayloadBytes(int64(len(data)))
	return path.Join(registryDir, name), nil
}

// IsTypedPayloadRef reports whether ref names a payload written by
// BackupTypedValue.
func IsTypedPayloadRef(ref string) bool {
	return strings.HasPrefix(ref, registryDir+"/")
}

// LoadTypedPayload reads a payload written by BackupTypedValue.
func (s *Store) LoadTypedPayload(ctx context.Context, id, ref string) (*TypedPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full, err := s.PayloadPath(id, ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, types.Errorf(types.ErrKindNotFound, "payload %s of transaction %s not found", ref, id)
	}
	if err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "read payload %s", ref)
	}
	var p TypedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, types.Wrap(types.ErrKindStorage, err, "parse payload %s", ref)
	}
	return &p, nil
}

// BackupFile copies sourcePath byte for byte to files/<relativeName> inside
// transaction id. An empty relativeName uses the source's base name. A
// missing source returns a NotFound error.
func (s *Store) BackupFile(ctx context.Context, id, sourcePath, relativeName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dir, err := s.ResolvePath(id)
	if err != nil {
		return "", err
	}
	if relativeName == "" {
		relativeName = filepath.Base(sourcePath)
	}
	filesRoot := filepath.Join(dir, filesDir)
	dst, err := containedPath(filesRoot, filepath.ToSlash(relativeName))
	if err != nil {
		return "", err
	}

	info, err := os.Stat(sourcePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", types.Errorf(types.ErrKindNotFound, "source file %s not found", sourcePath)
	}
	if err != nil {
		return "", types.Wrap(types.ErrKindStorage, err, "stat %s", sourcePath)
	}
	if info.IsDir() {
		return "", types.Errorf(types.ErrKindStorage, "source %s is a directory", sourcePath)
	}
	if err := fsync.CopyFile(dst, sourcePath, s.flush); err != nil {
		return "", types.Wrap(types.ErrKindStorage, err, "copy %s", sourcePath)
	}
	s.metrics.PayloadBytes(info.Size())

	rel, _ := filepath.Rel(dir, dst)
	return filepath.ToSlash(rel), nil
}

// SanitizeValueName maps a value name to a portable file stem. The default
// value maps to "(Default)".
func SanitizeValueName(name string) string {
	if name == "" {
		return DefaultValueFile
	}
	var b strings.Builder
	for _, r := range name {
		if unicode.IsControl(r) || strings.ContainsRune(`<>:"/\|?*`, r) {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(r)
	}
	out := strings.TrimRight(b.String(), ". ")
	if out == "" || out == "." || out == ".." {
		out = "_"
	}
	if isReservedDeviceName(out) {
		out = "_" + out
	}
	if len(out) > types.MaxPayloadFileNameLen {
		out = truncateUTF8(out, types.MaxPayloadFileNameLen)
	}
	return out
}

func isReservedDeviceName(s string) bool {
	stem := strings.ToUpper(s)
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}
	switch stem {
	case "CON", "PRN", "AUX", "NUL":
		return true
	}
	if len(stem) == 4 && (strings.HasPrefix(stem, "COM") || strings.HasPrefix(stem, "LPT")) && stem[3] >= '1' && stem[3] <= '9' {
		return true
	}
	return false
}

func truncateUTF8(s string, n int) string {
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }

// uniqueFileName returns stem+ext, or stem_N+ext for the first N >= 2 that
// does not exist yet in dir. Names are compared case-insensitively so the
// result is also unique on Windows.
func uniqueFileName(dir, stem, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", types.Wrap(types.ErrKindStorage, err, "read %s", dir)
	}
	taken := make(map[string]bool, len(entries))
	for _, e := range entries {
		taken[strings.ToLower(e.Name())] = true
	}
	name := stem + ext
	for i := 2; taken[strings.ToLower(name)]; i++ {
		name = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	return name, nil
}
