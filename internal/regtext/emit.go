// Package regtext renders captured registry values as a .reg script that
// regedit can import, so a backup can be inspected or re-applied by hand.
package regtext

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/store"
	"github.com/joshuapare/autorunkit/pkg/types"
)

// Options configures ExportPayloads.
type Options struct {
	// Encoding is EncodingUTF16LE (default), EncodingUTF8 or
	// EncodingWindows1252.
	Encoding string
	// Comment, when set, is written as a ';' line after the header.
	Comment string
}

// ExportPayloads renders payloads grouped by key, keys in case-insensitive
// order and values by name within each key.
func ExportPayloads(payloads []*store.TypedPayload, opts Options) ([]byte, error) {
	d, err := dialectFor(opts.Encoding)
	if err != nil {
		return nil, err
	}

	type group struct {
		path   string
		values []*store.TypedPayload
	}
	groups := make(map[string]*group)
	for _, p := range payloads {
		path, err := longKeyPath(p.KeyPath)
		if err != nil {
			return nil, err
		}
		k := strings.ToLower(path)
		g, ok := groups[k]
		if !ok {
			g = &group{path: path}
			groups[k] = g
		}
		g.values = append(g.values, p)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(d.header + CRLF + CRLF)
	if opts.Comment != "" {
		for _, line := range strings.Split(opts.Comment, "\n") {
			buf.WriteString(CommentPrefix + " " + strings.TrimRight(line, "\r") + CRLF)
		}
		buf.WriteString(CRLF)
	}
	for _, k := range keys {
		g := groups[k]
		sort.SliceStable(g.values, func(i, j int) bool {
			return strings.ToLower(g.values[i].ValueName) < strings.ToLower(g.values[j].ValueName)
		})
		buf.WriteString(KeyOpenBracket + g.path + KeyCloseBracket + CRLF)
		for _, p := range g.values {
			if err := emitValue(&buf, d, p); err != nil {
				return nil, err
			}
		}
		buf.WriteString(CRLF)
	}
	return d.encodeFile(buf.String())
}

// longKeyPath expands the root abbreviation; regedit only accepts full names.
func longKeyPath(keyPath string) (string, error) {
	root, sub, err := configstore.SplitKeyPath(keyPath)
	if err != nil {
		return "", err
	}
	if sub == "" {
		return configstore.LongRootName(root), nil
	}
	return configstore.LongRootName(root) + Backslash + sub, nil
}

func emitValue(buf *bytes.Buffer, d dialect, p *store.TypedPayload) error {
	v, _, err := p.Value()
	if err != nil {
		return err
	}

	if p.ValueName == "" {
		buf.WriteString(DefaultValuePrefix)
	} else {
		buf.WriteString(Quote)
		buf.WriteString(escapeString(p.ValueName))
		buf.WriteString(Quote + ValueAssignment)
	}

	switch v.Kind {
	case types.ValueString:
		buf.WriteString(Quote)
		buf.WriteString(escapeString(v.Str))
		buf.WriteString(Quote)
	case types.ValueExpandString:
		data, err := d.zeroTerminated(v.Str)
		if err != nil {
			return err
		}
		buf.WriteString(HexExpandSZPrefix)
		buf.WriteString(formatHex(data))
	case types.ValueMultiString:
		data, err := encodeMultiString(d, v.Strings)
		if err != nil {
			return err
		}
		buf.WriteString(HexMultiSZPrefix)
		buf.WriteString(formatHex(data))
	case types.ValueDWord:
		buf.WriteString(DWORDPrefix)
		fmt.Fprintf(buf, DWORDHexFormat, v.DWord())
	case types.ValueQWord:
		data := make([]byte, 8)
		binary.LittleEndian.PutUint64(data, v.Int)
		buf.WriteString(HexQWORDPrefix)
		buf.WriteString(formatHex(data))
	default:
		buf.WriteString(HexPrefix)
		buf.WriteString(formatHex(v.Bytes))
	}
	buf.WriteString(CRLF)
	return nil
}

func escapeString(s string) string {
	s = strings.ReplaceAll(s, Backslash, EscapedBackslash)
	s = strings.ReplaceAll(s, Quote, EscapedQuote)
	return s
}

func formatHex(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf(HexByteFormat, b)
	}
	return strings.Join(parts, HexByteSeparator)
}

func encodeMultiString(d dialect, values []string) ([]byte, error) {
	var buf bytes.Buffer
	for _, v := range values {
		b, err := d.zeroTerminated(v)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.Write(make([]byte, d.unit))
	return buf.Bytes(), nil
}
