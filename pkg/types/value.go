package types

import (
	"bytes"
	"fmt"
	"slices"
)

// ValueKind enumerates the registry value types the engine can capture and
// restore losslessly. The numbers align with the Windows REG_* definitions.
type ValueKind uint32

const (
	ValueString       ValueKind = 1  // REG_SZ
	ValueExpandString ValueKind = 2  // REG_EXPAND_SZ
	ValueBinary       ValueKind = 3  // REG_BINARY
	ValueDWord        ValueKind = 4  // REG_DWORD
	ValueMultiString  ValueKind = 7  // REG_MULTI_SZ
	ValueQWord        ValueKind = 11 // REG_QWORD
)

// String implements the Stringer interface for ValueKind. Unknown kinds are
// formatted as signed int32 to match how hivex prints invalid types.
func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "String"
	case ValueExpandString:
		return "ExpandString"
	case ValueBinary:
		return "Binary"
	case ValueDWord:
		return "DWord"
	case ValueMultiString:
		return "MultiString"
	case ValueQWord:
		return "QWord"
	default:
		return fmt.Sprintf("UNKNOWN_TYPE_%d", int32(k))
	}
}

// RegName returns the REG_* spelling used by regedit.
func (k ValueKind) RegName() string {
	switch k {
	case ValueString:
		return "REG_SZ"
	case ValueExpandString:
		return "REG_EXPAND_SZ"
	case ValueBinary:
		return "REG_BINARY"
	case ValueDWord:
		return "REG_DWORD"
	case ValueMultiString:
		return "REG_MULTI_SZ"
	case ValueQWord:
		return "REG_QWORD"
	default:
		return fmt.Sprintf("UNKNOWN_TYPE_%d", int32(k))
	}
}

// Valid reports whether k is one of the supported kinds.
func (k ValueKind) Valid() bool {
	switch k {
	case ValueString, ValueExpandString, ValueBinary, ValueDWord, ValueMultiString, ValueQWord:
		return true
	}
	return false
}

func (k ValueKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal value kind %s", k)
	}
	return []byte(k.String()), nil
}

func (k *ValueKind) UnmarshalText(b []byte) error {
	v, err := ParseValueKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// ParseValueKind accepts both the short names ("DWord") and REG_* names.
func ParseValueKind(s string) (ValueKind, error) {
	for _, k := range []ValueKind{ValueString, ValueExpandString, ValueBinary, ValueDWord, ValueMultiString, ValueQWord} {
		if s == k.String() || s == k.RegName() {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown value kind %q", s)
}

// Value is one typed registry value. Only the field matching Kind is
// meaningful: Str for String/ExpandString, Strings for MultiString, Int for
// DWord/QWord and Bytes for Binary.
type Value struct {
	Kind    ValueKind
	Str     string
	Strings []string
	Int     uint64
	Bytes   []byte
}

// StringValue returns a REG_SZ value.
func StringValue(s string) Value { return Value{Kind: ValueString, Str: s} }

// ExpandStringValue returns a REG_EXPAND_SZ value.
func ExpandStringValue(s string) Value { return Value{Kind: ValueExpandString, Str: s} }

// DWordValue returns a REG_DWORD value.
func DWordValue(v uint32) Value { return Value{Kind: ValueDWord, Int: uint64(v)} }

// QWordValue returns a REG_QWORD value.
func QWordValue(v uint64) Value { return Value{Kind: ValueQWord, Int: v} }

// MultiStringValue returns a REG_MULTI_SZ value.
func MultiStringValue(v ...string) Value {
	return Value{Kind: ValueMultiString, Strings: slices.Clone(v)}
}

// BinaryValue returns a REG_BINARY value.
func BinaryValue(b []byte) Value { return Value{Kind: ValueBinary, Bytes: bytes.Clone(b)} }

// DWord returns the value truncated to 32 bits.
func (v Value) DWord() uint32 { return uint32(v.Int) }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case ValueString, ValueExpandString:
		return v.Str == o.Str
	case ValueMultiString:
		return slices.Equal(v.Strings, o.Strings)
	case ValueDWord:
		return v.DWord() == o.DWord()
	case ValueQWord:
		return v.Int == o.Int
	case ValueBinary:
		return bytes.Equal(v.Bytes, o.Bytes)
	}
	return false
}

// Display renders the value the way a listing would show it.
func (v Value) Display() string {
	switch v.Kind {
	case ValueString, ValueExpandString:
		return v.Str
	case ValueMultiString:
		return fmt.Sprintf("%q", v.Strings)
	case ValueDWord:
		return fmt.Sprintf("0x%08x (%d)", v.DWord(), v.DWord())
	case ValueQWord:
		return fmt.Sprintf("0x%016x (%d)", v.Int, v.Int)
	case ValueBinary:
		return fmt.Sprintf("% x", v.Bytes)
	}
	return ""
}
